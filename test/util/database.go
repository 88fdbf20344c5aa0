// Package util holds shared database helpers for integration tests.
package util

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/privacyops/maskd/pkg/database"
)

// One PostgreSQL instance per test binary; each test gets its own schema
// inside it. CI points CI_DATABASE_URL at a service container instead of
// starting one here.
var (
	baseOnce    sync.Once
	baseConnStr string
	baseErr     error
)

// SetupTestDatabase returns a migrated database.Client bound to a schema
// private to this test. The schema is dropped on cleanup, so tests never
// see each other's records.
func SetupTestDatabase(t *testing.T) *database.Client {
	t.Helper()
	ctx := context.Background()
	schema := testSchemaName(t)

	admin, err := sql.Open("pgx", baseConnString(t))
	require.NoError(t, err)
	_, err = admin.ExecContext(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	require.NoError(t, admin.Close())

	// search_path rides on the connection string so every pooled connection
	// lands in the test schema, including the ones golang-migrate uses for
	// its version table.
	db, err := sql.Open("pgx", withSearchPath(baseConnString(t), schema))
	require.NoError(t, err)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	require.NoError(t, database.RunMigrations(ctx, db, "test"))

	client := database.NewClientFromDB(db)
	t.Cleanup(func() {
		if _, err := db.ExecContext(context.Background(), "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("failed to drop schema %s: %v", schema, err)
		}
		_ = client.Close()
	})
	return client
}

// baseConnString returns the shared database's connection string, starting
// the testcontainer on first use outside CI.
func baseConnString(t *testing.T) string {
	if url := os.Getenv("CI_DATABASE_URL"); url != "" {
		return url
	}

	baseOnce.Do(func() {
		ctx := context.Background()
		t.Log("Starting shared PostgreSQL testcontainer")

		container, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			baseErr = fmt.Errorf("start postgres container: %w", err)
			return
		}
		baseConnStr, baseErr = container.ConnectionString(ctx, "sslmode=disable")
	})

	require.NoError(t, baseErr, "shared test database unavailable")
	return baseConnStr
}

// testSchemaName derives a unique, identifier-safe schema name from the
// test name plus a random suffix, capped under PostgreSQL's 63 byte
// identifier limit.
func testSchemaName(t *testing.T) string {
	name := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, strings.ToLower(t.Name()))
	if len(name) > 40 {
		name = name[:40]
	}

	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		t.Fatalf("random schema suffix: %v", err)
	}
	return "test_" + name + "_" + hex.EncodeToString(suffix)
}

func withSearchPath(connStr, schema string) string {
	sep := "?"
	if strings.Contains(connStr, "?") {
		sep = "&"
	}
	return connStr + sep + "search_path=" + schema
}
