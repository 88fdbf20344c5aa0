package database

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// testConnString returns a PostgreSQL connection string for this test.
// CI provides one through CI_DATABASE_URL; locally a throwaway
// testcontainer is started and torn down with the test.
func testConnString(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	if url := os.Getenv("CI_DATABASE_URL"); url != "" {
		return url
	}

	pg, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pg); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

// newTestClient opens a migrated client against a fresh database.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	db, err := stdsql.Open("pgx", testConnString(t))
	require.NoError(t, err)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	require.NoError(t, RunMigrations(ctx, db, "test"))

	client := NewClientFromDB(db)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestDatabaseClient_ConnectionPool(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.DB().PingContext(ctx))

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Greater(t, health.MaxOpenConns, 0)
}

func TestMigrationsCreateRecordTables(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	userID := uuid.New()
	_, err := client.DB().ExecContext(ctx,
		`INSERT INTO user_records (id, login, email, phone) VALUES ($1, $2, $3, $4)`,
		userID, "login-"+userID.String(), "alice@example.com", "555-123-4567")
	require.NoError(t, err)

	commentID := uuid.New()
	_, err = client.DB().ExecContext(ctx,
		`INSERT INTO comment_records (id, user_id, author_email, content)
		VALUES ($1, $2, $3, $4)`,
		commentID, userID, "alice@example.com", "first post")
	require.NoError(t, err)

	jobID := uuid.New()
	_, err = client.DB().ExecContext(ctx,
		`INSERT INTO scrub_jobs (id, target, status) VALUES ($1, 'users', 'pending')`,
		jobID)
	require.NoError(t, err)

	// A second run on an already-migrated database is a no-op.
	require.NoError(t, RunMigrations(ctx, client.DB(), "test"))

	var count int
	err = client.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_records WHERE id = $1`, userID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSupportIndexesExist(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	for _, indexName := range []string{
		"idx_user_records_pending_scrub",
		"idx_comment_records_pending_scrub",
		"idx_scrub_jobs_pending_claim",
		"idx_scrub_jobs_running_owner",
	} {
		var count int
		err := client.DB().QueryRowContext(ctx,
			`SELECT COUNT(*) FROM pg_indexes WHERE schemaname = current_schema() AND indexname = $1`,
			indexName).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "index %s should exist", indexName)
	}
}

func TestHealthReportsMilliseconds(t *testing.T) {
	client := newTestClient(t)

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	require.NotNil(t, health)

	// A local ping takes well under a second. A nanosecond value here
	// would be in the millions.
	assert.GreaterOrEqual(t, health.ResponseTime, int64(0))
	assert.Less(t, health.ResponseTime, int64(1000))

	raw, err := json.Marshal(health)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	ms, ok := fields["response_time_ms"].(float64)
	require.True(t, ok, "response_time_ms should be a number")
	assert.Less(t, ms, float64(1000))
}
