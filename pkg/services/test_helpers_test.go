package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/privacyops/maskd/pkg/database"
	"github.com/privacyops/maskd/pkg/masking"
)

// newTestEngine builds a masking engine on built-ins only.
func newTestEngine(t *testing.T) *masking.Engine {
	t.Helper()
	engine, err := masking.NewEngine(nil)
	require.NoError(t, err)
	return engine
}

// userSeed describes a user row inserted directly, bypassing the service.
// Zero-value string fields stay empty; a zero CreatedAt means now.
type userSeed struct {
	Login          string
	Email          string
	DisplayName    string
	FirstName      string
	LastName       string
	Phone          string
	Address        string
	ZipCode        string
	BirthDate      string
	RegistrationIP string
	LastLoginIP    string
	LastUserAgent  string
	ProfileURL     string
	CreatedAt      time.Time
	Anonymized     bool
}

// seedUser inserts a user row and returns its ID. Login defaults to a
// unique value so the login uniqueness constraint never trips by accident.
func seedUser(t *testing.T, client *database.Client, seed userSeed) uuid.UUID {
	t.Helper()

	id := uuid.New()
	if seed.Login == "" {
		seed.Login = fmt.Sprintf("user-%s", id.String()[:8])
	}
	if seed.CreatedAt.IsZero() {
		seed.CreatedAt = time.Now()
	}
	var anonymizedAt *time.Time
	if seed.Anonymized {
		now := time.Now()
		anonymizedAt = &now
	}

	_, err := client.DB().ExecContext(context.Background(),
		`INSERT INTO user_records (id, login, email, display_name, first_name,
			last_name, phone, address, zipcode, birth_date, registration_ip,
			last_login_ip, last_user_agent, profile_url, anonymized_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		id, seed.Login, seed.Email, seed.DisplayName, seed.FirstName,
		seed.LastName, seed.Phone, seed.Address, seed.ZipCode, seed.BirthDate,
		seed.RegistrationIP, seed.LastLoginIP, seed.LastUserAgent,
		seed.ProfileURL, anonymizedAt, seed.CreatedAt)
	require.NoError(t, err, "Failed to seed user record")
	return id
}

// commentSeed describes a comment row inserted directly.
type commentSeed struct {
	UserID          *uuid.UUID
	AuthorName      string
	AuthorEmail     string
	AuthorIP        string
	AuthorUserAgent string
	AuthorURL       string
	Content         string
	CreatedAt       time.Time
	Anonymized      bool
}

// seedComment inserts a comment row and returns its ID.
func seedComment(t *testing.T, client *database.Client, seed commentSeed) uuid.UUID {
	t.Helper()

	id := uuid.New()
	if seed.CreatedAt.IsZero() {
		seed.CreatedAt = time.Now()
	}
	var anonymizedAt *time.Time
	if seed.Anonymized {
		now := time.Now()
		anonymizedAt = &now
	}

	_, err := client.DB().ExecContext(context.Background(),
		`INSERT INTO comment_records (id, user_id, author_name, author_email,
			author_ip, author_user_agent, author_url, content, anonymized_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, seed.UserID, seed.AuthorName, seed.AuthorEmail, seed.AuthorIP,
		seed.AuthorUserAgent, seed.AuthorURL, seed.Content, anonymizedAt, seed.CreatedAt)
	require.NoError(t, err, "Failed to seed comment record")
	return id
}
