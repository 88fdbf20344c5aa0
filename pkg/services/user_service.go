// Package services contains the record-facing business logic: user and
// comment anonymization over the masking engine, and scrub job lifecycle
// management for bulk runs.
package services

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/privacyops/maskd/pkg/database"
	"github.com/privacyops/maskd/pkg/masking"
	"github.com/privacyops/maskd/pkg/models"
)

// userColumns is the SELECT list scanUser expects, in order.
const userColumns = `id, login, email, display_name, first_name, last_name,
	phone, address, zipcode, birth_date, registration_ip, last_login_ip,
	last_user_agent, profile_url, anonymized_at, created_at, updated_at`

// UserService manages stored user records and their anonymization.
type UserService struct {
	client *database.Client
	engine *masking.Engine
}

// NewUserService creates a new UserService.
func NewUserService(client *database.Client, engine *masking.Engine) *UserService {
	return &UserService{client: client, engine: engine}
}

// GetUser retrieves a user record by ID.
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*models.UserRecord, error) {
	row := s.client.DB().QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM user_records WHERE id = $1`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers lists user records with filtering and pagination.
func (s *UserService) ListUsers(ctx context.Context, filters models.UserFilters) (*models.UserListResponse, error) {
	where, args := buildUserFilters(filters)

	var totalCount int
	err := s.client.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_records`+where, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	limit := normalizeLimit(filters.Limit)
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT `+userColumns+` FROM user_records%s
		ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := s.client.DB().QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.UserRecord, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return &models.UserListResponse{
		Users:      users,
		TotalCount: totalCount,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

// UpdateUser applies a partial profile update. Nil fields are untouched.
func (s *UserService) UpdateUser(ctx context.Context, id uuid.UUID, req models.UpdateUserRequest) (*models.UserRecord, error) {
	assignments := []string{}
	args := []any{}

	addField := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	addField("display_name", req.DisplayName)
	addField("first_name", req.FirstName)
	addField("last_name", req.LastName)
	addField("phone", req.Phone)
	addField("address", req.Address)
	addField("zipcode", req.ZipCode)
	addField("birth_date", req.BirthDate)
	addField("profile_url", req.ProfileURL)

	if len(assignments) == 0 {
		return nil, NewValidationError("update", "at least one field is required")
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE user_records SET %s, updated_at = now() WHERE id = $%d`,
		strings.Join(assignments, ", "), len(args))

	result, err := s.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return s.GetUser(ctx, id)
}

// AnonymizeUser masks every PII field of a user record in place and stamps
// anonymized_at. The login is preserved so references stay intact; the email
// becomes the fixed placeholder so nothing derivable survives. Records that
// are already anonymized are returned unchanged.
func (s *UserService) AnonymizeUser(ctx context.Context, id uuid.UUID) (*models.UserRecord, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.AnonymizedAt != nil {
		return user, nil
	}

	personal := s.engine.MaskPersonalFields(map[string]string{
		"display_name": user.DisplayName,
		"first_name":   user.FirstName,
		"last_name":    user.LastName,
		"phone":        user.Phone,
		"address":      user.Address,
		"zipcode":      user.ZipCode,
		"birth_date":   user.BirthDate,
	})
	web := s.engine.MaskWebFields(map[string]string{
		"url":        user.ProfileURL,
		"user_agent": user.LastUserAgent,
	})

	_, err = s.client.DB().ExecContext(ctx,
		`UPDATE user_records SET
			email = $1, display_name = $2, first_name = $3, last_name = $4,
			phone = $5, address = $6, zipcode = $7, birth_date = $8,
			registration_ip = $9, last_login_ip = $10, last_user_agent = $11,
			profile_url = $12, anonymized_at = now(), updated_at = now()
		WHERE id = $13`,
		placeholderEmail(user.Email),
		personal["display_name"], personal["first_name"], personal["last_name"],
		personal["phone"], personal["address"], personal["zipcode"], personal["birth_date"],
		anonymizeStoredIP(user.RegistrationIP), anonymizeStoredIP(user.LastLoginIP),
		web["user_agent"], web["url"], id)
	if err != nil {
		return nil, fmt.Errorf("failed to anonymize user: %w", err)
	}

	return s.GetUser(ctx, id)
}

// IsAnonymized reports whether any PII field of the user record already
// looks masked. This is the detector heuristic, not the anonymized_at
// stamp: records masked by an earlier tool count too.
func (s *UserService) IsAnonymized(ctx context.Context, id uuid.UUID) (bool, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	return masking.AnyMasked(
		user.Email, user.DisplayName, user.FirstName, user.LastName,
		user.Phone, user.Address, user.ZipCode, user.BirthDate,
		user.RegistrationIP, user.LastLoginIP, user.LastUserAgent,
		user.ProfileURL,
	), nil
}

// ListPendingAnonymization pages through records not yet anonymized, in
// (created_at, id) order starting after the given cursor. Failed records
// stay behind the advancing cursor, so a sweep always terminates.
func (s *UserService) ListPendingAnonymization(ctx context.Context, scope *models.ScrubScope, after ScrubCursor, limit int) ([]*models.UserRecord, error) {
	args := []any{after.CreatedAt, after.ID}
	query := `SELECT ` + userColumns + ` FROM user_records
		WHERE anonymized_at IS NULL AND (created_at, id) > ($1, $2)`
	if scope != nil && scope.CreatedBefore != nil {
		args = append(args, *scope.CreatedBefore)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	args = append(args, normalizeLimit(limit))
	query += fmt.Sprintf(" ORDER BY created_at, id LIMIT $%d", len(args))

	rows, err := s.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending users: %w", err)
	}
	defer rows.Close()

	var users []*models.UserRecord
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending users: %w", err)
	}
	return users, nil
}

// CountPendingAnonymization counts records not yet anonymized within the scope.
func (s *UserService) CountPendingAnonymization(ctx context.Context, scope *models.ScrubScope) (int, error) {
	args := []any{}
	query := `SELECT COUNT(*) FROM user_records WHERE anonymized_at IS NULL`
	if scope != nil && scope.CreatedBefore != nil {
		args = append(args, *scope.CreatedBefore)
		query += " AND created_at < $1"
	}

	var count int
	if err := s.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending users: %w", err)
	}
	return count, nil
}

// ScrubCursor is a keyset pagination cursor over (created_at, id).
// The zero value starts from the beginning.
type ScrubCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Cursor returns the cursor positioned after the given record.
func Cursor(createdAt time.Time, id uuid.UUID) ScrubCursor {
	return ScrubCursor{CreatedAt: createdAt, ID: id}
}

// buildUserFilters translates list filters into a WHERE clause.
func buildUserFilters(filters models.UserFilters) (string, []any) {
	conditions := []string{}
	args := []any{}

	if filters.Login != "" {
		args = append(args, filters.Login)
		conditions = append(conditions, fmt.Sprintf("login = $%d", len(args)))
	}
	if filters.Anonymized != nil {
		if *filters.Anonymized {
			conditions = append(conditions, "anonymized_at IS NOT NULL")
		} else {
			conditions = append(conditions, "anonymized_at IS NULL")
		}
	}
	if filters.CreatedBefore != nil {
		args = append(args, *filters.CreatedBefore)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// scanUser reads a user row from the userColumns SELECT list.
func scanUser(row interface{ Scan(...any) error }) (*models.UserRecord, error) {
	var user models.UserRecord
	err := row.Scan(
		&user.ID, &user.Login, &user.Email, &user.DisplayName, &user.FirstName,
		&user.LastName, &user.Phone, &user.Address, &user.ZipCode, &user.BirthDate,
		&user.RegistrationIP, &user.LastLoginIP, &user.LastUserAgent,
		&user.ProfileURL, &user.AnonymizedAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// placeholderEmail substitutes the fixed placeholder for a valid address.
// Stored values that never were valid addresses are masked as text instead
// of passed through.
func placeholderEmail(email string) string {
	if email == "" {
		return ""
	}
	if placeholder := masking.Placeholder(email); placeholder != "" {
		return placeholder
	}
	return masking.MaskText(email)
}

// anonymizeStoredIP zeroes the host part of a stored address. Values that
// do not parse as an IP are masked as text so nothing leaks.
func anonymizeStoredIP(ip string) string {
	if ip == "" {
		return ""
	}
	if anonymized, err := masking.AnonymizeIP(ip); err == nil {
		return anonymized
	}
	return masking.MaskText(ip)
}

// normalizeLimit clamps a page size into [1, 100], defaulting to 25.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 25
	case limit > 100:
		return 100
	default:
		return limit
	}
}
