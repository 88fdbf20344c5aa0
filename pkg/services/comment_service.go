package services

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/privacyops/maskd/pkg/database"
	"github.com/privacyops/maskd/pkg/masking"
	"github.com/privacyops/maskd/pkg/models"
)

// commentColumns is the SELECT list scanComment expects, in order.
const commentColumns = `id, user_id, author_name, author_email, author_ip,
	author_user_agent, author_url, content, anonymized_at, created_at, updated_at`

// CommentService manages stored comment records and their anonymization.
type CommentService struct {
	client *database.Client
	engine *masking.Engine
}

// NewCommentService creates a new CommentService.
func NewCommentService(client *database.Client, engine *masking.Engine) *CommentService {
	return &CommentService{client: client, engine: engine}
}

// GetComment retrieves a comment record by ID.
func (s *CommentService) GetComment(ctx context.Context, id uuid.UUID) (*models.CommentRecord, error) {
	row := s.client.DB().QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comment_records WHERE id = $1`, id)

	comment, err := scanComment(row)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return comment, nil
}

// ListComments lists comment records with filtering and pagination.
func (s *CommentService) ListComments(ctx context.Context, filters models.CommentFilters) (*models.CommentListResponse, error) {
	where, args := buildCommentFilters(filters)

	var totalCount int
	err := s.client.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comment_records`+where, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}

	limit := normalizeLimit(filters.Limit)
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT `+commentColumns+` FROM comment_records%s
		ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := s.client.DB().QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*models.CommentRecord, 0, limit)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}

	return &models.CommentListResponse{
		Comments:   comments,
		TotalCount: totalCount,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

// AnonymizeComment masks the author identity of a comment and scrubs PII
// out of its body, then stamps anonymized_at. Unlike user records the
// author email keeps its masked shape rather than becoming the placeholder:
// comments display their author line, so the rendered page stays plausible.
// Records that are already anonymized are returned unchanged.
func (s *CommentService) AnonymizeComment(ctx context.Context, id uuid.UUID) (*models.CommentRecord, error) {
	comment, err := s.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.AnonymizedAt != nil {
		return comment, nil
	}

	personal := s.engine.MaskPersonalFields(map[string]string{
		"name": comment.AuthorName,
	})
	web := s.engine.MaskWebFields(map[string]string{
		"url":        comment.AuthorURL,
		"user_agent": comment.AuthorUserAgent,
	})

	_, err = s.client.DB().ExecContext(ctx,
		`UPDATE comment_records SET
			author_name = $1, author_email = $2, author_ip = $3,
			author_user_agent = $4, author_url = $5, content = $6,
			anonymized_at = now(), updated_at = now()
		WHERE id = $7`,
		personal["name"], maskedAuthorEmail(comment.AuthorEmail),
		anonymizeStoredIP(comment.AuthorIP), web["user_agent"], web["url"],
		s.engine.ScrubText(comment.Content), id)
	if err != nil {
		return nil, fmt.Errorf("failed to anonymize comment: %w", err)
	}

	return s.GetComment(ctx, id)
}

// ListPendingAnonymization pages through comments not yet anonymized, in
// (created_at, id) order starting after the given cursor.
func (s *CommentService) ListPendingAnonymization(ctx context.Context, scope *models.ScrubScope, after ScrubCursor, limit int) ([]*models.CommentRecord, error) {
	args := []any{after.CreatedAt, after.ID}
	query := `SELECT ` + commentColumns + ` FROM comment_records
		WHERE anonymized_at IS NULL AND (created_at, id) > ($1, $2)`
	if scope != nil && scope.CreatedBefore != nil {
		args = append(args, *scope.CreatedBefore)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	args = append(args, normalizeLimit(limit))
	query += fmt.Sprintf(" ORDER BY created_at, id LIMIT $%d", len(args))

	rows, err := s.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending comments: %w", err)
	}
	defer rows.Close()

	var comments []*models.CommentRecord
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending comment: %w", err)
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending comments: %w", err)
	}
	return comments, nil
}

// CountPendingAnonymization counts comments not yet anonymized within the scope.
func (s *CommentService) CountPendingAnonymization(ctx context.Context, scope *models.ScrubScope) (int, error) {
	args := []any{}
	query := `SELECT COUNT(*) FROM comment_records WHERE anonymized_at IS NULL`
	if scope != nil && scope.CreatedBefore != nil {
		args = append(args, *scope.CreatedBefore)
		query += " AND created_at < $1"
	}

	var count int
	if err := s.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending comments: %w", err)
	}
	return count, nil
}

// buildCommentFilters translates list filters into a WHERE clause.
func buildCommentFilters(filters models.CommentFilters) (string, []any) {
	conditions := []string{}
	args := []any{}

	if filters.UserID != nil {
		args = append(args, *filters.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
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

// maskedAuthorEmail masks a stored author address in shape-preserving form.
// Values that never were valid addresses are masked as text instead of
// passed through.
func maskedAuthorEmail(email string) string {
	if email == "" {
		return ""
	}
	if masked := masking.MaskEmail(email); masked != "" {
		return masked
	}
	return masking.MaskText(email)
}

// scanComment reads a comment row from the commentColumns SELECT list.
func scanComment(row interface{ Scan(...any) error }) (*models.CommentRecord, error) {
	var comment models.CommentRecord
	err := row.Scan(
		&comment.ID, &comment.UserID, &comment.AuthorName, &comment.AuthorEmail,
		&comment.AuthorIP, &comment.AuthorUserAgent, &comment.AuthorURL,
		&comment.Content, &comment.AnonymizedAt, &comment.CreatedAt, &comment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}
