package services

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/privacyops/maskd/pkg/database"
	"github.com/privacyops/maskd/pkg/models"
)

// scrubJobColumns is the SELECT list scanScrubJob expects, in order.
const scrubJobColumns = `id, target, status, scope, requested_by, processed,
	failed, total, claimed_by, last_heartbeat, error_message, created_at,
	started_at, completed_at`

// ScrubJobService manages the scrub job lifecycle: creation, querying,
// cancellation, and the claim/heartbeat/terminal transitions driven by the
// worker pool.
type ScrubJobService struct {
	client *database.Client
}

// NewScrubJobService creates a new ScrubJobService.
func NewScrubJobService(client *database.Client) *ScrubJobService {
	return &ScrubJobService{client: client}
}

// CreateScrubJob validates and enqueues a new bulk scrub job. Only one
// job per target may be pending or running at a time; a second request
// returns ErrAlreadyExists rather than doubling the sweep.
func (s *ScrubJobService) CreateScrubJob(ctx context.Context, req models.CreateScrubJobRequest) (*models.ScrubJob, error) {
	if req.Target == "" {
		return nil, NewValidationError("target", "target is required")
	}
	if !models.ValidScrubTarget(req.Target) {
		return nil, NewValidationError("target",
			fmt.Sprintf("unknown target %q (valid: %s, %s)", req.Target,
				models.ScrubTargetUsers, models.ScrubTargetComments))
	}

	scopeJSON, err := marshalScope(req.Scope)
	if err != nil {
		return nil, NewValidationError("scope", err.Error())
	}

	var active int
	err = s.client.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scrub_jobs WHERE target = $1 AND status IN ($2, $3)`,
		req.Target, models.ScrubJobStatusPending, models.ScrubJobStatusRunning).Scan(&active)
	if err != nil {
		return nil, fmt.Errorf("failed to check active jobs: %w", err)
	}
	if active > 0 {
		return nil, ErrAlreadyExists
	}

	id := uuid.New()
	_, err = s.client.DB().ExecContext(ctx,
		`INSERT INTO scrub_jobs (id, target, status, scope, requested_by)
		VALUES ($1, $2, $3, $4, $5)`,
		id, req.Target, models.ScrubJobStatusPending, scopeJSON, req.RequestedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to create scrub job: %w", err)
	}

	return s.GetScrubJob(ctx, id)
}

// GetScrubJob retrieves a scrub job by ID.
func (s *ScrubJobService) GetScrubJob(ctx context.Context, id uuid.UUID) (*models.ScrubJob, error) {
	row := s.client.DB().QueryRowContext(ctx,
		`SELECT `+scrubJobColumns+` FROM scrub_jobs WHERE id = $1`, id)

	job, err := scanScrubJob(row)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get scrub job: %w", err)
	}
	return job, nil
}

// ListScrubJobs lists scrub jobs with filtering and pagination, newest first.
func (s *ScrubJobService) ListScrubJobs(ctx context.Context, filters models.ScrubJobFilters) (*models.ScrubJobListResponse, error) {
	conditions := []string{}
	args := []any{}
	if filters.Status != "" {
		args = append(args, filters.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filters.Target != "" {
		args = append(args, filters.Target)
		conditions = append(conditions, fmt.Sprintf("target = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var totalCount int
	err := s.client.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scrub_jobs`+where, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count scrub jobs: %w", err)
	}

	limit := normalizeLimit(filters.Limit)
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT `+scrubJobColumns+` FROM scrub_jobs%s
		ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := s.client.DB().QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scrub jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*models.ScrubJob, 0, limit)
	for rows.Next() {
		job, err := scanScrubJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scrub job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scrub jobs: %w", err)
	}

	return &models.ScrubJobListResponse{
		Jobs:       jobs,
		TotalCount: totalCount,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

// CancelScrubJob cancels a job that has not started yet. Pending is the
// only cancellable database state; running jobs are cancelled through the
// worker pool on the pod that owns them.
func (s *ScrubJobService) CancelScrubJob(ctx context.Context, id uuid.UUID) error {
	result, err := s.client.DB().ExecContext(ctx,
		`UPDATE scrub_jobs SET status = $1, completed_at = now()
		WHERE id = $2 AND status = $3`,
		models.ScrubJobStatusCancelled, id, models.ScrubJobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to cancel scrub job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read cancel result: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Distinguish "wrong state" from "no such job".
	if _, err := s.GetScrubJob(ctx, id); err != nil {
		return err
	}
	return ErrNotCancellable
}

// ClaimNextPending atomically claims the oldest pending job for the given
// pod using FOR UPDATE SKIP LOCKED, so concurrent workers never double-claim.
// Returns ErrNotFound when no pending job exists. started_at is preserved
// across requeues so a resumed job keeps its original start time.
func (s *ScrubJobService) ClaimNextPending(ctx context.Context, podID string) (*models.ScrubJob, error) {
	tx, err := s.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id uuid.UUID
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM scrub_jobs WHERE status = $1
		ORDER BY created_at, id LIMIT 1 FOR UPDATE SKIP LOCKED`,
		models.ScrubJobStatusPending).Scan(&id)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query pending jobs: %w", err)
	}

	row := tx.QueryRowContext(ctx,
		`UPDATE scrub_jobs SET status = $1, claimed_by = $2,
			started_at = COALESCE(started_at, now()), last_heartbeat = now()
		WHERE id = $3
		RETURNING `+scrubJobColumns,
		models.ScrubJobStatusRunning, podID, id)
	job, err := scanScrubJob(row)
	if err != nil {
		return nil, fmt.Errorf("failed to claim scrub job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return job, nil
}

// Heartbeat refreshes the liveness stamp of a running job so the orphan
// detector leaves it alone.
func (s *ScrubJobService) Heartbeat(ctx context.Context, id uuid.UUID) error {
	_, err := s.client.DB().ExecContext(ctx,
		`UPDATE scrub_jobs SET last_heartbeat = now()
		WHERE id = $1 AND status = $2`,
		id, models.ScrubJobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to update heartbeat: %w", err)
	}
	return nil
}

// UpdateProgress persists the running counters of an in-flight job.
func (s *ScrubJobService) UpdateProgress(ctx context.Context, id uuid.UUID, processed, failed, total int) error {
	_, err := s.client.DB().ExecContext(ctx,
		`UPDATE scrub_jobs SET processed = $1, failed = $2, total = $3
		WHERE id = $4`,
		processed, failed, total, id)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

// CompleteScrubJob writes the terminal state of a job. claimed_by is kept
// for audit.
func (s *ScrubJobService) CompleteScrubJob(ctx context.Context, id uuid.UUID, status, errorMessage string, processed, failed, total int) error {
	if !models.IsTerminalScrubJobStatus(status) {
		return NewValidationError("status", fmt.Sprintf("%q is not a terminal status", status))
	}
	_, err := s.client.DB().ExecContext(ctx,
		`UPDATE scrub_jobs SET status = $1, error_message = $2,
			processed = $3, failed = $4, total = $5, completed_at = now()
		WHERE id = $6`,
		status, errorMessage, processed, failed, total, id)
	if err != nil {
		return fmt.Errorf("failed to complete scrub job: %w", err)
	}
	return nil
}

// RequeueScrubJob returns a job to the pending state so another worker can
// resume it. Progress counters survive; anonymized records are skipped on
// the next pass anyway.
func (s *ScrubJobService) RequeueScrubJob(ctx context.Context, id uuid.UUID) error {
	_, err := s.client.DB().ExecContext(ctx,
		`UPDATE scrub_jobs SET status = $1, claimed_by = '',
			last_heartbeat = NULL, error_message = ''
		WHERE id = $2`,
		models.ScrubJobStatusPending, id)
	if err != nil {
		return fmt.Errorf("failed to requeue scrub job: %w", err)
	}
	return nil
}

// CountRunning counts jobs currently running across all pods, for the
// capacity check.
func (s *ScrubJobService) CountRunning(ctx context.Context) (int, error) {
	var count int
	err := s.client.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scrub_jobs WHERE status = $1`,
		models.ScrubJobStatusRunning).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count running jobs: %w", err)
	}
	return count, nil
}

// CountPending counts jobs waiting to be claimed.
func (s *ScrubJobService) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.client.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scrub_jobs WHERE status = $1`,
		models.ScrubJobStatusPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending jobs: %w", err)
	}
	return count, nil
}

// ListOrphaned returns running jobs whose heartbeat is older than the
// threshold. Jobs claimed before heartbeats existed fall back to started_at.
func (s *ScrubJobService) ListOrphaned(ctx context.Context, threshold time.Duration) ([]*models.ScrubJob, error) {
	cutoff := time.Now().Add(-threshold)
	rows, err := s.client.DB().QueryContext(ctx,
		`SELECT `+scrubJobColumns+` FROM scrub_jobs
		WHERE status = $1 AND (
			(last_heartbeat IS NOT NULL AND last_heartbeat < $2) OR
			(last_heartbeat IS NULL AND started_at < $2)
		)
		ORDER BY created_at, id`,
		models.ScrubJobStatusRunning, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphaned jobs: %w", err)
	}
	defer rows.Close()
	return collectScrubJobs(rows)
}

// ListRunningOwnedBy returns running jobs claimed by the given pod. Used at
// startup to requeue work a previous incarnation of this pod left behind.
func (s *ScrubJobService) ListRunningOwnedBy(ctx context.Context, podID string) ([]*models.ScrubJob, error) {
	rows, err := s.client.DB().QueryContext(ctx,
		`SELECT `+scrubJobColumns+` FROM scrub_jobs
		WHERE status = $1 AND claimed_by = $2
		ORDER BY created_at, id`,
		models.ScrubJobStatusRunning, podID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs owned by pod: %w", err)
	}
	defer rows.Close()
	return collectScrubJobs(rows)
}

// PurgeOldJobs deletes terminal jobs completed before the retention window.
// Returns the number of rows removed.
func (s *ScrubJobService) PurgeOldJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := s.client.DB().ExecContext(ctx,
		`DELETE FROM scrub_jobs
		WHERE status IN ($1, $2, $3) AND completed_at IS NOT NULL AND completed_at < $4`,
		models.ScrubJobStatusCompleted, models.ScrubJobStatusFailed,
		models.ScrubJobStatusCancelled, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old jobs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge result: %w", err)
	}
	return int(affected), nil
}

// collectScrubJobs drains a scrubJobColumns result set.
func collectScrubJobs(rows *stdsql.Rows) ([]*models.ScrubJob, error) {
	var jobs []*models.ScrubJob
	for rows.Next() {
		job, err := scanScrubJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scrub job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scrub jobs: %w", err)
	}
	return jobs, nil
}

// scanScrubJob reads a job row from the scrubJobColumns SELECT list.
func scanScrubJob(row interface{ Scan(...any) error }) (*models.ScrubJob, error) {
	var job models.ScrubJob
	var scopeJSON []byte
	err := row.Scan(
		&job.ID, &job.Target, &job.Status, &scopeJSON, &job.RequestedBy,
		&job.Processed, &job.Failed, &job.Total, &job.ClaimedBy,
		&job.LastHeartbeat, &job.Error, &job.CreatedAt, &job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(scopeJSON) > 0 {
		var scope models.ScrubScope
		if err := json.Unmarshal(scopeJSON, &scope); err != nil {
			return nil, fmt.Errorf("failed to decode job scope: %w", err)
		}
		job.Scope = &scope
	}
	return &job, nil
}

// marshalScope encodes a job scope for the JSONB column. Nil stays NULL.
func marshalScope(scope *models.ScrubScope) ([]byte, error) {
	if scope == nil {
		return nil, nil
	}
	data, err := json.Marshal(scope)
	if err != nil {
		return nil, fmt.Errorf("scope is not encodable: %w", err)
	}
	return data, nil
}
