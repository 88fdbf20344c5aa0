package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/privacyops/maskd/pkg/config"
	"github.com/privacyops/maskd/pkg/models"
	"github.com/privacyops/maskd/pkg/services"
)

// BulkScrubber implements JobExecutor over the record services. It sweeps
// the job's target table in keyset-paged batches, anonymizing each pending
// record and persisting progress as it goes.
type BulkScrubber struct {
	cfg      *config.QueueConfig
	jobs     *services.ScrubJobService
	users    *services.UserService
	comments *services.CommentService
}

// NewBulkScrubber creates a new bulk scrubber executor.
func NewBulkScrubber(cfg *config.QueueConfig, jobs *services.ScrubJobService, users *services.UserService, comments *services.CommentService) *BulkScrubber {
	return &BulkScrubber{
		cfg:      cfg,
		jobs:     jobs,
		users:    users,
		comments: comments,
	}
}

// sweepRecord is the paging key of a record within a sweep.
type sweepRecord struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

// sweepSource abstracts the record table a job sweeps over.
type sweepSource interface {
	CountPending(ctx context.Context, scope *models.ScrubScope) (int, error)
	NextBatch(ctx context.Context, scope *models.ScrubScope, after services.ScrubCursor, limit int) ([]sweepRecord, error)
	Anonymize(ctx context.Context, id uuid.UUID) error
}

// Execute runs the sweep for the job's target.
func (s *BulkScrubber) Execute(ctx context.Context, job *models.ScrubJob) *ExecutionResult {
	source, err := s.sourceFor(job.Target)
	if err != nil {
		return &ExecutionResult{
			Status: models.ScrubJobStatusFailed,
			Error:  err,
		}
	}
	return s.sweep(ctx, job, source)
}

// sweep pages through the source, anonymizing each pending record. The
// cursor only moves forward, so records that fail to anonymize are counted
// and left behind rather than retried in a loop; they stay pending for a
// later job.
func (s *BulkScrubber) sweep(ctx context.Context, job *models.ScrubJob, source sweepSource) *ExecutionResult {
	logger := slog.With("job_id", job.ID, "target", job.Target)

	// Resumed jobs keep their cumulative success count; pending records
	// (including ones that failed last time) are counted fresh.
	processed := job.Processed
	failed := 0

	remaining, err := source.CountPending(ctx, job.Scope)
	if err != nil {
		if ctx.Err() != nil {
			return s.interrupted(ctx, processed, failed, job.Total)
		}
		return &ExecutionResult{
			Status:    models.ScrubJobStatusFailed,
			Processed: processed,
			Error:     fmt.Errorf("counting pending records: %w", err),
		}
	}
	total := processed + remaining

	logger.Info("Bulk scrub started", "remaining", remaining, "already_processed", processed)

	if err := s.jobs.UpdateProgress(ctx, job.ID, processed, failed, total); err != nil {
		logger.Warn("Failed to write initial progress", "error", err)
	}

	var cursor services.ScrubCursor
	for {
		if ctx.Err() != nil {
			return s.interrupted(ctx, processed, failed, total)
		}

		batch, err := source.NextBatch(ctx, job.Scope, cursor, s.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return s.interrupted(ctx, processed, failed, total)
			}
			return &ExecutionResult{
				Status:    models.ScrubJobStatusFailed,
				Processed: processed,
				Failed:    failed,
				Total:     total,
				Error:     fmt.Errorf("listing pending records: %w", err),
			}
		}
		if len(batch) == 0 {
			break
		}

		for _, record := range batch {
			if ctx.Err() != nil {
				return s.interrupted(ctx, processed, failed, total)
			}
			if err := source.Anonymize(ctx, record.ID); err != nil {
				if ctx.Err() != nil {
					return s.interrupted(ctx, processed, failed, total)
				}
				logger.Warn("Failed to anonymize record",
					"record_id", record.ID,
					"error", err)
				failed++
				continue
			}
			processed++
		}

		cursor = services.Cursor(batch[len(batch)-1].CreatedAt, batch[len(batch)-1].ID)

		if err := s.jobs.UpdateProgress(ctx, job.ID, processed, failed, total); err != nil {
			logger.Warn("Failed to write progress", "error", err)
		}
	}

	result := &ExecutionResult{
		Status:    models.ScrubJobStatusCompleted,
		Processed: processed,
		Failed:    failed,
		Total:     total,
	}
	if failed > 0 {
		result.Status = models.ScrubJobStatusFailed
		result.Error = fmt.Errorf("%d of %d records failed to anonymize", failed, total)
	}

	logger.Info("Bulk scrub finished",
		"status", result.Status,
		"processed", processed,
		"failed", failed)
	return result
}

// interrupted packages the counters of a cut-short sweep. The empty status
// lets the worker decide between timeout, cancel, and requeue.
func (s *BulkScrubber) interrupted(ctx context.Context, processed, failed, total int) *ExecutionResult {
	return &ExecutionResult{
		Processed: processed,
		Failed:    failed,
		Total:     total,
		Error:     ctx.Err(),
	}
}

// sourceFor maps a job target to its sweep source.
func (s *BulkScrubber) sourceFor(target string) (sweepSource, error) {
	switch target {
	case models.ScrubTargetUsers:
		return userSource{s.users}, nil
	case models.ScrubTargetComments:
		return commentSource{s.comments}, nil
	default:
		return nil, fmt.Errorf("unknown scrub target %q", target)
	}
}

// userSource adapts UserService to the sweep loop.
type userSource struct {
	svc *services.UserService
}

func (u userSource) CountPending(ctx context.Context, scope *models.ScrubScope) (int, error) {
	return u.svc.CountPendingAnonymization(ctx, scope)
}

func (u userSource) NextBatch(ctx context.Context, scope *models.ScrubScope, after services.ScrubCursor, limit int) ([]sweepRecord, error) {
	users, err := u.svc.ListPendingAnonymization(ctx, scope, after, limit)
	if err != nil {
		return nil, err
	}
	batch := make([]sweepRecord, len(users))
	for i, user := range users {
		batch[i] = sweepRecord{ID: user.ID, CreatedAt: user.CreatedAt}
	}
	return batch, nil
}

func (u userSource) Anonymize(ctx context.Context, id uuid.UUID) error {
	_, err := u.svc.AnonymizeUser(ctx, id)
	return err
}

// commentSource adapts CommentService to the sweep loop.
type commentSource struct {
	svc *services.CommentService
}

func (c commentSource) CountPending(ctx context.Context, scope *models.ScrubScope) (int, error) {
	return c.svc.CountPendingAnonymization(ctx, scope)
}

func (c commentSource) NextBatch(ctx context.Context, scope *models.ScrubScope, after services.ScrubCursor, limit int) ([]sweepRecord, error) {
	comments, err := c.svc.ListPendingAnonymization(ctx, scope, after, limit)
	if err != nil {
		return nil, err
	}
	batch := make([]sweepRecord, len(comments))
	for i, comment := range comments {
		batch[i] = sweepRecord{ID: comment.ID, CreatedAt: comment.CreatedAt}
	}
	return batch, nil
}

func (c commentSource) Anonymize(ctx context.Context, id uuid.UUID) error {
	_, err := c.svc.AnonymizeComment(ctx, id)
	return err
}
