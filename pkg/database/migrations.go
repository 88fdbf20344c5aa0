package database

import (
	"context"
	stdsql "database/sql"
	"fmt"
)

// EnsureSupportIndexes creates the partial indexes the hot paths rely on.
// These stay out of the plain migration files so they can evolve with the
// query shapes without a schema version bump.
func EnsureSupportIndexes(ctx context.Context, db *stdsql.DB) error {
	// Bulk scrub scans page through records that are not yet anonymized.
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_user_records_pending_scrub
		ON user_records (created_at, id)
		WHERE anonymized_at IS NULL`)
	if err != nil {
		return fmt.Errorf("failed to create user pending-scrub index: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_comment_records_pending_scrub
		ON comment_records (created_at, id)
		WHERE anonymized_at IS NULL`)
	if err != nil {
		return fmt.Errorf("failed to create comment pending-scrub index: %w", err)
	}

	// The job claim query orders pending jobs by age under SKIP LOCKED.
	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_scrub_jobs_pending_claim
		ON scrub_jobs (created_at)
		WHERE status = 'pending'`)
	if err != nil {
		return fmt.Errorf("failed to create pending-claim index: %w", err)
	}

	// Orphan detection looks up running jobs by owning pod.
	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_scrub_jobs_running_owner
		ON scrub_jobs (claimed_by)
		WHERE status = 'running'`)
	if err != nil {
		return fmt.Errorf("failed to create running-owner index: %w", err)
	}

	return nil
}
