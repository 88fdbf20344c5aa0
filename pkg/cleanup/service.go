// Package cleanup enforces the retention policy for finished scrub jobs.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/privacyops/maskd/pkg/config"
	"github.com/privacyops/maskd/pkg/services"
)

// Service deletes terminal scrub jobs (completed, failed, cancelled) once
// they age past the retention window. Record tables are never touched:
// anonymized records are the product, not waste. Purging is idempotent and
// safe to run from several pods at once.
type Service struct {
	retention time.Duration
	interval  time.Duration
	jobs      *services.ScrubJobService

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a cleanup service from the retention settings.
func NewService(cfg *config.RetentionConfig, jobs *services.ScrubJobService) *Service {
	return &Service{
		retention: time.Duration(cfg.JobRetentionDays) * 24 * time.Hour,
		interval:  cfg.CleanupInterval,
		jobs:      jobs,
	}
}

// Start launches the purge loop: one pass immediately, then one per
// interval. Calling Start twice is a no-op.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.loop(ctx)

	slog.Info("Retention cleanup started",
		"job_retention", s.retention,
		"interval", s.interval)
}

// Stop ends the purge loop and waits for any in-flight pass to finish.
// Safe to call without Start.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Retention cleanup stopped")
}

func (s *Service) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.purge()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// purge runs on a background context: the delete is a single statement and
// interrupting it mid-shutdown would only reschedule the same work.
func (s *Service) purge() {
	count, err := s.jobs.PurgeOldJobs(context.Background(), s.retention)
	if err != nil {
		slog.Error("Scrub job purge failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Purged old scrub jobs", "count", count)
	}
}
