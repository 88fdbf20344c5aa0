package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/privacyops/maskd/pkg/services"
)

// orphanState holds the scan metrics surfaced in pool health.
type orphanState struct {
	mu        sync.Mutex
	lastScan  time.Time
	recovered int
}

func (s *orphanState) note(recovered int) {
	s.mu.Lock()
	s.lastScan = time.Now()
	s.recovered += recovered
	s.mu.Unlock()
}

func (s *orphanState) snapshot() (time.Time, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScan, s.recovered
}

// runOrphanDetection scans for stale jobs on a timer until the pool stops.
// Every pod runs its own scan; requeueing is idempotent so overlap is fine.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.recoverOrphans(ctx); err != nil {
				slog.Error("Orphan scan failed", "error", err)
			}
		}
	}
}

// recoverOrphans requeues running jobs whose heartbeat went stale. Scrub
// jobs are resumable, already anonymized records are skipped on the next
// pass, so a requeue resets state without losing work.
func (p *WorkerPool) recoverOrphans(ctx context.Context) error {
	orphans, err := p.jobs.ListOrphaned(ctx, p.config.OrphanThreshold)
	if err != nil {
		return fmt.Errorf("failed to query orphaned jobs: %w", err)
	}

	recovered := 0
	for _, job := range orphans {
		if err := p.jobs.RequeueScrubJob(ctx, job.ID); err != nil {
			slog.Error("Orphan requeue failed", "job_id", job.ID, "error", err)
			continue
		}

		lastBeat := "unknown"
		if job.LastHeartbeat != nil {
			lastBeat = job.LastHeartbeat.Format(time.RFC3339)
		}
		slog.Warn("Requeued orphaned scrub job",
			"job_id", job.ID,
			"old_pod_id", job.ClaimedBy,
			"last_heartbeat", lastBeat,
			"processed", job.Processed)
		recovered++
	}

	p.orphans.note(recovered)
	return nil
}

// CleanupStartupOrphans requeues jobs this pod left in running state before
// a crash or unclean restart. Runs once at startup, before any worker polls.
func CleanupStartupOrphans(ctx context.Context, jobs *services.ScrubJobService, podID string) error {
	stale, err := jobs.ListRunningOwnedBy(ctx, podID)
	if err != nil {
		return fmt.Errorf("failed to query startup orphans: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	slog.Warn("Requeueing jobs left running by a previous instance of this pod",
		"pod_id", podID,
		"count", len(stale))

	for _, job := range stale {
		if err := jobs.RequeueScrubJob(ctx, job.ID); err != nil {
			slog.Error("Startup orphan requeue failed", "job_id", job.ID, "error", err)
			continue
		}
		slog.Info("Requeued startup orphan", "job_id", job.ID, "processed", job.Processed)
	}
	return nil
}
