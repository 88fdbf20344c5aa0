package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/privacyops/maskd/pkg/config"
	"github.com/privacyops/maskd/pkg/models"
	"github.com/privacyops/maskd/pkg/services"
)

// WorkerStatus is what a worker is doing right now.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is a single queue worker that polls for and processes scrub jobs.
type Worker struct {
	id       string
	podID    string
	jobs     *services.ScrubJobService
	config   *config.QueueConfig
	executor JobExecutor
	pool     JobRegistry
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Guarded state surfaced through Health.
	mu            sync.RWMutex
	status        WorkerStatus
	currentJobID  string
	jobsProcessed int
	lastActivity  time.Time
}

// JobRegistry is the subset of WorkerPool used by Worker for job registration.
type JobRegistry interface {
	RegisterJob(jobID uuid.UUID, cancel context.CancelFunc)
	UnregisterJob(jobID uuid.UUID)
	CancelRequested(jobID uuid.UUID) bool
}

// NewWorker wires a worker to its job service, executor, and pool registry.
func NewWorker(id, podID string, jobs *services.ScrubJobService, cfg *config.QueueConfig, executor JobExecutor, pool JobRegistry) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		jobs:         jobs,
		config:       cfg,
		executor:     executor,
		pool:         pool,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start launches the polling loop.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop tells the worker to quit and waits until it has. Safe to call
// more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health snapshots the worker state for the pool health report.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        string(w.status),
		CurrentJobID:  w.currentJobID,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

// run polls for work until told to stop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("Worker polling for scrub jobs")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker stopping")
			return
		case <-ctx.Done():
			log.Info("Worker stopping on context cancel")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoJobsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("Error processing scrub job", "error", err)
				w.sleep(time.Second) // back off before the next attempt
			}
		}
	}
}

// sleep blocks for d, or less if the worker is stopped meanwhile.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims a job, and processes it.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	// 1. Check global capacity (best-effort; racy with concurrent workers but
	//    bounded by WorkerCount and mitigated by poll jitter).
	runningCount, err := w.jobs.CountRunning(ctx)
	if err != nil {
		return fmt.Errorf("checking running jobs: %w", err)
	}
	if runningCount >= w.config.MaxConcurrentJobs {
		return ErrAtCapacity
	}

	// 2. Claim next job
	job, err := w.jobs.ClaimNextPending(ctx, w.podID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return ErrNoJobsAvailable
		}
		return err
	}

	log := slog.With("job_id", job.ID, "target", job.Target, "worker_id", w.id)
	log.Info("Scrub job claimed", "processed", job.Processed, "total", job.Total)

	w.setStatus(WorkerStatusWorking, job.ID.String())
	defer w.setStatus(WorkerStatusIdle, "")

	// 3. Create job context with timeout
	jobCtx, cancelJob := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancelJob()

	// 4. Register cancel function for API-triggered cancellation
	w.pool.RegisterJob(job.ID, cancelJob)
	defer w.pool.UnregisterJob(job.ID)

	// 5. Start heartbeat
	heartbeatCtx, cancelHeartbeat := context.WithCancel(jobCtx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, job.ID)

	// 6. Execute job
	result := w.executor.Execute(jobCtx, job)
	if result == nil {
		// Keep the claimed counters so the bug path doesn't erase progress.
		result = &ExecutionResult{
			Processed: job.Processed,
			Failed:    job.Failed,
			Total:     job.Total,
			Error:     fmt.Errorf("executor returned nil result"),
		}
		if jobCtx.Err() == nil {
			result.Status = models.ScrubJobStatusFailed
		}
	}

	// 7. Resolve an interrupted result from the job context.
	requeue := false
	if result.Status == "" {
		switch {
		case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
			result.Status = models.ScrubJobStatusFailed
			result.Error = fmt.Errorf("job timed out after %v", w.config.JobTimeout)
		case errors.Is(jobCtx.Err(), context.Canceled) && w.pool.CancelRequested(job.ID):
			result.Status = models.ScrubJobStatusCancelled
			result.Error = context.Canceled
		case errors.Is(jobCtx.Err(), context.Canceled):
			// Shutdown or parent cancellation: the job is resumable, so it
			// goes back to pending instead of a terminal state.
			requeue = true
		default:
			result.Status = models.ScrubJobStatusFailed
			if result.Error == nil {
				result.Error = fmt.Errorf("executor returned no status")
			}
		}
	}

	// 8. Stop heartbeat
	cancelHeartbeat()

	// 9. Write the outcome (use background context, job ctx may be cancelled)
	if requeue {
		if err := w.requeueJob(context.Background(), job, result); err != nil {
			log.Error("Failed to requeue scrub job", "error", err)
			return err
		}
		log.Info("Scrub job requeued for resume", "processed", result.Processed)
	} else {
		if err := w.completeJob(context.Background(), job, result); err != nil {
			log.Error("Failed to update job terminal status", "error", err)
			return err
		}
		log.Info("Scrub job complete",
			"status", result.Status,
			"processed", result.Processed,
			"failed", result.Failed)
	}

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()

	return nil
}

// runHeartbeat periodically refreshes last_heartbeat for orphan detection.
func (w *Worker) runHeartbeat(ctx context.Context, jobID uuid.UUID) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.jobs.Heartbeat(ctx, jobID); err != nil {
				slog.Warn("Heartbeat update failed", "job_id", jobID, "error", err)
			}
		}
	}
}

// completeJob writes the final job status and counters.
func (w *Worker) completeJob(ctx context.Context, job *models.ScrubJob, result *ExecutionResult) error {
	errorMessage := ""
	if result.Error != nil {
		errorMessage = result.Error.Error()
	}
	return w.jobs.CompleteScrubJob(ctx, job.ID, result.Status, errorMessage,
		result.Processed, result.Failed, result.Total)
}

// requeueJob persists progress and returns the job to the pending queue.
func (w *Worker) requeueJob(ctx context.Context, job *models.ScrubJob, result *ExecutionResult) error {
	if err := w.jobs.UpdateProgress(ctx, job.ID, result.Processed, result.Failed, result.Total); err != nil {
		return err
	}
	return w.jobs.RequeueScrubJob(ctx, job.ID)
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	// Range: [base - jitter, base + jitter]
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}
