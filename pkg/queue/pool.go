package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/privacyops/maskd/pkg/config"
	"github.com/privacyops/maskd/pkg/services"
)

// WorkerPool runs the scrub workers for one pod and tracks which jobs are
// in flight here so the API can cancel them in place.
type WorkerPool struct {
	podID    string
	jobs     *services.ScrubJobService
	config   *config.QueueConfig
	executor JobExecutor
	workers  []*Worker
	started  bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu         sync.RWMutex
	activeJobs map[uuid.UUID]*activeJob

	orphans orphanState
}

// activeJob tracks a job running on this pod. cancelRequested records that
// the cancellation came through the API, so the worker resolves the job to
// cancelled instead of requeueing it.
type activeJob struct {
	cancel          context.CancelFunc
	cancelRequested bool
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(podID string, jobs *services.ScrubJobService, cfg *config.QueueConfig, executor JobExecutor) *WorkerPool {
	return &WorkerPool{
		podID:      podID,
		jobs:       jobs,
		config:     cfg,
		executor:   executor,
		workers:    make([]*Worker, 0, cfg.WorkerCount),
		stopCh:     make(chan struct{}),
		activeJobs: make(map[uuid.UUID]*activeJob),
	}
}

// Start spawns the worker goroutines and the orphan scan. Calling it again
// on a started pool is a logged no-op.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("Worker pool Start called twice, ignoring", "pod_id", p.podID)
		return nil
	}
	p.started = true

	slog.Info("Worker pool starting",
		"pod_id", p.podID,
		"worker_count", p.config.WorkerCount)

	for i := 0; i < p.config.WorkerCount; i++ {
		w := NewWorker(fmt.Sprintf("%s-worker-%d", p.podID, i), p.podID, p.jobs, p.config, p.executor, p)
		p.workers = append(p.workers, w)
		w.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()

	slog.Info("Worker pool running")
	return nil
}

// Stop signals all workers to stop and waits for them to finish. Workers
// requeue their in-flight jobs, so shutdown does not wait out a full sweep.
func (p *WorkerPool) Stop() {
	slog.Info("Worker pool draining")

	if active := p.activeJobIDs(); len(active) > 0 {
		slog.Info("Active jobs will be requeued for resume",
			"count", len(active),
			"job_ids", active)
	}

	for _, w := range p.workers {
		w.Stop()
	}

	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	slog.Info("Worker pool stopped")
}

// RegisterJob stores a cancel function for manual cancellation.
func (p *WorkerPool) RegisterJob(jobID uuid.UUID, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeJobs[jobID] = &activeJob{cancel: cancel}
}

// UnregisterJob removes the cancel function when processing ends.
func (p *WorkerPool) UnregisterJob(jobID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeJobs, jobID)
}

// CancelJob triggers context cancellation for a job running on this pod.
// Returns true if the job was found and cancelled here.
func (p *WorkerPool) CancelJob(jobID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if job, ok := p.activeJobs[jobID]; ok {
		job.cancelRequested = true
		job.cancel()
		return true
	}
	return false
}

// CancelRequested reports whether the job's cancellation was requested
// through CancelJob rather than by shutdown.
func (p *WorkerPool) CancelRequested(jobID uuid.UUID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if job, ok := p.activeJobs[jobID]; ok {
		return job.cancelRequested
	}
	return false
}

// Health reports the pool's view of the queue. An unreachable database
// marks the pool unhealthy, since workers cannot claim anything without it.
func (p *WorkerPool) Health() *PoolHealth {
	ctx := context.Background()

	var dbError string
	queueDepth, err := p.jobs.CountPending(ctx)
	if err != nil {
		dbError = fmt.Sprintf("queue depth query failed: %v", err)
		slog.Error("Queue depth query failed", "pod_id", p.podID, "error", err)
	}
	runningJobs, err := p.jobs.CountRunning(ctx)
	if err != nil {
		if dbError == "" {
			dbError = fmt.Sprintf("running jobs query failed: %v", err)
		}
		slog.Error("Running jobs query failed", "pod_id", p.podID, "error", err)
	}
	dbHealthy := dbError == ""

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, w := range p.workers {
		workerStats[i] = w.Health()
		if workerStats[i].Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	lastScan, recovered := p.orphans.snapshot()

	p.mu.RLock()
	activeOnPod := len(p.activeJobs)
	p.mu.RUnlock()

	return &PoolHealth{
		IsHealthy:        dbHealthy && len(p.workers) > 0 && runningJobs <= p.config.MaxConcurrentJobs,
		DBReachable:      dbHealthy,
		DBError:          dbError,
		PodID:            p.podID,
		ActiveWorkers:    activeWorkers,
		TotalWorkers:     len(p.workers),
		ActiveJobs:       activeOnPod,
		RunningJobs:      runningJobs,
		MaxConcurrent:    p.config.MaxConcurrentJobs,
		QueueDepth:       queueDepth,
		WorkerStats:      workerStats,
		LastOrphanScan:   lastScan,
		OrphansRecovered: recovered,
	}
}

// activeJobIDs returns IDs of currently processing jobs for logging.
func (p *WorkerPool) activeJobIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.activeJobs))
	for id := range p.activeJobs {
		ids = append(ids, id.String())
	}
	return ids
}
