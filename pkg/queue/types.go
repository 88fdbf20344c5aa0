// Package queue provides scrub job queue management and processing
// infrastructure: a worker pool that claims jobs from the database,
// heartbeats while working, and recovers jobs orphaned by dead pods.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/privacyops/maskd/pkg/models"
)

var (
	// ErrNoJobsAvailable means the pending queue is empty.
	ErrNoJobsAvailable = errors.New("no jobs available")

	// ErrAtCapacity means the global running-job limit is reached.
	ErrAtCapacity = errors.New("at capacity")
)

// JobExecutor is the interface for scrub job processing.
//
// The executor owns the sweep: it pages through pending records, anonymizes
// each, and writes progress counters to the database as it goes. The worker
// only handles claiming, heartbeat, and the terminal status update.
//
// A result with an empty Status means the executor was interrupted; the
// worker resolves it to timed-out, cancelled, or requeued from the job
// context. Counters in the result are always meaningful.
type JobExecutor interface {
	Execute(ctx context.Context, job *models.ScrubJob) *ExecutionResult
}

// ExecutionResult is the outcome of a job execution.
type ExecutionResult struct {
	Status    string // completed, failed, or "" when interrupted
	Processed int
	Failed    int
	Total     int
	Error     error
}

// PoolHealth is the worker pool section of the health endpoint.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	PodID            string         `json:"pod_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveJobs       int            `json:"active_jobs"`
	RunningJobs      int            `json:"running_jobs"`
	MaxConcurrent    int            `json:"max_concurrent"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}

// WorkerHealth is one worker's slice of the pool health.
type WorkerHealth struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"` // "idle" or "working"
	CurrentJobID  string    `json:"current_job_id,omitempty"`
	JobsProcessed int       `json:"jobs_processed"`
	LastActivity  time.Time `json:"last_activity"`
}
