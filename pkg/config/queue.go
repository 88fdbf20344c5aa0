package config

import (
	"errors"
	"fmt"
	"time"
)

// QueueConfig contains scrub-job queue and worker pool configuration.
// These values control how jobs are polled, claimed, and processed.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per replica/pod.
	// Each worker independently polls and processes scrub jobs.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentJobs is the global limit of concurrent jobs being
	// processed across ALL replicas/pods. Enforced by database COUNT(*) check.
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs"`

	// PollInterval is the base interval for checking pending jobs.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// JobTimeout is the maximum time a single scrub job can run.
	JobTimeout time.Duration `yaml:"job_timeout"`

	// HeartbeatInterval is how often a worker refreshes the liveness
	// stamp of its running job. Must be well under OrphanThreshold.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// GracefulShutdownTimeout is the max time to wait for active jobs
	// during shutdown. Interrupted jobs are resumable, so this can be
	// much shorter than JobTimeout.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// OrphanDetectionInterval is how often to scan for orphaned jobs.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`

	// OrphanThreshold is how long a job can go without a heartbeat
	// before it is considered orphaned and requeued.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`

	// BatchSize is the number of records a job processes per page.
	BatchSize int `yaml:"batch_size"`
}

// Validate checks queue settings for internally consistent values.
func (q *QueueConfig) Validate() error {
	if q == nil {
		return errors.New("queue configuration is nil")
	}
	if q.WorkerCount < 1 || q.WorkerCount > 50 {
		return fmt.Errorf("worker_count must be between 1 and 50, got %d", q.WorkerCount)
	}
	if q.MaxConcurrentJobs < 1 {
		return fmt.Errorf("max_concurrent_jobs must be at least 1, got %d", q.MaxConcurrentJobs)
	}
	if q.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", q.PollInterval)
	}
	if q.PollIntervalJitter < 0 {
		return fmt.Errorf("poll_interval_jitter must be non-negative, got %v", q.PollIntervalJitter)
	}
	if q.PollIntervalJitter >= q.PollInterval {
		return fmt.Errorf("poll_interval_jitter must be less than poll_interval (%v), got %v",
			q.PollInterval, q.PollIntervalJitter)
	}
	if q.JobTimeout <= 0 {
		return fmt.Errorf("job_timeout must be positive, got %v", q.JobTimeout)
	}
	if q.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive, got %v", q.GracefulShutdownTimeout)
	}
	if q.OrphanDetectionInterval <= 0 {
		return fmt.Errorf("orphan_detection_interval must be positive, got %v", q.OrphanDetectionInterval)
	}
	if q.OrphanThreshold <= 0 {
		return fmt.Errorf("orphan_threshold must be positive, got %v", q.OrphanThreshold)
	}
	if q.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive, got %v", q.HeartbeatInterval)
	}
	// A heartbeat slower than the orphan threshold would requeue live jobs.
	if q.HeartbeatInterval >= q.OrphanThreshold {
		return fmt.Errorf("heartbeat_interval must be less than orphan_threshold (%v), got %v",
			q.OrphanThreshold, q.HeartbeatInterval)
	}
	if q.BatchSize < 1 || q.BatchSize > 10000 {
		return fmt.Errorf("batch_size must be between 1 and 10000, got %d", q.BatchSize)
	}
	return nil
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             2,
		MaxConcurrentJobs:       2,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		JobTimeout:              30 * time.Minute,
		HeartbeatInterval:       30 * time.Second,
		GracefulShutdownTimeout: 30 * time.Second,
		OrphanDetectionInterval: 5 * time.Minute,
		OrphanThreshold:         5 * time.Minute,
		BatchSize:               100,
	}
}
