package config

import "time"

// RetentionConfig controls how long finished scrub jobs are kept before
// the cleanup service purges them.
type RetentionConfig struct {
	// JobRetentionDays is how many days terminal scrub jobs (completed,
	// failed, cancelled) remain queryable.
	JobRetentionDays int `yaml:"job_retention_days"`

	// CleanupInterval is how often the cleanup service runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		JobRetentionDays: 30,
		CleanupInterval:  12 * time.Hour,
	}
}
