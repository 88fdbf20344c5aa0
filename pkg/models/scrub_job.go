package models

import (
	"time"

	"github.com/google/uuid"
)

// Scrub job targets.
const (
	ScrubTargetUsers    = "users"
	ScrubTargetComments = "comments"
)

// Scrub job statuses.
const (
	ScrubJobStatusPending   = "pending"
	ScrubJobStatusRunning   = "running"
	ScrubJobStatusCompleted = "completed"
	ScrubJobStatusFailed    = "failed"
	ScrubJobStatusCancelled = "cancelled"
)

// TerminalScrubJobStatuses are the statuses a job never leaves.
var TerminalScrubJobStatuses = []string{
	ScrubJobStatusCompleted,
	ScrubJobStatusFailed,
	ScrubJobStatusCancelled,
}

// IsTerminalScrubJobStatus reports whether status is terminal.
func IsTerminalScrubJobStatus(status string) bool {
	for _, s := range TerminalScrubJobStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// ValidScrubTarget reports whether target names a scrubable record set.
func ValidScrubTarget(target string) bool {
	return target == ScrubTargetUsers || target == ScrubTargetComments
}

// ScrubScope narrows which records a scrub job sweeps. A nil or empty
// scope means every record that is not yet anonymized.
type ScrubScope struct {
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}

// ScrubJob is a bulk anonymization job row. Jobs are resumable: progress
// counters survive a worker crash and a requeued job continues from the
// records still un-anonymized.
type ScrubJob struct {
	ID            uuid.UUID   `json:"id"`
	Target        string      `json:"target"`
	Status        string      `json:"status"`
	Scope         *ScrubScope `json:"scope,omitempty"`
	RequestedBy   string      `json:"requested_by,omitempty"`
	Processed     int         `json:"processed"`
	Failed        int         `json:"failed"`
	Total         int         `json:"total"`
	ClaimedBy     string      `json:"claimed_by,omitempty"`
	LastHeartbeat *time.Time  `json:"last_heartbeat,omitempty"`
	Error         string      `json:"error,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
}

// CreateScrubJobRequest contains fields for enqueueing a scrub job
type CreateScrubJobRequest struct {
	Target      string      `json:"target"`
	Scope       *ScrubScope `json:"scope,omitempty"`
	RequestedBy string      `json:"requested_by,omitempty"`
}

// ScrubJobFilters contains filtering options for listing scrub jobs
type ScrubJobFilters struct {
	Status string `json:"status,omitempty"`
	Target string `json:"target,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ScrubJobListResponse contains a paginated scrub job list
type ScrubJobListResponse struct {
	Jobs       []*ScrubJob `json:"jobs"`
	TotalCount int         `json:"total_count"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}
