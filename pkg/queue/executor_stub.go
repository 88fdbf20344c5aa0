package queue

import (
	"context"
	"log/slog"

	"github.com/privacyops/maskd/pkg/models"
)

// StubExecutor is a no-op JobExecutor. It reports jobs as completed without
// touching any records, which makes it useful for wiring tests and for
// draining a queue in maintenance setups.
type StubExecutor struct{}

// NewStubExecutor creates a new stub executor.
func NewStubExecutor() *StubExecutor {
	return &StubExecutor{}
}

// Execute returns a completed result immediately.
func (e *StubExecutor) Execute(ctx context.Context, job *models.ScrubJob) *ExecutionResult {
	var jobID, target string
	if job != nil {
		jobID = job.ID.String()
		target = job.Target
	}
	slog.Info("Stub executor skipping job", "job_id", jobID, "target", target)

	if ctx.Err() != nil {
		return &ExecutionResult{Status: models.ScrubJobStatusCancelled, Error: ctx.Err()}
	}
	return &ExecutionResult{Status: models.ScrubJobStatusCompleted}
}
