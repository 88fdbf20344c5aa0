package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privacyops/maskd/pkg/database"
	"github.com/privacyops/maskd/pkg/models"
	testutil "github.com/privacyops/maskd/test/util"
)

// backdateHeartbeat rewinds a running job's heartbeat so orphan queries see it.
func backdateHeartbeat(t *testing.T, client *database.Client, id uuid.UUID, age time.Duration) {
	t.Helper()
	_, err := client.DB().ExecContext(context.Background(),
		`UPDATE scrub_jobs SET last_heartbeat = $1 WHERE id = $2`,
		time.Now().Add(-age), id)
	require.NoError(t, err)
}

func TestScrubJobService_CreateScrubJob(t *testing.T) {
	client := testutil.SetupTestDatabase(t)
	service := NewScrubJobService(client)
	ctx := context.Background()

	t.Run("creates a pending job", func(t *testing.T) {
		cutoff := time.Now().Add(-24 * time.Hour).UTC().Truncate(time.Second)
		job, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{
			Target:      models.ScrubTargetUsers,
			Scope:       &models.ScrubScope{CreatedBefore: &cutoff},
			RequestedBy: "admin@example.com",
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, job.ID)
		assert.Equal(t, models.ScrubTargetUsers, job.Target)
		assert.Equal(t, models.ScrubJobStatusPending, job.Status)
		assert.Equal(t, "admin@example.com", job.RequestedBy)
		require.NotNil(t, job.Scope)
		require.NotNil(t, job.Scope.CreatedBefore)
		assert.True(t, cutoff.Equal(*job.Scope.CreatedBefore))
		assert.Empty(t, job.ClaimedBy)
		assert.Nil(t, job.StartedAt)
	})

	t.Run("rejects a second active job for the same target", func(t *testing.T) {
		_, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{
			Target: models.ScrubTargetUsers,
		})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("allows a job for a different target", func(t *testing.T) {
		job, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{
			Target: models.ScrubTargetComments,
		})
		require.NoError(t, err)
		assert.Equal(t, models.ScrubTargetComments, job.Target)
		assert.Nil(t, job.Scope)
	})

	t.Run("validates the target", func(t *testing.T) {
		tests := []struct {
			name   string
			target string
		}{
			{name: "missing target", target: ""},
			{name: "unknown target", target: "sessions"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{Target: tt.target})
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
			})
		}
	})
}

func TestScrubJobService_GetScrubJob(t *testing.T) {
	client := testutil.SetupTestDatabase(t)
	service := NewScrubJobService(client)
	ctx := context.Background()

	t.Run("returns ErrNotFound for unknown ID", func(t *testing.T) {
		_, err := service.GetScrubJob(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("round-trips a job", func(t *testing.T) {
		created, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{
			Target: models.ScrubTargetComments,
		})
		require.NoError(t, err)

		got, err := service.GetScrubJob(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, created.Status, got.Status)
	})
}

func TestScrubJobService_ListScrubJobs(t *testing.T) {
	client := testutil.SetupTestDatabase(t)
	service := NewScrubJobService(client)
	ctx := context.Background()

	users, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{Target: models.ScrubTargetUsers})
	require.NoError(t, err)
	require.NoError(t, service.CancelScrubJob(ctx, users.ID))
	comments, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{Target: models.ScrubTargetComments})
	require.NoError(t, err)

	t.Run("lists all jobs", func(t *testing.T) {
		resp, err := service.ListScrubJobs(ctx, models.ScrubJobFilters{})
		require.NoError(t, err)
		assert.Equal(t, 2, resp.TotalCount)
		assert.Len(t, resp.Jobs, 2)
	})

	t.Run("filters by status", func(t *testing.T) {
		resp, err := service.ListScrubJobs(ctx, models.ScrubJobFilters{
			Status: models.ScrubJobStatusCancelled,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.TotalCount)
		require.Len(t, resp.Jobs, 1)
		assert.Equal(t, users.ID, resp.Jobs[0].ID)
	})

	t.Run("filters by target", func(t *testing.T) {
		resp, err := service.ListScrubJobs(ctx, models.ScrubJobFilters{
			Target: models.ScrubTargetComments,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.TotalCount)
		require.Len(t, resp.Jobs, 1)
		assert.Equal(t, comments.ID, resp.Jobs[0].ID)
	})
}

func TestScrubJobService_CancelScrubJob(t *testing.T) {
	client := testutil.SetupTestDatabase(t)
	service := NewScrubJobService(client)
	ctx := context.Background()

	t.Run("cancels a pending job", func(t *testing.T) {
		job, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{
			Target: models.ScrubTargetUsers,
		})
		require.NoError(t, err)

		require.NoError(t, service.CancelScrubJob(ctx, job.ID))

		got, err := service.GetScrubJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ScrubJobStatusCancelled, got.Status)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("refuses a running job", func(t *testing.T) {
		job, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{
			Target: models.ScrubTargetComments,
		})
		require.NoError(t, err)
		_, err = service.ClaimNextPending(ctx, "pod-a")
		require.NoError(t, err)

		err = service.CancelScrubJob(ctx, job.ID)
		assert.ErrorIs(t, err, ErrNotCancellable)
	})

	t.Run("refuses a terminal job", func(t *testing.T) {
		job, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{
			Target: models.ScrubTargetUsers,
		})
		require.NoError(t, err)
		require.NoError(t, service.CancelScrubJob(ctx, job.ID))

		err = service.CancelScrubJob(ctx, job.ID)
		assert.ErrorIs(t, err, ErrNotCancellable)
	})

	t.Run("returns ErrNotFound for unknown ID", func(t *testing.T) {
		err := service.CancelScrubJob(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestScrubJobService_ClaimNextPending(t *testing.T) {
	client := testutil.SetupTestDatabase(t)
	service := NewScrubJobService(client)
	ctx := context.Background()

	t.Run("returns ErrNotFound when nothing is pending", func(t *testing.T) {
		_, err := service.ClaimNextPending(ctx, "pod-a")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("claims the oldest pending job", func(t *testing.T) {
		older, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{Target: models.ScrubTargetUsers})
		require.NoError(t, err)
		newer, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{Target: models.ScrubTargetComments})
		require.NoError(t, err)

		claimed, err := service.ClaimNextPending(ctx, "pod-a")
		require.NoError(t, err)
		assert.Equal(t, older.ID, claimed.ID)
		assert.Equal(t, models.ScrubJobStatusRunning, claimed.Status)
		assert.Equal(t, "pod-a", claimed.ClaimedBy)
		assert.NotNil(t, claimed.StartedAt)
		assert.NotNil(t, claimed.LastHeartbeat)

		next, err := service.ClaimNextPending(ctx, "pod-b")
		require.NoError(t, err)
		assert.Equal(t, newer.ID, next.ID)

		// Queue drained.
		_, err = service.ClaimNextPending(ctx, "pod-c")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestScrubJobService_ProgressAndCompletion(t *testing.T) {
	client := testutil.SetupTestDatabase(t)
	service := NewScrubJobService(client)
	ctx := context.Background()

	job, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{Target: models.ScrubTargetUsers})
	require.NoError(t, err)
	claimed, err := service.ClaimNextPending(ctx, "pod-a")
	require.NoError(t, err)
	require.Equal(t, job.ID, claimed.ID)

	t.Run("heartbeat advances the liveness stamp", func(t *testing.T) {
		backdateHeartbeat(t, client, job.ID, time.Hour)

		require.NoError(t, service.Heartbeat(ctx, job.ID))

		got, err := service.GetScrubJob(ctx, job.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastHeartbeat)
		assert.WithinDuration(t, time.Now(), *got.LastHeartbeat, time.Minute)
	})

	t.Run("progress counters persist", func(t *testing.T) {
		require.NoError(t, service.UpdateProgress(ctx, job.ID, 40, 2, 100))

		got, err := service.GetScrubJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 40, got.Processed)
		assert.Equal(t, 2, got.Failed)
		assert.Equal(t, 100, got.Total)
	})

	t.Run("completion requires a terminal status", func(t *testing.T) {
		err := service.CompleteScrubJob(ctx, job.ID, models.ScrubJobStatusRunning, "", 0, 0, 0)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})

	t.Run("completion writes the terminal state", func(t *testing.T) {
		require.NoError(t, service.CompleteScrubJob(ctx, job.ID,
			models.ScrubJobStatusCompleted, "", 98, 2, 100))

		got, err := service.GetScrubJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ScrubJobStatusCompleted, got.Status)
		assert.Equal(t, 98, got.Processed)
		assert.Equal(t, 2, got.Failed)
		assert.NotNil(t, got.CompletedAt)
		assert.Equal(t, "pod-a", got.ClaimedBy, "Ownership is kept for audit")
	})
}

func TestScrubJobService_RequeueScrubJob(t *testing.T) {
	client := testutil.SetupTestDatabase(t)
	service := NewScrubJobService(client)
	ctx := context.Background()

	job, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{Target: models.ScrubTargetUsers})
	require.NoError(t, err)
	claimed, err := service.ClaimNextPending(ctx, "pod-a")
	require.NoError(t, err)
	require.NoError(t, service.UpdateProgress(ctx, job.ID, 50, 1, 200))

	require.NoError(t, service.RequeueScrubJob(ctx, job.ID))

	requeued, err := service.GetScrubJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScrubJobStatusPending, requeued.Status)
	assert.Empty(t, requeued.ClaimedBy)
	assert.Nil(t, requeued.LastHeartbeat)
	assert.Equal(t, 50, requeued.Processed, "Progress survives a requeue")

	// A resumed claim keeps the original start time.
	resumed, err := service.ClaimNextPending(ctx, "pod-b")
	require.NoError(t, err)
	assert.Equal(t, job.ID, resumed.ID)
	assert.Equal(t, "pod-b", resumed.ClaimedBy)
	require.NotNil(t, resumed.StartedAt)
	assert.Equal(t, claimed.StartedAt.Unix(), resumed.StartedAt.Unix())
}

func TestScrubJobService_Counts(t *testing.T) {
	client := testutil.SetupTestDatabase(t)
	service := NewScrubJobService(client)
	ctx := context.Background()

	_, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{Target: models.ScrubTargetUsers})
	require.NoError(t, err)
	_, err = service.CreateScrubJob(ctx, models.CreateScrubJobRequest{Target: models.ScrubTargetComments})
	require.NoError(t, err)

	pending, err := service.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	running, err := service.CountRunning(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, running)

	_, err = service.ClaimNextPending(ctx, "pod-a")
	require.NoError(t, err)

	pending, err = service.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	running, err = service.CountRunning(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, running)
}

func TestScrubJobService_ListOrphaned(t *testing.T) {
	client := testutil.SetupTestDatabase(t)
	service := NewScrubJobService(client)
	ctx := context.Background()

	stale, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{Target: models.ScrubTargetUsers})
	require.NoError(t, err)
	_, err = service.ClaimNextPending(ctx, "pod-dead")
	require.NoError(t, err)
	backdateHeartbeat(t, client, stale.ID, time.Hour)

	fresh, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{Target: models.ScrubTargetComments})
	require.NoError(t, err)
	_, err = service.ClaimNextPending(ctx, "pod-live")
	require.NoError(t, err)

	orphans, err := service.ListOrphaned(ctx, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, stale.ID, orphans[0].ID)

	owned, err := service.ListRunningOwnedBy(ctx, "pod-live")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, fresh.ID, owned[0].ID)
}

func TestScrubJobService_PurgeOldJobs(t *testing.T) {
	client := testutil.SetupTestDatabase(t)
	service := NewScrubJobService(client)
	ctx := context.Background()

	old, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{Target: models.ScrubTargetUsers})
	require.NoError(t, err)
	require.NoError(t, service.CancelScrubJob(ctx, old.ID))
	_, err = client.DB().ExecContext(ctx,
		`UPDATE scrub_jobs SET completed_at = $1 WHERE id = $2`,
		time.Now().Add(-60*24*time.Hour), old.ID)
	require.NoError(t, err)

	recent, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{Target: models.ScrubTargetUsers})
	require.NoError(t, err)
	require.NoError(t, service.CancelScrubJob(ctx, recent.ID))

	pending, err := service.CreateScrubJob(ctx, models.CreateScrubJobRequest{Target: models.ScrubTargetComments})
	require.NoError(t, err)

	purged, err := service.PurgeOldJobs(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = service.GetScrubJob(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = service.GetScrubJob(ctx, recent.ID)
	assert.NoError(t, err)
	_, err = service.GetScrubJob(ctx, pending.ID)
	assert.NoError(t, err)
}
