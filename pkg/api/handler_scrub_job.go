package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/privacyops/maskd/pkg/models"
)

// createScrubJobHandler handles POST /api/v1/scrub-jobs.
// Creates a job in "pending" status and returns immediately; a worker
// picks it up on its next poll.
func (s *Server) createScrubJobHandler(c *gin.Context) {
	var req models.CreateScrubJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if req.RequestedBy == "" {
		req.RequestedBy = extractAuthor(c)
	}

	job, err := s.jobs.CreateScrubJob(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// getScrubJobHandler handles GET /api/v1/scrub-jobs/:id.
func (s *Server) getScrubJobHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	job, err := s.jobs.GetScrubJob(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// listScrubJobsHandler handles GET /api/v1/scrub-jobs.
func (s *Server) listScrubJobsHandler(c *gin.Context) {
	var filters models.ScrubJobFilters

	if v := c.Query("status"); v != "" {
		switch v {
		case models.ScrubJobStatusPending, models.ScrubJobStatusRunning,
			models.ScrubJobStatusCompleted, models.ScrubJobStatusFailed,
			models.ScrubJobStatusCancelled:
			filters.Status = v
		default:
			respondBadRequest(c, "invalid status: "+v)
			return
		}
	}
	if v := c.Query("target"); v != "" {
		if !models.ValidScrubTarget(v) {
			respondBadRequest(c, "invalid target: must be users or comments")
			return
		}
		filters.Target = v
	}

	var ok bool
	if filters.Limit, filters.Offset, ok = parsePageParams(c); !ok {
		return
	}

	result, err := s.jobs.ListScrubJobs(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// cancelScrubJobHandler handles POST /api/v1/scrub-jobs/:id/cancel.
// A job running on this pod gets its execution context cancelled and
// finalizes once the worker observes it; a pending job is cancelled
// directly in the store. Either path counts as success.
func (s *Server) cancelScrubJobHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	cancelled := s.workerPool != nil && s.workerPool.CancelJob(id)

	if err := s.jobs.CancelScrubJob(c.Request.Context(), id); err != nil && !cancelled {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, CancelResponse{
		JobID:   id.String(),
		Message: "Scrub job cancellation requested",
	})
}
