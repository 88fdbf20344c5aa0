package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/privacyops/maskd/pkg/queue"
	"github.com/privacyops/maskd/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /health. The endpoint is unauthenticated, so
// the body carries nothing sensitive.
// Only maskd's own components (database, worker pool) are checked. An
// unreachable database is unhealthy (503); a struggling worker pool only
// degrades the status so the orchestrator does not restart the API while
// it can still serve masking requests.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := healthStatusHealthy

	dbHealth, err := s.dbClient.Health(reqCtx)
	if err != nil {
		status = healthStatusUnhealthy
	}

	var poolHealth *queue.PoolHealth
	if s.workerPool != nil {
		poolHealth = s.workerPool.Health()
		if poolHealth != nil && !poolHealth.IsHealthy && status == healthStatusHealthy {
			status = healthStatusDegraded
		}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	resp := &HealthResponse{
		Status:     status,
		Version:    version.Full(),
		Database:   dbHealth,
		WorkerPool: poolHealth,
	}
	if s.cfg != nil {
		resp.Configuration = s.cfg.Stats()
	}
	c.JSON(httpStatus, resp)
}
