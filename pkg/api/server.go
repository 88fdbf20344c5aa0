package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/privacyops/maskd/pkg/config"
	"github.com/privacyops/maskd/pkg/database"
	"github.com/privacyops/maskd/pkg/masking"
	"github.com/privacyops/maskd/pkg/queue"
	"github.com/privacyops/maskd/pkg/services"
)

// Server is the HTTP surface: ad-hoc masking endpoints, record
// anonymization, scrub job management, and health.
type Server struct {
	cfg      *config.Config
	dbClient *database.Client
	engine   *masking.Engine

	users    *services.UserService
	comments *services.CommentService
	jobs     *services.ScrubJobService

	workerPool *queue.WorkerPool

	httpServer *http.Server
}

// NewServer creates the API server. The worker pool may be nil (health
// reporting then omits pool stats and cancel only reaches pending jobs).
func NewServer(
	cfg *config.Config,
	dbClient *database.Client,
	engine *masking.Engine,
	users *services.UserService,
	comments *services.CommentService,
	jobs *services.ScrubJobService,
	workerPool *queue.WorkerPool,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	return &Server{
		cfg:        cfg,
		dbClient:   dbClient,
		engine:     engine,
		users:      users,
		comments:   comments,
		jobs:       jobs,
		workerPool: workerPool,
	}
}

// Router builds the gin engine with middleware and all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), securityHeaders())

	// Unprefixed so orchestrator probes stay stable across API versions.
	r.GET("/health", s.healthHandler)

	v1 := r.Group("/api/v1")

	mask := v1.Group("/mask")
	mask.POST("/email", s.maskEmailHandler)
	mask.POST("/personal", s.maskPersonalHandler)
	mask.POST("/financial", s.maskFinancialHandler)
	mask.POST("/web", s.maskWebHandler)
	mask.POST("/text", s.scrubTextHandler)

	v1.GET("/whoami/ip", s.whoamiIPHandler)

	users := v1.Group("/users")
	users.GET("", s.listUsersHandler)
	users.GET("/:id", s.getUserHandler)
	users.PATCH("/:id", s.updateUserHandler)
	users.POST("/:id/anonymize", s.anonymizeUserHandler)

	comments := v1.Group("/comments")
	comments.GET("", s.listCommentsHandler)
	comments.GET("/:id", s.getCommentHandler)
	comments.POST("/:id/anonymize", s.anonymizeCommentHandler)

	jobs := v1.Group("/scrub-jobs")
	jobs.POST("", s.createScrubJobHandler)
	jobs.GET("", s.listScrubJobsHandler)
	jobs.GET("/:id", s.getScrubJobHandler)
	jobs.POST("/:id/cancel", s.cancelScrubJobHandler)

	return r
}

// Start begins serving on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server, waiting for in-flight
// requests up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
