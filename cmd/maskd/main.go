// maskd anonymization server. Serves the masking HTTP API, runs the scrub
// job worker pool, and purges finished jobs past their retention.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/privacyops/maskd/pkg/api"
	"github.com/privacyops/maskd/pkg/cleanup"
	"github.com/privacyops/maskd/pkg/config"
	"github.com/privacyops/maskd/pkg/database"
	"github.com/privacyops/maskd/pkg/masking"
	"github.com/privacyops/maskd/pkg/queue"
	"github.com/privacyops/maskd/pkg/services"
	"github.com/privacyops/maskd/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// resolvePodID determines the pod identifier for multi-replica coordination.
// Priority: POD_ID env > HOSTNAME env > "local"
func resolvePodID() string {
	if id := os.Getenv("POD_ID"); id != "" {
		return id
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	podID := resolvePodID()

	slog.Info("Starting maskd",
		"version", version.Full(),
		"pod_id", podID,
		"config_dir", *configDir)

	// Cancelled on shutdown so in-flight sweeps stop and their jobs get
	// requeued instead of waiting out the job timeout.
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// 1. Initialize configuration
	cfg, err := config.Initialize(rootCtx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize database
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(rootCtx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	// 3. Compile the masking engine and build domain services
	engine, err := masking.NewEngine(cfg.Masking)
	if err != nil {
		slog.Error("Failed to compile masking engine", "error", err)
		os.Exit(1)
	}

	userService := services.NewUserService(dbClient, engine)
	commentService := services.NewCommentService(dbClient, engine)
	jobService := services.NewScrubJobService(dbClient)
	slog.Info("Services initialized", "scrub_patterns", engine.ScrubPatternCount())

	// 4. One-time startup orphan cleanup
	if err := queue.CleanupStartupOrphans(rootCtx, jobService, podID); err != nil {
		slog.Error("Failed to cleanup startup orphans", "error", err)
		// Non-fatal, continue
	}

	// 5. Start worker pool (before HTTP server)
	scrubber := queue.NewBulkScrubber(cfg.Queue, jobService, userService, commentService)
	workerPool := queue.NewWorkerPool(podID, jobService, cfg.Queue, scrubber)
	if err := workerPool.Start(rootCtx); err != nil {
		slog.Error("Failed to start worker pool", "error", err)
		os.Exit(1)
	}

	// 6. Start retention cleanup
	retention := cleanup.NewService(cfg.Retention, jobService)
	retention.Start(rootCtx)

	// 7. Create HTTP server
	httpServer := api.NewServer(cfg, dbClient, engine, userService, commentService, jobService, workerPool)

	// 8. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("maskd started successfully",
		"pod_id", podID,
		"workers", cfg.Queue.WorkerCount)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown. Cancel the root context first so workers see
	// the interruption and requeue their jobs, then wait for the pool
	// within the shutdown budget. The budget derives from Background since
	// rootCtx is already cancelled.
	retention.Stop()
	cancelRoot()

	workerShutdownCtx, workerCancel := context.WithTimeout(context.Background(), cfg.Queue.GracefulShutdownTimeout)
	defer workerCancel()

	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-workerShutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded, incomplete jobs will be orphan-recovered")
	}

	// Stop HTTP server with its own timeout budget
	httpShutdownCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
