/*
main.go - HTTP server entry point

PURPOSE:
  Starts the obligation simulator API: runs posted scenarios, stores runs
  in SQLite, and optionally re-runs saved scenarios on a schedule.

STARTUP SEQUENCE:
  1. Load configuration (env, then flags)
  2. Build the logger
  3. Initialize SQLite store
  4. Create API handler and router
  5. Start the scenario scheduler if a schedule is set
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (env fallback in parentheses):
  -port        HTTP server port (PORT, default 8080)
  -db          SQLite database path (DB_PATH, default finance.db)
               Use ":memory:" for in-memory database
  -log-level   LOG_LEVEL, default info
  -log-format  LOG_FORMAT, text or json
  -schedule    SCHEDULE, cron spec such as "@daily"; empty disables

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for a running tick)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/obligation-engine/api"
	"github.com/warp/obligation-engine/config"
	"github.com/warp/obligation-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger := cfg.NewLogger(os.Stderr)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	handler := api.NewHandler(store, logger)
	router := api.NewRouter(handler)

	var scheduler *api.ScenarioScheduler
	if cfg.Schedule != "" {
		scheduler, err = api.NewScenarioScheduler(handler, cfg.Schedule)
		if err != nil {
			logger.Fatalf("Failed to create scheduler: %v", err)
		}
		scheduler.Start()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
		return
	}

	logger.Info("server stopped")
}
