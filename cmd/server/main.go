// Agent Relay - streaming chat relay server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/oselz/agent-relay/internal/api"
	"github.com/oselz/agent-relay/internal/audit"
	"github.com/oselz/agent-relay/internal/backend"
	"github.com/oselz/agent-relay/internal/config"
	"github.com/oselz/agent-relay/internal/middleware"
	"github.com/oselz/agent-relay/internal/relay"
	"github.com/oselz/agent-relay/internal/server"
	"github.com/oselz/agent-relay/internal/store"
	"github.com/oselz/agent-relay/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewFileStore(cfg.SessionDir)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	slog.Info("Session store ready", "dir", cfg.SessionDir)

	recorder := audit.Noop()
	if cfg.Audit.Enabled {
		log, err := audit.NewLog(cfg.Audit.DBPath, cfg.Audit.QueueSize, logger)
		if err != nil {
			slog.Error("Failed to initialize audit log", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := log.Close(); closeErr != nil {
				slog.Error("Failed to close audit log", "error", closeErr)
			}
		}()
		recorder = log
		slog.Info("Audit log enabled", "db_path", cfg.Audit.DBPath)
	}

	runner := backend.NewCLIRunner(cfg.Claude.Bin, logger)
	defaults := relay.Options{
		Model:        cfg.Claude.Model,
		SystemPrompt: cfg.Claude.SystemPrompt,
		AllowedTools: cfg.Claude.AllowedTools,
		WorkingDir:   cfg.Claude.WorkDir,
	}
	registry := relay.NewRegistry(runner, defaults, logger)

	// Initialize handlers.
	sessionHandler := api.NewSessionHandler(repo)
	wsHandler := server.NewWSHandler(registry, recorder, cfg.FrontendURL, cfg.IsDevelopment(), logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	// REST routes.
	sessionHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	// Note: streaming responses require long timeouts (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
