// Package app assembles the pipeline service: configuration, logging,
// tracking store, websocket hub, services and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"pricepipe/internal/config"
	"pricepipe/internal/infrastructure"
	"pricepipe/internal/services"
	handlers "pricepipe/internal/transport/http"
	"pricepipe/internal/tracking"
	ws "pricepipe/internal/websocket"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Application is the main service container.
type Application struct {
	Config           *config.Config
	Logger           *slog.Logger
	Tracker          *tracking.Store
	WebSocketHub     *ws.Hub
	Metrics          *infrastructure.Metrics
	OperationService *services.OperationService
	RunService       *services.RunService
	HealthService    *services.HealthService
	Server           *http.Server
}

// NewApplication loads configuration and wires all components.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	logger.Info("service starting",
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port),
		slog.String("data_dir", cfg.Paths.DataDir))

	tracker, err := tracking.Open(cfg.Paths.TrackingDB)
	if err != nil {
		return nil, fmt.Errorf("opening tracking store: %w", err)
	}

	hub := ws.NewHub(logger)
	metrics := infrastructure.NewMetrics()

	operationService, err := services.NewOperationService(cfg, tracker, hub, metrics, logger)
	if err != nil {
		tracker.Close()
		return nil, fmt.Errorf("creating operation service: %w", err)
	}
	runService := services.NewRunService(tracker, logger)
	healthService := services.NewHealthService(Version, tracker, operationService, hub, logger)

	router := handlers.NewRouter(handlers.RouterDeps{
		Operations: handlers.NewOperationsHandler(operationService, logger),
		Runs:       handlers.NewRunsHandler(runService, logger),
		Health:     handlers.NewHealthHandler(healthService, logger),
		WS:         handlers.NewWSHandler(hub, cfg.WebSocket, logger),
		Metrics:    metrics,
		Security:   cfg.Security,
		Logger:     logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Application{
		Config:           cfg,
		Logger:           logger,
		Tracker:          tracker,
		WebSocketHub:     hub,
		Metrics:          metrics,
		OperationService: operationService,
		RunService:       runService,
		HealthService:    healthService,
		Server:           server,
	}, nil
}

// Run starts the hub and HTTP server and blocks until the context is
// cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.WebSocketHub.Start()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("HTTP server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutdown signal received")
		return a.Stop()
	})

	return g.Wait()
}

// Stop gracefully shuts the service down.
func (a *Application) Stop() error {
	timeout := a.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var firstErr error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		firstErr = fmt.Errorf("server shutdown: %w", err)
	}

	a.WebSocketHub.Stop()

	if err := a.Tracker.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing tracking store: %w", err)
	}

	if err := infrastructure.CloseLogFile(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing log file: %w", err)
	}

	a.Logger.Info("shutdown complete")
	return firstErr
}
