package main

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

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/nexory/readygate/internal/adapter/backendhttp"
	"github.com/nexory/readygate/internal/adapter/fsm"
	"github.com/nexory/readygate/internal/adapter/kratos"
	"github.com/nexory/readygate/internal/adapter/otel"
	riveradapter "github.com/nexory/readygate/internal/adapter/river"
	"github.com/nexory/readygate/internal/adapter/sqlite"
	"github.com/nexory/readygate/internal/app"
	"github.com/nexory/readygate/internal/config"

	handler "github.com/nexory/readygate/internal/adapter/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	logger := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// --- Telemetry ---
	providers, err := otel.Setup(ctx, otel.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otel.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	repo, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	identity := kratos.New(cfg.KratosURL, cfg.SessionToken)
	backend := otel.NewTracingBackend(backendhttp.NewProfileClient(cfg.BackendURL, cfg.BackendAPIKey, nil))
	billing := otel.NewTracingBilling(backendhttp.NewBillingClient(cfg.BillingURL, cfg.BillingAPIKey, nil))

	riverClient, err := riveradapter.Setup(ctx, db, backend)
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("river start: %w", err)
	}
	queue := riveradapter.NewQueue(riverClient)

	// --- Application ---
	clock := app.SystemClock{}
	session := app.NewSessionStore(identity, logger)
	checker := app.NewReadinessChecker(backend, queue, clock, logger, app.CheckerOptions{
		CacheTTL:       cfg.Readiness.CacheTTL,
		DebounceWindow: cfg.Readiness.DebounceWindow,
		RetryAttempts:  cfg.Readiness.RetryAttempts,
		RetryDelay:     cfg.Readiness.RetryDelay,
	})
	engine := app.NewRedirectEngine(cfg.Routes)
	payments := app.NewPaymentService(billing, fsm.New(), repo, clock, logger,
		cfg.PaymentSuccessURL, cfg.PaymentFailureURL)

	orch := app.NewOrchestrator(session, checker, engine, payments, logger)
	defer orch.Close()

	orch.Initialize(ctx)

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(otelchi.Middleware("readygate", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("readygate", "0.1.0"))
	handler.Register(api, orch)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("readygate listening", "port", cfg.Port)
		logger.Info("API docs", "url", "http://localhost:"+cfg.Port+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	case <-done:
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		logger.Warn("river stop", "error", err)
	}

	logger.Info("stopped")
	return nil
}
