// Package main is the entry point for the trip planner API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"

	"github.com/tabiplan/planner/internal/config"
	"github.com/tabiplan/planner/internal/events"
	"github.com/tabiplan/planner/internal/handler"
	"github.com/tabiplan/planner/internal/middleware"
	"github.com/tabiplan/planner/internal/planner"
	"github.com/tabiplan/planner/internal/repo"
	"github.com/tabiplan/planner/internal/service"
	"github.com/tabiplan/planner/internal/snapshot"
	"github.com/tabiplan/planner/migrations"
	"github.com/tabiplan/planner/spec"
)

// sweepInterval is how often idle planner sessions are dropped.
const sweepInterval = time.Minute

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("database connection established")

	if cfg.MigrateOnStart {
		if err := migrate(ctx, pool, logger); err != nil {
			return err
		}
	}

	// --- Services ---------------------------------------------------------
	broker := events.NewBroker(cfg.Planner.EventThrottle)
	defer broker.Close()

	policy, err := planner.ParseFailurePolicy(cfg.Planner.FailurePolicy)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	tripRepo := repo.NewTripRepo(pool)
	boxRepo := repo.NewPlanBoxRepo(pool)

	trips := service.NewTripService(tripRepo, boxRepo, broker, cfg.Planner.DefaultCurrency)
	boxes := service.NewPlanBoxService(boxRepo, broker, cfg.Planner.SnapMinutes, logger)
	export := service.NewExportService(tripRepo, boxRepo)

	registry := planner.NewRegistry(cfg.Planner.SessionTTL)
	sessions := service.NewSessionService(trips, boxRepo, snapshot.NewStore(cfg.Planner.SnapshotDir),
		registry, broker, planner.Options{
			Policy:         policy,
			SnapMinutes:    cfg.Planner.SnapMinutes,
			MaxSnapshotAge: cfg.Planner.MaxSnapshotAge,
			Logger:         logger,
		})

	api := handler.NewServer(trips, boxes, export, sessions, broker).
		WithLogger(logger).
		WithOpenAPI(spec.OpenAPI)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID, RealIP, Logger, Recoverer,
	// CORS, body limit. Auth wraps only the API routes.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	api.Register(r, middleware.NewAuthHandler(middleware.AuthConfig{
		Enabled:      cfg.Auth.Enabled(),
		Secret:       []byte(cfg.Auth.JWTSecret),
		DefaultOwner: cfg.Auth.DefaultOwnerID,
	}))

	// --- HTTP Server ------------------------------------------------------
	// WriteTimeout stays unset: /events holds its response open.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return registry.Run(gCtx, sweepInterval)
	})

	g.Go(func() error {
		logger.Info("server starting", "addr", srv.Addr, "auth", cfg.Auth.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Graceful shutdown: wait for a signal, then give in-flight requests up
	// to 15 seconds. Closing the broker ends open event streams first.
	g.Go(func() error {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stop)

		select {
		case sig := <-stop:
			logger.Info("shutting down server", "signal", sig.String())
		case <-gCtx.Done():
			logger.Info("shutting down server", "reason", "context cancelled")
		}

		broker.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// errShutdown ends the errgroup after a clean shutdown so the sweeper stops too.
var errShutdown = errors.New("shutdown requested")

func migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := migrations.NewProvider(db)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	for _, res := range results {
		logger.Info("migration applied", "version", res.Source.Version, "path", res.Source.Path)
	}
	return nil
}
