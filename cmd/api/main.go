package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tablestakes/tracker/internal/app"
	"github.com/tablestakes/tracker/internal/infra"
	"github.com/tablestakes/tracker/internal/ledger"
	"github.com/tablestakes/tracker/internal/provider"
	"github.com/tablestakes/tracker/internal/repository"
	"github.com/tablestakes/tracker/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	aliases, err := infra.LoadAliases(cfg.PlayerAliasFile)
	if err != nil {
		return fmt.Errorf("load player aliases: %w", err)
	}
	resolver := ledger.NewAliasResolver(aliases)

	mirror := provider.NewMirrorClient(cfg.MirrorBaseURL, cfg.MirrorAPIKey, logger)
	if mirror.Enabled() {
		logger.Info("remote mirror configured", "base_url", cfg.MirrorBaseURL)
	}

	tracker := service.NewTracker(
		pool,
		repository.NewSessionRepository(),
		repository.NewSettlementStatusRepository(),
		mirror,
		resolver,
		cfg.Currency,
		logger,
	)

	router := app.NewRouter(app.RouterDeps{
		Pool:       pool,
		Tracker:    tracker,
		Logger:     logger,
		CORSOrigin: cfg.CORSAllowedOrigins,
	})

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
