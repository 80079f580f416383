package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tablestakes/tracker/internal/infra"
	"github.com/tablestakes/tracker/internal/ledger"
	"github.com/tablestakes/tracker/internal/provider"
	"github.com/tablestakes/tracker/internal/repository"
	"github.com/tablestakes/tracker/internal/service"
)

// Bulk-imports a directory of ledger CSV exports. Each file becomes one
// session; files already imported (by filename or by content) are skipped.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	dir := flag.String("dir", ".", "directory containing ledger CSV files")
	noMirror := flag.Bool("no-mirror", false, "skip uploading imported sessions to the mirror")
	flag.Parse()

	if err := run(*dir, *noMirror, logger); err != nil {
		logger.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run(dir string, noMirror bool, logger *slog.Logger) error {
	ctx := context.Background()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if noMirror {
		cfg.MirrorBaseURL = ""
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	aliases, err := infra.LoadAliases(cfg.PlayerAliasFile)
	if err != nil {
		return fmt.Errorf("load player aliases: %w", err)
	}

	tracker := service.NewTracker(
		pool,
		repository.NewSessionRepository(),
		repository.NewSettlementStatusRepository(),
		provider.NewMirrorClient(cfg.MirrorBaseURL, cfg.MirrorAPIKey, logger),
		ledger.NewAliasResolver(aliases),
		cfg.Currency,
		logger,
	)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", dir, err)
	}

	var saved, duplicates, failed int
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Error("read file", "file", entry.Name(), "error", err)
			failed++
			continue
		}

		result, err := tracker.ImportLedger(ctx, entry.Name(), string(raw))
		if err != nil {
			logger.Error("import file", "file", entry.Name(), "error", err)
			failed++
			continue
		}

		switch result.Status {
		case service.ImportDuplicate:
			logger.Info("skipped duplicate", "file", entry.Name(), "session_id", result.Session.SessionID)
			duplicates++
		default:
			logger.Info("imported", "file", entry.Name(),
				"session_id", result.Session.SessionID,
				"players", result.Session.PlayerCount,
				"winner", result.Session.WinnerName)
			saved++
		}
	}

	logger.Info("import complete", "saved", saved, "duplicates", duplicates, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed to import", failed)
	}
	return nil
}
