package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/backend"
	"expenses/internal/cli"
	"expenses/internal/config"
	applog "expenses/internal/log"
	"expenses/internal/sheets"
	gsheet "expenses/internal/sheets/google"
	mem "expenses/internal/sheets/memory"
	"expenses/internal/storage"
	"expenses/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentWorker)

	if !cfg.EventsEnabled() {
		logger.Error("AMQP_URL is required by the worker", applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker exited with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	mirror, err := newMirror(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// The store is only read, to backfill rows missed while the worker was down.
	store, cleanup := openStore(ctx, cfg, logger)
	if cleanup != nil {
		defer func() { _ = cleanup() }()
	}

	syncWorker := worker.NewSyncWorker(mirror, store)

	logger.Info("Performing startup sync check...", applog.FieldOperation, applog.OpStartup)
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		// Don't exit - continue with normal operation
		logger.Error("Failed startup sync check", applog.FieldError, err)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer amqpClient.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Consuming expense events", "queue", cfg.AMQPQueue)
		err := amqpClient.ConsumeExpenseEvents(gctx, syncWorker.HandleEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return g.Wait()
}

// newMirror picks the Google Sheets mirror when a spreadsheet is configured and
// an in-memory sheet otherwise.
func newMirror(ctx context.Context, cfg *config.Config, logger *applog.Logger) (sheets.ExpenseMirror, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - mirroring into memory")
		return mem.New(), nil
	}

	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)
	return client, nil
}

// openStore returns nil when the store cannot be opened; the worker then
// skips the startup backfill.
func openStore(ctx context.Context, cfg *config.Config, logger *applog.Logger) (storage.Store, backend.CleanupFunc) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Warn("Store not available for startup sync", applog.FieldError, err)
		return nil, nil
	}
	if backendCfg.Type == backend.MemoryStore {
		// A fresh in-process store never holds anything to backfill.
		return nil, nil
	}

	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateStore(ctx, backendCfg)
	if err != nil {
		logger.Warn("Store not available for startup sync", applog.FieldError, err)
		return nil, nil
	}
	return result.Store, result.Cleanup
}
