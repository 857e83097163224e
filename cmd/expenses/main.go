package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/backend"
	"expenses/internal/cli"
	"expenses/internal/config"
	apphttp "expenses/internal/http"
	applog "expenses/internal/log"
	"expenses/internal/services"
	"expenses/internal/storage/file"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentApp)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("backend config: %w", err)
	}

	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger)
	result, err := factory.CreateStore(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Store cleanup failed", applog.FieldError, err)
			}
		}()
	}

	// A nil *amqp.Client must not reach the service as a non-nil interface.
	var publisher services.EventPublisher
	if cfg.EventsEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return fmt.Errorf("connect to AMQP: %w", err)
		}
		publisher = amqpClient
		logger.Info("Expense events enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("Expense events disabled - no AMQP_URL provided")
	}

	svc := services.NewExpenseService(result.Store, publisher, logger)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close event publisher", applog.FieldError, err)
		}
	}()

	if err := svc.Ensure(ctx); err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:             logger.WithComponent(applog.ComponentHTTP),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		StorageLabel:       storageLabel(cfg),
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server listening",
			"port", cfg.Port,
			applog.FieldBackend, cfg.StoreBackend,
			"data", storageLabel(cfg))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on :%s: %w", cfg.Port, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		logger.Info("Shutting down server", applog.FieldOperation, applog.OpShutdown)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func storageLabel(cfg *config.Config) string {
	switch cfg.StoreBackend {
	case backend.SQLiteStore.String():
		return cfg.SQLiteDBPath
	case backend.MemoryStore.String():
		return "memory (not persisted)"
	default:
		return filepath.Join(cfg.DataDir, file.FileName)
	}
}
