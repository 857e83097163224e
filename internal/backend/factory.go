package backend

import (
	"context"
	"fmt"
	"log/slog"

	"expenses/internal/storage/file"
	"expenses/internal/storage/memory"
	"expenses/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new store factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (*StoreResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case FileStore:
		return f.createFileStore(config)
	case SQLiteStore:
		return f.createSQLiteStore(config)
	case MemoryStore:
		return f.createMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

func (f *DefaultFactory) createFileStore(config Config) (*StoreResult, error) {
	store := file.New(config.DataDirectory)

	f.logger.Info("Initialized file store", "path", store.Path())

	return &StoreResult{
		Store:   store,
		Cleanup: nil, // Every write is already flushed to disk
	}, nil
}

func (f *DefaultFactory) createSQLiteStore(config Config) (*StoreResult, error) {
	store, err := sqlite.Open(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)

	return &StoreResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryStore() (*StoreResult, error) {
	f.logger.Warn("Initialized memory store, data will not survive a restart")

	return &StoreResult{
		Store:   memory.New(),
		Cleanup: nil,
	}, nil
}
