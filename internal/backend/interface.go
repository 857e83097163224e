package backend

import (
	"context"

	"expenses/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// StoreResult contains the store instance and optional cleanup function
type StoreResult struct {
	Store   storage.Store
	Cleanup CleanupFunc
}

// Factory creates stores based on configuration
type Factory interface {
	// CreateStore creates a store instance based on the provided config
	CreateStore(ctx context.Context, config Config) (*StoreResult, error)
}

// Config holds configuration for store creation
type Config struct {
	Type StoreType

	// File specific
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string
}

// StoreType represents the type of store backend
type StoreType string

const (
	FileStore   StoreType = "file"
	MemoryStore StoreType = "memory"
	SQLiteStore StoreType = "sqlite"
)

// String implements fmt.Stringer
func (st StoreType) String() string {
	return string(st)
}

// IsValid returns true if the store type is valid
func (st StoreType) IsValid() bool {
	switch st {
	case FileStore, MemoryStore, SQLiteStore:
		return true
	default:
		return false
	}
}
