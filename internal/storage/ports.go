// Package storage defines the persistence port for the expense document.
//
// Every implementation stores exactly one document holding all expenses and
// the id counter. Callers always read the whole document, change it in memory
// and write the whole document back. There is no locking across that cycle,
// so two concurrent writers resolve as last-writer-wins.
package storage

import (
	"context"

	"expenses/internal/core"
)

// Store is implemented by the file, memory and sqlite backends.
type Store interface {
	// Ensure creates the backing location and the empty document if missing.
	// It is idempotent and safe to call before every operation.
	Ensure(ctx context.Context) error

	// Read returns the current document. Unreadable or malformed content is
	// not an error: it yields core.EmptyDocument(). Errors are reserved for
	// failures to create the backing location.
	Read(ctx context.Context) (core.Document, error)

	// Write replaces the stored document as a whole.
	Write(ctx context.Context, doc core.Document) error
}

// Closer is implemented by backends holding resources such as a database handle.
type Closer interface {
	Close() error
}
