// Package file stores the expense document as a JSON file on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/storage"
)

// FileName is the name of the document inside the data directory.
const FileName = "expenses.json"

// Store keeps the document at <dir>/expenses.json.
type Store struct {
	dir  string
	path string
}

var _ storage.Store = (*Store)(nil)

func New(dataDir string) *Store {
	return &Store{
		dir:  dataDir,
		path: filepath.Join(dataDir, FileName),
	}
}

// Path returns the location of the data file.
func (s *Store) Path() string {
	return s.path
}

// Ensure creates the data directory and, when the file is absent, writes the
// empty document. An existing file is never touched, even if it is corrupt.
func (s *Store) Ensure(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", s.dir, err)
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create data file %s: %w", s.path, err)
	}
	defer f.Close()

	body, err := encode(core.EmptyDocument())
	if err != nil {
		return err
	}
	if _, err := f.Write(body); err != nil {
		return fmt.Errorf("initialize data file %s: %w", s.path, err)
	}

	slog.InfoContext(ctx, "Initialized data file", "path", s.path, applog.FieldComponent, applog.ComponentStorage)
	return nil
}

// Read loads the document. A file that cannot be read or decoded yields the
// empty document; the corrupt file stays on disk until the next Write.
func (s *Store) Read(ctx context.Context) (core.Document, error) {
	if err := s.Ensure(ctx); err != nil {
		return core.Document{}, err
	}

	body, err := os.ReadFile(s.path)
	if err != nil {
		return s.fallback(ctx, fmt.Errorf("read %s: %w", s.path, err)), nil
	}

	var doc core.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return s.fallback(ctx, fmt.Errorf("decode %s: %w", s.path, err)), nil
	}
	doc.Sanitize()
	return doc, nil
}

// Write replaces the file through a temporary file and a rename, so readers
// see either the previous document or the new one.
func (s *Store) Write(ctx context.Context, doc core.Document) error {
	doc.Sanitize()
	body, err := encode(doc)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+FileName+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	slog.DebugContext(ctx, "Data file written",
		"path", s.path,
		"last_id", doc.LastID,
		"items", len(doc.Items),
		applog.FieldComponent, applog.ComponentStorage)
	return nil
}

func (s *Store) fallback(ctx context.Context, err error) core.Document {
	metrics.RecordStoreFallback("file")
	slog.WarnContext(ctx, "Data file unreadable, serving empty document",
		"path", s.path,
		applog.FieldError, err,
		applog.FieldComponent, applog.ComponentStorage)
	return core.EmptyDocument()
}

func encode(doc core.Document) ([]byte, error) {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return body, nil
}
