// Package sqlite keeps the expense document as a single row of a SQLite table.
//
// The row holds the same JSON the file backend writes, so switching backends
// only changes where the document lives, not how it is read or mutated.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/storage"

	_ "modernc.org/sqlite"
)

// DocumentName is the primary key of the row holding the expense document.
const DocumentName = "expenses"

type Store struct {
	db   *sql.DB
	name string
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Closer = (*Store)(nil)
)

// Open creates the database file if needed and applies migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, name: DocumentName}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure inserts the empty document unless a row already exists.
func (s *Store) Ensure(ctx context.Context) error {
	body, err := json.Marshal(core.EmptyDocument())
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO documents (name, body, updated_at) VALUES (?, ?, ?)`,
		s.name, string(body), now())
	if err != nil {
		return fmt.Errorf("ensure document %s: %w", s.name, err)
	}
	return nil
}

// Read returns the stored document, or the empty one when the row content
// cannot be decoded.
func (s *Store) Read(ctx context.Context) (core.Document, error) {
	if err := s.Ensure(ctx); err != nil {
		return core.Document{}, err
	}

	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE name = ?`, s.name).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.EmptyDocument(), nil
		}
		return s.fallback(ctx, fmt.Errorf("select document %s: %w", s.name, err)), nil
	}

	var doc core.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return s.fallback(ctx, fmt.Errorf("decode document %s: %w", s.name, err)), nil
	}
	doc.Sanitize()
	return doc, nil
}

// Write upserts the whole document in one statement.
func (s *Store) Write(ctx context.Context, doc core.Document) error {
	doc.Sanitize()
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		s.name, string(body), now())
	if err != nil {
		return fmt.Errorf("write document %s: %w", s.name, err)
	}

	slog.DebugContext(ctx, "Document saved to SQLite",
		"name", s.name,
		"last_id", doc.LastID,
		"items", len(doc.Items),
		applog.FieldComponent, applog.ComponentStorage)
	return nil
}

func (s *Store) fallback(ctx context.Context, err error) core.Document {
	metrics.RecordStoreFallback("sqlite")
	slog.WarnContext(ctx, "Stored document unreadable, serving empty document",
		"name", s.name,
		applog.FieldError, err,
		applog.FieldComponent, applog.ComponentStorage)
	return core.EmptyDocument()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
