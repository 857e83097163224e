package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "expenses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRunsMigrationsAndEnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Ensure(ctx))
	require.NoError(t, s.Ensure(ctx))

	doc, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.EmptyDocument(), doc)
}

func TestSQLiteWriteThenRead(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	doc := core.EmptyDocument()
	doc.Add(core.NewExpense{Title: "Rent", Amount: 900, Category: "Home", SpentAt: "2024-02-01"})
	doc.Add(core.NewExpense{Title: "Lunch", Amount: 12.5, Category: "Food", SpentAt: "2024-02-02"})
	require.NoError(t, s.Write(ctx, doc))

	got, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	// Ensure must not overwrite an existing document.
	require.NoError(t, s.Ensure(ctx))
	got, err = s.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)

	got.Remove(1)
	require.NoError(t, s.Write(ctx, got))
	again, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.LastID)
	require.Len(t, again.Items, 1)
	assert.Equal(t, "Lunch", again.Items[0].Title)
}

func TestSQLiteCorruptBodyFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Ensure(ctx))

	_, err := s.db.ExecContext(ctx, `UPDATE documents SET body = ? WHERE name = ?`, "{broken", DocumentName)
	require.NoError(t, err)

	doc, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.EmptyDocument(), doc)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "expenses.db")

	s, err := Open(path)
	require.NoError(t, err)
	doc := core.EmptyDocument()
	doc.Add(core.NewExpense{Title: "Book", Amount: 20, Category: "Leisure", SpentAt: "2024-05-05"})
	require.NoError(t, s.Write(ctx, doc))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}
