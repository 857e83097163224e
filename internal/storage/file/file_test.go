package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/core"
)

func TestEnsureCreatesDirectoryAndEmptyDocument(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s := New(dir)

	require.NoError(t, s.Ensure(context.Background()))
	require.NoError(t, s.Ensure(context.Background()), "Ensure must be idempotent")

	body, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, float64(0), doc["lastId"])
	assert.Equal(t, []any{}, doc["items"])
}

func TestEnsureKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	s := New(dir)
	require.NoError(t, s.Ensure(context.Background()))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not json", string(body))
}

func TestWriteThenRead(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	doc := core.EmptyDocument()
	doc.Add(core.NewExpense{Title: "Coffee", Amount: 4.5, Category: "Food", SpentAt: "2024-03-01"})
	doc.Add(core.NewExpense{Title: "Bus", Amount: 2, Category: "Transport", SpentAt: "2024-03-02"})
	require.NoError(t, s.Write(ctx, doc))

	got, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestWriteUsesDocumentFormat(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	doc := core.EmptyDocument()
	doc.Add(core.NewExpense{Title: "Coffee", Amount: 4.5, Category: "Food", SpentAt: "2024-03-01"})
	require.NoError(t, s.Write(ctx, doc))

	body, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"lastId": 1,
		"items": [{"id": 1, "title": "Coffee", "amount": 4.5, "category": "Food", "spent_at": "2024-03-01"}]
	}`, string(body))
}

func TestReadCorruptFileFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{"lastId": 3, "items": [`), 0o644))

	s := New(dir)
	doc, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.EmptyDocument(), doc)

	// The next write replaces the unreadable content.
	doc.Add(core.NewExpense{Title: "x", Amount: 1, Category: "General", SpentAt: "2024-01-01"})
	require.NoError(t, s.Write(ctx, doc))

	again, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.LastID)
	assert.Len(t, again.Items, 1)
}

func TestReadNullItems(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{"lastId": 7}`), 0o644))

	doc, err := New(dir).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), doc.LastID)
	assert.NotNil(t, doc.Items)
	assert.Empty(t, doc.Items)
}

func TestEnsureFailsWhenDirectoryIsAFile(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s := New(filepath.Join(blocker, "data"))
	_, err := s.Read(context.Background())
	assert.Error(t, err)
}
