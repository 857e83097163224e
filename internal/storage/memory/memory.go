// Package memory is an in-process Store used by tests and throwaway runs.
package memory

import (
	"context"
	"sync"

	"expenses/internal/core"
	"expenses/internal/storage"
)

// Operation names accepted by FailNext.
const (
	OpEnsure = "ensure"
	OpRead   = "read"
	OpWrite  = "write"
)

type Store struct {
	mu      sync.Mutex
	doc     core.Document
	writes  int
	nextErr map[string]error
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{doc: core.EmptyDocument(), nextErr: make(map[string]error)}
}

// NewWithDocument seeds the store with a copy of doc.
func NewWithDocument(doc core.Document) *Store {
	s := New()
	s.doc = clone(doc)
	return s
}

// FailNext makes the next call of op return err.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextErr[op] = err
}

// Writes returns how many times Write succeeded.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) Ensure(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.takeErr(OpEnsure)
}

func (s *Store) Read(_ context.Context) (core.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(OpRead); err != nil {
		return core.Document{}, err
	}
	return clone(s.doc), nil
}

func (s *Store) Write(_ context.Context, doc core.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(OpWrite); err != nil {
		return err
	}
	s.doc = clone(doc)
	s.writes++
	return nil
}

func (s *Store) takeErr(op string) error {
	if err, ok := s.nextErr[op]; ok {
		delete(s.nextErr, op)
		return err
	}
	return nil
}

// clone copies the item slice so callers cannot mutate stored state.
func clone(doc core.Document) core.Document {
	out := core.Document{LastID: doc.LastID, Items: make([]core.Expense, len(doc.Items))}
	copy(out.Items, doc.Items)
	return out
}
