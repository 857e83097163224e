// Package memory is an in-process ExpenseMirror used when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"expenses/internal/core"
	ports "expenses/internal/sheets"
)

type Sheet struct {
	mu   sync.Mutex
	rows [][]any // rows[0] is the header
}

var _ ports.ExpenseMirror = (*Sheet)(nil)

func New() *Sheet {
	return &Sheet{rows: [][]any{append([]any(nil), ports.Header...)}}
}

// UpsertExpense stores the row and returns a synthetic row reference.
func (s *Sheet) UpsertExpense(_ context.Context, e core.Expense) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := ports.ExpenseRow(e)
	if i := s.find(e.ID); i > 0 {
		s.rows[i] = row
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// RemoveExpense blanks the row in place, like clearing a range in a spreadsheet.
func (s *Sheet) RemoveExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.find(id); i > 0 {
		s.rows[i] = []any{}
	}
	return nil
}

// Rows returns a copy of the non-empty data rows, header excluded.
func (s *Sheet) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]any, 0, len(s.rows)-1)
	for _, row := range s.rows[1:] {
		if len(row) == 0 {
			continue
		}
		out = append(out, append([]any(nil), row...))
	}
	return out
}

func (s *Sheet) find(id int64) int {
	key := ports.RowKey(id)
	for i := 1; i < len(s.rows); i++ {
		if len(s.rows[i]) > 0 && fmt.Sprint(s.rows[i][0]) == key {
			return i
		}
	}
	return -1
}
