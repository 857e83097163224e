package sheets

import (
	"context"
	"strconv"

	"expenses/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseMirror keeps a spreadsheet copy of the expense list, one row per expense.
	// Both operations are idempotent so redelivered events are harmless.
	ExpenseMirror interface {
		// UpsertExpense writes the row for e, replacing an existing row with the same id.
		UpsertExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
		// RemoveExpense clears the row for id. A missing row is not an error.
		RemoveExpense(ctx context.Context, id int64) error
	}
)

// Header is the column layout of a mirrored sheet.
var Header = []any{"id", "spent_at", "title", "amount", "category"}

// ExpenseRow renders e in Header order.
func ExpenseRow(e core.Expense) []any {
	return []any{e.ID, e.SpentAt, e.Title, e.Amount, e.Category}
}

// RowKey is the first-column value identifying the row of expense id.
func RowKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
