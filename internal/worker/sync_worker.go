package worker

import (
	"context"
	"fmt"
	"log/slog"

	"expenses/internal/amqp"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/sheets"
	"expenses/internal/storage"
)

// SyncWorker mirrors expense events into a spreadsheet
type SyncWorker struct {
	mirror sheets.ExpenseMirror
	store  storage.Store // optional, used for the startup resync
}

func NewSyncWorker(mirror sheets.ExpenseMirror, store storage.Store) *SyncWorker {
	return &SyncWorker{
		mirror: mirror,
		store:  store,
	}
}

// HandleEvent applies one expense event to the mirror. It has the
// amqp.EventHandler signature so it can be passed to ConsumeExpenseEvents.
func (w *SyncWorker) HandleEvent(ctx context.Context, event *amqp.ExpenseEvent) error {
	switch event.Type {
	case amqp.EventExpenseCreated:
		return w.handleCreated(ctx, event)
	case amqp.EventExpenseDeleted:
		return w.handleDeleted(ctx, event)
	default:
		return fmt.Errorf("unsupported event type %q", event.Type)
	}
}

func (w *SyncWorker) handleCreated(ctx context.Context, event *amqp.ExpenseEvent) error {
	if event.Expense == nil {
		return fmt.Errorf("created event %d without expense", event.ID)
	}

	ref, err := w.mirror.UpsertExpense(ctx, *event.Expense)
	if err != nil {
		return fmt.Errorf("mirror expense %d: %w", event.ID, err)
	}

	slog.InfoContext(ctx, "Mirrored expense",
		applog.FieldOperation, applog.OpMirror,
		applog.FieldExpenseID, event.ID,
		"row", ref,
		applog.FieldComponent, applog.ComponentWorker)
	return nil
}

func (w *SyncWorker) handleDeleted(ctx context.Context, event *amqp.ExpenseEvent) error {
	if err := w.mirror.RemoveExpense(ctx, event.ID); err != nil {
		return fmt.Errorf("remove mirrored expense %d: %w", event.ID, err)
	}

	slog.InfoContext(ctx, "Removed mirrored expense",
		applog.FieldOperation, applog.OpMirror,
		applog.FieldExpenseID, event.ID,
		applog.FieldComponent, applog.ComponentWorker)
	return nil
}

// StartupSyncCheck upserts every stored expense into the mirror, recovering
// rows whose events were missed while the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	if w.store == nil {
		slog.InfoContext(ctx, "No store configured, skipping startup sync", applog.FieldComponent, applog.ComponentWorker)
		return nil
	}

	doc, err := w.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("read store for startup sync: %w", err)
	}

	if len(doc.Items) == 0 {
		slog.InfoContext(ctx, "No expenses found on startup", applog.FieldComponent, applog.ComponentWorker)
		return nil
	}

	successCount := 0
	errorCount := 0
	for _, e := range core.SortForListing(doc.Items) {
		if _, err := w.mirror.UpsertExpense(ctx, e); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror expense on startup",
				applog.FieldExpenseID, e.ID,
				applog.FieldError, err,
				applog.FieldComponent, applog.ComponentWorker)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"success_count", successCount,
		"error_count", errorCount,
		applog.FieldItemCount, len(doc.Items),
		applog.FieldComponent, applog.ComponentWorker)

	if errorCount > 0 {
		return fmt.Errorf("startup sync: %d of %d expenses failed", errorCount, len(doc.Items))
	}
	return nil
}
