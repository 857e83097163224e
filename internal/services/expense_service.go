package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/storage"
)

// defaultPublishTimeout keeps event publishing well inside the server's write timeout.
const defaultPublishTimeout = 2 * time.Second

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, event *amqp.ExpenseEvent) error
}

// ExpenseService runs every operation as one read-modify-write cycle on the
// store and announces successful mutations to an optional publisher.
type ExpenseService struct {
	store     storage.Store
	publisher EventPublisher
	log       *applog.StructuredLogger
	logger    *applog.Logger

	publishTimeout time.Duration
}

// NewExpenseService wires the service. publisher may be nil to disable events.
func NewExpenseService(store storage.Store, publisher EventPublisher, logger *applog.Logger) *ExpenseService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentExpense)
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		log:       applog.NewStructuredLogger(logger),
		logger:    logger,

		publishTimeout: defaultPublishTimeout,
	}
}

// Ensure prepares the backing store.
func (s *ExpenseService) Ensure(ctx context.Context) error {
	if err := s.store.Ensure(ctx); err != nil {
		return fmt.Errorf("ensure store: %w", err)
	}
	return nil
}

// ListExpenses returns every expense, newest spent_at first.
func (s *ExpenseService) ListExpenses(ctx context.Context) (items []core.Expense, err error) {
	defer func() { metrics.RecordExpenseOperation(applog.OpList, err) }()

	doc, err := s.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	return core.SortForListing(doc.Items), nil
}

// CreateExpense normalizes and validates n, assigns the next id and persists it.
func (s *ExpenseService) CreateExpense(ctx context.Context, n core.NewExpense) (e core.Expense, err error) {
	defer func() { metrics.RecordExpenseOperation(applog.OpCreate, err) }()

	n = n.Normalize()
	if err := n.Validate(); err != nil {
		return core.Expense{}, err
	}

	doc, err := s.store.Read(ctx)
	if err != nil {
		return core.Expense{}, fmt.Errorf("read store: %w", err)
	}

	e = doc.Add(n)
	if err := s.store.Write(ctx, doc); err != nil {
		return core.Expense{}, fmt.Errorf("write store: %w", err)
	}

	s.log.LogExpenseCreated(ctx, e.ID, e.Title, e.Amount, e.Category, e.SpentAt)
	s.publish(ctx, amqp.NewExpenseCreatedEvent(e))
	return e, nil
}

// DeleteExpense removes every record with id. Returns core.ErrNotFound when none matched.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) (err error) {
	defer func() { metrics.RecordExpenseOperation(applog.OpDelete, err) }()

	doc, err := s.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("read store: %w", err)
	}

	if !doc.Remove(id) {
		return core.ErrNotFound
	}
	if err := s.store.Write(ctx, doc); err != nil {
		return fmt.Errorf("write store: %w", err)
	}

	s.log.LogExpenseDeleted(ctx, id)
	s.publish(ctx, amqp.NewExpenseDeletedEvent(id))
	return nil
}

// Stats totals all expenses and groups them by category.
func (s *ExpenseService) Stats(ctx context.Context) (stats core.Stats, err error) {
	defer func() { metrics.RecordExpenseOperation(applog.OpStats, err) }()

	doc, err := s.store.Read(ctx)
	if err != nil {
		return core.Stats{}, fmt.Errorf("read store: %w", err)
	}
	return core.Summarize(doc.Items), nil
}

// publish never fails the caller: the store write already succeeded. It waits
// at most publishTimeout, even for a publisher that ignores its context, and
// outlives a cancelled request so a disconnecting client does not drop the event.
func (s *ExpenseService) publish(ctx context.Context, event *amqp.ExpenseEvent) {
	if s.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.publisher.PublishExpenseEvent(pubCtx, event) }()

	var err error
	select {
	case err = <-done:
	case <-pubCtx.Done():
		err = fmt.Errorf("publish %s: %w", event.Type, pubCtx.Err())
	}

	metrics.RecordEventPublished(string(event.Type), err)
	if err != nil {
		errorType := applog.ErrorTypeNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			errorType = applog.ErrorTypeTimeout
		}
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			applog.FieldOperation, applog.OpPublish,
			applog.FieldErrorType, errorType,
			applog.FieldEventType, event.Type,
			applog.FieldExpenseID, event.ID,
			applog.FieldError, err)
	}
}

// Close releases the publisher when it holds a connection.
func (s *ExpenseService) Close() error {
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
