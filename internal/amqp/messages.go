package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expenses/internal/core"
)

// EventType names what happened to an expense
type EventType string

const (
	EventExpenseCreated EventType = "expense.created"
	EventExpenseDeleted EventType = "expense.deleted"
)

// ExpenseEvent is published after a successful store write.
// Created events carry the full record so consumers never read the store.
type ExpenseEvent struct {
	Type      EventType     `json:"type"`
	ID        int64         `json:"id"`
	Expense   *core.Expense `json:"expense,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewExpenseCreatedEvent builds the event for a newly stored expense
func NewExpenseCreatedEvent(e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		Type:      EventExpenseCreated,
		ID:        e.ID,
		Expense:   &e,
		Timestamp: time.Now().UTC(),
	}
}

// NewExpenseDeletedEvent builds the event for a removed expense id
func NewExpenseDeletedEvent(id int64) *ExpenseEvent {
	return &ExpenseEvent{
		Type:      EventExpenseDeleted,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate checks that the event can be handled
func (m *ExpenseEvent) Validate() error {
	if m.ID <= 0 {
		return fmt.Errorf("invalid expense id %d", m.ID)
	}
	switch m.Type {
	case EventExpenseCreated:
		if m.Expense == nil {
			return fmt.Errorf("%s event %d has no expense", m.Type, m.ID)
		}
		if m.Expense.ID != m.ID {
			return fmt.Errorf("%s event id %d does not match expense id %d", m.Type, m.ID, m.Expense.ID)
		}
	case EventExpenseDeleted:
	default:
		return fmt.Errorf("unknown event type %q", m.Type)
	}
	return nil
}

// ExpenseEventFromJSON decodes and validates an event
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
