// Package core provides the expense domain model.
package core

import (
	"errors"
	"math"
	"sort"
	"strings"
)

// DefaultCategory is assigned to expenses created without a category.
const DefaultCategory = "General"

type (
	Expense struct {
		ID       int64   `json:"id"`
		Title    string  `json:"title"`
		Amount   float64 `json:"amount"`
		Category string  `json:"category"`
		SpentAt  string  `json:"spent_at"` // YYYY-MM-DD, compared as text
	}

	// NewExpense is an expense that has not been assigned an id yet.
	NewExpense struct {
		Title    string
		Amount   float64
		Category string
		SpentAt  string
	}

	// Document is the whole persisted state: every expense plus the id counter.
	// LastID is the highest id ever assigned and never goes down.
	Document struct {
		LastID int64     `json:"lastId"`
		Items  []Expense `json:"items"`
	}
)

var (
	ErrMissingFields = errors.New("missing fields")
	ErrNotFound      = errors.New("not found")
)

// EmptyDocument returns the shape written the first time a store is created.
func EmptyDocument() Document {
	return Document{LastID: 0, Items: []Expense{}}
}

// Normalize trims the free-text fields and applies the default category.
func (n NewExpense) Normalize() NewExpense {
	n.Title = strings.TrimSpace(n.Title)
	n.Category = strings.TrimSpace(n.Category)
	if n.Category == "" {
		n.Category = DefaultCategory
	}
	return n
}

// Validate only checks presence: a title, a non-zero amount and a date.
func (n NewExpense) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return ErrMissingFields
	}
	// NaN and ±Inf have no JSON encoding, so they count as absent.
	if n.Amount == 0 || math.IsNaN(n.Amount) || math.IsInf(n.Amount, 0) {
		return ErrMissingFields
	}
	if n.SpentAt == "" {
		return ErrMissingFields
	}
	return nil
}

// Add assigns the next id to n, appends it and returns the stored record.
func (d *Document) Add(n NewExpense) Expense {
	d.LastID++
	e := Expense{
		ID:       d.LastID,
		Title:    n.Title,
		Amount:   n.Amount,
		Category: n.Category,
		SpentAt:  n.SpentAt,
	}
	d.Items = append(d.Items, e)
	return e
}

// Remove drops every item with the given id and reports whether any matched.
func (d *Document) Remove(id int64) bool {
	kept := make([]Expense, 0, len(d.Items))
	for _, e := range d.Items {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	removed := len(kept) != len(d.Items)
	d.Items = kept
	return removed
}

// Sanitize repairs a decoded document so callers never see a nil item list.
func (d *Document) Sanitize() {
	if d.Items == nil {
		d.Items = []Expense{}
	}
}

// SortForListing returns a copy of items ordered by SpentAt descending, newest id
// first on equal dates. Dates are compared byte-wise; YYYY-MM-DD sorts correctly.
func SortForListing(items []Expense) []Expense {
	out := make([]Expense, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SpentAt != out[j].SpentAt {
			return out[i].SpentAt > out[j].SpentAt
		}
		return out[i].ID > out[j].ID
	})
	return out
}
