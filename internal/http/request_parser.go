// Package http provides HTTP server and handler implementations.
//
// This file implements parsing of the JSON bodies and path parameters the
// expense API accepts. Clients are loose about types (amounts arrive as
// numbers or as strings typed into a form), so values are coerced rather
// than rejected; only presence is validated, by core.NewExpense.Validate.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"expenses/internal/core"
)

// maxBodyBytes bounds request bodies; an expense is a handful of short fields.
const maxBodyBytes = 64 << 10

var (
	ErrInvalidJSON      = errors.New("invalid JSON")
	ErrBodyTooLarge     = errors.New("request body too large")
	errInvalidExpenseID = errors.New("invalid expense id")
)

// RequestBodyParser reads a JSON object body once and exposes its fields
// with the coercions the API applies.
type RequestBodyParser struct {
	body   []byte
	fields map[string]json.RawMessage
	parsed bool
	err    error
}

// NewRequestBodyParser reads at most maxBodyBytes of the request body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}

	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	var tooLarge *http.MaxBytesError
	if errors.As(p.err, &tooLarge) {
		p.err = ErrBodyTooLarge
	}
	return p
}

// Parse decodes the body. An empty body is an empty object; anything that is
// not a JSON object (or null) is ErrInvalidJSON.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	p.fields = map[string]json.RawMessage{}
	if len(bytes.TrimSpace(p.body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(p.body, &p.fields); err != nil {
		p.err = ErrInvalidJSON
		return p.err
	}
	if p.fields == nil { // literal null
		p.fields = map[string]json.RawMessage{}
	}
	return nil
}

// Get returns a field rendered as text, or "" when absent or null.
func (p *RequestBodyParser) Get(key string) string {
	raw, ok := p.fields[key]
	if !ok {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return stringValue(v)
}

// Amount returns the coerced amount field.
func (p *RequestBodyParser) Amount(key string) float64 {
	return core.AmountFromJSON(p.fields[key])
}

// stringValue converts a decoded JSON value to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseNewExpense decodes a create request into an unvalidated NewExpense.
// Title and category are trimmed later by Normalize; spent_at is kept as sent.
func ParseNewExpense(w http.ResponseWriter, r *http.Request) (core.NewExpense, error) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		return core.NewExpense{}, err
	}

	return core.NewExpense{
		Title:    p.Get("title"),
		Amount:   p.Amount("amount"),
		Category: p.Get("category"),
		SpentAt:  p.Get("spent_at"),
	}, nil
}

// ParseExpenseID interprets a path segment as an expense id. Numeric forms
// with no fractional part ("7", "7.0", "7e0") are accepted.
func ParseExpenseID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, nil
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, errInvalidExpenseID
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, errInvalidExpenseID
	}
	return int64(f), nil
}
