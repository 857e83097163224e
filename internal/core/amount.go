package core

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountFromJSON coerces a raw JSON value into an amount.
//
// Numbers pass through, numeric strings are parsed after trimming, and true
// counts as 1. Anything else (null, a missing field, objects, text that is not
// a number) yields 0, which Validate rejects.
//
// Examples:
//
//	AmountFromJSON([]byte(`4.5`))     -> 4.5
//	AmountFromJSON([]byte(`" 12 "`))  -> 12
//	AmountFromJSON([]byte(`"abc"`))   -> 0
//	AmountFromJSON([]byte(`null`))    -> 0
func AmountFromJSON(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		return parseAmount(s)
	case 't':
		if string(raw) == "true" {
			return 1
		}
		return 0
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return parseAmount(string(raw))
	default:
		return 0
	}
}

func parseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}
