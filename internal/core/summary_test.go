package core

import (
	"encoding/json"
	"testing"
)

func TestSummarize(t *testing.T) {
	t.Run("single category", func(t *testing.T) {
		s := Summarize([]Expense{
			{ID: 1, Amount: 10, Category: "Food"},
			{ID: 2, Amount: 5, Category: "Food"},
		})
		if s.Total != 15 {
			t.Fatalf("total = %v, want 15", s.Total)
		}
		if len(s.ByCategory) != 1 || s.ByCategory[0] != (CategorySum{Category: "Food", Sum: 15}) {
			t.Fatalf("unexpected byCategory: %+v", s.ByCategory)
		}
	})

	t.Run("ordered by sum descending", func(t *testing.T) {
		s := Summarize([]Expense{
			{ID: 1, Amount: 1, Category: "Small"},
			{ID: 2, Amount: 30, Category: "Big"},
			{ID: 3, Amount: 5, Category: "Mid"},
			{ID: 4, Amount: 5, Category: "Small"},
		})
		want := []string{"Big", "Small", "Mid"}
		for i, cat := range want {
			if s.ByCategory[i].Category != cat {
				t.Fatalf("position %d: got %q, want %q", i, s.ByCategory[i].Category, cat)
			}
		}
	})

	t.Run("ties keep first appearance", func(t *testing.T) {
		s := Summarize([]Expense{
			{ID: 1, Amount: 2, Category: "B"},
			{ID: 2, Amount: 2, Category: "A"},
		})
		if s.ByCategory[0].Category != "B" || s.ByCategory[1].Category != "A" {
			t.Fatalf("tie order not stable: %+v", s.ByCategory)
		}
	})

	t.Run("missing category counts as default", func(t *testing.T) {
		s := Summarize([]Expense{{ID: 1, Amount: 3}})
		if s.ByCategory[0].Category != DefaultCategory {
			t.Fatalf("got %q, want %q", s.ByCategory[0].Category, DefaultCategory)
		}
	})

	t.Run("decimal sums", func(t *testing.T) {
		s := Summarize([]Expense{
			{ID: 1, Amount: 0.1, Category: "X"},
			{ID: 2, Amount: 0.2, Category: "X"},
		})
		if s.Total != 0.3 {
			t.Fatalf("total = %v, want 0.3", s.Total)
		}
	})

	t.Run("empty renders empty list", func(t *testing.T) {
		b, err := json.Marshal(Summarize(nil))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(b) != `{"total":0,"byCategory":[]}` {
			t.Fatalf("unexpected json: %s", b)
		}
	})
}

func TestAmountFromJSON(t *testing.T) {
	cases := []struct {
		in  string
		out float64
	}{
		{`4.5`, 4.5},
		{`10`, 10},
		{`-2`, -2},
		{`"5.50"`, 5.5},
		{`" 12 "`, 12},
		{`""`, 0},
		{`"abc"`, 0},
		{`null`, 0},
		{``, 0},
		{`true`, 1},
		{`false`, 0},
		{`{"x":1}`, 0},
		{`[1]`, 0},
	}
	for _, tc := range cases {
		if got := AmountFromJSON(json.RawMessage(tc.in)); got != tc.out {
			t.Fatalf("%q expected %v, got %v", tc.in, tc.out, got)
		}
	}
}
