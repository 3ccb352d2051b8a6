package filter

import (
	"strings"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }

func TestNewRangeFilter_Bounds(t *testing.T) {
	tests := []struct {
		name             string
		gt, gte, lt, lte *float64
		wantErr          string
	}{
		{"gt only", floatPtr(10000), nil, nil, nil, ""},
		{"gte+lte", nil, floatPtr(1), nil, floatPtr(30), ""},
		{"none", nil, nil, nil, nil, "at least one"},
		{"gt and gte", floatPtr(1), floatPtr(1), nil, nil, "both gt and gte"},
		{"lt and lte", nil, nil, floatPtr(1), floatPtr(1), "both lt and lte"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRangeFilter(tt.gt, tt.gte, tt.lt, tt.lte)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewMatchAny(t *testing.T) {
	c, err := NewMatchAny("status", "SalesOrd:A", "SalesOrd:B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsMatch() || c.IsRange() {
		t.Fatal("expected match condition")
	}
	if got := c.Matches(); len(got) != 2 || got[1] != "SalesOrd:B" {
		t.Errorf("Matches() = %v", got)
	}

	if _, err := NewMatchAny("status"); err == nil {
		t.Error("expected error for no values")
	}
	if _, err := NewMatchAny("status", "a", ""); err == nil {
		t.Error("expected error for empty value")
	}
	if _, err := NewMatch("", "a"); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestNewMatchAny_CopiesValues(t *testing.T) {
	vals := []string{"a"}
	c, _ := NewMatchAny("k", vals...)
	vals[0] = "mutated"
	if c.Matches()[0] != "a" {
		t.Error("caller slice mutation leaked into condition")
	}
}

func TestNewRange(t *testing.T) {
	r, _ := NewRangeFilter(floatPtr(10000), nil, nil, nil)
	c, err := NewRange("total", r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsRange() || c.IsMatch() {
		t.Fatal("expected range condition")
	}
	if *c.Range().GT() != 10000 {
		t.Errorf("GT = %v", *c.Range().GT())
	}
	if _, err := NewRange("", r); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestAll(t *testing.T) {
	c, _ := NewMatch("currency", "2")
	e, err := All(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.IsEmpty() || len(e.Must()) != 1 || len(e.MustNot()) != 0 {
		t.Errorf("unexpected expression %+v", e)
	}
	if !(Expression{}).IsEmpty() {
		t.Error("zero expression must be empty")
	}
}

func TestNewExpression_TooMany(t *testing.T) {
	c, _ := NewMatch("k", "v")
	conds := make([]Condition, MaxConditionsPerGroup+1)
	for i := range conds {
		conds[i] = c
	}
	if _, err := NewExpression(conds, nil); err == nil {
		t.Error("expected error for too many must")
	}
	if _, err := NewExpression(nil, conds); err == nil {
		t.Error("expected error for too many must_not")
	}
	if _, err := NewExpression(conds[:MaxConditionsPerGroup], conds[:MaxConditionsPerGroup]); err != nil {
		t.Errorf("at max: unexpected error %v", err)
	}
}
