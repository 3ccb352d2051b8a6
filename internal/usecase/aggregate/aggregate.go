// Package aggregate sums a numeric field over a document's line items.
package aggregate

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/rollup/internal/domain/document"
)

// Selector picks the raw value to sum from one line. ok=false means the field is absent.
type Selector func(line document.LineItem) (value any, ok bool)

// Field selects a line field by name.
func Field(name string) Selector {
	return func(line document.LineItem) (any, bool) {
		return line.Field(name)
	}
}

// Aggregate sums the selected value over lines in index order. Absent, null and
// non-numeric values contribute zero.
func Aggregate(lines []document.LineItem, sel Selector) float64 {
	var total float64
	for _, line := range lines {
		v, ok := sel(line)
		if !ok {
			continue
		}
		total += Coerce(v)
	}
	return total
}

// Coerce converts a raw field value to float64. It never fails: anything that is not a
// finite number, or a string or json.Number parsing as one, becomes 0.
func Coerce(v any) float64 {
	var f float64
	switch tv := v.(type) {
	case float64:
		f = tv
	case float32:
		f = float64(tv)
	case int:
		f = float64(tv)
	case int8:
		f = float64(tv)
	case int16:
		f = float64(tv)
	case int32:
		f = float64(tv)
	case int64:
		f = float64(tv)
	case uint:
		f = float64(tv)
	case uint8:
		f = float64(tv)
	case uint16:
		f = float64(tv)
	case uint32:
		f = float64(tv)
	case uint64:
		f = float64(tv)
	case json.Number:
		parsed, err := tv.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		s := strings.TrimSpace(tv)
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
