package query

import (
	"strconv"

	"github.com/kailas-cloud/rollup/internal/domain/query/filter"
)

// Value is a typed column value: text, number, or a coded/display pair.
type Value struct {
	kind    ColumnKind
	text    string
	number  float64
	code    string
	display string
}

// TextValue creates a text value.
func TextValue(s string) Value { return Value{kind: ColumnText, text: s} }

// NumberValue creates a numeric value.
func NumberValue(f float64) Value { return Value{kind: ColumnNumber, number: f} }

// CodedValue creates an enumerated value with its display text.
func CodedValue(code, display string) Value {
	return Value{kind: ColumnCoded, code: code, display: display}
}

// Kind returns the value kind.
func (v Value) Kind() ColumnKind { return v.kind }

// Number returns the numeric value (0 for non-numeric kinds).
func (v Value) Number() float64 { return v.number }

// Code returns the stored code of a coded value, or the raw text otherwise.
func (v Value) Code() string {
	switch v.kind {
	case ColumnCoded:
		return v.code
	case ColumnNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	default:
		return v.text
	}
}

// Text returns the human-readable form: display text for coded values.
func (v Value) Text() string {
	switch v.kind {
	case ColumnCoded:
		if v.display != "" {
			return v.display
		}
		return v.code
	case ColumnNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	default:
		return v.text
	}
}

// Row is one query result: the record id plus requested column values.
type Row struct {
	id     string
	values map[string]Value
}

// NewRow creates a Row.
func NewRow(id string, values map[string]Value) Row {
	return Row{id: id, values: values}
}

// ID returns the record identifier.
func (r Row) ID() string { return r.id }

// Values returns all column values.
func (r Row) Values() map[string]Value { return r.values }

// Get returns a column value.
func (r Row) Get(col string) (Value, bool) {
	v, ok := r.values[col]
	return v, ok
}

// Text returns the human-readable column value ("" when absent).
func (r Row) Text(col string) string { return r.values[col].Text() }

// Code returns the stored column code ("" when absent).
func (r Row) Code(col string) string { return r.values[col].Code() }

// Number returns the numeric column value (0 when absent).
func (r Row) Number(col string) float64 { return r.values[col].Number() }

// Page is one bounded batch of rows and its position among sibling pages.
type Page struct {
	index int
	rows  []Row
}

// NewPage creates a Page.
func NewPage(index int, rows []Row) Page { return Page{index: index, rows: rows} }

// Index returns the zero-based page position.
func (p Page) Index() int { return p.index }

// Rows returns the rows in query order.
func (p Page) Rows() []Row { return p.rows }

// Len returns the number of rows.
func (p Page) Len() int { return len(p.rows) }

// PageRequest addresses one bounded page of a compiled query.
type PageRequest struct {
	RecordType string
	Filters    filter.Expression
	Offset     int
	Limit      int
	Columns    []Column
}
