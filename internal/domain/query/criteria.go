// Package query defines bulk-query criteria and the rows and pages a query produces.
package query

import (
	"fmt"

	"github.com/kailas-cloud/rollup/internal/domain"
	"github.com/kailas-cloud/rollup/internal/domain/query/filter"
)

// Operator is a predicate comparison.
type Operator string

// Supported operators.
const (
	OpAnyOf              Operator = "anyof"
	OpNoneOf             Operator = "noneof"
	OpIs                 Operator = "is"
	OpWithin             Operator = "within"
	OpEqualTo            Operator = "equalto"
	OpGreaterThan        Operator = "greaterthan"
	OpGreaterThanOrEqual Operator = "greaterthanorequalto"
	OpLessThan           Operator = "lessthan"
	OpLessThanOrEqual    Operator = "lessthanorequalto"
)

// Reference is a human code that must be resolved to an identifier before the query runs,
// e.g. currency "GBP".
type Reference struct {
	Type string
	Code string
}

// Predicate is one (field, operator, value) clause. Tag operators take strings or References;
// numeric operators take float64 values.
type Predicate struct {
	field  string
	op     Operator
	values []any
}

// NewPredicate validates and creates a Predicate.
func NewPredicate(field string, op Operator, values ...any) (Predicate, error) {
	if field == "" {
		return Predicate{}, fmt.Errorf("predicate field is required: %w", domain.ErrInvalidSchema)
	}

	switch op {
	case OpAnyOf, OpNoneOf, OpIs:
		if len(values) == 0 {
			return Predicate{}, fmt.Errorf("%s %s needs at least one value: %w", field, op, domain.ErrInvalidSchema)
		}
		if op == OpIs && len(values) != 1 {
			return Predicate{}, fmt.Errorf("%s is takes exactly one value: %w", field, domain.ErrInvalidSchema)
		}
		for _, v := range values {
			switch tv := v.(type) {
			case string:
				if tv == "" {
					return Predicate{}, fmt.Errorf("%s %s has an empty value: %w", field, op, domain.ErrInvalidSchema)
				}
			case Reference:
				if tv.Type == "" || tv.Code == "" {
					return Predicate{}, fmt.Errorf("%s %s has an incomplete reference: %w", field, op, domain.ErrInvalidSchema)
				}
			default:
				return Predicate{}, fmt.Errorf("%s %s value %T: %w", field, op, v, domain.ErrInvalidSchema)
			}
		}
	case OpWithin:
		if len(values) != 2 {
			return Predicate{}, fmt.Errorf("%s within takes two bounds: %w", field, domain.ErrInvalidSchema)
		}
		lo, okLo := values[0].(float64)
		hi, okHi := values[1].(float64)
		if !okLo || !okHi {
			return Predicate{}, fmt.Errorf("%s within bounds must be numbers: %w", field, domain.ErrInvalidSchema)
		}
		if lo > hi {
			return Predicate{}, fmt.Errorf("%s within [%g, %g] is empty: %w", field, lo, hi, domain.ErrInvalidSchema)
		}
	case OpEqualTo, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		if len(values) != 1 {
			return Predicate{}, fmt.Errorf("%s %s takes one value: %w", field, op, domain.ErrInvalidSchema)
		}
		if _, ok := values[0].(float64); !ok {
			return Predicate{}, fmt.Errorf("%s %s value must be a number: %w", field, op, domain.ErrInvalidSchema)
		}
	default:
		return Predicate{}, fmt.Errorf("unknown operator %q: %w", op, domain.ErrInvalidSchema)
	}

	cp := make([]any, len(values))
	copy(cp, values)
	return Predicate{field: field, op: op, values: cp}, nil
}

// Field returns the predicate field.
func (p Predicate) Field() string { return p.field }

// Operator returns the predicate operator.
func (p Predicate) Operator() Operator { return p.op }

// Values returns the predicate operands.
func (p Predicate) Values() []any { return p.values }

// Negated reports whether rows matching the compiled condition are excluded.
func (p Predicate) Negated() bool { return p.op == OpNoneOf }

// References returns the unresolved references among the operands.
func (p Predicate) References() []Reference {
	var refs []Reference
	for _, v := range p.values {
		if r, ok := v.(Reference); ok {
			refs = append(refs, r)
		}
	}
	return refs
}

// Condition compiles the predicate into a filter condition. resolve maps references to
// identifiers; it is only called for Reference operands. For a negated predicate the
// condition describes the rows to exclude.
func (p Predicate) Condition(resolve func(Reference) (string, error)) (filter.Condition, error) {
	switch p.op {
	case OpAnyOf, OpNoneOf, OpIs:
		vals := make([]string, 0, len(p.values))
		for _, v := range p.values {
			switch tv := v.(type) {
			case string:
				vals = append(vals, tv)
			case Reference:
				id, err := resolve(tv)
				if err != nil {
					return filter.Condition{}, err
				}
				vals = append(vals, id)
			}
		}
		return filter.NewMatchAny(p.field, vals...)
	case OpWithin:
		lo, hi := p.values[0].(float64), p.values[1].(float64)
		return rangeCondition(p.field, nil, &lo, nil, &hi)
	case OpEqualTo:
		v := p.values[0].(float64)
		return rangeCondition(p.field, nil, &v, nil, &v)
	case OpGreaterThan:
		v := p.values[0].(float64)
		return rangeCondition(p.field, &v, nil, nil, nil)
	case OpGreaterThanOrEqual:
		v := p.values[0].(float64)
		return rangeCondition(p.field, nil, &v, nil, nil)
	case OpLessThan:
		v := p.values[0].(float64)
		return rangeCondition(p.field, nil, nil, &v, nil)
	case OpLessThanOrEqual:
		v := p.values[0].(float64)
		return rangeCondition(p.field, nil, nil, nil, &v)
	}
	return filter.Condition{}, fmt.Errorf("unknown operator %q: %w", p.op, domain.ErrInvalidSchema)
}

func rangeCondition(field string, gt, gte, lt, lte *float64) (filter.Condition, error) {
	r, err := filter.NewRangeFilter(gt, gte, lt, lte)
	if err != nil {
		return filter.Condition{}, err
	}
	return filter.NewRange(field, r)
}

// ColumnKind is the value kind of an output column.
type ColumnKind string

// Column kinds.
const (
	ColumnText   ColumnKind = "text"
	ColumnNumber ColumnKind = "number"
	ColumnCoded  ColumnKind = "coded"
)

// Column is one requested output column.
type Column struct {
	Name string
	Kind ColumnKind
}

// DisplaySuffix marks the stored display text of a coded column.
const DisplaySuffix = "_display"

// StoredFields returns the storage fields backing the column.
func (c Column) StoredFields() []string {
	if c.Kind == ColumnCoded {
		return []string{c.Name, c.Name + DisplaySuffix}
	}
	return []string{c.Name}
}

// Criteria is an immutable conjunctive query over one record type.
type Criteria struct {
	recordType string
	predicates []Predicate
	columns    []Column
}

// NewCriteria validates and creates Criteria.
func NewCriteria(recordType string, predicates []Predicate, columns []Column) (Criteria, error) {
	if recordType == "" {
		return Criteria{}, fmt.Errorf("record type is required: %w", domain.ErrInvalidSchema)
	}
	if len(predicates) > filter.MaxConditionsPerGroup {
		return Criteria{}, fmt.Errorf("too many predicates (max %d): %w", filter.MaxConditionsPerGroup, domain.ErrInvalidSchema)
	}
	if len(columns) == 0 {
		return Criteria{}, fmt.Errorf("at least one column is required: %w", domain.ErrInvalidSchema)
	}
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if c.Name == "" {
			return Criteria{}, fmt.Errorf("column name is required: %w", domain.ErrInvalidSchema)
		}
		switch c.Kind {
		case ColumnText, ColumnNumber, ColumnCoded:
		default:
			return Criteria{}, fmt.Errorf("column %s kind %q: %w", c.Name, c.Kind, domain.ErrInvalidSchema)
		}
		if seen[c.Name] {
			return Criteria{}, fmt.Errorf("duplicate column %s: %w", c.Name, domain.ErrInvalidSchema)
		}
		seen[c.Name] = true
	}

	ps := make([]Predicate, len(predicates))
	copy(ps, predicates)
	cs := make([]Column, len(columns))
	copy(cs, columns)
	return Criteria{recordType: recordType, predicates: ps, columns: cs}, nil
}

// RecordType returns the queried record type.
func (c Criteria) RecordType() string { return c.recordType }

// Predicates returns the conjunctive predicates.
func (c Criteria) Predicates() []Predicate { return c.predicates }

// Columns returns the requested output columns.
func (c Criteria) Columns() []Column { return c.columns }

// ReturnFields returns the storage fields needed to build rows.
func (c Criteria) ReturnFields() []string {
	out := make([]string, 0, len(c.columns)*2)
	for _, col := range c.columns {
		out = append(out, col.StoredFields()...)
	}
	return out
}
