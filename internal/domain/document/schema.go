package document

import (
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/rollup/internal/domain"
)

// FieldKind is the declared value kind of a document field.
type FieldKind string

// Supported field kinds.
const (
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "bool"
	KindText   FieldKind = "text"
	// KindReference holds the internal id of another record, e.g. the customer of an invoice.
	// Ids are positive integers; codes and names are rejected.
	KindReference FieldKind = "reference"
)

// FieldDef declares one body or line field.
type FieldDef struct {
	Name      string
	Kind      FieldKind
	Mandatory bool
}

// Schema is the typed field accessor for one record type. It is built once at startup
// and rejects unknown keys instead of silently returning nothing.
type Schema struct {
	recordType string
	body       map[string]FieldDef
	sublists   map[string]map[string]FieldDef
}

// NewSchema validates and creates a Schema.
func NewSchema(recordType string, body []FieldDef, sublists map[string][]FieldDef) (Schema, error) {
	if !typeRegex.MatchString(recordType) {
		return Schema{}, fmt.Errorf("record type %q: %w", recordType, domain.ErrInvalidSchema)
	}

	bodyDefs, err := indexDefs(body)
	if err != nil {
		return Schema{}, fmt.Errorf("record %s body: %w", recordType, err)
	}

	subDefs := make(map[string]map[string]FieldDef, len(sublists))
	for name, defs := range sublists {
		if !typeRegex.MatchString(name) {
			return Schema{}, fmt.Errorf("sublist %q: %w", name, domain.ErrInvalidSchema)
		}
		idx, err := indexDefs(defs)
		if err != nil {
			return Schema{}, fmt.Errorf("record %s sublist %s: %w", recordType, name, err)
		}
		subDefs[name] = idx
	}

	return Schema{recordType: recordType, body: bodyDefs, sublists: subDefs}, nil
}

func indexDefs(defs []FieldDef) (map[string]FieldDef, error) {
	m := make(map[string]FieldDef, len(defs))
	for _, d := range defs {
		if !typeRegex.MatchString(d.Name) {
			return nil, fmt.Errorf("field name %q: %w", d.Name, domain.ErrInvalidSchema)
		}
		switch d.Kind {
		case KindNumber, KindBool, KindText, KindReference:
		default:
			return nil, fmt.Errorf("field %s kind %q: %w", d.Name, d.Kind, domain.ErrInvalidSchema)
		}
		if _, dup := m[d.Name]; dup {
			return nil, fmt.Errorf("duplicate field %s: %w", d.Name, domain.ErrInvalidSchema)
		}
		m[d.Name] = d
	}
	return m, nil
}

// RecordType returns the record type this schema describes.
func (s Schema) RecordType() string { return s.recordType }

// BodyField returns the definition of a body field.
func (s Schema) BodyField(name string) (FieldDef, bool) {
	d, ok := s.body[name]
	return d, ok
}

// LineFieldDef returns the definition of a line field.
func (s Schema) LineFieldDef(sublist, name string) (FieldDef, bool) {
	d, ok := s.sublists[sublist][name]
	return d, ok
}

// Mandatory returns the mandatory body field names in sorted order.
func (s Schema) Mandatory() []string {
	var out []string
	for name, d := range s.body {
		if d.Mandatory {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// RequireBody fails when any of the names is not a declared body field.
func (s Schema) RequireBody(names ...string) error {
	for _, n := range names {
		if _, ok := s.body[n]; !ok {
			return fmt.Errorf("%s.%s: %w", s.recordType, n, domain.ErrUnknownField)
		}
	}
	return nil
}

// RequireLine fails when the sublist or any field in it is not declared.
func (s Schema) RequireLine(sublist string, names ...string) error {
	defs, ok := s.sublists[sublist]
	if !ok {
		return fmt.Errorf("%s sublist %s: %w", s.recordType, sublist, domain.ErrUnknownField)
	}
	for _, n := range names {
		if _, ok := defs[n]; !ok {
			return fmt.Errorf("%s.%s.%s: %w", s.recordType, sublist, n, domain.ErrUnknownField)
		}
	}
	return nil
}

// Field reads a declared body field. Absent values come back as nil.
func (s Schema) Field(doc *Parent, name string) (any, error) {
	if _, ok := s.body[name]; !ok {
		return nil, fmt.Errorf("%s.%s: %w", s.recordType, name, domain.ErrUnknownField)
	}
	v, _ := doc.Field(name)
	return v, nil
}

// LineField reads a declared line field at index. Absent values come back as nil.
func (s Schema) LineField(doc *Parent, sublist, name string, index int) (any, error) {
	if err := s.RequireLine(sublist, name); err != nil {
		return nil, err
	}
	lines := doc.Lines(sublist)
	if index < 0 || index >= len(lines) {
		return nil, fmt.Errorf("%s line %d out of range (count %d)", sublist, index, len(lines))
	}
	v, _ := lines[index].Field(name)
	return v, nil
}

// Validate checks that a document uses only declared fields and sublists.
// Mandatory fields are checked separately because partial updates may skip them.
func (s Schema) Validate(doc *Parent) error {
	if doc.Type() != s.recordType {
		return fmt.Errorf("document type %q, schema %q: %w", doc.Type(), s.recordType, domain.ErrInvalidSchema)
	}
	for name := range doc.Fields() {
		if _, ok := s.body[name]; !ok {
			return fmt.Errorf("%s.%s: %w", s.recordType, name, domain.ErrUnknownField)
		}
	}
	if err := s.CheckReferences(doc.Fields()); err != nil {
		return err
	}
	for _, sub := range doc.SublistNames() {
		defs, ok := s.sublists[sub]
		if !ok {
			return fmt.Errorf("%s sublist %s: %w", s.recordType, sub, domain.ErrUnknownField)
		}
		for _, line := range doc.Lines(sub) {
			for name, v := range line.Fields() {
				d, ok := defs[name]
				if !ok {
					return fmt.Errorf("%s.%s.%s: %w", s.recordType, sub, name, domain.ErrUnknownField)
				}
				if d.Kind == KindReference && !isRecordID(v) {
					return fmt.Errorf("%s.%s[%d].%s = %v: %w", s.recordType, sub, line.Index(), name, v, domain.ErrInvalidReference)
				}
			}
		}
	}
	return nil
}

// CheckReferences fails when a reference body field in values holds anything but a
// record id. Nil and "" clear the field and pass.
func (s Schema) CheckReferences(values map[string]any) error {
	for name, v := range values {
		if d, ok := s.body[name]; ok && d.Kind == KindReference && !isRecordID(v) {
			return fmt.Errorf("%s.%s = %v: %w", s.recordType, name, v, domain.ErrInvalidReference)
		}
	}
	return nil
}

func isRecordID(v any) bool {
	switch tv := v.(type) {
	case nil:
		return true
	case string:
		return tv == ""
	case int:
		return tv > 0
	case int64:
		return tv > 0
	case float64:
		return tv > 0 && tv == math.Trunc(tv) && tv <= 1<<53
	}
	return false
}

// CheckMandatory fails when a mandatory body field is absent or nil in values.
func (s Schema) CheckMandatory(values map[string]any) error {
	for _, name := range s.Mandatory() {
		if v, ok := values[name]; !ok || v == nil || v == "" {
			return fmt.Errorf("%s.%s: %w", s.recordType, name, domain.ErrMandatoryFieldMissing)
		}
	}
	return nil
}
