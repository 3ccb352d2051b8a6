package document

import (
	"fmt"
	"regexp"
	"sort"
)

var (
	idRegex   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	typeRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// MaxLineItems caps a single sublist. Real documents stay far below it.
const MaxLineItems = 100000

// EventKind tags the change that fired an after-submit trigger.
type EventKind string

// Event kinds understood by the trigger dispatcher.
const (
	EventCreate EventKind = "create"
	EventUpdate EventKind = "edit"
	EventDelete EventKind = "delete"
)

// ParseEventKind normalizes an external event tag. "update" is accepted as an alias of "edit";
// unknown tags are returned as-is so callers can ignore them.
func ParseEventKind(s string) EventKind {
	switch s {
	case "create":
		return EventCreate
	case "edit", "update":
		return EventUpdate
	case "delete":
		return EventDelete
	default:
		return EventKind(s)
	}
}

// Ref addresses a stored parent document.
type Ref struct {
	Type string
	ID   string
}

func (r Ref) String() string { return r.Type + "/" + r.ID }

// UpdateOptions control a field-level partial update.
type UpdateOptions struct {
	// EnableSourcing runs after-submit hooks and dependent-field sourcing for the update.
	EnableSourcing bool
	// IgnoreMandatoryFields skips the mandatory-field check of the record type.
	IgnoreMandatoryFields bool
}

// LineItem is one row of a parent document's sublist (immutable value object).
type LineItem struct {
	index  int
	fields map[string]any
}

// NewLineItem creates a line item at the given position.
func NewLineItem(index int, fields map[string]any) LineItem {
	return LineItem{index: index, fields: cloneAnyMap(fields)}
}

// Index returns the zero-based position of the line in its sublist.
func (l LineItem) Index() int { return l.index }

// Field returns a raw line value. ok is false when the field is absent.
func (l LineItem) Field(name string) (any, bool) {
	v, ok := l.fields[name]
	return v, ok
}

// Fields returns the raw line values.
func (l LineItem) Fields() map[string]any { return l.fields }

// Parent is the parent document aggregate: body fields plus ordered sublists of line items.
type Parent struct {
	id       string
	docType  string
	fields   map[string]any
	sublists map[string][]LineItem
}

// New validates and creates a Parent. Line items are re-indexed by slice position.
func New(id, docType string, fields map[string]any, sublists map[string][]map[string]any) (Parent, error) {
	if id == "" {
		return Parent{}, fmt.Errorf("document ID is required")
	}
	if len(id) > 256 {
		return Parent{}, fmt.Errorf("document ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Parent{}, fmt.Errorf("document ID must be alphanumeric with underscores and hyphens")
	}
	if !typeRegex.MatchString(docType) {
		return Parent{}, fmt.Errorf("document type %q must be lowercase snake_case", docType)
	}

	lines := make(map[string][]LineItem, len(sublists))
	for name, rows := range sublists {
		if !typeRegex.MatchString(name) {
			return Parent{}, fmt.Errorf("sublist name %q must be lowercase snake_case", name)
		}
		if len(rows) > MaxLineItems {
			return Parent{}, fmt.Errorf("sublist %q has too many lines (max %d)", name, MaxLineItems)
		}
		items := make([]LineItem, len(rows))
		for i, row := range rows {
			items[i] = NewLineItem(i, row)
		}
		lines[name] = items
	}

	return Parent{id: id, docType: docType, fields: cloneAnyMap(fields), sublists: lines}, nil
}

// Reconstruct creates a Parent without validation (storage hydration).
func Reconstruct(id, docType string, fields map[string]any, sublists map[string][]LineItem) Parent {
	return Parent{id: id, docType: docType, fields: fields, sublists: sublists}
}

// ID returns the document identifier.
func (p *Parent) ID() string { return p.id }

// Type returns the document record type.
func (p *Parent) Type() string { return p.docType }

// Ref returns the storage address of the document.
func (p *Parent) Ref() Ref { return Ref{Type: p.docType, ID: p.id} }

// Field returns a raw body value. ok is false when the field is absent.
func (p *Parent) Field(name string) (any, bool) {
	v, ok := p.fields[name]
	return v, ok
}

// Fields returns the raw body values.
func (p *Parent) Fields() map[string]any { return p.fields }

// LineCount returns the number of lines in a sublist (0 for unknown sublists).
func (p *Parent) LineCount(sublist string) int { return len(p.sublists[sublist]) }

// Lines returns the line items of a sublist in index order.
func (p *Parent) Lines(sublist string) []LineItem { return p.sublists[sublist] }

// SublistNames returns sublist names in sorted order.
func (p *Parent) SublistNames() []string {
	names := make([]string, 0, len(p.sublists))
	for name := range p.sublists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithFields returns a copy with the given body values merged in.
func (p *Parent) WithFields(values map[string]any) Parent {
	merged := cloneAnyMap(p.fields)
	if merged == nil {
		merged = make(map[string]any, len(values))
	}
	for k, v := range values {
		merged[k] = v
	}
	return Parent{id: p.id, docType: p.docType, fields: merged, sublists: p.sublists}
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
