// Package writeback persists a derived summary onto its parent document without
// re-triggering the handler that computed it.
package writeback

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/rollup/internal/domain/document"
	"github.com/kailas-cloud/rollup/internal/usecase/aggregate"
)

// Updater performs field-level partial updates.
type Updater interface {
	PartialUpdate(ctx context.Context, ref document.Ref, values map[string]any, opts document.UpdateOptions) error
}

// Kind is the reconciliation verdict.
type Kind int

const (
	// Skip means the stored summary already reflects the computed total.
	Skip Kind = iota
	// Write means the summary and marker must be written.
	Write
)

func (k Kind) String() string {
	if k == Skip {
		return "skip"
	}
	return "write"
}

// Action is the outcome of Reconcile. Total and Processed are set for Write only.
type Action struct {
	Kind      Kind
	Total     float64
	Processed bool
}

// Guard decides whether a write-back is needed and performs it with the minimum-side-effect
// update options.
type Guard struct {
	updater     Updater
	schema      document.Schema
	totalField  string
	markerField string
}

// New creates a Guard. Both fields must be declared body fields of schema.
func New(updater Updater, schema document.Schema, totalField, markerField string) (*Guard, error) {
	if err := schema.RequireBody(totalField, markerField); err != nil {
		return nil, fmt.Errorf("write-back fields: %w", err)
	}
	return &Guard{updater: updater, schema: schema, totalField: totalField, markerField: markerField}, nil
}

// Reconcile compares the stored summary with newTotal. It skips only when the stored
// total equals newTotal and the processed marker is set.
func (g *Guard) Reconcile(doc *document.Parent, newTotal float64) Action {
	stored, _ := g.schema.Field(doc, g.totalField)
	marker, _ := g.schema.Field(doc, g.markerField)

	if aggregate.Coerce(stored) == newTotal && isChecked(marker) {
		return Action{Kind: Skip}
	}
	return Action{Kind: Write, Total: newTotal, Processed: true}
}

// Apply performs exactly one partial update for Write and nothing for Skip. Sourcing is
// disabled so the update cannot fire the trigger again; mandatory-field validation is
// skipped because the update touches only two computed fields.
func (g *Guard) Apply(ctx context.Context, ref document.Ref, a Action) error {
	if a.Kind == Skip {
		return nil
	}
	values := map[string]any{
		g.totalField:  a.Total,
		g.markerField: a.Processed,
	}
	opts := document.UpdateOptions{EnableSourcing: false, IgnoreMandatoryFields: true}
	if err := g.updater.PartialUpdate(ctx, ref, values, opts); err != nil {
		return fmt.Errorf("write back %s: %w", ref, err)
	}
	return nil
}

// isChecked reads a checkbox value: bool true or the platform's "T" encoding.
func isChecked(v any) bool {
	switch tv := v.(type) {
	case bool:
		return tv
	case string:
		switch strings.ToLower(strings.TrimSpace(tv)) {
		case "t", "true", "1", "y", "yes":
			return true
		}
	}
	return false
}
