package writeback

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/rollup/internal/domain"
	"github.com/kailas-cloud/rollup/internal/domain/document"
)

type updateCall struct {
	ref    document.Ref
	values map[string]any
	opts   document.UpdateOptions
}

type recordingUpdater struct {
	calls []updateCall
	err   error
}

func (u *recordingUpdater) PartialUpdate(
	_ context.Context, ref document.Ref, values map[string]any, opts document.UpdateOptions,
) error {
	u.calls = append(u.calls, updateCall{ref: ref, values: values, opts: opts})
	return u.err
}

func invoiceSchema(t *testing.T) document.Schema {
	t.Helper()
	sc, err := document.NewSchema("invoice",
		[]document.FieldDef{
			{Name: "entity", Kind: document.KindReference, Mandatory: true},
			{Name: "total_discount", Kind: document.KindNumber},
			{Name: "discount_processed", Kind: document.KindBool},
		},
		map[string][]document.FieldDef{"item": {{Name: "discount_amount", Kind: document.KindNumber}}},
	)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return sc
}

func newGuard(t *testing.T, u Updater) *Guard {
	t.Helper()
	g, err := New(u, invoiceSchema(t), "total_discount", "discount_processed")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func invoice(t *testing.T, body map[string]any) document.Parent {
	t.Helper()
	doc, err := document.New("inv-1", "invoice", body, nil)
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	return doc
}

func TestNew_RejectsUndeclaredFields(t *testing.T) {
	_, err := New(&recordingUpdater{}, invoiceSchema(t), "total_discount", "discount_done")
	if !errors.Is(err, domain.ErrUnknownField) {
		t.Errorf("err = %v, want ErrUnknownField", err)
	}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name     string
		body     map[string]any
		newTotal float64
		want     Kind
	}{
		{"equal and marked", map[string]any{"total_discount": 7.5, "discount_processed": true}, 7.5, Skip},
		{"equal and marked as T", map[string]any{"total_discount": "7.5", "discount_processed": "T"}, 7.5, Skip},
		{"equal but unmarked", map[string]any{"total_discount": 7.5, "discount_processed": false}, 7.5, Write},
		{"marked but stale", map[string]any{"total_discount": 5.0, "discount_processed": true}, 7.5, Write},
		{"never processed", map[string]any{}, 0, Write},
		{"zero total marked", map[string]any{"total_discount": nil, "discount_processed": true}, 0, Skip},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := newGuard(t, &recordingUpdater{})
			doc := invoice(t, tc.body)

			a := g.Reconcile(&doc, tc.newTotal)
			if a.Kind != tc.want {
				t.Fatalf("kind = %s, want %s", a.Kind, tc.want)
			}
			if a.Kind == Write && (a.Total != tc.newTotal || !a.Processed) {
				t.Errorf("action = %+v, want total %v processed", a, tc.newTotal)
			}
		})
	}
}

func TestApply_WriteIssuesExactlyOneMinimalUpdate(t *testing.T) {
	u := &recordingUpdater{}
	g := newGuard(t, u)
	ref := document.Ref{Type: "invoice", ID: "inv-1"}

	if err := g.Apply(context.Background(), ref, Action{Kind: Write, Total: 7.5, Processed: true}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if len(u.calls) != 1 {
		t.Fatalf("got %d updates, want 1", len(u.calls))
	}
	c := u.calls[0]
	if c.ref != ref {
		t.Errorf("ref = %v, want %v", c.ref, ref)
	}
	if len(c.values) != 2 || c.values["total_discount"] != 7.5 || c.values["discount_processed"] != true {
		t.Errorf("values = %v", c.values)
	}
	if c.opts.EnableSourcing || !c.opts.IgnoreMandatoryFields {
		t.Errorf("options = %+v, want sourcing off and mandatory fields ignored", c.opts)
	}
}

func TestApply_SkipWritesNothing(t *testing.T) {
	u := &recordingUpdater{}
	g := newGuard(t, u)

	if err := g.Apply(context.Background(), document.Ref{Type: "invoice", ID: "inv-1"}, Action{Kind: Skip}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(u.calls) != 0 {
		t.Errorf("skip issued %d updates", len(u.calls))
	}
}

func TestApply_PropagatesUpdateError(t *testing.T) {
	boom := errors.New("boom")
	g := newGuard(t, &recordingUpdater{err: boom})

	err := g.Apply(context.Background(), document.Ref{Type: "invoice", ID: "inv-1"}, Action{Kind: Write})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestReconcile_SecondPassSkips(t *testing.T) {
	u := &recordingUpdater{}
	g := newGuard(t, u)
	doc := invoice(t, map[string]any{"entity": 31.0})

	first := g.Reconcile(&doc, 12)
	if first.Kind != Write {
		t.Fatalf("first pass = %s, want write", first.Kind)
	}
	if err := g.Apply(context.Background(), doc.Ref(), first); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	written := doc.WithFields(u.calls[0].values)
	if second := g.Reconcile(&written, 12); second.Kind != Skip {
		t.Errorf("second pass = %s, want skip", second.Kind)
	}
	if len(u.calls) != 1 {
		t.Errorf("got %d updates, want 1", len(u.calls))
	}
}

func TestKind_String(t *testing.T) {
	if Skip.String() != "skip" || Write.String() != "write" {
		t.Errorf("String() = %q, %q", Skip.String(), Write.String())
	}
}
