package document

import (
	"context"
	"testing"

	domdoc "github.com/kailas-cloud/rollup/internal/domain/document"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn     func(ctx context.Context, key string, fields map[string]string) error
	hreplaceFn func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn  func(ctx context.Context, key string) (map[string]string, error)
	existsFn   func(ctx context.Context, key string) (bool, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HReplace(ctx context.Context, key string, fields map[string]string) error {
	if m.hreplaceFn != nil {
		return m.hreplaceFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func invoiceSchema(t *testing.T) domdoc.Schema {
	t.Helper()
	sc, err := domdoc.NewSchema("invoice",
		[]domdoc.FieldDef{
			{Name: "entity", Kind: domdoc.KindText, Mandatory: true},
			{Name: "total_discount", Kind: domdoc.KindNumber},
			{Name: "discount_processed", Kind: domdoc.KindBool},
		},
		map[string][]domdoc.FieldDef{
			"item": {
				{Name: "item", Kind: domdoc.KindText},
				{Name: "discount_amount", Kind: domdoc.KindNumber},
			},
		},
	)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return sc
}

func makeInvoice(t *testing.T, lines ...map[string]any) domdoc.Parent {
	t.Helper()
	doc, err := domdoc.New("inv-1", "invoice",
		map[string]any{"entity": "C100"},
		map[string][]map[string]any{"item": lines},
	)
	if err != nil {
		t.Fatalf("domdoc.New: %v", err)
	}
	return doc
}
