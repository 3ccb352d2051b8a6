package record

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/kailas-cloud/rollup/internal/db"
	"github.com/kailas-cloud/rollup/internal/domain"
	"github.com/kailas-cloud/rollup/internal/domain/query"
	"github.com/kailas-cloud/rollup/internal/domain/query/filter"
)

type mockStore struct {
	hsetFn        func(ctx context.Context, key string, fields map[string]string) error
	hgetFn        func(ctx context.Context, key, field string) (string, error)
	hsetMultiFn   func(ctx context.Context, items []db.HashSetItem) error
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	searchPageFn  func(ctx context.Context, q *db.PageQuery) (*db.SearchResult, error)
	searchCountFn func(ctx context.Context, index string, filters filter.Expression) (int, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGet(ctx context.Context, key, field string) (string, error) {
	if m.hgetFn != nil {
		return m.hgetFn(ctx, key, field)
	}
	return "", db.ErrKeyNotFound
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchPage(ctx context.Context, q *db.PageQuery) (*db.SearchResult, error) {
	if m.searchPageFn != nil {
		return m.searchPageFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index string, filters filter.Expression) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, filters)
	}
	return 0, nil
}

var salesOrderLayout = Layout{
	RecordType: "sales_order",
	Tags:       []string{"status", "currency"},
	Numerics:   []string{"total", "trandate"},
}

func TestEnsureIndex_Creates(t *testing.T) {
	var created *db.IndexDefinition
	ms := &mockStore{
		createIndexFn: func(_ context.Context, def *db.IndexDefinition) error {
			created = def
			return nil
		},
	}
	if err := New(ms).EnsureIndex(context.Background(), salesOrderLayout); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected FT.CREATE")
	}
	if created.Name != "rollup:sales_order:idx" {
		t.Errorf("index name = %q", created.Name)
	}
	if created.String() != salesOrderSchema {
		t.Errorf("definition =\n%s\nwant\n%s", created.String(), salesOrderSchema)
	}
}

const salesOrderSchema = "FT.CREATE rollup:sales_order:idx ON HASH PREFIX rollup:rec:sales_order: SCHEMA " +
	"id TAG SORTABLE status TAG currency TAG total NUMERIC trandate NUMERIC"

func TestEnsureIndex_SameLayoutIsNoop(t *testing.T) {
	ms := &mockStore{
		indexExistsFn: func(context.Context, string) (bool, error) { return true, nil },
		hgetFn: func(_ context.Context, key, field string) (string, error) {
			if key != "rollup:sales_order:idx:layout" || field != "schema" {
				t.Errorf("HGET %s %s", key, field)
			}
			return salesOrderSchema, nil
		},
		createIndexFn: func(context.Context, *db.IndexDefinition) error {
			t.Fatal("CreateIndex must not be called")
			return nil
		},
		dropIndexFn: func(context.Context, string) error {
			t.Fatal("DropIndex must not be called")
			return nil
		},
		hsetFn: func(context.Context, string, map[string]string) error {
			t.Fatal("layout must not be rewritten")
			return nil
		},
	}
	if err := New(ms).EnsureIndex(context.Background(), salesOrderLayout); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_UntrackedIndexIsAdopted(t *testing.T) {
	var saved map[string]string
	ms := &mockStore{
		indexExistsFn: func(context.Context, string) (bool, error) { return true, nil },
		createIndexFn: func(context.Context, *db.IndexDefinition) error {
			t.Fatal("CreateIndex must not be called")
			return nil
		},
		hsetFn: func(_ context.Context, _ string, fields map[string]string) error {
			saved = fields
			return nil
		},
	}
	if err := New(ms).EnsureIndex(context.Background(), salesOrderLayout); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved["schema"] != salesOrderSchema {
		t.Errorf("saved layout = %q", saved["schema"])
	}
}

func TestEnsureIndex_ChangedLayoutRebuilds(t *testing.T) {
	var calls []string
	var saved string
	ms := &mockStore{
		indexExistsFn: func(context.Context, string) (bool, error) { return true, nil },
		hgetFn: func(context.Context, string, string) (string, error) {
			return "FT.CREATE rollup:sales_order:idx ON HASH PREFIX rollup:rec:sales_order: SCHEMA id TAG SORTABLE status TAG", nil
		},
		dropIndexFn: func(_ context.Context, name string) error {
			calls = append(calls, "drop "+name)
			return nil
		},
		createIndexFn: func(_ context.Context, def *db.IndexDefinition) error {
			calls = append(calls, "create "+def.Name)
			return nil
		},
		hsetFn: func(_ context.Context, _ string, fields map[string]string) error {
			calls = append(calls, "save")
			saved = fields["schema"]
			return nil
		},
	}
	if err := New(ms).EnsureIndex(context.Background(), salesOrderLayout); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"drop rollup:sales_order:idx", "create rollup:sales_order:idx", "save"}
	if !slices.Equal(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
	if saved != salesOrderSchema {
		t.Errorf("saved layout = %q", saved)
	}
}

func TestEnsureIndex_DropFailure(t *testing.T) {
	boom := errors.New("boom")
	ms := &mockStore{
		indexExistsFn: func(context.Context, string) (bool, error) { return true, nil },
		hgetFn:        func(context.Context, string, string) (string, error) { return "stale", nil },
		dropIndexFn:   func(context.Context, string) error { return boom },
		createIndexFn: func(context.Context, *db.IndexDefinition) error {
			t.Fatal("CreateIndex must not be called after a failed drop")
			return nil
		},
	}
	if err := New(ms).EnsureIndex(context.Background(), salesOrderLayout); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestEnsureIndex_RaceLostIsOK(t *testing.T) {
	ms := &mockStore{
		createIndexFn: func(context.Context, *db.IndexDefinition) error { return db.ErrIndexExists },
	}
	if err := New(ms).EnsureIndex(context.Background(), salesOrderLayout); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPut_EncodesColumns(t *testing.T) {
	var got []db.HashSetItem
	ms := &mockStore{
		hsetMultiFn: func(_ context.Context, items []db.HashSetItem) error {
			got = items
			return nil
		},
	}
	row := query.NewRow("so-9", map[string]query.Value{
		"tranid": query.TextValue("SO9"),
		"status": query.CodedValue("SalesOrd:A", "Pending Approval"),
		"total":  query.NumberValue(12500.5),
	})
	if err := New(ms).Put(context.Background(), "sales_order", row); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Key != "rollup:rec:sales_order:so-9" {
		t.Fatalf("items = %+v", got)
	}
	f := got[0].Fields
	if f["id"] != "so-9" || f["tranid"] != "SO9" || f["status"] != "SalesOrd:A" ||
		f["status_display"] != "Pending Approval" || f["total"] != "12500.5" {
		t.Errorf("fields = %v", f)
	}
}

func TestPut_RequiresID(t *testing.T) {
	err := New(&mockStore{}).Put(context.Background(), "sales_order", query.NewRow("", nil))
	if !errors.Is(err, domain.ErrInvalidSchema) {
		t.Errorf("err = %v, want ErrInvalidSchema", err)
	}
}

func TestPage_DecodesRows(t *testing.T) {
	cols := []query.Column{
		{Name: "tranid", Kind: query.ColumnText},
		{Name: "entity", Kind: query.ColumnCoded},
		{Name: "total", Kind: query.ColumnNumber},
	}
	ms := &mockStore{
		searchPageFn: func(_ context.Context, q *db.PageQuery) (*db.SearchResult, error) {
			if q.Index != "rollup:sales_order:idx" || q.SortBy != "id" || q.Offset != 4000 || q.Limit != 4000 {
				t.Errorf("query = %+v", q)
			}
			wantFields := []string{"id", "tranid", "entity", "entity_display", "total"}
			if !slices.Equal(q.ReturnFields, wantFields) {
				t.Errorf("return fields = %v", q.ReturnFields)
			}
			return &db.SearchResult{Total: 4001, Entries: []db.SearchEntry{
				{Key: "rollup:rec:sales_order:so-1", Fields: map[string]string{
					"id": "so-1", "tranid": "SO1", "entity": "77", "entity_display": "Acme Ltd", "total": "15000",
				}},
				{Key: "rollup:rec:sales_order:so-2", Fields: map[string]string{"total": "n/a"}},
			}}, nil
		},
	}

	rows, err := New(ms).Page(context.Background(), query.PageRequest{
		RecordType: "sales_order", Offset: 4000, Limit: 4000, Columns: cols,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	r0 := rows[0]
	if r0.ID() != "so-1" || r0.Text("tranid") != "SO1" || r0.Text("entity") != "Acme Ltd" ||
		r0.Code("entity") != "77" || r0.Number("total") != 15000 {
		t.Errorf("row 0 = %+v", r0)
	}
	if rows[1].ID() != "so-2" {
		t.Errorf("row 1 id from key = %q", rows[1].ID())
	}
	if rows[1].Number("total") != 0 {
		t.Errorf("unparsable number must read 0, got %v", rows[1].Number("total"))
	}
}

func TestCount(t *testing.T) {
	ms := &mockStore{
		searchCountFn: func(_ context.Context, index string, _ filter.Expression) (int, error) {
			if index != "rollup:sales_order:idx" {
				t.Errorf("index = %q", index)
			}
			return 8001, nil
		},
	}
	n, err := New(ms).Count(context.Background(), "sales_order", filter.Expression{})
	if err != nil || n != 8001 {
		t.Errorf("Count = %d, %v", n, err)
	}
}
