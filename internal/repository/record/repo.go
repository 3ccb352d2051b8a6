// Package record stores queryable records (e.g. sales orders) as indexed hashes and
// serves bounded pages of filter queries over them.
package record

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/rollup/internal/db"
	"github.com/kailas-cloud/rollup/internal/domain"
	"github.com/kailas-cloud/rollup/internal/domain/query"
	"github.com/kailas-cloud/rollup/internal/domain/query/filter"
)

// IDField is the sortable record id stored in every record hash. Pages are ordered by it.
const IDField = "id"

// layoutField holds the FT.CREATE line an index was last built from.
const layoutField = "schema"

// store is the consumer interface for records (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchPage(ctx context.Context, q *db.PageQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string, filters filter.Expression) (int, error)
}

// Layout declares the filterable columns of one record type.
type Layout struct {
	RecordType string
	Tags       []string
	Numerics   []string
}

// Repo implements the record source of the paginated query executor.
type Repo struct {
	store store
}

// New creates a record repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

func buildIndex(l Layout) (*db.IndexDefinition, error) {
	b := db.NewIndex(domain.RecordIndex(l.RecordType)).
		Prefix(domain.RecordPrefix(l.RecordType)).
		SortableTag(IDField)
	for _, name := range l.Tags {
		b.Tag(name)
	}
	for _, name := range l.Numerics {
		b.Numeric(name)
	}
	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("record index %s: %w", l.RecordType, err)
	}
	return def, nil
}

// EnsureIndex creates the FT index of a record type. An existing index built from a
// different layout is dropped and rebuilt; the record hashes survive and are re-indexed.
func (r *Repo) EnsureIndex(ctx context.Context, l Layout) error {
	def, err := buildIndex(l)
	if err != nil {
		return err
	}
	want := def.String()
	layoutKey := domain.RecordIndexLayout(l.RecordType)

	exists, err := r.store.IndexExists(ctx, def.Name)
	if err != nil {
		return fmt.Errorf("index exists %s: %w", def.Name, err)
	}
	if exists {
		have, err := r.store.HGet(ctx, layoutKey, layoutField)
		switch {
		case errors.Is(err, db.ErrKeyNotFound):
			// Built before layouts were tracked; adopt it as is.
			return r.saveLayout(ctx, layoutKey, want)
		case err != nil:
			return fmt.Errorf("index layout %s: %w", def.Name, err)
		case have == want:
			return nil
		}
		if err := r.store.DropIndex(ctx, def.Name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("drop stale index %s: %w", def.Name, err)
		}
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return r.saveLayout(ctx, layoutKey, want)
}

func (r *Repo) saveLayout(ctx context.Context, key, layout string) error {
	if err := r.store.HSet(ctx, key, map[string]string{layoutField: layout}); err != nil {
		return fmt.Errorf("save index layout: %w", err)
	}
	return nil
}

// Put stores rows as record hashes in one pipeline.
func (r *Repo) Put(ctx context.Context, recordType string, rows ...query.Row) error {
	items := make([]db.HashSetItem, 0, len(rows))
	for _, row := range rows {
		if row.ID() == "" {
			return fmt.Errorf("record id is required: %w", domain.ErrInvalidSchema)
		}
		items = append(items, db.HashSetItem{
			Key:    domain.RecordKey(recordType, row.ID()),
			Fields: encodeRow(row),
		})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("put %d %s records: %w", len(items), recordType, err)
	}
	return nil
}

// Count returns the number of records matching filters.
func (r *Repo) Count(ctx context.Context, recordType string, filters filter.Expression) (int, error) {
	n, err := r.store.SearchCount(ctx, domain.RecordIndex(recordType), filters)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", recordType, err)
	}
	return n, nil
}

// Page fetches rows [Offset, Offset+Limit) in id order.
func (r *Repo) Page(ctx context.Context, req query.PageRequest) ([]query.Row, error) {
	fields := []string{IDField}
	for _, c := range req.Columns {
		fields = append(fields, c.StoredFields()...)
	}

	res, err := r.store.SearchPage(ctx, &db.PageQuery{
		Index:        domain.RecordIndex(req.RecordType),
		Filters:      req.Filters,
		Offset:       req.Offset,
		Limit:        req.Limit,
		SortBy:       IDField,
		ReturnFields: fields,
	})
	if err != nil {
		return nil, fmt.Errorf("page %s at %d: %w", req.RecordType, req.Offset, err)
	}

	prefix := domain.RecordPrefix(req.RecordType)
	rows := make([]query.Row, 0, len(res.Entries))
	for _, e := range res.Entries {
		id := e.Fields[IDField]
		if id == "" {
			id = strings.TrimPrefix(e.Key, prefix)
		}
		rows = append(rows, decodeRow(id, e.Fields, req.Columns))
	}
	return rows, nil
}

func encodeRow(row query.Row) map[string]string {
	m := map[string]string{IDField: row.ID()}
	for name, v := range row.Values() {
		switch v.Kind() {
		case query.ColumnCoded:
			m[name] = v.Code()
			m[name+query.DisplaySuffix] = v.Text()
		case query.ColumnNumber:
			m[name] = strconv.FormatFloat(v.Number(), 'f', -1, 64)
		default:
			m[name] = v.Text()
		}
	}
	return m
}

func decodeRow(id string, fields map[string]string, cols []query.Column) query.Row {
	values := make(map[string]query.Value, len(cols))
	for _, c := range cols {
		raw, ok := fields[c.Name]
		if !ok {
			continue
		}
		switch c.Kind {
		case query.ColumnCoded:
			values[c.Name] = query.CodedValue(raw, fields[c.Name+query.DisplaySuffix])
		case query.ColumnNumber:
			f, _ := strconv.ParseFloat(raw, 64)
			values[c.Name] = query.NumberValue(f)
		default:
			values[c.Name] = query.TextValue(raw)
		}
	}
	return query.NewRow(id, values)
}
