// Package metered decorates a db.Store so every chargeable call debits the operation
// meter carried in the request context.
package metered

import (
	"context"

	"github.com/kailas-cloud/rollup/internal/db"
	"github.com/kailas-cloud/rollup/internal/domain/query/filter"
	"github.com/kailas-cloud/rollup/internal/domain/quota"
	"github.com/kailas-cloud/rollup/internal/metrics"
)

// Costs is the unit price of each class of storage call.
type Costs struct {
	Read   int64 // HGETALL, GET, EXISTS
	Lookup int64 // HGET
	Write  int64 // HSET, DEL, one MULTI replace; pipelined HSET is charged per item
	Search int64 // one FT.SEARCH page or count
}

// DefaultCosts mirrors the governance prices of the hosting platform.
func DefaultCosts() Costs {
	return Costs{Read: 5, Lookup: 1, Write: 10, Search: 5}
}

// Store charges the context meter before delegating. Index lifecycle and the usage
// ledger counters (INCRBY, EXPIRE) are free.
type Store struct {
	db.Store
	costs Costs
}

// New wraps inner.
func New(inner db.Store, costs Costs) *Store {
	return &Store{Store: inner, costs: costs}
}

func (s *Store) charge(ctx context.Context, op string, units int64) {
	if units <= 0 {
		return
	}
	m := quota.FromContext(ctx)
	if m == nil {
		return
	}
	m.Charge(units)
	metrics.UnitsConsumedTotal.WithLabelValues(op).Add(float64(units))
}

// HSet charges one write.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	s.charge(ctx, "write", s.costs.Write)
	return s.Store.HSet(ctx, key, fields)
}

// HReplace charges one write.
func (s *Store) HReplace(ctx context.Context, key string, fields map[string]string) error {
	s.charge(ctx, "write", s.costs.Write)
	return s.Store.HReplace(ctx, key, fields)
}

// HSetMulti charges one write per item.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	s.charge(ctx, "write", s.costs.Write*int64(len(items)))
	return s.Store.HSetMulti(ctx, items)
}

// HGetAll charges one read.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.charge(ctx, "read", s.costs.Read)
	return s.Store.HGetAll(ctx, key)
}

// HGet charges one lookup.
func (s *Store) HGet(ctx context.Context, key, field string) (string, error) {
	s.charge(ctx, "lookup", s.costs.Lookup)
	return s.Store.HGet(ctx, key, field)
}

// Del charges one write.
func (s *Store) Del(ctx context.Context, key string) error {
	s.charge(ctx, "write", s.costs.Write)
	return s.Store.Del(ctx, key)
}

// Exists charges one read.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.charge(ctx, "read", s.costs.Read)
	return s.Store.Exists(ctx, key)
}

// Get charges one read.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.charge(ctx, "read", s.costs.Read)
	return s.Store.Get(ctx, key)
}

// SearchPage charges one search.
func (s *Store) SearchPage(ctx context.Context, q *db.PageQuery) (*db.SearchResult, error) {
	s.charge(ctx, "search", s.costs.Search)
	return s.Store.SearchPage(ctx, q)
}

// SearchCount charges one search.
func (s *Store) SearchCount(ctx context.Context, index string, filters filter.Expression) (int, error) {
	s.charge(ctx, "search", s.costs.Search)
	return s.Store.SearchCount(ctx, index, filters)
}
