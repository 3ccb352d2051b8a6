// Package query runs criteria against the record store as a lazy sequence of bounded pages.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/rollup/internal/domain"
	domquery "github.com/kailas-cloud/rollup/internal/domain/query"
	"github.com/kailas-cloud/rollup/internal/domain/query/filter"
)

// MaxPageSize is the largest page the platform returns in one fetch.
const MaxPageSize = 4000

// ClampPageSize maps a requested size into [1, MaxPageSize]; non-positive means maximum.
func ClampPageSize(n int) int {
	if n <= 0 || n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// Executor compiles criteria and opens pagers over the record source.
type Executor struct {
	src      RecordSource
	resolver Resolver
}

// NewExecutor creates an Executor.
func NewExecutor(src RecordSource, resolver Resolver) *Executor {
	return &Executor{src: src, resolver: resolver}
}

// Compile resolves every reference in c and builds the conjunctive filter. Negated
// predicates land in the must-not group.
// Resolution failures come back as *domain.CriteriaResolutionError.
func (e *Executor) Compile(ctx context.Context, c domquery.Criteria) (filter.Expression, error) {
	var must, mustNot []filter.Condition
	for _, p := range c.Predicates() {
		cond, err := p.Condition(func(ref domquery.Reference) (string, error) {
			return e.resolve(ctx, p.Field(), ref)
		})
		if err != nil {
			return filter.Expression{}, err
		}
		if p.Negated() {
			mustNot = append(mustNot, cond)
		} else {
			must = append(must, cond)
		}
	}

	expr, err := filter.NewExpression(must, mustNot)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("compile %s criteria: %w", c.RecordType(), err)
	}
	return expr, nil
}

func (e *Executor) resolve(ctx context.Context, field string, ref domquery.Reference) (string, error) {
	if e.resolver == nil {
		return "", domain.NewCriteriaResolution(field, ref.Type, ref.Code, errors.New("no resolver configured"))
	}
	id, err := e.resolver.Resolve(ctx, ref.Type, ref.Code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.NewCriteriaResolution(field, ref.Type, ref.Code, nil)
		}
		return "", domain.NewCriteriaResolution(field, ref.Type, ref.Code, err)
	}
	return id, nil
}

// Execute compiles c and returns a pager over its result set. Nothing is fetched
// besides the initial count; pages are pulled by Pager.Next.
func (e *Executor) Execute(ctx context.Context, c domquery.Criteria, pageSize int) (*Pager, error) {
	expr, err := e.Compile(ctx, c)
	if err != nil {
		return nil, err
	}

	total, err := e.src.Count(ctx, c.RecordType(), expr)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", c.RecordType(), err)
	}

	size := ClampPageSize(pageSize)
	return &Pager{
		src:       e.src,
		criteria:  c,
		filters:   expr,
		pageSize:  size,
		total:     total,
		pageCount: (total + size - 1) / size,
	}, nil
}
