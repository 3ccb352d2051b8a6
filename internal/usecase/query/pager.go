package query

import (
	"context"
	"fmt"

	domquery "github.com/kailas-cloud/rollup/internal/domain/query"
	"github.com/kailas-cloud/rollup/internal/domain/query/filter"
	"github.com/kailas-cloud/rollup/internal/metrics"
)

// Pager is a finite, single-pass, forward-only sequence of result pages. Each Next
// performs one fetch. Not safe for concurrent use.
type Pager struct {
	src       RecordSource
	criteria  domquery.Criteria
	filters   filter.Expression
	pageSize  int
	total     int
	pageCount int
	next      int
	done      bool
}

// Total returns the result count observed when the pager was opened.
func (p *Pager) Total() int { return p.total }

// PageSize returns the clamped page size.
func (p *Pager) PageSize() int { return p.pageSize }

// PageCount returns ceil(Total / PageSize).
func (p *Pager) PageCount() int { return p.pageCount }

// Next fetches the next page. ok is false once the sequence is exhausted; it stays false.
func (p *Pager) Next(ctx context.Context) (domquery.Page, bool, error) {
	if p.done || p.next >= p.pageCount {
		p.done = true
		return domquery.Page{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return domquery.Page{}, false, err
	}

	idx := p.next
	rows, err := p.src.Page(ctx, domquery.PageRequest{
		RecordType: p.criteria.RecordType(),
		Filters:    p.filters,
		Offset:     idx * p.pageSize,
		Limit:      p.pageSize,
		Columns:    p.criteria.Columns(),
	})
	if err != nil {
		return domquery.Page{}, false, fmt.Errorf("fetch page %d of %d: %w", idx, p.pageCount, err)
	}
	metrics.PagesFetchedTotal.WithLabelValues(p.criteria.RecordType()).Inc()

	p.next++
	// The set shrank since the count: nothing past this point.
	if len(rows) == 0 {
		p.done = true
		return domquery.Page{}, false, nil
	}
	return domquery.NewPage(idx, rows), true, nil
}
