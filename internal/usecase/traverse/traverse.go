// Package traverse drives a paged query under an operation budget and collects the
// projected records.
package traverse

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	domquery "github.com/kailas-cloud/rollup/internal/domain/query"
	"github.com/kailas-cloud/rollup/internal/logger"
	"github.com/kailas-cloud/rollup/internal/metrics"
)

// Pages yields result pages in order. ok=false ends the traversal.
type Pages interface {
	Next(ctx context.Context) (domquery.Page, bool, error)
}

// Budget answers whether enough operation units remain.
type Budget interface {
	HasCapacity(threshold int64) bool
	Remaining() int64
}

// Reason explains why a traversal ended.
type Reason string

// Traversal outcomes.
const (
	ReasonExhausted Reason = "exhausted"
	ReasonBudget    Reason = "budget"
)

// Cursor addresses the first row that was not processed.
type Cursor struct {
	Page int `json:"page"`
	Row  int `json:"row"`
}

// Result is the outcome of one traversal. Records are in page then row order.
// StoppedAt is nil when Complete is true.
type Result[T any] struct {
	Records      []T
	Complete     bool
	Reason       Reason
	PagesVisited int
	StoppedAt    *Cursor
}

// Options name the traversal for logs and metrics.
type Options struct {
	Operation string
	Threshold int64
}

// Collect visits every row of every page, checking the budget before each row. The first
// check that fails ends the whole traversal: records gathered so far are returned with
// Complete=false. Page fetch errors and context cancellation are returned as errors.
func Collect[T any](
	ctx context.Context,
	pages Pages,
	budget Budget,
	opts Options,
	project func(domquery.Row) T,
) (Result[T], error) {
	log := logger.FromContext(ctx).With(zap.String("operation", opts.Operation))
	res := Result[T]{Records: []T{}}

	for {
		page, ok, err := pages.Next(ctx)
		if err != nil {
			return res, fmt.Errorf("traverse %s: %w", opts.Operation, err)
		}
		if !ok {
			break
		}
		res.PagesVisited++

		for i, row := range page.Rows() {
			if !budget.HasCapacity(opts.Threshold) {
				res.Reason = ReasonBudget
				res.StoppedAt = &Cursor{Page: page.Index(), Row: i}
				metrics.BudgetStopsTotal.WithLabelValues(opts.Operation).Inc()
				metrics.BudgetRemaining.WithLabelValues(opts.Operation).Set(float64(budget.Remaining()))
				log.Warn("operation budget low, stopping traversal",
					zap.Int("page", page.Index()),
					zap.Int("row", i),
					zap.Int64("remaining", budget.Remaining()),
					zap.Int64("threshold", opts.Threshold),
					zap.Int("collected", len(res.Records)),
				)
				return res, nil
			}
			res.Records = append(res.Records, project(row))
		}
	}

	res.Complete = true
	res.Reason = ReasonExhausted
	metrics.BudgetRemaining.WithLabelValues(opts.Operation).Set(float64(budget.Remaining()))
	return res, nil
}
