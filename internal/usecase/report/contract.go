package report

import (
	"context"

	domquery "github.com/kailas-cloud/rollup/internal/domain/query"
	"github.com/kailas-cloud/rollup/internal/usecase/traverse"
)

// Executor opens a paged query over criteria.
type Executor interface {
	Open(ctx context.Context, c domquery.Criteria, pageSize int) (traverse.Pages, error)
}

// Ledger reserves each run's meter limit and settles it with what the run consumed.
type Ledger interface {
	Reserve(perInvocation int64) int64
	Settle(reserved, used int64)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, c domquery.Criteria, pageSize int) (traverse.Pages, error)

// Open calls f.
func (f ExecutorFunc) Open(ctx context.Context, c domquery.Criteria, pageSize int) (traverse.Pages, error) {
	return f(ctx, c, pageSize)
}
