package query

import (
	"context"

	domquery "github.com/kailas-cloud/rollup/internal/domain/query"
	"github.com/kailas-cloud/rollup/internal/domain/query/filter"
)

// RecordSource counts and pages records matching a compiled filter.
type RecordSource interface {
	Count(ctx context.Context, recordType string, filters filter.Expression) (int, error)
	Page(ctx context.Context, req domquery.PageRequest) ([]domquery.Row, error)
}

// Resolver maps a reference code to its identifier. A code without a match yields
// domain.ErrNotFound.
type Resolver interface {
	Resolve(ctx context.Context, refType, code string) (string, error)
}
