package rollup

import (
	"context"

	domdoc "github.com/kailas-cloud/rollup/internal/domain/document"
)

// DocumentReader loads the current state of a parent document.
type DocumentReader interface {
	Get(ctx context.Context, ref domdoc.Ref) (domdoc.Parent, error)
}
