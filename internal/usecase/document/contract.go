package document

import (
	"context"

	domdoc "github.com/kailas-cloud/rollup/internal/domain/document"
)

// Repository defines the storage contract for parent documents.
type Repository interface {
	Get(ctx context.Context, ref domdoc.Ref) (domdoc.Parent, error)
	Save(ctx context.Context, doc *domdoc.Parent) (created bool, err error)
	PartialUpdate(ctx context.Context, ref domdoc.Ref, values map[string]any) error
}

// Hook runs after a document change has been committed. Hooks own their error handling;
// nothing they do can fail the save that fired them.
type Hook interface {
	AfterSubmit(ctx context.Context, kind domdoc.EventKind, doc *domdoc.Parent)
}
