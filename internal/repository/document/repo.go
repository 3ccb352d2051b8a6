package document

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/rollup/internal/domain"
	domdoc "github.com/kailas-cloud/rollup/internal/domain/document"
)

// store is the consumer interface for parent documents (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HReplace(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Repo stores parent documents as flat Redis hashes.
type Repo struct {
	store   store
	schemas map[string]domdoc.Schema
}

// New creates a document repository. Schemas drive value decoding per record type;
// documents of other types come back with string values.
func New(s store, schemas ...domdoc.Schema) *Repo {
	m := make(map[string]domdoc.Schema, len(schemas))
	for _, sc := range schemas {
		m[sc.RecordType()] = sc
	}
	return &Repo{store: s, schemas: m}
}

func (r *Repo) schemaFor(docType string) *domdoc.Schema {
	if sc, ok := r.schemas[docType]; ok {
		return &sc
	}
	return nil
}

// Get loads a parent document with all its sublists.
func (r *Repo) Get(ctx context.Context, ref domdoc.Ref) (domdoc.Parent, error) {
	key := domain.DocumentKey(ref.Type, ref.ID)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domdoc.Parent{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domdoc.Parent{}, domain.ErrDocumentNotFound
	}
	return parseHashFields(ref, m, r.schemaFor(ref.Type)), nil
}

// Save replaces the stored document. Returns true if it did not exist before.
// The whole hash is swapped atomically, so lines removed since the last save do not
// survive as stale fields and a failed write leaves the previous version intact.
func (r *Repo) Save(ctx context.Context, doc *domdoc.Parent) (bool, error) {
	key := domain.DocumentKey(doc.Type(), doc.ID())

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}

	if err := r.store.HReplace(ctx, key, buildHashFields(doc)); err != nil {
		return false, fmt.Errorf("replace %s: %w", key, err)
	}
	return !exists, nil
}

// PartialUpdate writes only the given body fields of an existing document.
func (r *Repo) PartialUpdate(ctx context.Context, ref domdoc.Ref, values map[string]any) error {
	key := domain.DocumentKey(ref.Type, ref.ID)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrDocumentNotFound
	}

	if err := r.store.HSet(ctx, key, buildUpdateFields(values)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}
