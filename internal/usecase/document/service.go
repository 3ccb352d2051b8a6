// Package document is the document service: validated saves and partial updates that
// fire after-submit hooks.
package document

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/rollup/internal/domain"
	domdoc "github.com/kailas-cloud/rollup/internal/domain/document"
)

type dispatchKey struct{}

// Service saves documents and dispatches after-submit hooks. Saves and updates of one
// document are serialised.
type Service struct {
	repo    Repository
	schemas map[string]domdoc.Schema
	hooks   []Hook
	locks   keyedLock
}

// New creates a document service. Only record types with a schema are accepted.
func New(repo Repository, schemas ...domdoc.Schema) *Service {
	m := make(map[string]domdoc.Schema, len(schemas))
	for _, sc := range schemas {
		m[sc.RecordType()] = sc
	}
	return &Service{repo: repo, schemas: m}
}

// Register adds an after-submit hook. Not safe to call once the service is serving.
func (s *Service) Register(h Hook) {
	s.hooks = append(s.hooks, h)
}

func (s *Service) schema(recordType string) (domdoc.Schema, error) {
	sc, ok := s.schemas[recordType]
	if !ok {
		return domdoc.Schema{}, fmt.Errorf("record type %q: %w", recordType, domain.ErrNotFound)
	}
	return sc, nil
}

// Get loads a document.
func (s *Service) Get(ctx context.Context, ref domdoc.Ref) (domdoc.Parent, error) {
	if _, err := s.schema(ref.Type); err != nil {
		return domdoc.Parent{}, err
	}
	doc, err := s.repo.Get(ctx, ref)
	if err != nil {
		return domdoc.Parent{}, fmt.Errorf("get document %s: %w", ref, err)
	}
	return doc, nil
}

// Save validates and stores a full document, then fires create or edit hooks.
// Returns true if the document was created.
func (s *Service) Save(ctx context.Context, doc *domdoc.Parent) (bool, error) {
	sc, err := s.schema(doc.Type())
	if err != nil {
		return false, err
	}
	if err := sc.Validate(doc); err != nil {
		return false, err
	}
	if err := sc.CheckMandatory(doc.Fields()); err != nil {
		return false, err
	}

	ref := doc.Ref()
	if inDispatch(ctx, ref) {
		return false, fmt.Errorf("save %s from its own hook: %w", ref, domain.ErrReentrantWrite)
	}
	unlock := s.locks.lock(ref.String())
	defer unlock()

	created, err := s.repo.Save(ctx, doc)
	if err != nil {
		return false, fmt.Errorf("save document %s: %w", ref, err)
	}

	kind := domdoc.EventUpdate
	if created {
		kind = domdoc.EventCreate
	}
	s.dispatch(ctx, kind, doc)
	return created, nil
}

// PartialUpdate writes only the given body fields. With IgnoreMandatoryFields unset the
// merged document must still satisfy the mandatory fields. With EnableSourcing set the
// edit hooks fire afterwards; doing that from inside a hook of the same document is
// rejected with ErrReentrantWrite.
func (s *Service) PartialUpdate(
	ctx context.Context, ref domdoc.Ref, values map[string]any, opts domdoc.UpdateOptions,
) error {
	sc, err := s.schema(ref.Type)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	if err := sc.RequireBody(sortedKeys(values)...); err != nil {
		return err
	}
	if err := sc.CheckReferences(values); err != nil {
		return err
	}

	nested := inDispatch(ctx, ref)
	if nested && opts.EnableSourcing {
		return fmt.Errorf("sourced update of %s from its own hook: %w", ref, domain.ErrReentrantWrite)
	}
	// A hook of ref already holds its lock.
	if !nested {
		unlock := s.locks.lock(ref.String())
		defer unlock()
	}

	if !opts.IgnoreMandatoryFields {
		doc, err := s.repo.Get(ctx, ref)
		if err != nil {
			return fmt.Errorf("get document %s: %w", ref, err)
		}
		merged := doc.WithFields(values)
		if err := sc.CheckMandatory(merged.Fields()); err != nil {
			return err
		}
	}

	if err := s.repo.PartialUpdate(ctx, ref, values); err != nil {
		return fmt.Errorf("partial update %s: %w", ref, err)
	}

	if opts.EnableSourcing && len(s.hooks) > 0 {
		doc, err := s.repo.Get(ctx, ref)
		if err != nil {
			return fmt.Errorf("reload document %s: %w", ref, err)
		}
		s.dispatch(ctx, domdoc.EventUpdate, &doc)
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, kind domdoc.EventKind, doc *domdoc.Parent) {
	if len(s.hooks) == 0 {
		return
	}
	hctx := withDispatch(ctx, doc.Ref())
	for _, h := range s.hooks {
		h.AfterSubmit(hctx, kind, doc)
	}
}

func withDispatch(ctx context.Context, ref domdoc.Ref) context.Context {
	prev, _ := ctx.Value(dispatchKey{}).(map[string]bool)
	next := make(map[string]bool, len(prev)+1)
	for k := range prev {
		next[k] = true
	}
	next[ref.String()] = true
	return context.WithValue(ctx, dispatchKey{}, next)
}

func inDispatch(ctx context.Context, ref domdoc.Ref) bool {
	m, _ := ctx.Value(dispatchKey{}).(map[string]bool)
	return m[ref.String()]
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
