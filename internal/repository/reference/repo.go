// Package reference maps human codes (e.g. currency "GBP") to internal identifiers.
package reference

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/rollup/internal/db"
	"github.com/kailas-cloud/rollup/internal/domain"
)

// store is the consumer interface for reference lookups (ISP).
type store interface {
	HGet(ctx context.Context, key, field string) (string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo keeps one hash per reference type: field = code, value = identifier.
type Repo struct {
	store store
}

// New creates a reference repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Resolve returns the identifier registered for code, or domain.ErrNotFound.
func (r *Repo) Resolve(ctx context.Context, refType, code string) (string, error) {
	key := domain.ReferenceKey(refType)
	id, err := r.store.HGet(ctx, key, code)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("hget %s %s: %w", key, code, err)
	}
	if id == "" {
		return "", domain.ErrNotFound
	}
	return id, nil
}

// Put registers or replaces the identifier of code.
func (r *Repo) Put(ctx context.Context, refType, code, id string) error {
	key := domain.ReferenceKey(refType)
	if err := r.store.HSet(ctx, key, map[string]string{code: id}); err != nil {
		return fmt.Errorf("hset %s %s: %w", key, code, err)
	}
	return nil
}

// List returns every code registered for refType.
func (r *Repo) List(ctx context.Context, refType string) (map[string]string, error) {
	key := domain.ReferenceKey(refType)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return m, nil
}
