package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/rollup/internal/db"
	"github.com/kailas-cloud/rollup/internal/domain"
)

type mockStore struct {
	hgetFn    func(ctx context.Context, key, field string) (string, error)
	hsetFn    func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn func(ctx context.Context, key string) (map[string]string, error)
}

func (m *mockStore) HGet(ctx context.Context, key, field string) (string, error) {
	return m.hgetFn(ctx, key, field)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	return m.hsetFn(ctx, key, fields)
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return m.hgetAllFn(ctx, key)
}

func TestResolve(t *testing.T) {
	ms := &mockStore{
		hgetFn: func(_ context.Context, key, field string) (string, error) {
			if key != "rollup:ref:currency" {
				t.Errorf("key = %q", key)
			}
			switch field {
			case "GBP":
				return "2", nil
			case "EMPTY":
				return "", nil
			case "DOWN":
				return "", errors.New("connection reset")
			default:
				return "", db.ErrKeyNotFound
			}
		},
	}
	r := New(ms)
	ctx := context.Background()

	id, err := r.Resolve(ctx, "currency", "GBP")
	if err != nil || id != "2" {
		t.Errorf("Resolve(GBP) = %q, %v", id, err)
	}
	if _, err := r.Resolve(ctx, "currency", "XYZ"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Resolve(XYZ) err = %v, want ErrNotFound", err)
	}
	if _, err := r.Resolve(ctx, "currency", "EMPTY"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Resolve(EMPTY) err = %v, want ErrNotFound", err)
	}
	_, err = r.Resolve(ctx, "currency", "DOWN")
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Resolve(DOWN) err = %v, want transport error", err)
	}
}

func TestPutAndList(t *testing.T) {
	data := map[string]string{}
	ms := &mockStore{
		hsetFn: func(_ context.Context, _ string, fields map[string]string) error {
			for k, v := range fields {
				data[k] = v
			}
			return nil
		},
		hgetAllFn: func(context.Context, string) (map[string]string, error) { return data, nil },
	}
	r := New(ms)
	if err := r.Put(context.Background(), "currency", "GBP", "2"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	all, err := r.List(context.Background(), "currency")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if all["GBP"] != "2" {
		t.Errorf("List = %v", all)
	}
}
