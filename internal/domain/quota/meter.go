// Package quota holds the per-invocation operation meter. The meter is put into the
// context by an entry point; the storage layer charges it; the budget tracker reads it.
package quota

import (
	"context"
	"errors"
	"sync"
)

// ErrNoMeter is returned when remaining quota is read from a nil meter.
var ErrNoMeter = errors.New("no operation meter")

type meterKey struct{}

// Meter is the remaining-operation counter of one invocation.
type Meter struct {
	mu      sync.Mutex
	limit   int64
	used    int64
	charges int
}

// NewMeter creates a meter with the given unit limit.
func NewMeter(limit int64) *Meter {
	return &Meter{limit: limit}
}

// ContextWithMeter returns a context carrying the meter.
func ContextWithMeter(ctx context.Context, m *Meter) context.Context {
	return context.WithValue(ctx, meterKey{}, m)
}

// FromContext extracts the meter. Returns nil if not set.
func FromContext(ctx context.Context) *Meter {
	m, _ := ctx.Value(meterKey{}).(*Meter)
	return m
}

// Charge records consumed units. Safe on a nil meter.
func (m *Meter) Charge(units int64) {
	if m == nil || units <= 0 {
		return
	}
	m.mu.Lock()
	m.used += units
	m.charges++
	m.mu.Unlock()
}

// RemainingQuota returns units left, never negative.
func (m *Meter) RemainingQuota() (int64, error) {
	if m == nil {
		return 0, ErrNoMeter
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.used >= m.limit {
		return 0, nil
	}
	return m.limit - m.used, nil
}

// Limit returns the unit cap.
func (m *Meter) Limit() int64 {
	if m == nil {
		return 0
	}
	return m.limit
}

// Used returns units consumed so far.
func (m *Meter) Used() int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

// Charges returns how many chargeable operations were performed.
func (m *Meter) Charges() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.charges
}
