// Package usage persists the unit counters behind the daily and monthly usage ledger.
// Each (scope, period, bucket) is one Redis integer that expires some time after
// its window closes.
package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/rollup/internal/db"
	"github.com/kailas-cloud/rollup/internal/domain"
	"github.com/kailas-cloud/rollup/internal/domain/quota"
)

// ErrUnknownPeriod is returned for a period the store keeps no counters for.
var ErrUnknownPeriod = errors.New("unknown usage period")

// ErrCorruptCounter marks a counter key holding something other than an integer.
var ErrCorruptCounter = errors.New("corrupt usage counter")

// CounterError reports a failed counter operation with the counter it concerned.
type CounterError struct {
	Op     string
	Scope  string
	Period quota.Period
	Bucket string
	Err    error
}

func (e *CounterError) Error() string {
	return fmt.Sprintf("usage %s %s/%s/%s: %v", e.Op, e.Scope, e.Period, e.Bucket, e.Err)
}

func (e *CounterError) Unwrap() error { return e.Err }

// store is the consumer interface for ledger operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps usage counters as plain Redis integers.
type Store struct {
	store store
	ttl   map[quota.Period]time.Duration
}

// New creates a usage store. Daily counters should outlive one day (48h is typical),
// monthly counters one month (62 days).
func New(s store, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{store: s, ttl: map[quota.Period]time.Duration{
		quota.Daily:   dailyTTL,
		quota.Monthly: monthTTL,
	}}
}

// Add adds units to the counter of scope for the window of period containing at,
// and arms its TTL on the first write of that window.
func (s *Store) Add(ctx context.Context, scope string, period quota.Period, at time.Time, units int64) error {
	ttl, ok := s.ttl[period]
	if !ok {
		return &CounterError{Op: "add", Scope: scope, Period: period, Err: ErrUnknownPeriod}
	}
	bucket := period.Bucket(at)
	key := domain.UsageKey(scope, string(period), bucket)

	if err := s.store.IncrBy(ctx, key, units); err != nil {
		return &CounterError{Op: "add", Scope: scope, Period: period, Bucket: bucket, Err: err}
	}
	// NX keeps the expiry anchored to the first write of the window.
	if err := s.store.Expire(ctx, key, ttl, true); err != nil {
		return &CounterError{Op: "expire", Scope: scope, Period: period, Bucket: bucket, Err: err}
	}
	return nil
}

// Used returns the units recorded for scope in the window of period containing at,
// 0 when nothing was recorded yet.
func (s *Store) Used(ctx context.Context, scope string, period quota.Period, at time.Time) (int64, error) {
	if _, ok := s.ttl[period]; !ok {
		return 0, &CounterError{Op: "read", Scope: scope, Period: period, Err: ErrUnknownPeriod}
	}
	bucket := period.Bucket(at)

	data, err := s.store.Get(ctx, domain.UsageKey(scope, string(period), bucket))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, &CounterError{Op: "read", Scope: scope, Period: period, Bucket: bucket, Err: err}
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, &CounterError{Op: "read", Scope: scope, Period: period, Bucket: bucket,
			Err: fmt.Errorf("%w: %q", ErrCorruptCounter, data)}
	}
	return val, nil
}
