package budget

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rollup/internal/domain/quota"
)

// LedgerStore is the persistence interface for usage counters.
type LedgerStore interface {
	Add(ctx context.Context, scope string, period quota.Period, at time.Time, units int64) error
	Used(ctx context.Context, scope string, period quota.Period, at time.Time) (int64, error)
}

// Ledger is the in-memory daily/monthly usage account of one scope (e.g. "report").
// Reads are in-memory; Settle writes behind to the store when one is attached.
//
// Units handed out by Reserve count against both periods until the invocation settles,
// so concurrent invocations together never exceed a limit.
type Ledger struct {
	mu             sync.Mutex
	scope          string
	dailyUsed      int64
	monthlyUsed    int64
	reserved       int64
	dailyLimit     int64
	monthlyLimit   int64
	lastDayReset   time.Time
	lastMonthReset time.Time
	store          LedgerStore
	logger         *zap.Logger
	now            func() time.Time
}

// NewLedger creates a ledger. A zero limit means unlimited.
func NewLedger(scope string, dailyLimit, monthlyLimit int64, logger *zap.Logger) *Ledger {
	l := &Ledger{
		scope:        scope,
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
	now := l.now()
	l.lastDayReset = quota.Daily.Start(now)
	l.lastMonthReset = quota.Monthly.Start(now)
	return l
}

// WithStore attaches a persistence store and loads the current period counters.
func (l *Ledger) WithStore(ctx context.Context, store LedgerStore) *Ledger {
	l.store = store

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if val, err := store.Used(ctx, l.scope, quota.Daily, now); err == nil {
		l.dailyUsed = val
	} else {
		l.logger.Warn("Failed to load daily usage", zap.String("scope", l.scope), zap.Error(err))
	}
	if val, err := store.Used(ctx, l.scope, quota.Monthly, now); err == nil {
		l.monthlyUsed = val
	} else {
		l.logger.Warn("Failed to load monthly usage", zap.String("scope", l.scope), zap.Error(err))
	}

	l.logger.Info("Usage ledger loaded",
		zap.String("scope", l.scope),
		zap.Int64("daily_used", l.dailyUsed),
		zap.Int64("monthly_used", l.monthlyUsed),
	)
	return l
}

// Reserve sets aside up to perInvocation units from what is left of the daily and
// monthly allowance and returns the amount reserved. Every reservation must be
// released with Settle.
func (l *Ledger) Reserve(perInvocation int64) int64 {
	if perInvocation <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfNeeded()

	allowed := perInvocation
	if d := remaining(l.dailyLimit, l.dailyUsed+l.reserved); d >= 0 && d < allowed {
		allowed = d
	}
	if m := remaining(l.monthlyLimit, l.monthlyUsed+l.reserved); m >= 0 && m < allowed {
		allowed = m
	}
	l.reserved += allowed
	return allowed
}

// Settle releases a reservation and records the units the invocation actually used.
func (l *Ledger) Settle(reserved, used int64) {
	l.mu.Lock()
	l.resetIfNeeded()
	l.reserved -= reserved
	if l.reserved < 0 {
		l.reserved = 0
	}
	if used <= 0 {
		l.mu.Unlock()
		return
	}
	l.dailyUsed += used
	l.monthlyUsed += used
	store := l.store
	now := l.now()
	l.mu.Unlock()

	if store == nil {
		return
	}

	// Write-behind on a detached context: the invocation may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, p := range quota.Periods {
		if err := store.Add(ctx, l.scope, p, now, used); err != nil {
			l.logger.Warn("Failed to persist usage",
				zap.String("scope", l.scope), zap.String("period", string(p)), zap.Error(err))
		}
	}
}

// Scope returns the ledger scope name.
func (l *Ledger) Scope() string { return l.scope }

// DailyLimit returns the daily unit cap (0 = unlimited).
func (l *Ledger) DailyLimit() int64 { return l.dailyLimit }

// MonthlyLimit returns the monthly unit cap (0 = unlimited).
func (l *Ledger) MonthlyLimit() int64 { return l.monthlyLimit }

// DailyUsed returns units consumed today.
func (l *Ledger) DailyUsed() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfNeeded()
	return l.dailyUsed
}

// MonthlyUsed returns units consumed this month.
func (l *Ledger) MonthlyUsed() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfNeeded()
	return l.monthlyUsed
}

// Reserved returns units held by invocations that have not settled yet.
func (l *Ledger) Reserved() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserved
}

// RemainingDaily returns units left today (-1 if unlimited). Reservations are not subtracted.
func (l *Ledger) RemainingDaily() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfNeeded()
	return remaining(l.dailyLimit, l.dailyUsed)
}

// RemainingMonthly returns units left this month (-1 if unlimited).
func (l *Ledger) RemainingMonthly() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfNeeded()
	return remaining(l.monthlyLimit, l.monthlyUsed)
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// resetIfNeeded zeroes counters when the day or month rolls over.
func (l *Ledger) resetIfNeeded() {
	now := l.now()
	today := quota.Daily.Start(now)
	thisMonth := quota.Monthly.Start(now)

	if today.After(l.lastDayReset) {
		l.dailyUsed = 0
		l.lastDayReset = today
	}
	if thisMonth.After(l.lastMonthReset) {
		l.monthlyUsed = 0
		l.lastMonthReset = thisMonth
	}
}
