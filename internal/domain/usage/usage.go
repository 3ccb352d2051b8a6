// Package usage describes operation-unit usage reports.
package usage

import (
	"github.com/kailas-cloud/rollup/internal/domain/usage/budget"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period name. Empty means day.
func ParsePeriod(s string) (Period, bool) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, true
	case PeriodMonth:
		return PeriodMonth, true
	}
	return "", false
}

// Report is the operation usage of one ledger scope for a period.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	scope       string
	unitsUsed   int64
	budget      budget.Budget
}

// NewReport creates a usage report.
func NewReport(period Period, start, end int64, scope string, used int64, b budget.Budget) Report {
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		scope:       scope,
		unitsUsed:   used,
		budget:      b,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis).
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// Scope returns the ledger scope.
func (r *Report) Scope() string { return r.scope }

// UnitsUsed returns units consumed in the period.
func (r *Report) UnitsUsed() int64 { return r.unitsUsed }

// Budget returns the budget status.
func (r *Report) Budget() budget.Budget { return r.budget }
