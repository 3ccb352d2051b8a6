package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/rollup/internal/domain/usage"
	"github.com/kailas-cloud/rollup/internal/domain/usage/budget"
)

// Service handles usage reporting.
type Service struct {
	lr  LedgerReader
	now func() time.Time
}

// New creates a Service. lr can be nil (unlimited mode).
func New(lr LedgerReader) *Service {
	return &Service{lr: lr, now: func() time.Time { return time.Now().UTC() }}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now()
	var start, end time.Time
	var scope string
	var limit, used int64
	remaining := int64(-1)

	switch period {
	case domusage.PeriodMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
		if s.lr != nil {
			limit = s.lr.MonthlyLimit()
			used = s.lr.MonthlyUsed()
			remaining = s.lr.RemainingMonthly()
		}
	default:
		period = domusage.PeriodDay
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		end = start.Add(24 * time.Hour)
		if s.lr != nil {
			limit = s.lr.DailyLimit()
			used = s.lr.DailyUsed()
			remaining = s.lr.RemainingDaily()
		}
	}
	if s.lr != nil {
		scope = s.lr.Scope()
	}

	exhausted := limit > 0 && remaining <= 0
	b := budget.New(limit, remaining, exhausted, end.UnixMilli())

	return domusage.NewReport(period, start.UnixMilli(), end.UnixMilli(), scope, used, b)
}
