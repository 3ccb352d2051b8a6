package usage

import (
	"context"
	"testing"
	"time"

	domusage "github.com/kailas-cloud/rollup/internal/domain/usage"
)

// --- Mock ---

type mockLedgerReader struct {
	dailyLimit       int64
	monthlyLimit     int64
	dailyUsed        int64
	monthlyUsed      int64
	remainingDaily   int64
	remainingMonthly int64
}

func (m *mockLedgerReader) Scope() string           { return "report" }
func (m *mockLedgerReader) DailyLimit() int64       { return m.dailyLimit }
func (m *mockLedgerReader) MonthlyLimit() int64     { return m.monthlyLimit }
func (m *mockLedgerReader) DailyUsed() int64        { return m.dailyUsed }
func (m *mockLedgerReader) MonthlyUsed() int64      { return m.monthlyUsed }
func (m *mockLedgerReader) RemainingDaily() int64   { return m.remainingDaily }
func (m *mockLedgerReader) RemainingMonthly() int64 { return m.remainingMonthly }

var fixedNow = time.Date(2026, 10, 18, 14, 30, 0, 0, time.UTC)

func newService(lr LedgerReader) *Service {
	s := New(lr)
	s.now = func() time.Time { return fixedNow }
	return s
}

// --- Tests ---

func TestGetReport_DailyPeriod(t *testing.T) {
	lr := &mockLedgerReader{
		dailyLimit:       10000,
		dailyUsed:        3000,
		remainingDaily:   7000,
		monthlyLimit:     100000,
		monthlyUsed:      50000,
		remainingMonthly: 50000,
	}
	r := newService(lr).GetReport(context.Background(), domusage.PeriodDay)

	if r.Period() != domusage.PeriodDay {
		t.Errorf("expected period %q, got %q", domusage.PeriodDay, r.Period())
	}
	dayStart := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	if r.PeriodStart() != dayStart.UnixMilli() {
		t.Errorf("expected period start %d, got %d", dayStart.UnixMilli(), r.PeriodStart())
	}
	if r.PeriodEnd() != dayStart.Add(24*time.Hour).UnixMilli() {
		t.Errorf("unexpected period end %d", r.PeriodEnd())
	}
	if r.UnitsUsed() != 3000 {
		t.Errorf("expected used 3000, got %d", r.UnitsUsed())
	}
	if r.Budget().UnitsLimit() != 10000 {
		t.Errorf("expected limit 10000, got %d", r.Budget().UnitsLimit())
	}
	if r.Budget().UnitsRemaining() != 7000 {
		t.Errorf("expected remaining 7000, got %d", r.Budget().UnitsRemaining())
	}
	if r.Budget().ResetsAt() != r.PeriodEnd() {
		t.Error("budget must reset at period end")
	}
	if r.Scope() != "report" {
		t.Errorf("expected scope report, got %q", r.Scope())
	}
}

func TestGetReport_MonthlyPeriod(t *testing.T) {
	lr := &mockLedgerReader{monthlyLimit: 100000, monthlyUsed: 50000, remainingMonthly: 50000}
	r := newService(lr).GetReport(context.Background(), domusage.PeriodMonth)

	monthStart := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	if r.PeriodStart() != monthStart.UnixMilli() {
		t.Errorf("expected period start %d, got %d", monthStart.UnixMilli(), r.PeriodStart())
	}
	if r.PeriodEnd() != time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("unexpected period end %d", r.PeriodEnd())
	}
	if r.Budget().UnitsLimit() != 100000 {
		t.Errorf("expected limit 100000, got %d", r.Budget().UnitsLimit())
	}
}

func TestGetReport_NilLedgerReader(t *testing.T) {
	r := newService(nil).GetReport(context.Background(), domusage.PeriodDay)

	if !r.Budget().IsUnlimited() {
		t.Error("nil ledger must report unlimited")
	}
	if r.Budget().UnitsRemaining() != -1 {
		t.Errorf("expected remaining -1, got %d", r.Budget().UnitsRemaining())
	}
	if r.Budget().IsExhausted() {
		t.Error("nil ledger reader should not be exhausted")
	}
}

func TestGetReport_Exhausted(t *testing.T) {
	lr := &mockLedgerReader{dailyLimit: 5000, dailyUsed: 5000, remainingDaily: 0}
	r := newService(lr).GetReport(context.Background(), domusage.PeriodDay)

	if !r.Budget().IsExhausted() {
		t.Error("budget should be exhausted when remaining is 0")
	}
}
