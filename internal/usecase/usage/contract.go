package usage

// LedgerReader provides read-only access to operation ledger state.
type LedgerReader interface {
	Scope() string
	DailyLimit() int64
	MonthlyLimit() int64
	DailyUsed() int64
	MonthlyUsed() int64
	RemainingDaily() int64
	RemainingMonthly() int64
}
