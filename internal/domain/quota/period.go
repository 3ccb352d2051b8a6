package quota

import "time"

// Period is a usage accounting window. Windows are UTC calendar days and months.
type Period string

// Accounting periods.
const (
	Daily   Period = "daily"
	Monthly Period = "monthly"
)

// Periods lists every accounting period.
var Periods = []Period{Daily, Monthly}

// Valid reports whether p is a known period.
func (p Period) Valid() bool { return p == Daily || p == Monthly }

// Start returns the first instant of the window of p containing t.
func (p Period) Start(t time.Time) time.Time {
	t = t.UTC()
	if p == Monthly {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Bucket names the window of p containing t: YYYY-MM-DD for days, YYYY-MM for months.
// Unknown periods yield "".
func (p Period) Bucket(t time.Time) string {
	switch p {
	case Daily:
		return t.UTC().Format("2006-01-02")
	case Monthly:
		return t.UTC().Format("2006-01")
	}
	return ""
}
