// Package budget exposes the remaining operation quota of an invocation and keeps the
// persistent usage ledger those invocations consume.
package budget

// QuotaSource reports the units still available to the current invocation.
type QuotaSource interface {
	RemainingQuota() (int64, error)
}

// Tracker is a pure query over a QuotaSource. It never consumes units itself.
type Tracker struct {
	src QuotaSource
}

// NewTracker creates a Tracker. src may be nil.
func NewTracker(src QuotaSource) *Tracker {
	return &Tracker{src: src}
}

// Remaining returns the units left. An absent or failing source reads as zero, so callers
// stop instead of overrunning a quota they cannot observe.
func (t *Tracker) Remaining() int64 {
	if t == nil || t.src == nil {
		return 0
	}
	n, err := t.src.RemainingQuota()
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// HasCapacity reports whether at least threshold units remain.
func (t *Tracker) HasCapacity(threshold int64) bool {
	return t.Remaining() >= threshold
}
