package budget

// Budget is the operation-unit allowance of one scope for a period.
type Budget struct {
	unitsLimit     int64
	unitsRemaining int64
	isExhausted    bool
	resetsAt       int64 // unix millis, converted to ISO 8601 at transport layer
}

// New creates a Budget snapshot. A zero limit means unlimited; remaining is then -1.
func New(limit, remaining int64, isExhausted bool, resetsAt int64) Budget {
	return Budget{
		unitsLimit:     limit,
		unitsRemaining: remaining,
		isExhausted:    isExhausted,
		resetsAt:       resetsAt,
	}
}

// UnitsLimit returns the unit cap (0 = unlimited).
func (b Budget) UnitsLimit() int64 { return b.unitsLimit }

// UnitsRemaining returns units left (-1 = unlimited).
func (b Budget) UnitsRemaining() int64 { return b.unitsRemaining }

// IsExhausted reports whether the budget is spent.
func (b Budget) IsExhausted() bool { return b.isExhausted }

// ResetsAt returns the reset timestamp (unix millis).
func (b Budget) ResetsAt() int64 { return b.resetsAt }

// IsUnlimited reports whether no cap applies.
func (b Budget) IsUnlimited() bool { return b.unitsLimit == 0 }
