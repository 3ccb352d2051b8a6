package budget

import "testing"

func TestNew(t *testing.T) {
	b := New(100000, 61580, false, 1700000000000)
	if b.UnitsLimit() != 100000 {
		t.Errorf("UnitsLimit() = %d", b.UnitsLimit())
	}
	if b.UnitsRemaining() != 61580 {
		t.Errorf("UnitsRemaining() = %d", b.UnitsRemaining())
	}
	if b.IsExhausted() {
		t.Error("IsExhausted() = true, want false")
	}
	if b.ResetsAt() != 1700000000000 {
		t.Errorf("ResetsAt() = %d", b.ResetsAt())
	}
	if b.IsUnlimited() {
		t.Error("IsUnlimited() = true, want false")
	}
}

func TestNew_Exhausted(t *testing.T) {
	b := New(1000, 0, true, 0)
	if !b.IsExhausted() {
		t.Error("IsExhausted() = false, want true")
	}
	if b.UnitsRemaining() != 0 {
		t.Errorf("UnitsRemaining() = %d", b.UnitsRemaining())
	}
}

func TestNew_Unlimited(t *testing.T) {
	b := New(0, -1, false, 0)
	if !b.IsUnlimited() {
		t.Error("IsUnlimited() = false, want true")
	}
}
