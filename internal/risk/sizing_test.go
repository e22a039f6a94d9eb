package risk

import (
	"math"
	"testing"
)

var limits = Limits{MinLot: 0.01, MaxLot: 50, LotStep: 0.01}

func TestLot_RiskFormula(t *testing.T) {
	s := Sizer{RiskPercent: 1.0}
	// equity 10000, 1% risk = 100; stop distance 10, point value 1 → 10 lots.
	got := s.Lot(10000, 2000, 1990, 1, 1.0, limits)
	if got != 10 {
		t.Errorf("expected 10 lots, got %v", got)
	}
	// Seasonal contradiction halves the size.
	got = s.Lot(10000, 2000, 1990, 1, 0.5, limits)
	if got != 5 {
		t.Errorf("expected 5 lots at 0.5 multiplier, got %v", got)
	}
	// Point value scales the denominator.
	got = s.Lot(10000, 2000, 1990, 100, 1.0, limits)
	if math.Abs(got-0.1) > 1e-9 {
		t.Errorf("expected 0.1 lots at point value 100, got %v", got)
	}
}

func TestLot_SnapAndClamp(t *testing.T) {
	s := Sizer{RiskPercent: 1.0}
	// Raw size 0.666... snaps down to the 0.01 step.
	got := s.Lot(10000, 100, 85, 10, 1.0, limits)
	if got != 0.66 {
		t.Errorf("expected snap to 0.66, got %v", got)
	}
	// Tiny risk budget clamps up to the minimum lot.
	got = s.Lot(10, 2000, 1000, 100, 1.0, limits)
	if got != limits.MinLot {
		t.Errorf("expected min lot clamp, got %v", got)
	}
	// Huge equity clamps down to the maximum lot.
	got = s.Lot(1e9, 100, 99, 1, 1.0, limits)
	if got != limits.MaxLot {
		t.Errorf("expected max lot clamp, got %v", got)
	}
}

func TestLot_DegenerateInputs(t *testing.T) {
	s := Sizer{RiskPercent: 1.0}
	if got := s.Lot(10000, 100, 100, 1, 1.0, limits); got != 0 {
		t.Errorf("zero stop distance must size to 0, got %v", got)
	}
	if got := s.Lot(0, 100, 90, 1, 1.0, limits); got != 0 {
		t.Errorf("zero equity must size to 0, got %v", got)
	}
	if got := s.Lot(10000, 100, 90, 0, 1.0, limits); got != 0 {
		t.Errorf("zero point value must size to 0, got %v", got)
	}
}

func TestLot_FixedOverride(t *testing.T) {
	s := Sizer{RiskPercent: 1.0, FixedLot: 0.25}
	got := s.Lot(10000, 100, 90, 1, 0.5, limits)
	if got != 0.25 {
		t.Errorf("fixed lot must win over the formula, got %v", got)
	}
	// Fixed lot still honors the instrument maximum.
	s.FixedLot = 500
	if got := s.Lot(10000, 100, 90, 1, 1.0, limits); got != limits.MaxLot {
		t.Errorf("fixed lot must clamp to max, got %v", got)
	}
}
