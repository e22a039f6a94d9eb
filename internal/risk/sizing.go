// Package risk encodes how much size a signal or order is allowed to carry.
package risk

import "math"

// Limits are the tradeable-size guard rails for one instrument.
type Limits struct {
	MinLot  float64
	MaxLot  float64
	LotStep float64
}

// Sizer converts account equity and a stop distance into a lot size.
type Sizer struct {
	RiskPercent float64
	// FixedLot, when positive, overrides the computed size entirely.
	FixedLot float64
}

// Lot returns the position size for a trade risking RiskPercent of equity
// over the distance between entry and stop, scaled by multiplier (seasonal or
// sentiment damping), snapped down to the lot step and clamped to the limits.
// A zero return means the trade cannot be sized and must not be placed.
func (s Sizer) Lot(equity, entry, stop, pointValue, multiplier float64, lim Limits) float64 {
	if s.FixedLot > 0 {
		return clamp(snap(s.FixedLot, lim.LotStep), lim)
	}
	dist := math.Abs(entry - stop)
	if equity <= 0 || dist <= 0 || pointValue <= 0 || multiplier <= 0 {
		return 0
	}
	riskAmount := equity * s.RiskPercent / 100.0
	raw := riskAmount / (dist * pointValue)
	return clamp(snap(raw*multiplier, lim.LotStep), lim)
}

// snap rounds lots down to a multiple of step.
func snap(lots, step float64) float64 {
	if step <= 0 {
		return lots
	}
	return math.Floor(lots/step) * step
}

func clamp(lots float64, lim Limits) float64 {
	if lim.MinLot > 0 && lots < lim.MinLot {
		return lim.MinLot
	}
	if lim.MaxLot > 0 && lots > lim.MaxLot {
		return lim.MaxLot
	}
	return lots
}
