package executor

import "github.com/andreapianidev/OpenTradingMT4bot/internal/model"

// NextStop returns a tighter stop for pos at the current exit price, or
// ok=false when no adjustment is due. The trail arms only after price has
// moved one ATR in the position's favor from the open; the candidate stop
// then sits one ATR behind price and is applied only when it is strictly
// more favorable than the current stop, so the stop never loosens.
func NextStop(pos model.Position, price, atr float64) (stop float64, ok bool) {
	if atr <= 0 || price <= 0 {
		return 0, false
	}
	if pos.Direction == model.DirectionLong {
		if price-pos.OpenPrice < atr {
			return 0, false
		}
		candidate := price - atr
		if candidate > pos.StopLoss {
			return candidate, true
		}
		return 0, false
	}
	if pos.OpenPrice-price < atr {
		return 0, false
	}
	candidate := price + atr
	if pos.StopLoss == 0 || candidate < pos.StopLoss {
		return candidate, true
	}
	return 0, false
}
