package calculator

import (
	"errors"
	"math"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
)

// CalculateATR computes the Average True Range as the arithmetic mean of the
// true range over the last `period` bars. Returns 0.0 if data is insufficient;
// callers treat a zero ATR as "use the configured fallback distance".
func CalculateATR(bars []model.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	// True range needs the previous close, so period+1 bars minimum.
	if len(bars) < period+1 {
		return 0.0, nil
	}

	var sum float64
	for i := len(bars) - period; i < len(bars); i++ {
		highLow := bars[i].High - bars[i].Low
		highClose := math.Abs(bars[i].High - bars[i-1].Close)
		lowClose := math.Abs(bars[i].Low - bars[i-1].Close)
		sum += math.Max(highLow, math.Max(highClose, lowClose))
	}
	return sum / float64(period), nil
}
