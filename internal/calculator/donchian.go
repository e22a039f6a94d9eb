package calculator

import (
	"errors"
	"math"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
)

// CalculateDonchian returns the Donchian channel over the last `period` bars
// of the series: the highest high and the lowest low. The caller is expected
// to pass a window that already excludes the bar under evaluation, so the
// channel never looks ahead.
func CalculateDonchian(bars []model.Bar, period int) (upper, lower float64, err error) {
	if period <= 0 {
		return 0, 0, errors.New("period must be positive")
	}
	if len(bars) < period {
		return 0, 0, errors.New("not enough bars for donchian channel")
	}
	upper = math.Inf(-1)
	lower = math.Inf(1)
	for i := len(bars) - period; i < len(bars); i++ {
		if bars[i].High > upper {
			upper = bars[i].High
		}
		if bars[i].Low < lower {
			lower = bars[i].Low
		}
	}
	return upper, lower, nil
}
