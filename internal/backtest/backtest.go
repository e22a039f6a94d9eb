// Package backtest replays the breakout strategy over historical bars to
// sanity-check parameters before anything touches a live account. Fills are
// approximated against the next bar's range, one position per symbol.
package backtest

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/calculator"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/seasonal"
)

const (
	startEquity       = 10000.0
	riskPerTrade      = 0.01
	stopATRMultiple   = 1.5
	targetATRMultiple = 3.0
	minHistory        = 100
)

// Trade is one simulated round trip.
type Trade struct {
	Symbol    string
	Direction model.Direction
	Entry     float64
	Exit      float64
	Size      float64
	Profit    float64
}

// Result aggregates a symbol's simulated trades.
type Result struct {
	Symbol       string
	Trades       []Trade
	WinRate      float64
	ProfitFactor float64
	FinalEquity  float64
}

// Backtester holds the strategy parameters under test.
type Backtester struct {
	DonchianPeriod int
	ATRPeriod      int
	Seasons        *seasonal.Table

	log zerolog.Logger
}

// New creates a Backtester with the given indicator periods.
func New(donchianPeriod, atrPeriod int, seasons *seasonal.Table, log zerolog.Logger) *Backtester {
	return &Backtester{
		DonchianPeriod: donchianPeriod,
		ATRPeriod:      atrPeriod,
		Seasons:        seasons,
		log:            log.With().Str("component", "backtest").Logger(),
	}
}

type openTrade struct {
	direction model.Direction
	entry     float64
	stop      float64
	target    float64
	size      float64
}

// Run walks the series bar by bar, entering on breakouts and exiting on the
// first subsequent bar whose range touches the stop or target. The stop is
// checked first: when both levels fall inside one bar the loss is booked.
func (b *Backtester) Run(symbol string, bars []model.Bar) (Result, error) {
	res := Result{Symbol: symbol, FinalEquity: startEquity}
	if len(bars) < minHistory {
		return res, fmt.Errorf("backtest %s: need at least %d bars, have %d", symbol, minHistory, len(bars))
	}
	model.SortBars(bars)
	if err := model.ValidateSeries(bars); err != nil {
		return res, fmt.Errorf("backtest %s: %w", symbol, err)
	}

	equity := startEquity
	var pos *openTrade

	for i := b.DonchianPeriod; i < len(bars)-1; i++ {
		window := bars[:i+1]
		next := bars[i+1]

		if pos != nil {
			if trade, closed := settle(pos, next); closed {
				trade.Symbol = symbol
				trade.Direction = pos.direction
				equity += trade.Profit * trade.Size
				res.Trades = append(res.Trades, trade)
				pos = nil
			}
		}
		if pos != nil {
			continue
		}

		dir, ok := b.breakout(window)
		if !ok {
			continue
		}

		atr, err := calculator.CalculateATR(window, b.ATRPeriod)
		if err != nil || atr <= 0 {
			continue
		}

		mult := 1.0
		if b.Seasons != nil {
			mult = seasonal.Multiplier(dir, b.Seasons.Bias(symbol, window[len(window)-1].Time))
		}

		entry := window[len(window)-1].Close
		stop, target := levels(dir, entry, atr)
		size := (equity * riskPerTrade / math.Abs(entry-stop)) * mult
		if size <= 0 {
			continue
		}
		pos = &openTrade{direction: dir, entry: entry, stop: stop, target: target, size: size}
	}

	res.FinalEquity = equity
	res.WinRate, res.ProfitFactor = stats(res.Trades)
	b.log.Info().
		Str("symbol", symbol).
		Int("trades", len(res.Trades)).
		Float64("win_rate", res.WinRate).
		Float64("final_equity", res.FinalEquity).
		Msg("backtest complete")
	return res, nil
}

// breakout applies the channel test to the last bar: the channel spans the
// bars before it, and only an exact touch of a band counts.
func (b *Backtester) breakout(bars []model.Bar) (model.Direction, bool) {
	if len(bars) < b.DonchianPeriod+1 {
		return "", false
	}
	upper, lower, err := calculator.CalculateDonchian(bars[:len(bars)-1], b.DonchianPeriod)
	if err != nil {
		return "", false
	}
	last := bars[len(bars)-1].Close
	switch last {
	case upper:
		return model.DirectionLong, true
	case lower:
		return model.DirectionShort, true
	}
	return "", false
}

func levels(dir model.Direction, entry, atr float64) (stop, target float64) {
	if dir == model.DirectionLong {
		return entry - stopATRMultiple*atr, entry + targetATRMultiple*atr
	}
	return entry + stopATRMultiple*atr, entry - targetATRMultiple*atr
}

func settle(pos *openTrade, next model.Bar) (Trade, bool) {
	if pos.direction == model.DirectionLong {
		if next.Low <= pos.stop {
			return Trade{Entry: pos.entry, Exit: pos.stop, Size: pos.size, Profit: pos.stop - pos.entry}, true
		}
		if next.High >= pos.target {
			return Trade{Entry: pos.entry, Exit: pos.target, Size: pos.size, Profit: pos.target - pos.entry}, true
		}
		return Trade{}, false
	}
	if next.High >= pos.stop {
		return Trade{Entry: pos.entry, Exit: pos.stop, Size: pos.size, Profit: pos.entry - pos.stop}, true
	}
	if next.Low <= pos.target {
		return Trade{Entry: pos.entry, Exit: pos.target, Size: pos.size, Profit: pos.entry - pos.target}, true
	}
	return Trade{}, false
}

func stats(trades []Trade) (winRate, profitFactor float64) {
	if len(trades) == 0 {
		return 0, 0
	}
	var wins int
	var grossWin, grossLoss float64
	for _, t := range trades {
		if t.Profit > 0 {
			wins++
			grossWin += t.Profit * t.Size
		} else {
			grossLoss += -t.Profit * t.Size
		}
	}
	winRate = float64(wins) / float64(len(trades))
	if grossLoss == 0 {
		return winRate, math.Inf(1)
	}
	return winRate, grossWin / grossLoss
}

// FormatResults renders a plain-text report, symbols in alphabetical order.
func FormatResults(results []Result) string {
	sort.Slice(results, func(i, j int) bool { return results[i].Symbol < results[j].Symbol })
	var sb strings.Builder
	sb.WriteString("Backtest Results\n")
	sb.WriteString("================\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "%s:\n", r.Symbol)
		fmt.Fprintf(&sb, "  Trades: %d\n", len(r.Trades))
		fmt.Fprintf(&sb, "  Win Rate: %.2f%%\n", r.WinRate*100)
		if math.IsInf(r.ProfitFactor, 1) {
			sb.WriteString("  Profit Factor: inf\n")
		} else {
			fmt.Fprintf(&sb, "  Profit Factor: %.2f\n", r.ProfitFactor)
		}
		fmt.Fprintf(&sb, "  Final Equity: $%.2f\n\n", r.FinalEquity)
	}
	return sb.String()
}
