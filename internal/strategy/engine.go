// Package strategy turns a daily bar history into at most one desired-state
// signal per instrument: a Donchian channel breakout gated by commercial COT
// positioning, with seasonal and news-sentiment damping applied to size only.
package strategy

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/calculator"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/config"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/cot"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/risk"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/seasonal"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/sentiment"
)

// Stop and target distances as ATR multiples.
const (
	stopATRMultiple   = 1.5
	targetATRMultiple = 3.0
)

// Engine evaluates one symbol at a time. It is not safe for concurrent use;
// the scheduler runs evaluations sequentially.
type Engine struct {
	cfg     *config.Config
	cot     *cot.Store
	seasons *seasonal.Table
	advisor sentiment.Advisor
	sizer   risk.Sizer
	log     zerolog.Logger
	now     func() time.Time
}

func NewEngine(cfg *config.Config, store *cot.Store, seasons *seasonal.Table, advisor sentiment.Advisor, log zerolog.Logger) *Engine {
	if advisor == nil {
		advisor = sentiment.Noop{}
	}
	return &Engine{
		cfg:     cfg,
		cot:     store,
		seasons: seasons,
		advisor: advisor,
		sizer:   risk.Sizer{RiskPercent: cfg.Signal.RiskPercent},
		log:     log.With().Str("component", "strategy").Logger(),
		now:     time.Now,
	}
}

// Evaluate inspects the bar history for symbol and returns a signal if the
// latest completed bar closed exactly on the Donchian channel boundary and
// every filter lets the trade through. A nil signal with nil error means
// "nothing to do", which is the common case.
//
// The channel is computed over the bars preceding the latest one, so the bar
// being evaluated never contributes to its own breakout level.
func (e *Engine) Evaluate(ctx context.Context, symbol string, bars []model.Bar, equity float64) (*model.Signal, error) {
	period := e.cfg.Signal.DonchianPeriod
	if len(bars) < period+1 {
		e.log.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("insufficient history")
		return nil, nil
	}
	model.SortBars(bars)
	if err := model.ValidateSeries(bars); err != nil {
		return nil, err
	}

	last := bars[len(bars)-1]
	upper, lower, err := calculator.CalculateDonchian(bars[:len(bars)-1], period)
	if err != nil {
		return nil, err
	}

	var direction model.Direction
	switch last.Close {
	case upper:
		direction = model.DirectionLong
	case lower:
		direction = model.DirectionShort
	default:
		return nil, nil
	}

	if !e.cotPermits(symbol, direction, last.Time) {
		return nil, nil
	}

	multiplier := seasonal.Multiplier(direction, e.seasons.Bias(symbol, last.Time))

	opinion := e.advisor.Assess(ctx, symbol)
	damp, skip := sentiment.Adjust(direction, opinion)
	if skip {
		e.log.Info().Str("symbol", symbol).Str("direction", string(direction)).
			Float64("confidence", opinion.Confidence).
			Msg("high-confidence contrary sentiment, skipping signal")
		return nil, nil
	}
	multiplier *= damp

	atr, err := calculator.CalculateATR(bars, e.cfg.Signal.ATRPeriod)
	if err != nil {
		return nil, err
	}

	ins := e.cfg.InstrumentFor(symbol)
	stopDist := stopATRMultiple * atr
	targetDist := targetATRMultiple * atr
	degraded := false
	if atr == 0 {
		stopDist = ins.FallbackStopDistance
		targetDist = 2 * ins.FallbackStopDistance
		degraded = true
		e.log.Warn().Str("symbol", symbol).Msg("zero ATR, using fallback stop distance")
	}
	if stopDist <= 0 {
		e.log.Warn().Str("symbol", symbol).Msg("no usable stop distance, dropping signal")
		return nil, nil
	}

	entry := last.Close
	var stop, target float64
	if direction == model.DirectionLong {
		stop, target = entry-stopDist, entry+targetDist
	} else {
		stop, target = entry+stopDist, entry-targetDist
	}

	lot := e.sizer.Lot(equity, entry, stop, ins.PointValue, multiplier,
		risk.Limits{MinLot: ins.MinLot, MaxLot: ins.MaxLot, LotStep: ins.LotStep})
	if lot <= 0 {
		e.log.Warn().Str("symbol", symbol).Float64("equity", equity).Msg("signal cannot be sized")
		return nil, nil
	}

	sig := &model.Signal{
		Symbol:     symbol,
		Direction:  direction,
		Entry:      entry,
		StopLoss:   stop,
		TakeProfit: target,
		Lot:        lot,
		Timestamp:  e.now().Unix(),
		Degraded:   degraded,
	}
	e.log.Info().Str("symbol", symbol).Str("direction", string(direction)).
		Float64("entry", entry).Float64("sl", stop).Float64("tp", target).
		Float64("lot", lot).Bool("degraded", degraded).Msg("breakout signal")
	return sig, nil
}

// cotPermits applies the commercial-positioning gate. A long needs the
// commercial net at or below one standard deviation under its 3-year mean,
// a short needs the mirror image. With no snapshot at or before the bar date
// the trade is suppressed rather than waved through.
func (e *Engine) cotPermits(symbol string, direction model.Direction, asof time.Time) bool {
	snap, ok := e.cot.Latest(symbol, asof)
	if !ok {
		e.log.Warn().Str("symbol", symbol).Msg("no COT snapshot, suppressing signal")
		return false
	}
	n := snap.Normalized()
	permitted := (direction == model.DirectionLong && n <= -1) ||
		(direction == model.DirectionShort && n >= 1)
	if !permitted {
		e.log.Info().Str("symbol", symbol).Str("direction", string(direction)).
			Float64("normalized", n).Msg("COT filter rejected signal")
	}
	return permitted
}
