// Package executor turns published signals into broker orders. It owns every
// position it opens: one per instrument per strategy identifier, closed
// before any newer signal is applied, trailed while it runs, and exported to
// the bridge on every poll cycle.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/bridge"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/broker"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/calculator"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/config"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/feed"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/metrics"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/notifier"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/recorder"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/retry"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/risk"
)

// Phase is the per-instrument lifecycle stage.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseClosing
	PhaseOpening
	PhaseOpen
)

func (p Phase) String() string {
	switch p {
	case PhaseClosing:
		return "closing"
	case PhaseOpening:
		return "opening"
	case PhaseOpen:
		return "open"
	default:
		return "idle"
	}
}

// Alerter receives fatal trade failures. The Telegram notifier satisfies it.
type Alerter interface {
	Send(text string) error
}

// Engine is the execution loop. All mutable state is guarded by mu; Poll and
// OnTick may be driven from different goroutines.
type Engine struct {
	cfg     *config.Config
	broker  broker.Broker
	signals *bridge.SignalMailbox
	export  *bridge.StateMailbox
	barsOut *bridge.BarWindow
	rec     recorder.Recorder
	alert   Alerter
	log     zerolog.Logger
	policy  retry.Policy
	sizer   risk.Sizer

	mu        sync.Mutex
	mem       *State
	positions map[string]*model.Position
	atr       map[string]float64
	phase     map[string]Phase
	lastError *bridge.TradeError
}

// NewEngine wires the executor against a broker and a bridge slot. The
// persisted state file is loaded here so restarts never replay old signals,
// and positions the strategy still holds at the broker are re-adopted so the
// one-position invariant survives the restart too.
func NewEngine(ctx context.Context, cfg *config.Config, b broker.Broker, slot bridge.Slot, rec recorder.Recorder, alert Alerter, log zerolog.Logger) (*Engine, error) {
	mem, err := LoadState(cfg.Executor.StateFile)
	if err != nil {
		return nil, fmt.Errorf("load executor state: %w", err)
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	e := &Engine{
		cfg:     cfg,
		broker:  b,
		signals: bridge.NewSignalMailbox(slot),
		export:  bridge.NewStateMailbox(slot, cfg.Executor.StrategyID),
		barsOut: bridge.NewBarWindow(slot, cfg.Executor.BarWindow),
		rec:     rec,
		alert:   alert,
		log:     log.With().Str("component", "executor").Logger(),
		policy: retry.Policy{
			MaxAttempts: cfg.Executor.RetryAttempts,
			Backoff:     time.Duration(cfg.Executor.RetryBackoffMS) * time.Millisecond,
		},
		sizer:     risk.Sizer{RiskPercent: cfg.Executor.RiskPercent, FixedLot: cfg.Executor.FixedLot},
		mem:       mem,
		positions: make(map[string]*model.Position),
		atr:       make(map[string]float64),
		phase:     make(map[string]Phase),
	}

	recovered, err := b.ListPositions(ctx, cfg.Executor.StrategyID)
	if err != nil {
		return nil, fmt.Errorf("recover positions: %w", err)
	}
	for i := range recovered {
		pos := recovered[i]
		if prev, ok := e.positions[pos.Symbol]; ok {
			e.log.Warn().Str("symbol", pos.Symbol).Str("kept", prev.Ticket).
				Str("dropped", pos.Ticket).Msg("multiple broker positions for one symbol")
			continue
		}
		e.positions[pos.Symbol] = &pos
		e.phase[pos.Symbol] = PhaseOpen
		e.log.Info().Str("symbol", pos.Symbol).Str("ticket", pos.Ticket).
			Msg("recovered open position")
	}
	return e, nil
}

// Run drives poll cycles until the context is canceled. The tick channel is
// optional; when present it tightens trailing stops between polls.
func (e *Engine) Run(ctx context.Context, ticks <-chan feed.Tick) error {
	interval := time.Duration(e.cfg.Executor.PollSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Poll(ctx)
		case tk, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			e.OnTick(ctx, tk)
		}
	}
}

// Poll runs one full cycle: consume new signals, trail stops, export state.
func (e *Engine) Poll(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.refreshATR(ctx)

	for _, sym := range e.cfg.Symbols {
		sig, err := e.signals.Fetch(ctx, sym)
		switch {
		case errors.Is(err, bridge.ErrNoRecord):
			continue
		case errors.Is(err, bridge.ErrMalformedRecord):
			e.log.Warn().Err(err).Str("symbol", sym).Msg("skipping malformed signal record")
			continue
		case err != nil:
			e.log.Error().Err(err).Str("symbol", sym).Msg("bridge read failed")
			continue
		}
		if sig.Timestamp <= e.mem.LastApplied[sym] {
			continue
		}
		if err := e.apply(ctx, sig); err != nil {
			e.log.Error().Err(err).Str("symbol", sym).Msg("signal application failed")
		}
	}

	if e.cfg.Executor.TrailingStop {
		e.trailAll(ctx)
	}
	e.exportState(ctx)
}

// OnTick tightens the trailing stop for one instrument off the poll cycle.
func (e *Engine) OnTick(ctx context.Context, tk feed.Tick) {
	if !e.cfg.Executor.TrailingStop {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.positions[tk.Symbol]
	if !ok {
		return
	}
	price := tk.Bid
	if pos.Direction == model.DirectionShort {
		price = tk.Ask
	}
	e.trailPosition(ctx, pos, price)
}

// Position reports the tracked position and phase for a symbol, for tests
// and diagnostics.
func (e *Engine) Position(symbol string) (*model.Position, Phase) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, ok := e.positions[symbol]
	if !ok {
		return nil, e.phase[symbol]
	}
	cp := *pos
	return &cp, e.phase[symbol]
}

func (e *Engine) apply(ctx context.Context, sig model.Signal) error {
	sym := sig.Symbol
	e.log.Info().Str("symbol", sym).Str("direction", string(sig.Direction)).
		Int64("timestamp", sig.Timestamp).Msg("applying signal")
	if err := e.rec.RecordSignal(sig); err != nil {
		e.log.Warn().Err(err).Msg("signal not recorded")
	}

	if pos, ok := e.positions[sym]; ok {
		e.phase[sym] = PhaseClosing
		if err := e.closePosition(ctx, pos); err != nil {
			// The position survived every attempt, so it is still ours. The
			// signal stays unmarked and is retried next cycle.
			e.phase[sym] = PhaseOpen
			return err
		}
		delete(e.positions, sym)
	}

	// Marked applied once the close is done and before the open goes out: a
	// close retries safely across cycles, a duplicate open does not.
	e.mem.LastApplied[sym] = sig.Timestamp
	e.saveMem()

	e.phase[sym] = PhaseOpening
	pos, err := e.openFromSignal(ctx, sig)
	if err != nil {
		e.phase[sym] = PhaseIdle
		return err
	}
	e.positions[sym] = pos
	e.phase[sym] = PhaseOpen
	metrics.SignalsApplied.WithLabelValues(sym, string(sig.Direction)).Inc()
	return nil
}

func (e *Engine) closePosition(ctx context.Context, pos *model.Position) error {
	var px float64
	fetch := func(ctx context.Context) error {
		q, err := e.broker.GetQuote(ctx, pos.Symbol)
		if err != nil {
			return err
		}
		px = exitPrice(pos.Direction, q)
		return nil
	}
	if err := fetch(ctx); err != nil {
		e.noteError("close", pos.Symbol, 1, err)
		return err
	}
	res := retry.Do(ctx, e.policy, broker.IsRecoverable, fetch, func(ctx context.Context) error {
		return e.broker.CloseOrder(ctx, pos.Ticket, px)
	})
	e.recordOrder("close", pos.Symbol, pos.Ticket, pos.Direction, pos.Lots, px, 0, res)
	if res.Err != nil {
		e.noteError("close", pos.Symbol, res.Attempts, res.Err)
		return res.Err
	}
	metrics.OrdersTotal.WithLabelValues(pos.Symbol, "close").Inc()
	e.log.Info().Str("symbol", pos.Symbol).Str("ticket", pos.Ticket).
		Float64("price", px).Int("attempts", res.Attempts).Msg("position closed")
	return nil
}

func (e *Engine) openFromSignal(ctx context.Context, sig model.Signal) (*model.Position, error) {
	account, err := e.broker.GetAccount(ctx)
	if err != nil {
		e.noteError("open", sig.Symbol, 1, err)
		return nil, fmt.Errorf("account snapshot: %w", err)
	}
	lots := e.orderLots(sig, account.Equity)
	if lots <= 0 {
		err := fmt.Errorf("signal for %s cannot be sized at equity %.2f", sig.Symbol, account.Equity)
		e.noteError("open", sig.Symbol, 0, err)
		return nil, err
	}

	var q broker.Quote
	fetch := func(ctx context.Context) error {
		var err error
		q, err = e.broker.GetQuote(ctx, sig.Symbol)
		return err
	}
	if err := fetch(ctx); err != nil {
		e.noteError("open", sig.Symbol, 1, err)
		return nil, err
	}

	var opened *model.Position
	res := retry.Do(ctx, e.policy, broker.IsRecoverable, fetch, func(ctx context.Context) error {
		price := q.Ask
		if sig.Direction == model.DirectionShort {
			price = q.Bid
		}
		pos, err := e.broker.OpenOrder(ctx, broker.OpenRequest{
			Symbol:     sig.Symbol,
			Direction:  sig.Direction,
			Lots:       lots,
			Price:      price,
			StopLoss:   sig.StopLoss,
			TakeProfit: sig.TakeProfit,
			StrategyID: e.cfg.Executor.StrategyID,
		})
		if err != nil {
			return err
		}
		opened = pos
		return nil
	})
	ticket := ""
	price := 0.0
	if opened != nil {
		ticket, price = opened.Ticket, opened.OpenPrice
	}
	e.recordOrder("open", sig.Symbol, ticket, sig.Direction, lots, price, sig.StopLoss, res)
	if res.Err != nil {
		e.noteError("open", sig.Symbol, res.Attempts, res.Err)
		return nil, res.Err
	}
	metrics.OrdersTotal.WithLabelValues(sig.Symbol, string(sig.Direction)).Inc()
	e.log.Info().Str("symbol", sig.Symbol).Str("ticket", opened.Ticket).
		Float64("lots", lots).Float64("price", opened.OpenPrice).
		Int("attempts", res.Attempts).Msg("position opened")
	return opened, nil
}

// orderLots re-sizes the signal against live equity; stale equity baked into
// the published lot is never trusted. The smaller of the two sizes wins, so
// sentiment or seasonal damping applied upstream survives the re-size.
func (e *Engine) orderLots(sig model.Signal, equity float64) float64 {
	ins := e.cfg.InstrumentFor(sig.Symbol)
	lim := risk.Limits{MinLot: ins.MinLot, MaxLot: ins.MaxLot, LotStep: ins.LotStep}
	lots := e.sizer.Lot(equity, sig.Entry, sig.StopLoss, ins.PointValue, 1.0, lim)
	if e.sizer.FixedLot > 0 {
		return lots
	}
	if sig.Lot > 0 && sig.Lot < lots {
		return sig.Lot
	}
	return lots
}

func (e *Engine) trailAll(ctx context.Context) {
	for _, pos := range e.positions {
		q, err := e.broker.GetQuote(ctx, pos.Symbol)
		if err != nil {
			e.log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("no quote for trailing check")
			continue
		}
		e.trailPosition(ctx, pos, exitPrice(pos.Direction, q))
	}
}

func (e *Engine) trailPosition(ctx context.Context, pos *model.Position, price float64) {
	stop, ok := NextStop(*pos, price, e.atr[pos.Symbol])
	if !ok {
		return
	}
	res := retry.Do(ctx, e.policy, broker.IsRecoverable, nil, func(ctx context.Context) error {
		return e.broker.ModifyStop(ctx, pos.Ticket, stop)
	})
	if res.Err != nil {
		e.log.Warn().Err(res.Err).Str("symbol", pos.Symbol).Msg("trailing stop modify failed")
		return
	}
	pos.StopLoss = stop
	metrics.TrailingAdjustments.WithLabelValues(pos.Symbol).Inc()
	e.log.Info().Str("symbol", pos.Symbol).Float64("sl", stop).Msg("trailing stop tightened")
}

func (e *Engine) refreshATR(ctx context.Context) {
	period := e.cfg.Signal.ATRPeriod
	if period <= 0 {
		period = 20
	}
	for _, sym := range e.cfg.Symbols {
		bars, err := e.broker.GetRecentBars(ctx, sym, e.cfg.Executor.BarWindow)
		if err != nil || len(bars) == 0 {
			continue
		}
		atr, err := calculator.CalculateATR(bars, period)
		if err == nil && atr > 0 {
			e.atr[sym] = atr
		}
	}
}

// exportState publishes the position and account snapshot, so the signal
// engine and any dashboard see live state without broker access. Runs every
// cycle whether or not anything changed.
func (e *Engine) exportState(ctx context.Context) {
	account, err := e.broker.GetAccount(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("account snapshot failed, skipping state export")
		return
	}

	positions := make([]model.Position, 0, len(e.positions))
	for _, pos := range e.positions {
		cp := *pos
		if q, err := e.broker.GetQuote(ctx, pos.Symbol); err == nil {
			ins := e.cfg.InstrumentFor(pos.Symbol)
			cp.Profit = positionProfit(cp, exitPrice(cp.Direction, q), ins.PointValue)
		}
		positions = append(positions, cp)
	}

	if err := e.export.Publish(ctx, bridge.StateExport{
		Positions: positions,
		Account:   account,
		LastError: e.lastError,
	}); err != nil {
		e.log.Error().Err(err).Msg("state export failed")
	}
	e.rec.RecordAccount(account)

	if e.cfg.Executor.ExportBars {
		for _, sym := range e.cfg.Symbols {
			bars, err := e.broker.GetRecentBars(ctx, sym, e.cfg.Executor.BarWindow)
			if err != nil || len(bars) == 0 {
				continue
			}
			if err := e.barsOut.WriteBars(ctx, sym, bars); err != nil {
				e.log.Warn().Err(err).Str("symbol", sym).Msg("bar export failed")
			}
		}
	}
}

func (e *Engine) noteError(op, symbol string, attempts int, err error) {
	code := 0
	msg := err.Error()
	if be, ok := broker.AsError(err); ok {
		code = be.Code
		if !e.cfg.Executor.DetailedErrors {
			msg = be.Msg
		}
	}
	recoverable := broker.IsRecoverable(err)
	e.lastError = &bridge.TradeError{
		Op:          op,
		Symbol:      symbol,
		Code:        code,
		Message:     msg,
		Recoverable: recoverable,
		At:          time.Now().UTC(),
	}
	class := "fatal"
	if recoverable {
		class = "recoverable"
	}
	metrics.TradeErrors.WithLabelValues(symbol, class).Inc()
	e.log.Error().Err(err).Str("op", op).Str("symbol", symbol).
		Int("code", code).Int("attempts", attempts).Str("class", class).
		Msg("trade operation failed")

	if e.alert != nil {
		text := notifier.FormatTradeError(op, symbol, code, attempts, msg)
		if aerr := e.alert.Send(text); aerr != nil {
			e.log.Warn().Err(aerr).Msg("alert delivery failed")
		}
	}
}

func (e *Engine) recordOrder(op, symbol, ticket string, dir model.Direction, lots, price, sl float64, res retry.Result) {
	if res.Attempts > 1 {
		metrics.OrderRetries.WithLabelValues(symbol, op).Add(float64(res.Attempts - 1))
	}
	evt := &recorder.OrderEvent{
		Op:        op,
		Symbol:    symbol,
		Ticket:    ticket,
		Direction: string(dir),
		Lots:      lots,
		Price:     price,
		StopLoss:  sl,
		Attempts:  res.Attempts,
	}
	if res.Err != nil {
		evt.Error = res.Err.Error()
		if be, ok := broker.AsError(res.Err); ok {
			evt.ErrorCode = be.Code
		}
	}
	if err := e.rec.RecordOrder(evt); err != nil {
		e.log.Warn().Err(err).Msg("order event not recorded")
	}
}

func (e *Engine) saveMem() {
	if err := SaveState(e.cfg.Executor.StateFile, e.mem); err != nil {
		e.log.Error().Err(err).Msg("executor state not persisted")
	}
}

// exitPrice is the side a position leaves on: bid for longs, ask for shorts.
func exitPrice(dir model.Direction, q broker.Quote) float64 {
	if dir == model.DirectionLong {
		return q.Bid
	}
	return q.Ask
}

func positionProfit(pos model.Position, price, pointValue float64) float64 {
	if pos.Direction == model.DirectionLong {
		return (price - pos.OpenPrice) * pos.Lots * pointValue
	}
	return (pos.OpenPrice - price) * pos.Lots * pointValue
}
