package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
)

// PaperBroker simulates execution in memory. Used for dry runs and for the
// executor tests; FailNext scripts trade errors to exercise the retry path.
type PaperBroker struct {
	mu        sync.Mutex
	quotes    map[string]Quote
	bars      map[string][]model.Bar
	positions map[string]*model.Position
	balance   float64
	faults    map[string][]int // op -> queued error codes
}

// NewPaperBroker creates a paper broker with the given starting balance.
func NewPaperBroker(balance float64) *PaperBroker {
	return &PaperBroker{
		quotes:    make(map[string]Quote),
		bars:      make(map[string][]model.Bar),
		positions: make(map[string]*model.Position),
		balance:   balance,
		faults:    make(map[string][]int),
	}
}

func (p *PaperBroker) Name() string { return "paper" }

// SetQuote seeds or moves the simulated market for symbol.
func (p *PaperBroker) SetQuote(symbol string, bid, ask float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[symbol] = Quote{Bid: bid, Ask: ask, Time: time.Now().UTC()}
}

// SeedBars installs the bar history served by GetRecentBars.
func (p *PaperBroker) SeedBars(symbol string, bars []model.Bar) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bars[symbol] = bars
}

// FailNext queues trade error codes for op ("open", "close" or "modify");
// each subsequent call consumes one code and fails with it.
func (p *PaperBroker) FailNext(op string, codes ...int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.faults[op] = append(p.faults[op], codes...)
}

func (p *PaperBroker) popFault(op, symbol string) error {
	queue := p.faults[op]
	if len(queue) == 0 {
		return nil
	}
	code := queue[0]
	p.faults[op] = queue[1:]
	return &Error{Op: op, Symbol: symbol, Code: code, Msg: "scripted fault"}
}

func (p *PaperBroker) GetQuote(_ context.Context, symbol string) (Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.quotes[symbol]
	if !ok {
		return Quote{}, &Error{Op: "quote", Symbol: symbol, Code: CodeOffQuotes, Msg: "no quote seeded"}
	}
	return q, nil
}

func (p *PaperBroker) GetRecentBars(_ context.Context, symbol string, limit int) ([]model.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bars := p.bars[symbol]
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	out := make([]model.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

func (p *PaperBroker) OpenOrder(_ context.Context, req OpenRequest) (*model.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.popFault("open", req.Symbol); err != nil {
		return nil, err
	}
	if req.Lots <= 0 {
		return nil, &Error{Op: "open", Symbol: req.Symbol, Code: CodeInvalidVolume, Msg: "lots must be positive"}
	}
	if !req.Direction.Valid() {
		return nil, &Error{Op: "open", Symbol: req.Symbol, Code: CodeInvalidParams, Msg: "bad direction"}
	}
	pos := &model.Position{
		Ticket:     uuid.New().String(),
		Symbol:     req.Symbol,
		Direction:  req.Direction,
		Lots:       req.Lots,
		OpenPrice:  req.Price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		OpenTime:   time.Now().UTC(),
		StrategyID: req.StrategyID,
	}
	p.positions[pos.Ticket] = pos
	return pos, nil
}

// ListPositions returns the live positions owned by strategyID; an empty id
// matches everything.
func (p *PaperBroker) ListPositions(_ context.Context, strategyID string) ([]model.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.Position
	for _, pos := range p.positions {
		if strategyID == "" || pos.StrategyID == strategyID {
			out = append(out, *pos)
		}
	}
	return out, nil
}

func (p *PaperBroker) CloseOrder(_ context.Context, ticket string, price float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[ticket]
	if !ok {
		return &Error{Op: "close", Code: CodeInvalidParams, Msg: fmt.Sprintf("unknown ticket %s", ticket)}
	}
	if err := p.popFault("close", pos.Symbol); err != nil {
		return err
	}
	p.balance += positionProfit(pos, price)
	delete(p.positions, ticket)
	return nil
}

func (p *PaperBroker) ModifyStop(_ context.Context, ticket string, stopLoss float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[ticket]
	if !ok {
		return &Error{Op: "modify", Code: CodeInvalidParams, Msg: fmt.Sprintf("unknown ticket %s", ticket)}
	}
	if err := p.popFault("modify", pos.Symbol); err != nil {
		return err
	}
	pos.StopLoss = stopLoss
	return nil
}

func (p *PaperBroker) GetAccount(_ context.Context) (model.AccountSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	equity := p.balance
	for _, pos := range p.positions {
		if q, ok := p.quotes[pos.Symbol]; ok {
			equity += positionProfit(pos, closePrice(pos, q))
		}
	}
	return model.AccountSnapshot{
		Balance:    p.balance,
		Equity:     equity,
		FreeMargin: equity,
		Timestamp:  time.Now().Unix(),
	}, nil
}

// OpenPositions returns a snapshot of the live simulated positions.
func (p *PaperBroker) OpenPositions() []model.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out
}

// closePrice is the side a position exits on: bid for longs, ask for shorts.
func closePrice(pos *model.Position, q Quote) float64 {
	if pos.Direction == model.DirectionLong {
		return q.Bid
	}
	return q.Ask
}

func positionProfit(pos *model.Position, price float64) float64 {
	if pos.Direction == model.DirectionLong {
		return (price - pos.OpenPrice) * pos.Lots
	}
	return (pos.OpenPrice - price) * pos.Lots
}
