// Package broker abstracts the market-execution backend the executor talks
// to. One concrete implementation ships here (the in-memory paper broker);
// real terminals plug in behind the same interface.
package broker

import (
	"context"
	"time"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
)

// Quote is a live bid/ask pair for one instrument.
type Quote struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

// Mid returns the quote midpoint.
func (q Quote) Mid() float64 { return (q.Bid + q.Ask) / 2 }

// OpenRequest describes a market order to be placed.
type OpenRequest struct {
	Symbol     string
	Direction  model.Direction
	Lots       float64
	Price      float64 // requested fill: ask for BUY, bid for SELL
	StopLoss   float64
	TakeProfit float64
	StrategyID string
}

// Broker is the minimal surface the executor needs.
type Broker interface {
	Name() string
	GetQuote(ctx context.Context, symbol string) (Quote, error)
	GetRecentBars(ctx context.Context, symbol string, limit int) ([]model.Bar, error)
	OpenOrder(ctx context.Context, req OpenRequest) (*model.Position, error)
	ListPositions(ctx context.Context, strategyID string) ([]model.Position, error)
	CloseOrder(ctx context.Context, ticket string, price float64) error
	ModifyStop(ctx context.Context, ticket string, stopLoss float64) error
	GetAccount(ctx context.Context) (model.AccountSnapshot, error)
}
