package recorder

import "github.com/andreapianidev/OpenTradingMT4bot/internal/model"

// OrderEvent records one broker order attempt and its outcome.
type OrderEvent struct {
	Op        string // "open", "close" or "modify"
	Symbol    string
	Ticket    string
	Direction string
	Lots      float64
	Price     float64
	StopLoss  float64
	Attempts  int
	ErrorCode int
	Error     string
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordSignal(sig model.Signal) error
	RecordOrder(evt *OrderEvent) error
	RecordAccount(snap model.AccountSnapshot) error
	Close() error
}
