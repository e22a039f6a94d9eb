package model

import "time"

// Position is a live broker position. Owned exclusively by the execution
// engine; at most one exists per instrument per strategy identifier.
// JSON tags match the position export record.
type Position struct {
	Ticket     string    `json:"ticket"`
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"type"`
	Lots       float64   `json:"lots"`
	OpenPrice  float64   `json:"openPrice"`
	StopLoss   float64   `json:"sl"`
	TakeProfit float64   `json:"tp"`
	Profit     float64   `json:"profit"`
	OpenTime   time.Time `json:"openTime"`
	StrategyID string    `json:"-"`
}

// AccountSnapshot mirrors broker account state at a point in time.
type AccountSnapshot struct {
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	FreeMargin float64 `json:"freeMargin"`
	Timestamp  int64   `json:"timestamp"`
}
