package model

// Direction is the trade side carried by a signal.
type Direction string

const (
	DirectionLong  Direction = "BUY"
	DirectionShort Direction = "SELL"
)

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// Valid reports whether d is one of the two known sides.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Signal is the complete desired state for one instrument, produced by the
// signal engine and consumed at most once per Timestamp by the executor.
// Field names match the bridge record format read by the execution host.
type Signal struct {
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"sl"`
	TakeProfit float64   `json:"tp"`
	Lot        float64   `json:"lot"`
	Timestamp  int64     `json:"timestamp"`
	// Degraded marks a signal whose stop distance came from the configured
	// fallback because ATR was zero.
	Degraded bool `json:"degraded,omitempty"`
}
