package model

// Bias is the expected seasonal direction for a calendar month.
type Bias string

const (
	BiasBull    Bias = "BULL"
	BiasBear    Bias = "BEAR"
	BiasNeutral Bias = "NEUTRAL"
)
