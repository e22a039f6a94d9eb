package model

import "time"

// COTSnapshot is one week of Commitment of Traders positioning for an
// instrument, together with its 3-year commercial-net statistics.
type COTSnapshot struct {
	Symbol        string
	Date          time.Time
	CommercialNet float64
	Mean3y        float64
	Stdev3y       float64
}

// Normalized returns the commercial net position as standard deviations from
// its 3-year mean. Zero stdev yields 0.
func (c COTSnapshot) Normalized() float64 {
	if c.Stdev3y == 0 {
		return 0
	}
	return (c.CommercialNet - c.Mean3y) / c.Stdev3y
}
