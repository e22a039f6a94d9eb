package model

import (
	"errors"
	"sort"
	"time"
)

// Bar represents a single daily OHLC candlestick for one instrument.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// SortBars orders bars oldest-first in place.
func SortBars(bars []Bar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
}

// ValidateSeries checks that bars are oldest-first with no duplicate timestamps.
func ValidateSeries(bars []Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return errors.New("bars must be strictly increasing by timestamp")
		}
	}
	return nil
}
