package seasonal

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
)

// profile lists the bullish and bearish calendar months for one instrument.
type profile struct {
	Bull []int `json:"bull"`
	Bear []int `json:"bear"`
}

// Table is the static seasonal reference: per instrument, which calendar
// months carry a long or short bias. It never suppresses a trade, it only
// scales size.
type Table struct {
	profiles map[string]profile
}

// defaultProfiles is seeded to disk on first run when no season file exists.
var defaultProfiles = map[string]profile{
	"XAUUSD":    {Bull: []int{1, 2, 8, 9}, Bear: []int{3, 6, 10}},
	"XAGUSD":    {Bull: []int{1, 2, 7}, Bear: []int{3, 5, 9, 10}},
	"WTICOUSD":  {Bull: []int{1, 2, 3, 7, 8}, Bear: []int{9, 10, 11}},
	"BCOUSD":    {Bull: []int{1, 2, 3, 7, 8}, Bear: []int{9, 10, 11}},
	"NATGASUSD": {Bull: []int{1, 2, 7, 12}, Bear: []int{3, 4, 8, 9}},
	"CORNUSD":   {Bull: []int{3, 4, 6}, Bear: []int{9, 10, 11}},
	"SOYBNUSD":  {Bull: []int{2, 3, 6, 7}, Bear: []int{8, 9, 10}},
	"WHEATUSD":  {Bull: []int{4, 5, 6}, Bear: []int{1, 2, 9}},
}

// Load reads the seasonal table from a JSON file. If the file does not exist
// the default table is written there and returned.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		seeded, mErr := json.MarshalIndent(defaultProfiles, "", "  ")
		if mErr != nil {
			return nil, fmt.Errorf("marshal default seasonal table: %w", mErr)
		}
		if wErr := os.WriteFile(path, seeded, 0644); wErr != nil {
			return nil, fmt.Errorf("seed seasonal table: %w", wErr)
		}
		return &Table{profiles: defaultProfiles}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seasonal table: %w", err)
	}

	profiles := make(map[string]profile)
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parse seasonal table: %w", err)
	}
	return &Table{profiles: profiles}, nil
}

// Bias returns the expected seasonal direction for symbol in the month of t.
// Unknown symbols and unlisted months are neutral.
func (t *Table) Bias(symbol string, at time.Time) model.Bias {
	p, ok := t.profiles[symbol]
	if !ok {
		return model.BiasNeutral
	}
	month := int(at.Month())
	for _, m := range p.Bull {
		if m == month {
			return model.BiasBull
		}
	}
	for _, m := range p.Bear {
		if m == month {
			return model.BiasBear
		}
	}
	return model.BiasNeutral
}

// Multiplier maps direction against bias: matching bias trades full size,
// contradicting bias trades half, neutral trades full.
func Multiplier(direction model.Direction, bias model.Bias) float64 {
	switch {
	case bias == model.BiasNeutral:
		return 1.0
	case direction == model.DirectionLong && bias == model.BiasBull:
		return 1.0
	case direction == model.DirectionShort && bias == model.BiasBear:
		return 1.0
	default:
		return 0.5
	}
}
