package cot

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
)

// Column indexes into the CFTC legacy report. The report is a quoted CSV; the
// first column is the market name, the commercial long/short contract counts
// sit at fixed offsets.
const (
	colMarket    = 0
	colDate      = 2
	colCommLong  = 8
	colCommShort = 9
)

// weeksPerThreeYears bounds the rolling window for the commercial-net stats.
const weeksPerThreeYears = 156

// DefaultMarketMap translates CFTC market names to trading symbols.
var DefaultMarketMap = map[string]string{
	"GOLD":                    "XAUUSD",
	"SILVER":                  "XAGUSD",
	"CRUDE OIL, LIGHT SWEET":  "WTICOUSD",
	"CRUDE OIL, BRENT":        "BCOUSD",
	"NATURAL GAS":             "NATGASUSD",
	"CORN":                    "CORNUSD",
	"SOYBEANS":                "SOYBNUSD",
	"WHEAT":                   "WHEATUSD",
}

// Updater downloads the COT report, converts it to per-symbol snapshots with
// 3-year rolling commercial-net statistics, and merges it into prior history.
type Updater struct {
	Fetcher   Fetcher
	MarketMap map[string]string
}

// NewUpdater creates an updater with the default market mapping.
func NewUpdater(fetcher Fetcher) *Updater {
	return &Updater{Fetcher: fetcher, MarketMap: DefaultMarketMap}
}

// Update fetches the report and returns the merged snapshot set. prior holds
// the previously cached snapshots; rows already present (same symbol and
// date) are replaced by the fresh download.
func (u *Updater) Update(ctx context.Context, prior []model.COTSnapshot) ([]model.COTSnapshot, error) {
	body, err := u.Fetcher.FetchReport(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse cot report: %w", err)
	}

	type rawEntry struct {
		date time.Time
		net  float64
	}
	fresh := make(map[string][]rawEntry)
	for _, row := range rows {
		if len(row) <= colCommShort {
			continue
		}
		symbol, ok := u.lookupSymbol(row[colMarket])
		if !ok {
			continue
		}
		date, err := time.Parse(dateLayout, strings.TrimSpace(row[colDate]))
		if err != nil {
			continue
		}
		long, err1 := strconv.ParseFloat(strings.TrimSpace(row[colCommLong]), 64)
		short, err2 := strconv.ParseFloat(strings.TrimSpace(row[colCommShort]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		fresh[symbol] = append(fresh[symbol], rawEntry{date: date, net: long - short})
	}
	if len(fresh) == 0 {
		return nil, fmt.Errorf("cot report contained no mapped markets")
	}

	// Merge histories per symbol, fresh rows winning on date collisions.
	merged := make(map[string]map[time.Time]float64)
	for _, snap := range prior {
		if merged[snap.Symbol] == nil {
			merged[snap.Symbol] = make(map[time.Time]float64)
		}
		merged[snap.Symbol][snap.Date] = snap.CommercialNet
	}
	for sym, entries := range fresh {
		if merged[sym] == nil {
			merged[sym] = make(map[time.Time]float64)
		}
		for _, e := range entries {
			merged[sym][e.date] = e.net
		}
	}

	var out []model.COTSnapshot
	for sym, byDate := range merged {
		dates := make([]time.Time, 0, len(byDate))
		for d := range byDate {
			dates = append(dates, d)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

		nets := make([]float64, len(dates))
		for i, d := range dates {
			nets[i] = byDate[d]
		}
		for i, d := range dates {
			mean, stdev := rollingStats(nets, i)
			out = append(out, model.COTSnapshot{
				Symbol:        sym,
				Date:          d,
				CommercialNet: nets[i],
				Mean3y:        mean,
				Stdev3y:       stdev,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (u *Updater) lookupSymbol(market string) (string, bool) {
	name := strings.ToUpper(strings.TrimSpace(market))
	// The report appends the exchange after a " - " separator.
	if idx := strings.Index(name, " - "); idx >= 0 {
		name = strings.TrimSpace(name[:idx])
	}
	sym, ok := u.MarketMap[name]
	return sym, ok
}

// rollingStats computes mean and population stdev of nets over the trailing
// three-year window ending at index i (inclusive).
func rollingStats(nets []float64, i int) (mean, stdev float64) {
	start := i - weeksPerThreeYears + 1
	if start < 0 {
		start = 0
	}
	window := nets[start : i+1]
	for _, v := range window {
		mean += v
	}
	mean /= float64(len(window))
	for _, v := range window {
		stdev += (v - mean) * (v - mean)
	}
	stdev = math.Sqrt(stdev / float64(len(window)))
	return mean, stdev
}
