package cot

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
)

const dateLayout = "2006-01-02"

// Store holds COT snapshots per symbol, sorted by date, and answers
// point-in-time lookups: the latest snapshot at or before a given bar date.
type Store struct {
	mu       sync.RWMutex
	bySymbol map[string][]model.COTSnapshot
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{bySymbol: make(map[string][]model.COTSnapshot)}
}

// Replace swaps in a full set of snapshots, sorting each symbol's series by date.
func (s *Store) Replace(snaps []model.COTSnapshot) {
	grouped := make(map[string][]model.COTSnapshot)
	for _, snap := range snaps {
		grouped[snap.Symbol] = append(grouped[snap.Symbol], snap)
	}
	for sym := range grouped {
		series := grouped[sym]
		sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
		grouped[sym] = series
	}
	s.mu.Lock()
	s.bySymbol = grouped
	s.mu.Unlock()
}

// Latest returns the most recent snapshot for symbol dated at or before asof.
// The bound is what keeps the COT filter point-in-time correct: a snapshot
// published after the bar being evaluated must never influence it.
func (s *Store) Latest(symbol string, asof time.Time) (model.COTSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.bySymbol[symbol]
	// Binary search for the first snapshot after asof.
	i := sort.Search(len(series), func(i int) bool { return series[i].Date.After(asof) })
	if i == 0 {
		return model.COTSnapshot{}, false
	}
	return series[i-1], true
}

// Len returns the total number of snapshots held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, series := range s.bySymbol {
		n += len(series)
	}
	return n
}

// LoadCSV reads snapshots from the on-disk cache produced by SaveCSV.
func LoadCSV(path string) ([]model.COTSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cot csv: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read cot csv: %w", err)
	}

	var snaps []model.COTSnapshot
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == "date" {
			continue // header
		}
		if len(row) < 5 {
			continue
		}
		date, err := time.Parse(dateLayout, row[0])
		if err != nil {
			continue
		}
		net, err1 := strconv.ParseFloat(row[2], 64)
		mean, err2 := strconv.ParseFloat(row[3], 64)
		stdev, err3 := strconv.ParseFloat(row[4], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		snaps = append(snaps, model.COTSnapshot{
			Symbol:        row[1],
			Date:          date,
			CommercialNet: net,
			Mean3y:        mean,
			Stdev3y:       stdev,
		})
	}
	return snaps, nil
}

// SaveCSV persists snapshots to the on-disk cache.
func SaveCSV(path string, snaps []model.COTSnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create cot csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "symbol", "commercial_net", "mean_3y", "stdev_3y"}); err != nil {
		return err
	}
	for _, snap := range snaps {
		record := []string{
			snap.Date.Format(dateLayout),
			snap.Symbol,
			strconv.FormatFloat(snap.CommercialNet, 'f', -1, 64),
			strconv.FormatFloat(snap.Mean3y, 'f', -1, 64),
			strconv.FormatFloat(snap.Stdev3y, 'f', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write cot csv: %w", err)
	}
	return nil
}
