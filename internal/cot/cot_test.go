package cot

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestStore_LatestIsPointInTime(t *testing.T) {
	store := NewStore()
	store.Replace([]model.COTSnapshot{
		{Symbol: "XAUUSD", Date: day(2025, 1, 7), CommercialNet: -100},
		{Symbol: "XAUUSD", Date: day(2025, 1, 14), CommercialNet: -200},
		{Symbol: "XAUUSD", Date: day(2025, 1, 21), CommercialNet: -300},
	})

	// Bar dated between two snapshots sees only the older one.
	snap, ok := store.Latest("XAUUSD", day(2025, 1, 16))
	if !ok {
		t.Fatal("expected a snapshot")
	}
	if snap.CommercialNet != -200 {
		t.Errorf("lookup leaked a future snapshot: got net %v", snap.CommercialNet)
	}

	// Bar exactly on a snapshot date sees that snapshot.
	snap, _ = store.Latest("XAUUSD", day(2025, 1, 21))
	if snap.CommercialNet != -300 {
		t.Errorf("expected same-day snapshot, got net %v", snap.CommercialNet)
	}

	// Bar before all snapshots sees nothing.
	if _, ok := store.Latest("XAUUSD", day(2024, 12, 31)); ok {
		t.Error("expected no snapshot before history starts")
	}
	if _, ok := store.Latest("CORNUSD", day(2025, 2, 1)); ok {
		t.Error("expected no snapshot for unknown symbol")
	}
}

func TestSaveLoadCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cot.csv")
	in := []model.COTSnapshot{
		{Symbol: "XAUUSD", Date: day(2025, 3, 4), CommercialNet: -1234.5, Mean3y: -1000, Stdev3y: 150},
		{Symbol: "CORNUSD", Date: day(2025, 3, 4), CommercialNet: 87, Mean3y: 12, Stdev3y: 40},
	}
	if err := SaveCSV(path, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(out))
	}
	if out[0] != in[0] || out[1] != in[1] {
		t.Errorf("round trip mismatch: %+v vs %+v", out, in)
	}
}

func reportRow(market, date string, long, short float64) string {
	// Pad unused columns up to the commercial long/short offsets.
	return fmt.Sprintf("%q,x,%s,x,x,x,x,x,%v,%v\n", market, date, long, short)
}

func TestUpdater_ParsesMappedMarkets(t *testing.T) {
	report := reportRow("GOLD - COMMODITY EXCHANGE INC.", "2025-03-04", 150000, 250000) +
		reportRow("FROZEN CONCENTRATED ORANGE JUICE", "2025-03-04", 1, 2) +
		reportRow("CORN - CHICAGO BOARD OF TRADE", "2025-03-04", 300000, 280000)

	u := NewUpdater(&MockFetcher{Report: report})
	snaps, err := u.Update(context.Background(), nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots (unmapped market dropped), got %d", len(snaps))
	}
	byNet := map[string]float64{}
	for _, s := range snaps {
		byNet[s.Symbol] = s.CommercialNet
	}
	if byNet["XAUUSD"] != -100000 {
		t.Errorf("gold net: got %v", byNet["XAUUSD"])
	}
	if byNet["CORNUSD"] != 20000 {
		t.Errorf("corn net: got %v", byNet["CORNUSD"])
	}
}

func TestUpdater_MergeKeepsHistoryAndComputesStats(t *testing.T) {
	prior := []model.COTSnapshot{
		{Symbol: "XAUUSD", Date: day(2025, 2, 25), CommercialNet: -100},
	}
	report := reportRow("GOLD", "2025-03-04", 100, 400) // net -300

	u := NewUpdater(&MockFetcher{Report: report})
	snaps, err := u.Update(context.Background(), prior)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected merged history of 2, got %d", len(snaps))
	}
	last := snaps[1]
	if last.Date != day(2025, 3, 4) || last.CommercialNet != -300 {
		t.Fatalf("unexpected last snapshot: %+v", last)
	}
	// Window is {-100, -300}: mean -200, population stdev 100.
	if last.Mean3y != -200 || last.Stdev3y != 100 {
		t.Errorf("rolling stats wrong: mean %v stdev %v", last.Mean3y, last.Stdev3y)
	}
	if last.Normalized() != -1 {
		t.Errorf("normalized: got %v, want -1", last.Normalized())
	}
}

func TestUpdater_EmptyReportErrors(t *testing.T) {
	u := NewUpdater(&MockFetcher{Report: reportRow("PORK BELLIES", "2025-03-04", 1, 2)})
	if _, err := u.Update(context.Background(), nil); err == nil {
		t.Error("expected error when no mapped market parsed")
	}
}
