package bridge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
)

func newFileSlot(t *testing.T) *FileSlot {
	t.Helper()
	slot, err := NewFileSlot(t.TempDir())
	if err != nil {
		t.Fatalf("new file slot: %v", err)
	}
	return slot
}

func TestFileSlot_ReadMissingKey(t *testing.T) {
	slot := newFileSlot(t)
	if _, err := slot.Read(context.Background(), "signal_XAUUSD.json"); !errors.Is(err, ErrNoRecord) {
		t.Errorf("expected ErrNoRecord, got %v", err)
	}
}

func TestFileSlot_WriteReplacesAndLeavesNoTemp(t *testing.T) {
	ctx := context.Background()
	slot := newFileSlot(t)
	if err := slot.Write(ctx, "k", []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := slot.Write(ctx, "k", []byte("second")); err != nil {
		t.Fatal(err)
	}
	data, err := slot.Read(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("expected last-value-wins, got %q", data)
	}
	entries, _ := os.ReadDir(slot.Dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestSignalMailbox_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mailbox := NewSignalMailbox(newFileSlot(t))
	in := model.Signal{
		Symbol:     "XAUUSD",
		Direction:  model.DirectionLong,
		Entry:      2400.5,
		StopLoss:   2385.0,
		TakeProfit: 2431.5,
		Lot:        0.5,
		Timestamp:  1735600000,
	}
	if err := mailbox.Publish(ctx, in); err != nil {
		t.Fatalf("publish: %v", err)
	}
	out, err := mailbox.Fetch(ctx, "XAUUSD")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: %+v vs %+v", out, in)
	}
	// Other instruments are independent slots.
	if _, err := mailbox.Fetch(ctx, "CORNUSD"); !errors.Is(err, ErrNoRecord) {
		t.Errorf("expected ErrNoRecord for other symbol, got %v", err)
	}
}

func TestSignalMailbox_MalformedRecords(t *testing.T) {
	ctx := context.Background()
	slot := newFileSlot(t)
	mailbox := NewSignalMailbox(slot)

	// Truncated JSON.
	if err := os.WriteFile(filepath.Join(slot.Dir, "signal_XAUUSD.json"), []byte(`{"symbol":"XAU`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := mailbox.Fetch(ctx, "XAUUSD"); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord for truncated json, got %v", err)
	}

	// Valid JSON, wrong symbol.
	if err := slot.Write(ctx, "signal_XAUUSD.json",
		[]byte(`{"symbol":"CORNUSD","direction":"BUY","timestamp":5}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := mailbox.Fetch(ctx, "XAUUSD"); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord for symbol mismatch, got %v", err)
	}

	// Missing timestamp means nothing to do.
	if err := slot.Write(ctx, "signal_XAUUSD.json",
		[]byte(`{"symbol":"XAUUSD","direction":"BUY"}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := mailbox.Fetch(ctx, "XAUUSD"); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord for zero timestamp, got %v", err)
	}
}

func TestBarWindow_RoundTripAndWindowing(t *testing.T) {
	ctx := context.Background()
	window := NewBarWindow(newFileSlot(t), 3)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, 5)
	for i := range bars {
		bars[i] = model.Bar{
			Time: base.AddDate(0, 0, i), Open: 10 + float64(i), High: 11 + float64(i),
			Low: 9 + float64(i), Close: 10.5 + float64(i), Volume: 100,
		}
	}
	if err := window.WriteBars(ctx, "WTICOUSD", bars); err != nil {
		t.Fatalf("write bars: %v", err)
	}
	got, err := window.ReadBars(ctx, "WTICOUSD")
	if err != nil {
		t.Fatalf("read bars: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected window of 3 bars, got %d", len(got))
	}
	if !got[0].Time.Equal(bars[2].Time) || got[2].Close != bars[4].Close {
		t.Errorf("window kept wrong bars: %+v", got)
	}
}

func TestBarWindow_SkipsBadRows(t *testing.T) {
	ctx := context.Background()
	slot := newFileSlot(t)
	window := NewBarWindow(slot, 100)
	body := "DateTime,Open,High,Low,Close,Volume\n" +
		"2025-06-01 00:00:00,10,11,9,10.5,100\n" +
		"not-a-date,1,2,3,4,5\n" +
		"2025-06-02 00:00:00,11,12,10,11.5,100\n"
	if err := slot.Write(ctx, "OHLC_XAUUSD.csv", []byte(body)); err != nil {
		t.Fatal(err)
	}
	bars, err := window.ReadBars(ctx, "XAUUSD")
	if err != nil {
		t.Fatalf("read bars: %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("expected bad row skipped, got %d bars", len(bars))
	}
}

func TestStateMailbox_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mailbox := NewStateMailbox(newFileSlot(t), "donchian-breakout")

	export := StateExport{
		Positions: []model.Position{{
			Ticket: "t-1", Symbol: "XAUUSD", Direction: model.DirectionLong,
			Lots: 0.5, OpenPrice: 2400, StopLoss: 2390, TakeProfit: 2430,
			OpenTime: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}},
		Account: model.AccountSnapshot{Balance: 10000, Equity: 10100, Timestamp: 1735600000},
		LastError: &TradeError{
			Op: "open", Symbol: "XAUUSD", Code: 134, Message: "not enough money",
			Recoverable: false, At: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}
	if err := mailbox.Publish(ctx, export); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got, err := mailbox.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got.Positions) != 1 || got.Positions[0].Ticket != "t-1" {
		t.Errorf("positions mismatch: %+v", got.Positions)
	}
	if got.Account.Equity != 10100 {
		t.Errorf("account mismatch: %+v", got.Account)
	}
	if got.LastError == nil || got.LastError.Code != 134 {
		t.Errorf("fatal error not carried in export: %+v", got.LastError)
	}
}

func TestStateMailbox_EmptyPositionsEncodesAsArray(t *testing.T) {
	ctx := context.Background()
	slot := newFileSlot(t)
	mailbox := NewStateMailbox(slot, "s1")
	if err := mailbox.Publish(ctx, StateExport{}); err != nil {
		t.Fatal(err)
	}
	data, err := slot.Read(ctx, "state_s1.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) == "" || string(data[0]) != "{" {
		t.Fatalf("unexpected record: %s", data)
	}
	if !strings.Contains(string(data), `"positions":[]`) {
		t.Errorf("flat state must export an empty array, got %s", data)
	}
}
