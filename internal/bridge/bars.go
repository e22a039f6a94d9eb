package bridge

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
)

const barTimeLayout = "2006-01-02 15:04:05"

// BarWindow exports and imports the rolling bar history per instrument, as a
// CSV record rewritten wholesale on every new bar. The executor writes it, the
// signal engine reads it.
type BarWindow struct {
	slot Slot
	// Window is the number of most-recent bars kept per instrument.
	Window int
}

func NewBarWindow(slot Slot, window int) *BarWindow {
	if window <= 0 {
		window = 100
	}
	return &BarWindow{slot: slot, Window: window}
}

func barKey(symbol string) string {
	return "OHLC_" + symbol + ".csv"
}

// WriteBars publishes the last Window bars for symbol, oldest first.
func (w *BarWindow) WriteBars(ctx context.Context, symbol string, bars []model.Bar) error {
	if len(bars) > w.Window {
		bars = bars[len(bars)-w.Window:]
	}
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write([]string{"DateTime", "Open", "High", "Low", "Close", "Volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		record := []string{
			b.Time.UTC().Format(barTimeLayout),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("encode bars: %w", err)
	}
	return w.slot.Write(ctx, barKey(symbol), buf.Bytes())
}

// ReadBars fetches the bar window for symbol, oldest first. Rows that do not
// parse are skipped rather than failing the whole read.
func (w *BarWindow) ReadBars(ctx context.Context, symbol string) ([]model.Bar, error) {
	data, err := w.slot.Read(ctx, barKey(symbol))
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	var bars []model.Bar
	for i, row := range rows {
		if i == 0 || len(row) < 6 {
			continue // header or short row
		}
		ts, err := time.Parse(barTimeLayout, row[0])
		if err != nil {
			continue
		}
		open, e1 := strconv.ParseFloat(row[1], 64)
		high, e2 := strconv.ParseFloat(row[2], 64)
		low, e3 := strconv.ParseFloat(row[3], 64)
		closePx, e4 := strconv.ParseFloat(row[4], 64)
		volume, e5 := strconv.ParseFloat(row[5], 64)
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
			continue
		}
		bars = append(bars, model.Bar{
			Time: ts.UTC(), Open: open, High: high, Low: low, Close: closePx, Volume: volume,
		})
	}
	model.SortBars(bars)
	return bars, nil
}
