package strategy

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/config"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/cot"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/seasonal"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/sentiment"
)

const testSymbol = "XAUUSD"

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Signal.DonchianPeriod = 5
	cfg.Signal.ATRPeriod = 3
	cfg.Signal.RiskPercent = 1.0
	cfg.Instruments = map[string]config.Instrument{
		testSymbol: {PointValue: 1, MinLot: 0.01, MaxLot: 100, LotStep: 0.01, FallbackStopDistance: 5},
	}
	return cfg
}

func testSeasons(t *testing.T) *seasonal.Table {
	t.Helper()
	tbl, err := seasonal.Load(filepath.Join(t.TempDir(), "season.json"))
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

// longPermittingStore holds one snapshot with commercial net two standard
// deviations under its mean, dated before any test bar.
func longPermittingStore() *cot.Store {
	s := cot.NewStore()
	s.Replace([]model.COTSnapshot{{
		Symbol:        testSymbol,
		Date:          time.Date(2025, 4, 25, 0, 0, 0, 0, time.UTC),
		CommercialNet: -300,
		Mean3y:        -100,
		Stdev3y:       100,
	}})
	return s
}

func shortPermittingStore() *cot.Store {
	s := cot.NewStore()
	s.Replace([]model.COTSnapshot{{
		Symbol:        testSymbol,
		Date:          time.Date(2025, 4, 25, 0, 0, 0, 0, time.UTC),
		CommercialNet: 100,
		Mean3y:        -100,
		Stdev3y:       100,
	}})
	return s
}

// barSeries returns n daily bars starting at start with High 110, Low 100 and
// Close 105. The final bar's close is overridden, so lastClose == 110 closes
// exactly on the channel upper and lastClose == 100 exactly on the lower.
func barSeries(start time.Time, n int, lastClose float64) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		bars[i] = model.Bar{
			Time:   start.AddDate(0, 0, i),
			Open:   105,
			High:   110,
			Low:    100,
			Close:  105,
			Volume: 1000,
		}
	}
	bars[n-1].Close = lastClose
	return bars
}

// May is seasonally neutral for gold in the default table.
var mayStart = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

func newTestEngine(store *cot.Store, adv sentiment.Advisor, t *testing.T) *Engine {
	return NewEngine(testConfig(), store, testSeasons(t), adv, zerolog.Nop())
}

func almost(got, want float64) bool { return math.Abs(got-want) < 1e-9 }

func TestEvaluate_LongBreakout(t *testing.T) {
	eng := newTestEngine(longPermittingStore(), nil, t)
	sig, err := eng.Evaluate(context.Background(), testSymbol, barSeries(mayStart, 6, 110), 10000)
	if err != nil {
		t.Fatal(err)
	}
	if sig == nil {
		t.Fatal("expected a long signal")
	}
	if sig.Direction != model.DirectionLong || sig.Entry != 110 {
		t.Errorf("unexpected signal %+v", sig)
	}
	// ATR is 10 on this series, so stops sit 15 under and targets 30 over.
	if !almost(sig.StopLoss, 95) || !almost(sig.TakeProfit, 140) {
		t.Errorf("unexpected levels sl=%v tp=%v", sig.StopLoss, sig.TakeProfit)
	}
	// 1% of 10000 over a 15 point stop, snapped down to the lot step.
	if !almost(sig.Lot, 6.66) {
		t.Errorf("unexpected lot %v", sig.Lot)
	}
	if sig.Degraded || sig.Timestamp == 0 {
		t.Errorf("unexpected signal flags %+v", sig)
	}
}

func TestEvaluate_ShortBreakout(t *testing.T) {
	eng := newTestEngine(shortPermittingStore(), nil, t)
	sig, err := eng.Evaluate(context.Background(), testSymbol, barSeries(mayStart, 6, 100), 10000)
	if err != nil {
		t.Fatal(err)
	}
	if sig == nil {
		t.Fatal("expected a short signal")
	}
	if sig.Direction != model.DirectionShort {
		t.Errorf("unexpected direction %v", sig.Direction)
	}
	if !almost(sig.StopLoss, 115) || !almost(sig.TakeProfit, 70) {
		t.Errorf("unexpected levels sl=%v tp=%v", sig.StopLoss, sig.TakeProfit)
	}
}

func TestEvaluate_CloseInsideChannelIsNoSignal(t *testing.T) {
	eng := newTestEngine(longPermittingStore(), nil, t)
	// One tick shy of the boundary is not a breakout.
	sig, err := eng.Evaluate(context.Background(), testSymbol, barSeries(mayStart, 6, 109.99), 10000)
	if err != nil || sig != nil {
		t.Errorf("expected no signal, got %+v err=%v", sig, err)
	}
}

func TestEvaluate_InsufficientHistory(t *testing.T) {
	eng := newTestEngine(longPermittingStore(), nil, t)
	sig, err := eng.Evaluate(context.Background(), testSymbol, barSeries(mayStart, 5, 110), 10000)
	if err != nil || sig != nil {
		t.Errorf("expected no signal on short history, got %+v err=%v", sig, err)
	}
}

func TestEvaluate_COTGate(t *testing.T) {
	t.Run("missing snapshot suppresses", func(t *testing.T) {
		eng := newTestEngine(cot.NewStore(), nil, t)
		sig, err := eng.Evaluate(context.Background(), testSymbol, barSeries(mayStart, 6, 110), 10000)
		if err != nil || sig != nil {
			t.Errorf("expected suppression, got %+v err=%v", sig, err)
		}
	})
	t.Run("snapshot dated after bars suppresses", func(t *testing.T) {
		s := cot.NewStore()
		s.Replace([]model.COTSnapshot{{
			Symbol:        testSymbol,
			Date:          mayStart.AddDate(0, 2, 0),
			CommercialNet: -300,
			Mean3y:        -100,
			Stdev3y:       100,
		}})
		eng := newTestEngine(s, nil, t)
		sig, err := eng.Evaluate(context.Background(), testSymbol, barSeries(mayStart, 6, 110), 10000)
		if err != nil || sig != nil {
			t.Errorf("expected suppression, got %+v err=%v", sig, err)
		}
	})
	t.Run("neutral positioning rejects long", func(t *testing.T) {
		s := cot.NewStore()
		s.Replace([]model.COTSnapshot{{
			Symbol:        testSymbol,
			Date:          time.Date(2025, 4, 25, 0, 0, 0, 0, time.UTC),
			CommercialNet: -100,
			Mean3y:        -100,
			Stdev3y:       100,
		}})
		eng := newTestEngine(s, nil, t)
		sig, err := eng.Evaluate(context.Background(), testSymbol, barSeries(mayStart, 6, 110), 10000)
		if err != nil || sig != nil {
			t.Errorf("expected rejection, got %+v err=%v", sig, err)
		}
	})
	t.Run("short needs positioning above mean", func(t *testing.T) {
		// Longs are permitted here, shorts are not.
		eng := newTestEngine(longPermittingStore(), nil, t)
		sig, err := eng.Evaluate(context.Background(), testSymbol, barSeries(mayStart, 6, 100), 10000)
		if err != nil || sig != nil {
			t.Errorf("expected rejection, got %+v err=%v", sig, err)
		}
	})
}

func TestEvaluate_SeasonalContradictionHalvesSize(t *testing.T) {
	// March is a bear month for gold, so a long trades half size.
	march := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	eng := newTestEngine(longPermittingStore(), nil, t)
	sig, err := eng.Evaluate(context.Background(), testSymbol, barSeries(march, 6, 110), 10000)
	if err != nil {
		t.Fatal(err)
	}
	if sig == nil {
		t.Fatal("seasonal filter must scale, never suppress")
	}
	if !almost(sig.Lot, 3.33) {
		t.Errorf("expected halved lot 3.33, got %v", sig.Lot)
	}
}

type fixedAdvisor struct{ op sentiment.Opinion }

func (f fixedAdvisor) Assess(context.Context, string) sentiment.Opinion { return f.op }

func TestEvaluate_SentimentDamping(t *testing.T) {
	t.Run("high confidence contrary vetoes", func(t *testing.T) {
		adv := fixedAdvisor{sentiment.Opinion{Bias: sentiment.Bearish, Confidence: 0.95}}
		eng := newTestEngine(longPermittingStore(), adv, t)
		sig, err := eng.Evaluate(context.Background(), testSymbol, barSeries(mayStart, 6, 110), 10000)
		if err != nil || sig != nil {
			t.Errorf("expected veto, got %+v err=%v", sig, err)
		}
	})
	t.Run("moderate contrary halves", func(t *testing.T) {
		adv := fixedAdvisor{sentiment.Opinion{Bias: sentiment.Bearish, Confidence: 0.8}}
		eng := newTestEngine(longPermittingStore(), adv, t)
		sig, err := eng.Evaluate(context.Background(), testSymbol, barSeries(mayStart, 6, 110), 10000)
		if err != nil || sig == nil {
			t.Fatalf("expected damped signal, got %+v err=%v", sig, err)
		}
		if !almost(sig.Lot, 3.33) {
			t.Errorf("expected halved lot, got %v", sig.Lot)
		}
	})
	t.Run("agreeing sentiment leaves size alone", func(t *testing.T) {
		adv := fixedAdvisor{sentiment.Opinion{Bias: sentiment.Bullish, Confidence: 0.99}}
		eng := newTestEngine(longPermittingStore(), adv, t)
		sig, err := eng.Evaluate(context.Background(), testSymbol, barSeries(mayStart, 6, 110), 10000)
		if err != nil || sig == nil {
			t.Fatalf("expected signal, got %+v err=%v", sig, err)
		}
		if !almost(sig.Lot, 6.66) {
			t.Errorf("expected full lot, got %v", sig.Lot)
		}
	})
}

func TestEvaluate_ZeroATRFallsBackAndFlagsDegraded(t *testing.T) {
	cfg := testConfig()
	cfg.Signal.ATRPeriod = 10 // more than the series can cover
	eng := NewEngine(cfg, longPermittingStore(), testSeasons(t), nil, zerolog.Nop())
	sig, err := eng.Evaluate(context.Background(), testSymbol, barSeries(mayStart, 6, 110), 10000)
	if err != nil {
		t.Fatal(err)
	}
	if sig == nil {
		t.Fatal("expected a degraded signal")
	}
	if !sig.Degraded {
		t.Error("expected degraded flag")
	}
	if !almost(sig.StopLoss, 105) || !almost(sig.TakeProfit, 120) {
		t.Errorf("expected fallback distances, got sl=%v tp=%v", sig.StopLoss, sig.TakeProfit)
	}
}

func TestEvaluate_UnsizableSignalDropped(t *testing.T) {
	eng := newTestEngine(longPermittingStore(), nil, t)
	sig, err := eng.Evaluate(context.Background(), testSymbol, barSeries(mayStart, 6, 110), 0)
	if err != nil || sig != nil {
		t.Errorf("expected drop on zero equity, got %+v err=%v", sig, err)
	}
}

func TestEvaluate_DuplicateBarTimestampsError(t *testing.T) {
	bars := barSeries(mayStart, 6, 110)
	bars[3].Time = bars[2].Time
	eng := newTestEngine(longPermittingStore(), nil, t)
	if _, err := eng.Evaluate(context.Background(), testSymbol, bars, 10000); err == nil {
		t.Error("expected error on duplicate timestamps")
	}
}
