package sentiment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
)

func TestAdjust(t *testing.T) {
	tests := []struct {
		name      string
		direction model.Direction
		op        Opinion
		wantMult  float64
		wantSkip  bool
	}{
		{"neutral never dampens", model.DirectionLong, Opinion{Neutral, 0.99}, 1.0, false},
		{"agreeing bias never dampens", model.DirectionLong, Opinion{Bullish, 0.99}, 1.0, false},
		{"contrary low confidence ignored", model.DirectionLong, Opinion{Bearish, 0.5}, 1.0, false},
		{"contrary at threshold ignored", model.DirectionLong, Opinion{Bearish, 0.7}, 1.0, false},
		{"contrary moderate halves", model.DirectionLong, Opinion{Bearish, 0.8}, 0.5, false},
		{"contrary high skips", model.DirectionLong, Opinion{Bearish, 0.95}, 0, true},
		{"short side mirrors", model.DirectionShort, Opinion{Bullish, 0.8}, 0.5, false},
		{"short agreeing untouched", model.DirectionShort, Opinion{Bearish, 0.95}, 1.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mult, skip := Adjust(tt.direction, tt.op)
			if mult != tt.wantMult || skip != tt.wantSkip {
				t.Errorf("Adjust() = (%v, %v), want (%v, %v)", mult, skip, tt.wantMult, tt.wantSkip)
			}
		})
	}
}

func TestHTTPAdvisor_Assess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "XAUUSD" {
			t.Errorf("unexpected symbol %q", got)
		}
		w.Write([]byte(`{"bias":"bearish","confidence":0.85}`))
	}))
	defer srv.Close()

	adv := NewHTTPAdvisor(srv.URL, time.Second, zerolog.Nop())
	op := adv.Assess(context.Background(), "XAUUSD")
	if op.Bias != Bearish || op.Confidence != 0.85 {
		t.Errorf("unexpected opinion %+v", op)
	}
}

func TestHTTPAdvisor_DegradesToNeutral(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	adv := NewHTTPAdvisor(srv.URL, time.Second, zerolog.Nop())
	if op := adv.Assess(context.Background(), "XAUUSD"); op.Bias != Neutral {
		t.Errorf("expected neutral fallback, got %+v", op)
	}

	// Unreachable host behaves the same way.
	down := NewHTTPAdvisor("http://127.0.0.1:1", 200*time.Millisecond, zerolog.Nop())
	if op := down.Assess(context.Background(), "XAUUSD"); op.Bias != Neutral {
		t.Errorf("expected neutral fallback, got %+v", op)
	}
}

func TestHTTPAdvisor_NormalizesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bias":"moon","confidence":3.2}`))
	}))
	defer srv.Close()

	adv := NewHTTPAdvisor(srv.URL, time.Second, zerolog.Nop())
	op := adv.Assess(context.Background(), "CORNUSD")
	if op.Bias != Neutral || op.Confidence != 1.0 {
		t.Errorf("expected clamped neutral opinion, got %+v", op)
	}
}
