// Package sentiment consults an external news-analysis service for a
// directional opinion on a symbol. The opinion only dampens signal size; the
// breakout and COT logic never depend on it, so every failure path degrades
// to a neutral opinion instead of surfacing an error.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
)

// Bias is the service's directional read on a symbol.
type Bias string

const (
	Bullish Bias = "bullish"
	Bearish Bias = "bearish"
	Neutral Bias = "neutral"
)

// Opinion pairs a bias with the service's confidence in it (0..1).
type Opinion struct {
	Bias       Bias    `json:"bias"`
	Confidence float64 `json:"confidence"`
}

// Advisor produces an opinion for a symbol.
type Advisor interface {
	Assess(ctx context.Context, symbol string) Opinion
}

// Adjust converts an opinion into a size multiplier for a signal in the given
// direction. A high-confidence contrary opinion vetoes the signal entirely,
// a moderately confident one halves its size, anything else leaves it alone.
func Adjust(direction model.Direction, op Opinion) (multiplier float64, skip bool) {
	contrary := (direction == model.DirectionLong && op.Bias == Bearish) ||
		(direction == model.DirectionShort && op.Bias == Bullish)
	if !contrary || op.Confidence <= 0.7 {
		return 1.0, false
	}
	if op.Confidence > 0.9 {
		return 0, true
	}
	return 0.5, false
}

// Noop always reports a neutral opinion. Used when sentiment is disabled.
type Noop struct{}

func (Noop) Assess(context.Context, string) Opinion {
	return Opinion{Bias: Neutral}
}

// HTTPAdvisor queries a sentiment endpoint over HTTP. The endpoint is
// expected to answer GET {base}/sentiment?symbol=SYM with an Opinion JSON
// body.
type HTTPAdvisor struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func NewHTTPAdvisor(baseURL string, timeout time.Duration, log zerolog.Logger) *HTTPAdvisor {
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return &HTTPAdvisor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "sentiment").Logger(),
	}
}

func (a *HTTPAdvisor) Assess(ctx context.Context, symbol string) Opinion {
	op, err := a.fetch(ctx, symbol)
	if err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("sentiment unavailable, treating as neutral")
		return Opinion{Bias: Neutral}
	}
	return op
}

func (a *HTTPAdvisor) fetch(ctx context.Context, symbol string) (Opinion, error) {
	endpoint := fmt.Sprintf("%s/sentiment?symbol=%s", a.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Opinion{}, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return Opinion{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Opinion{}, fmt.Errorf("sentiment service returned %d", resp.StatusCode)
	}
	var op Opinion
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return Opinion{}, fmt.Errorf("decode sentiment response: %w", err)
	}
	return normalize(op), nil
}

func normalize(op Opinion) Opinion {
	switch op.Bias {
	case Bullish, Bearish, Neutral:
	default:
		op.Bias = Neutral
	}
	if op.Confidence < 0 {
		op.Confidence = 0
	}
	if op.Confidence > 1 {
		op.Confidence = 1
	}
	return op
}
