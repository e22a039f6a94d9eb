// Package feed hosts pluggable tick sources for the executor. Fresh quotes
// drive the trailing stop between poll cycles; the executor works without a
// feed but trails less responsively.
package feed

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/broker"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/metrics"
)

const (
	// ProviderBroker polls the broker's quote endpoint on an interval.
	ProviderBroker = "broker"
	// ProviderWebsocket streams quotes from an external gateway.
	ProviderWebsocket = "websocket"
	// ProviderStub emits deterministic synthetic quotes for tests and offline work.
	ProviderStub = "stub"
)

// Tick is one two-sided quote observation.
type Tick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"-"`
}

// Feed represents a pluggable quote stream implementation.
type Feed struct {
	provider string
	symbols  []string
	broker   broker.Broker
	wsURL    string
	interval time.Duration
	log      zerolog.Logger
	mu       sync.RWMutex
}

// Option configures Feed construction parameters.
type Option func(*Feed)

const defaultInterval = time.Second

// WithInterval overrides the default cadence for polling providers.
func WithInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithBroker supplies the quote source for the broker provider.
func WithBroker(b broker.Broker) Option {
	return func(f *Feed) { f.broker = b }
}

// WithWebsocketURL points the websocket provider at a quote gateway.
func WithWebsocketURL(url string) Option {
	return func(f *Feed) { f.wsURL = url }
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider string, symbols []string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider: strings.ToLower(provider),
		interval: defaultInterval,
		log:      log.With().Str("component", "feed").Logger(),
	}
	f.setSymbols(symbols)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Feed) setSymbols(symbols []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unique := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		unique[sym] = struct{}{}
	}
	f.symbols = f.symbols[:0]
	for sym := range unique {
		f.symbols = append(f.symbols, sym)
	}
	sort.Strings(f.symbols)
}

func (f *Feed) snapshotSymbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.symbols))
	copy(out, f.symbols)
	return out
}

// Run pushes ticks onto the provided channel until the context is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- Tick) error {
	switch f.provider {
	case ProviderBroker:
		return f.runBrokerPoll(ctx, out)
	case ProviderWebsocket:
		return f.runWebsocket(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

func (f *Feed) runBrokerPoll(ctx context.Context, out chan<- Tick) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, sym := range f.snapshotSymbols() {
				q, err := f.broker.GetQuote(ctx, sym)
				if err != nil {
					f.log.Warn().Err(err).Str("symbol", sym).Msg("quote poll failed")
					continue
				}
				tick := Tick{Symbol: sym, Bid: q.Bid, Ask: q.Ask, Time: q.Time}
				select {
				case out <- tick:
					metrics.TicksTotal.WithLabelValues(sym).Inc()
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (f *Feed) runStub(ctx context.Context, out chan<- Tick) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	var px float64 = 100.0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			px += 0.1
			for _, sym := range f.snapshotSymbols() {
				tick := Tick{Symbol: sym, Bid: px, Ask: px + 0.05, Time: ts}
				select {
				case out <- tick:
					metrics.TicksTotal.WithLabelValues(sym).Inc()
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
