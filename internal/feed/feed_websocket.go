package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/metrics"
)

type wsQuote struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	TsMS   int64   `json:"ts"`
}

func (f *Feed) runWebsocket(ctx context.Context, out chan<- Tick) error {
	if f.wsURL == "" {
		return fmt.Errorf("websocket feed requires a gateway url")
	}

	wanted := make(map[string]struct{})
	for _, sym := range f.snapshotSymbols() {
		wanted[sym] = struct{}{}
	}

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.consumeWebsocket(ctx, wanted, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn().Err(err).Msg("quote feed disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (f *Feed) consumeWebsocket(ctx context.Context, wanted map[string]struct{}, out chan<- Tick) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Info().Str("url", f.wsURL).Msg("connected quote feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.log.Warn().Err(err).Msg("quote feed ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var q wsQuote
		if err := json.Unmarshal(message, &q); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode quote message")
			continue
		}
		if _, ok := wanted[q.Symbol]; !ok {
			continue
		}
		if q.Bid <= 0 || q.Ask <= 0 {
			f.log.Warn().Str("symbol", q.Symbol).Msg("invalid quote from gateway")
			continue
		}

		tick := Tick{Symbol: q.Symbol, Bid: q.Bid, Ask: q.Ask, Time: time.UnixMilli(q.TsMS)}
		select {
		case out <- tick:
			metrics.TicksTotal.WithLabelValues(q.Symbol).Inc()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
