package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/broker"
)

func TestFeedRunEmitsStubTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFeed(ProviderStub, []string{"XAUUSD"}, zerolog.Nop(), WithInterval(10*time.Millisecond))
	ticks := make(chan Tick, 1)

	go func() {
		_ = f.Run(ctx, ticks)
	}()

	select {
	case tk := <-ticks:
		if tk.Symbol != "XAUUSD" {
			t.Fatalf("unexpected symbol %s", tk.Symbol)
		}
		if tk.Ask <= tk.Bid {
			t.Fatalf("expected ask above bid, got %+v", tk)
		}
		cancel()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
	}
}

func TestFeedRunBrokerPoll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pb := broker.NewPaperBroker(10000)
	pb.SetQuote("WTICOUSD", 80.10, 80.15)

	f := NewFeed(ProviderBroker, []string{"WTICOUSD"}, zerolog.Nop(),
		WithBroker(pb), WithInterval(10*time.Millisecond))

	ticks := make(chan Tick, 1)
	errCh := make(chan error, 1)
	go func() {
		if err := f.Run(ctx, ticks); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case tk := <-ticks:
		if tk.Symbol != "WTICOUSD" || tk.Bid != 80.10 || tk.Ask != 80.15 {
			t.Fatalf("unexpected tick %+v", tk)
		}
		cancel()
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("timed out waiting for tick")
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("feed returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("feed did not stop after cancel")
	}
}

func TestFeedSymbolsDeduplicated(t *testing.T) {
	f := NewFeed(ProviderStub, []string{"XAUUSD", " XAUUSD", "CORNUSD", ""}, zerolog.Nop())
	syms := f.snapshotSymbols()
	if len(syms) != 2 || syms[0] != "CORNUSD" || syms[1] != "XAUUSD" {
		t.Fatalf("unexpected symbols %v", syms)
	}
}

func TestWebsocketFeedRequiresURL(t *testing.T) {
	f := NewFeed(ProviderWebsocket, []string{"XAUUSD"}, zerolog.Nop())
	if err := f.Run(context.Background(), make(chan Tick)); err == nil {
		t.Fatal("expected error without gateway url")
	}
}
