package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/bridge"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/broker"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/config"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/executor"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/feed"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/metrics"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/notifier"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/recorder"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/util"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "", "config file path (default configs/config.yaml)")
	flag.Parse()

	path := *cfgPath
	if path == "" {
		path = "configs/config.yaml"
		if v := os.Getenv("CONFIG_PATH"); v != "" {
			path = v
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	log := util.NewLogger(cfg.LogLevel)
	if cfg.Executor.DetailedErrors && log.GetLevel() > zerolog.DebugLevel {
		log = log.Level(zerolog.DebugLevel)
	}
	log.Info().Str("config", path).Str("strategy", cfg.Executor.StrategyID).Msg("executor starting")

	var slot bridge.Slot
	if cfg.Bridge.Backend == "redis" {
		slot, err = bridge.NewRedisSlot(cfg.Bridge.RedisAddr, cfg.Bridge.RedisDB)
	} else {
		slot, err = bridge.NewFileSlot(cfg.Bridge.Dir)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("open bridge slot")
	}

	b := broker.NewPaperBroker(cfg.Executor.PaperBalance)
	log.Info().Str("broker", b.Name()).Float64("balance", cfg.Executor.PaperBalance).Msg("broker ready")

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("sqlite recorder unavailable, using noop")
		} else {
			rec = sr
			defer sr.Close()
		}
	}

	var tn notifier.Notifier = notifier.NoopNotifier{}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := executor.NewEngine(ctx, cfg, b, slot, rec, tn, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init executor engine")
	}

	srv := metrics.Serve(cfg.Executor.MetricsAddr)
	defer func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutCancel()
		_ = srv.Shutdown(shutCtx)
	}()
	log.Info().Str("addr", cfg.Executor.MetricsAddr).Msg("metrics listening")

	ticks := make(chan feed.Tick, 64)
	f := feed.NewFeed(cfg.Executor.TickProvider, cfg.Symbols, log,
		feed.WithBroker(b),
		feed.WithWebsocketURL(cfg.Executor.TickURL),
		feed.WithInterval(time.Duration(cfg.Executor.TickIntervalMS)*time.Millisecond),
	)
	go func() {
		if err := f.Run(ctx, ticks); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("tick feed stopped")
		}
		close(ticks)
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- eng.Run(ctx, ticks) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutdown signal received")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("executor engine stopped")
		}
	}
	log.Info().Msg("executor stopped")
}
