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

	"github.com/andreapianidev/OpenTradingMT4bot/internal/backtest"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/bridge"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/config"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/cot"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/notifier"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/recorder"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/scheduler"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/seasonal"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/sentiment"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/strategy"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/util"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath      = flag.String("config", "", "config file path (default configs/config.yaml)")
		runBacktest  = flag.Bool("backtest", false, "replay the strategy over bridged bars and exit")
		updateCOT    = flag.Bool("update-cot", false, "refresh the COT cache and exit")
		useSentiment = flag.Bool("use-sentiment", false, "enable the sentiment advisor even if disabled in config")
	)
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
	log.Info().Str("config", path).Msg("signal engine starting")

	slot, err := openSlot(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open bridge slot")
	}
	barWindow := bridge.NewBarWindow(slot, cfg.Executor.BarWindow)
	signals := bridge.NewSignalMailbox(slot)
	states := bridge.NewStateMailbox(slot, cfg.Executor.StrategyID)

	seasons, err := seasonal.Load(cfg.Signal.SeasonFile)
	if err != nil {
		log.Fatal().Err(err).Msg("load seasonal table")
	}

	store := cot.NewStore()
	if snaps, err := cot.LoadCSV(cfg.Signal.COTFile); err == nil {
		store.Replace(snaps)
		log.Info().Int("snapshots", len(snaps)).Msg("cot cache loaded")
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("cot cache unreadable, starting empty")
	}
	updater := cot.NewUpdater(cot.NewHTTPFetcher(""))

	var advisor sentiment.Advisor
	if cfg.Sentiment.Enabled || *useSentiment {
		advisor = sentiment.NewHTTPAdvisor(cfg.Sentiment.BaseURL, time.Duration(cfg.Sentiment.TimeoutMS)*time.Millisecond, log)
		log.Info().Str("base_url", cfg.Sentiment.BaseURL).Msg("sentiment advisor enabled")
	}

	engine := strategy.NewEngine(cfg, store, seasons, advisor, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *runBacktest {
		os.Exit(runBacktestMode(ctx, cfg, barWindow, seasons, log))
	}

	var tn notifier.Notifier = notifier.NoopNotifier{}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
	}

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

	sched := scheduler.NewScheduler(ctx, engine, barWindow, signals, states, store, updater, tn, rec, cfg.Symbols, cfg.Signal.COTFile, log)

	if *updateCOT {
		if err := sched.RunCOTUpdateNow(); err != nil {
			log.Fatal().Err(err).Msg("cot update failed")
		}
		log.Info().Msg("cot update done")
		return
	}

	if err := sched.RegisterAll(cfg.Signal.Cron, cfg.Signal.COTCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, evaluating now")
		go sched.RunSignalsNow()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received")
	cancel()
	log.Info().Msg("signal engine stopped")
}

func openSlot(cfg *config.Config) (bridge.Slot, error) {
	if cfg.Bridge.Backend == "redis" {
		return bridge.NewRedisSlot(cfg.Bridge.RedisAddr, cfg.Bridge.RedisDB)
	}
	return bridge.NewFileSlot(cfg.Bridge.Dir)
}

func runBacktestMode(ctx context.Context, cfg *config.Config, bars *bridge.BarWindow, seasons *seasonal.Table, log zerolog.Logger) int {
	bt := backtest.New(cfg.Signal.DonchianPeriod, cfg.Signal.ATRPeriod, seasons, log)
	var results []backtest.Result
	for _, sym := range cfg.Symbols {
		series, err := bars.ReadBars(ctx, sym)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("no bars for backtest")
			continue
		}
		res, err := bt.Run(sym, series)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("backtest skipped")
			continue
		}
		results = append(results, res)
	}
	if len(results) == 0 {
		log.Error().Msg("no symbols had enough bridged history")
		return 1
	}
	fmt.Print(backtest.FormatResults(results))
	return 0
}
