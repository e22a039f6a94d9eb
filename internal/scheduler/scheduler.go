// Package scheduler hosts the signal engine's cron tasks: the per-minute
// evaluation pass over every symbol and the weekly COT refresh.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/bridge"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/cot"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/notifier"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/recorder"
	"github.com/andreapianidev/OpenTradingMT4bot/internal/strategy"
)

// defaultEquity sizes signals when the executor has not exported account
// state yet.
const defaultEquity = 10000.0

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Engine   *strategy.Engine
	Bars     *bridge.BarWindow
	Signals  *bridge.SignalMailbox
	States   *bridge.StateMailbox
	Store    *cot.Store
	Updater  *cot.Updater
	Notifier notifier.Notifier
	Recorder recorder.Recorder
	Symbols  []string
	COTFile  string
	Ctx      context.Context

	log zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, eng *strategy.Engine, bars *bridge.BarWindow, signals *bridge.SignalMailbox, states *bridge.StateMailbox, store *cot.Store, updater *cot.Updater, tn notifier.Notifier, rec recorder.Recorder, symbols []string, cotFile string, log zerolog.Logger) *Scheduler {
	if tn == nil {
		tn = notifier.NoopNotifier{}
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Engine:   eng,
		Bars:     bars,
		Signals:  signals,
		States:   states,
		Store:    store,
		Updater:  updater,
		Notifier: tn,
		Recorder: rec,
		Symbols:  symbols,
		COTFile:  cotFile,
		Ctx:      ctx,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// RegisterAll registers the signal pass and the COT refresh.
func (s *Scheduler) RegisterAll(signalCron, cotCron string) error {
	if _, err := s.Cron.AddFunc(signalCron, s.signalTask); err != nil {
		return fmt.Errorf("register signal task: %w", err)
	}
	if _, err := s.Cron.AddFunc(cotCron, s.cotTask); err != nil {
		return fmt.Errorf("register cot task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	s.log.Info().Msg("scheduler stopped")
}

// RunSignalsNow executes the signal pass immediately (manual trigger / RUN_ON_START).
func (s *Scheduler) RunSignalsNow() {
	s.signalTask()
}

// RunCOTUpdateNow executes the COT refresh immediately.
func (s *Scheduler) RunCOTUpdateNow() error {
	return s.refreshCOT()
}

func (s *Scheduler) signalTask() {
	equity := s.liveEquity()
	for _, sym := range s.Symbols {
		bars, err := s.Bars.ReadBars(s.Ctx, sym)
		if errors.Is(err, bridge.ErrNoRecord) {
			s.log.Debug().Str("symbol", sym).Msg("no bar export yet")
			continue
		}
		if err != nil {
			s.log.Error().Err(err).Str("symbol", sym).Msg("bar read failed")
			continue
		}

		sig, err := s.Engine.Evaluate(s.Ctx, sym, bars, equity)
		if err != nil {
			s.log.Error().Err(err).Str("symbol", sym).Msg("evaluation failed")
			continue
		}
		if sig == nil {
			continue
		}

		if err := s.Signals.Publish(s.Ctx, *sig); err != nil {
			s.log.Error().Err(err).Str("symbol", sym).Msg("signal publish failed")
			continue
		}
		if err := s.Recorder.RecordSignal(*sig); err != nil {
			s.log.Warn().Err(err).Msg("signal not recorded")
		}
		s.trySend(notifier.FormatSignal(*sig))
	}
}

// liveEquity reads the executor's latest account export; new deployments run
// on the default until the first export lands.
func (s *Scheduler) liveEquity() float64 {
	export, err := s.States.Fetch(s.Ctx)
	if err != nil || export.Account.Equity <= 0 {
		return defaultEquity
	}
	return export.Account.Equity
}

func (s *Scheduler) cotTask() {
	if err := s.refreshCOT(); err != nil {
		s.log.Error().Err(err).Msg("cot refresh failed")
		s.trySend(fmt.Sprintf("❌ COT refresh failed: %v", err))
	}
}

func (s *Scheduler) refreshCOT() error {
	existing, err := cot.LoadCSV(s.COTFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load cot cache: %w", err)
		}
		existing = nil
	}

	snaps, err := s.Updater.Update(s.Ctx, existing)
	if err != nil {
		return err
	}
	if err := cot.SaveCSV(s.COTFile, snaps); err != nil {
		return fmt.Errorf("persist cot cache: %w", err)
	}
	s.Store.Replace(snaps)
	s.log.Info().Int("snapshots", len(snaps)).Msg("cot data refreshed")
	return nil
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 2); err != nil {
		s.log.Warn().Err(err).Msg("notification not delivered")
	}
}
