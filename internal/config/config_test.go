package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Bridge.Backend != "file" {
		t.Errorf("expected file backend default, got %q", cfg.Bridge.Backend)
	}
	if cfg.Executor.PollSeconds != 10 {
		t.Errorf("expected poll default 10, got %d", cfg.Executor.PollSeconds)
	}
	if cfg.Executor.RetryAttempts != 3 || cfg.Executor.RetryBackoffMS != 500 {
		t.Errorf("unexpected retry defaults: %d/%dms",
			cfg.Executor.RetryAttempts, cfg.Executor.RetryBackoffMS)
	}
	if cfg.Signal.DonchianPeriod != 40 || cfg.Signal.ATRPeriod != 20 {
		t.Errorf("unexpected period defaults: %d/%d",
			cfg.Signal.DonchianPeriod, cfg.Signal.ATRPeriod)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FileAndInstrumentDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
symbols: ["XAUUSD"]
executor:
  strategy_id: "test-strategy"
  poll_seconds: 5
instruments:
  XAUUSD:
    point_value: 100
    fallback_stop_distance: 5.0
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Executor.StrategyID != "test-strategy" {
		t.Errorf("strategy id not read: %q", cfg.Executor.StrategyID)
	}
	ins := cfg.InstrumentFor("XAUUSD")
	if ins.PointValue != 100 {
		t.Errorf("point value not read: %v", ins.PointValue)
	}
	if ins.MinLot != 0.01 || ins.MaxLot != 100 {
		t.Errorf("lot defaults not applied: %v/%v", ins.MinLot, ins.MaxLot)
	}
	// Unknown symbol falls back to safe defaults.
	if d := cfg.InstrumentFor("UNKNOWN"); d.PointValue != 1 {
		t.Errorf("fallback instrument wrong: %+v", d)
	}
}

func TestValidate_RedisBackendNeedsAddr(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Bridge.Backend = "redis"
	cfg.Bridge.RedisAddr = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for redis backend without addr")
	}
}
