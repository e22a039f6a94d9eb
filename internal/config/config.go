package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Instrument holds the per-symbol contract parameters used for sizing and
// for the zero-ATR fallback stop distance.
type Instrument struct {
	PointValue           float64 `yaml:"point_value"`
	MinLot               float64 `yaml:"min_lot"`
	MaxLot               float64 `yaml:"max_lot"`
	LotStep              float64 `yaml:"lot_step"`
	FallbackStopDistance float64 `yaml:"fallback_stop_distance"`
}

// Config holds all configuration for both the signal engine and the executor.
// It is read once at startup and static for the process lifetime.
type Config struct {
	LogLevel string   `yaml:"log_level"`
	Proxy    string   `yaml:"proxy"`
	Symbols  []string `yaml:"symbols"`

	Bridge struct {
		Backend   string `yaml:"backend"` // "file" or "redis"
		Dir       string `yaml:"dir"`
		RedisAddr string `yaml:"redis_addr"`
		RedisDB   int    `yaml:"redis_db"`
	} `yaml:"bridge"`

	Signal struct {
		Cron           string  `yaml:"cron"`
		COTCron        string  `yaml:"cot_cron"`
		DonchianPeriod int     `yaml:"donchian_period"`
		ATRPeriod      int     `yaml:"atr_period"`
		RiskPercent    float64 `yaml:"risk_percent"`
		DataDir        string  `yaml:"data_dir"`
		COTFile        string  `yaml:"cot_file"`
		SeasonFile     string  `yaml:"season_file"`
	} `yaml:"signal"`

	Executor struct {
		StrategyID     string  `yaml:"strategy_id"`
		PollSeconds    int     `yaml:"poll_seconds"`
		TrailingStop   bool    `yaml:"trailing_stop"`
		ExportBars     bool    `yaml:"export_bars"`
		BarWindow      int     `yaml:"bar_window"`
		RetryAttempts  int     `yaml:"retry_attempts"`
		RetryBackoffMS int     `yaml:"retry_backoff_ms"`
		RiskPercent    float64 `yaml:"risk_percent"`
		FixedLot       float64 `yaml:"fixed_lot"`
		DetailedErrors bool    `yaml:"detailed_errors"`
		StateFile      string  `yaml:"state_file"`
		MetricsAddr    string  `yaml:"metrics_addr"`
		PaperBalance   float64 `yaml:"paper_balance"`
		TickProvider   string  `yaml:"tick_provider"` // "broker", "websocket" or "stub"
		TickURL        string  `yaml:"tick_url"`
		TickIntervalMS int     `yaml:"tick_interval_ms"`
	} `yaml:"executor"`

	Sentiment struct {
		Enabled   bool   `yaml:"enabled"`
		BaseURL   string `yaml:"base_url"`
		TimeoutMS int    `yaml:"timeout_ms"`
	} `yaml:"sentiment"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`

	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`

	Instruments map[string]Instrument `yaml:"instruments"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("BRIDGE_BACKEND"); v != "" {
		cfg.Bridge.Backend = v
	}
	if v := os.Getenv("BRIDGE_DIR"); v != "" {
		cfg.Bridge.Dir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Bridge.RedisAddr = v
	}
	if v := os.Getenv("STRATEGY_ID"); v != "" {
		cfg.Executor.StrategyID = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("PROXY_URL"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("RISK_PERCENT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Signal.RiskPercent = f
			cfg.Executor.RiskPercent = f
		}
	}
	if v := os.Getenv("POLL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Executor.PollSeconds = n
		}
	}
	if v := os.Getenv("SENTIMENT_BASE_URL"); v != "" {
		cfg.Sentiment.BaseURL = v
		cfg.Sentiment.Enabled = true
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []string{
			"XAUUSD", "XAGUSD", "WTICOUSD", "BCOUSD",
			"NATGASUSD", "CORNUSD", "SOYBNUSD", "WHEATUSD",
		}
	}
	if cfg.Bridge.Backend == "" {
		cfg.Bridge.Backend = "file"
	}
	if cfg.Bridge.Dir == "" {
		cfg.Bridge.Dir = "data/bridge"
	}
	if cfg.Signal.Cron == "" {
		cfg.Signal.Cron = "0 * * * * *" // every minute
	}
	if cfg.Signal.COTCron == "" {
		cfg.Signal.COTCron = "0 0 22 * * 5" // Friday evening, after the CFTC release
	}
	if cfg.Signal.DonchianPeriod == 0 {
		cfg.Signal.DonchianPeriod = 40
	}
	if cfg.Signal.ATRPeriod == 0 {
		cfg.Signal.ATRPeriod = 20
	}
	if cfg.Signal.RiskPercent == 0 {
		cfg.Signal.RiskPercent = 1.0
	}
	if cfg.Signal.DataDir == "" {
		cfg.Signal.DataDir = "data"
	}
	if cfg.Signal.COTFile == "" {
		cfg.Signal.COTFile = cfg.Signal.DataDir + "/cot.csv"
	}
	if cfg.Signal.SeasonFile == "" {
		cfg.Signal.SeasonFile = cfg.Signal.DataDir + "/season.json"
	}
	if cfg.Executor.StrategyID == "" {
		cfg.Executor.StrategyID = "donchian-breakout"
	}
	if cfg.Executor.PollSeconds == 0 {
		cfg.Executor.PollSeconds = 10
	}
	if cfg.Executor.BarWindow == 0 {
		cfg.Executor.BarWindow = 100
	}
	if cfg.Executor.RetryAttempts == 0 {
		cfg.Executor.RetryAttempts = 3
	}
	if cfg.Executor.RetryBackoffMS == 0 {
		cfg.Executor.RetryBackoffMS = 500
	}
	if cfg.Executor.RiskPercent == 0 {
		cfg.Executor.RiskPercent = 1.0
	}
	if cfg.Executor.StateFile == "" {
		cfg.Executor.StateFile = "data/executor_state.json"
	}
	if cfg.Executor.MetricsAddr == "" {
		cfg.Executor.MetricsAddr = ":9180"
	}
	if cfg.Executor.TickProvider == "" {
		cfg.Executor.TickProvider = "broker"
	}
	if cfg.Executor.PaperBalance == 0 {
		cfg.Executor.PaperBalance = 10000
	}
	if cfg.Executor.TickIntervalMS == 0 {
		cfg.Executor.TickIntervalMS = 1000
	}
	if cfg.Sentiment.TimeoutMS == 0 {
		cfg.Sentiment.TimeoutMS = 1500
	}
	if cfg.Instruments == nil {
		cfg.Instruments = map[string]Instrument{}
	}
	for sym, ins := range cfg.Instruments {
		if ins.MinLot == 0 {
			ins.MinLot = 0.01
		}
		if ins.MaxLot == 0 {
			ins.MaxLot = 100
		}
		if ins.LotStep == 0 {
			ins.LotStep = 0.01
		}
		if ins.PointValue == 0 {
			ins.PointValue = 1
		}
		cfg.Instruments[sym] = ins
	}
}

// InstrumentFor returns the contract parameters for a symbol, falling back to
// safe defaults when the symbol is not configured.
func (c *Config) InstrumentFor(symbol string) Instrument {
	if ins, ok := c.Instruments[symbol]; ok {
		return ins
	}
	return Instrument{PointValue: 1, MinLot: 0.01, MaxLot: 100, LotStep: 0.01}
}

// Validate checks that required fields are consistent.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must not be empty")
	}
	if c.Bridge.Backend != "file" && c.Bridge.Backend != "redis" {
		return fmt.Errorf("bridge.backend must be \"file\" or \"redis\", got %q", c.Bridge.Backend)
	}
	if c.Bridge.Backend == "redis" && c.Bridge.RedisAddr == "" {
		return fmt.Errorf("bridge.redis_addr is required for the redis backend")
	}
	if c.Signal.DonchianPeriod <= 0 {
		return fmt.Errorf("signal.donchian_period must be positive")
	}
	if c.Signal.RiskPercent <= 0 || c.Signal.RiskPercent > 100 {
		return fmt.Errorf("signal.risk_percent must be in (0, 100]")
	}
	if c.Executor.PollSeconds <= 0 {
		return fmt.Errorf("executor.poll_seconds must be positive")
	}
	if c.Executor.RetryAttempts <= 0 {
		return fmt.Errorf("executor.retry_attempts must be positive")
	}
	if c.Sentiment.Enabled && c.Sentiment.BaseURL == "" {
		return fmt.Errorf("sentiment.base_url is required when sentiment is enabled")
	}
	return nil
}
