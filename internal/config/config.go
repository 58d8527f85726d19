// Package config exposes the single authoritative configuration schema,
// loaded from YAML with secrets overlaid from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/signal"
)

// App captures process-wide runtime settings.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	DataDir     string `yaml:"data_dir"`
}

// Bridge describes the terminal sidecar connection.
type Bridge struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// Trading groups the instrument and loop cadence.
type Trading struct {
	Symbol        string `yaml:"symbol"`
	HistoryBars   int    `yaml:"history_bars"`
	LoopSeconds   int    `yaml:"loop_seconds"`
	MaxOpenTrades int    `yaml:"max_open_trades"`
}

// Session is the active trading window; the window may wrap past midnight.
type Session struct {
	StartHour int    `yaml:"start_hour"`
	EndHour   int    `yaml:"end_hour"`
	Timezone  string `yaml:"timezone"`
}

// Risk encodes the account guard-rails.
type Risk struct {
	PerTradePct       float64 `yaml:"per_trade_pct"`
	MaxDrawdownPct    float64 `yaml:"max_drawdown_pct"`
	DefaultStopPoints float64 `yaml:"default_stop_points"`
}

// Trailing holds the stop-trailing distances in price units.
type Trailing struct {
	Activation float64 `yaml:"activation"`
	Distance   float64 `yaml:"distance"`
	SecureLock float64 `yaml:"secure_lock"`
}

// Oracle configures the advisory service and the model per role.
type Oracle struct {
	Enabled         bool   `yaml:"enabled"`
	BaseURL         string `yaml:"base_url"`
	APIKey          string `yaml:"api_key"`
	StrategistModel string `yaml:"strategist_model"`
	ReviewerModel   string `yaml:"reviewer_model"`
	EvaluatorModel  string `yaml:"evaluator_model"`
}

// News configures the headline fetcher.
type News struct {
	Feeds         []string `yaml:"feeds"`
	RefreshSecs   int      `yaml:"refresh_secs"`
	MaxAgeMinutes int      `yaml:"max_age_minutes"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Bridge   Bridge   `yaml:"bridge"`
	Trading  Trading  `yaml:"trading"`
	Session  Session  `yaml:"session"`
	Risk     Risk     `yaml:"risk"`
	Trailing Trailing `yaml:"trailing"`
	Oracle   Oracle   `yaml:"oracle"`
	News     News     `yaml:"news"`
}

// Default returns the production defaults. Earlier revisions of the project
// carried several divergent settings blocks; these values are the resolved
// single source of truth.
func Default() *Config {
	return &Config{
		App: App{
			Name:        "ai-treding-beta-1",
			Env:         "dev",
			MetricsAddr: ":9109",
			LogLevel:    "info",
			DataDir:     "data",
		},
		Bridge:  Bridge{BaseURL: "http://127.0.0.1:8787"},
		Trading: Trading{Symbol: "XAUUSD", HistoryBars: 500, LoopSeconds: 15, MaxOpenTrades: 3},
		Session: Session{StartHour: 13, EndHour: 1, Timezone: "Asia/Jakarta"},
		Risk:    Risk{PerTradePct: 1.0, MaxDrawdownPct: 3.0, DefaultStopPoints: 50},
		Trailing: Trailing{
			Activation: 1.00,
			Distance:   0.50,
			SecureLock: 0.20,
		},
		Oracle: Oracle{
			Enabled:         true,
			BaseURL:         "https://api.megallm.io/v1",
			StrategistModel: "qwen/qwen3-next-80b-a3b-instruct",
			ReviewerModel:   "deepseek-ai/deepseek-v3.1",
			EvaluatorModel:  "gemini-2.0-flash",
		},
		News: News{RefreshSecs: 300, MaxAgeMinutes: 60},
	}
}

// Load reads a YAML file, fills unset fields from Default, and overlays
// secrets from the environment (a .env file is honored best-effort).
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	cfg := Default()
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	_ = godotenv.Load() // best-effort
	if v := os.Getenv("ORACLE_API_KEY"); v != "" {
		c.Oracle.APIKey = v
	}
	if v := os.Getenv("BRIDGE_TOKEN"); v != "" {
		c.Bridge.Token = v
	}
	if v := os.Getenv("BRIDGE_BASE_URL"); v != "" {
		c.Bridge.BaseURL = v
	}
}

func (c *Config) validate() error {
	if c.Trading.Symbol == "" {
		return fmt.Errorf("trading.symbol is required")
	}
	if c.Trading.HistoryBars < signal.MinBars {
		return fmt.Errorf("trading.history_bars must be at least %d for indicator stability", signal.MinBars)
	}
	if c.Session.StartHour < 0 || c.Session.StartHour > 23 || c.Session.EndHour < 0 || c.Session.EndHour > 23 {
		return fmt.Errorf("session hours must be within 0-23")
	}
	if c.Risk.PerTradePct <= 0 || c.Risk.MaxDrawdownPct <= 0 {
		return fmt.Errorf("risk percentages must be positive")
	}
	return nil
}
