package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Env != "prod" || cfg.App.LogLevel != "warn" {
		t.Fatalf("app overrides not applied: %+v", cfg.App)
	}
	if cfg.Trading.HistoryBars != 300 || cfg.Trading.LoopSeconds != 10 {
		t.Fatalf("trading overrides not applied: %+v", cfg.Trading)
	}
	if cfg.Session.StartHour != 14 || cfg.Session.EndHour != 2 {
		t.Fatalf("session overrides not applied: %+v", cfg.Session)
	}
	if cfg.Oracle.Enabled {
		t.Fatal("oracle.enabled override not applied")
	}

	// Untouched fields keep their defaults.
	if cfg.App.MetricsAddr != ":9109" {
		t.Fatalf("metrics addr default lost: %q", cfg.App.MetricsAddr)
	}
	if cfg.Trading.MaxOpenTrades != 3 {
		t.Fatalf("max open trades default lost: %d", cfg.Trading.MaxOpenTrades)
	}
	if cfg.Oracle.StrategistModel == "" {
		t.Fatal("strategist model default lost")
	}
}

func TestLoadEnvOverlay(t *testing.T) {
	t.Setenv("ORACLE_API_KEY", "key-from-env")
	t.Setenv("BRIDGE_TOKEN", "tok-from-env")

	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Oracle.APIKey != "key-from-env" {
		t.Fatalf("api key=%q", cfg.Oracle.APIKey)
	}
	if cfg.Bridge.Token != "tok-from-env" {
		t.Fatalf("bridge token=%q", cfg.Bridge.Token)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing symbol",
			yaml:    "trading:\n  symbol: \"\"\n",
			wantErr: "symbol",
		},
		{
			name:    "too little history",
			yaml:    "trading:\n  history_bars: 100\n",
			wantErr: "history_bars",
		},
		{
			name:    "bad session hour",
			yaml:    "session:\n  start_hour: 25\n",
			wantErr: "session hours",
		},
		{
			name:    "zero risk",
			yaml:    "risk:\n  per_trade_pct: 0\n",
			wantErr: "risk percentages",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err=%v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Trading.Symbol = "EURUSD"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Trading.Symbol != "EURUSD" {
		t.Fatalf("symbol=%q", loaded.Trading.Symbol)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
