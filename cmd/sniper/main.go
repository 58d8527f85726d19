package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/bot"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/broker"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/config"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/execution"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/gate"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/metrics"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/news"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/oracle"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/orchestrator"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/position"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/risk"
	sig "github.com/gempurbudianarki/ai-treding-beta-1/internal/signal"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/strategy"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/telemetry"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		boot := util.NewLogger("info", "prod")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel, cfg.App.Env)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gw := broker.NewBridgeGateway(cfg.Bridge.BaseURL, cfg.Trading.Symbol, cfg.Bridge.Token)
	if err := gw.Connect(ctx); err != nil {
		log.Fatal().Err(err).Str("base", cfg.Bridge.BaseURL).Msg("bridge unreachable")
	}
	log.Info().Str("symbol", cfg.Trading.Symbol).Msg("bridge connected")

	store, err := telemetry.NewStore(cfg.App.DataDir, util.Component(log, "telemetry"))
	if err != nil {
		log.Fatal().Err(err).Msg("open data dir")
	}

	// Live tick stream keeps the dashboard price fresh between cycles; the
	// decision loop itself always works from a fresh snapshot tick.
	ticks := make(chan sig.Tick, 1024)
	go func() {
		if err := gw.StreamTicks(ctx, util.Component(log, "stream"), ticks); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("tick stream stopped")
		}
	}()
	go func() {
		var lastWrite time.Time
		for t := range ticks {
			// One file write per second is plenty for a dashboard.
			if time.Since(lastWrite) < time.Second {
				continue
			}
			store.UpdatePrice(t.Bid)
			lastWrite = time.Now()
		}
	}()

	client := oracle.NewClient(cfg.Oracle.BaseURL, cfg.Oracle.APIKey, util.Component(log, "oracle"))
	orch := orchestrator.New(
		client,
		orchestrator.Models{
			Strategist: cfg.Oracle.StrategistModel,
			Reviewer:   cfg.Oracle.ReviewerModel,
			Evaluator:  cfg.Oracle.EvaluatorModel,
		},
		store,
		cfg.Trading.Symbol,
		cfg.Oracle.Enabled,
		util.Component(log, "orchestrator"),
	)

	engine := bot.New(
		cfg,
		gw,
		gate.New(cfg.Session.StartHour, cfg.Session.EndHour, cfg.Session.Timezone, util.Component(log, "gate")),
		strategy.NewSniper(util.Component(log, "strategy")),
		risk.NewSizer(cfg.Risk.PerTradePct, cfg.Risk.MaxDrawdownPct, gw, util.Component(log, "risk")),
		execution.NewEngine(gw, util.Component(log, "execution")),
		position.Trailer{
			Activation: cfg.Trailing.Activation,
			Distance:   cfg.Trailing.Distance,
			SecureLock: cfg.Trailing.SecureLock,
		},
		orch,
		store,
		news.NewFeeder(cfg.News.Feeds, util.Component(log, "news")),
		util.Component(log, "bot"),
	)

	log.Info().Str("env", cfg.App.Env).Msg("sniper engine started")
	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("engine stopped")
	}
	log.Info().Msg("shutting down")
}
