// Package bot runs the cooperative control loop that fetches, gates,
// classifies, consults, sizes, executes, and trails, one cycle at a time on a
// fixed interval.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/broker"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/config"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/execution"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/gate"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/metrics"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/news"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/orchestrator"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/position"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/risk"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/signal"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/strategy"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/telemetry"
)

const (
	// errorPause is the fixed back-off after a recovered cycle failure.
	errorPause = 5 * time.Second
	// idlePause keeps the loop cheap while trading is paused from the dashboard.
	idlePause = 2 * time.Second
)

// Engine wires every component into the per-cycle pipeline.
type Engine struct {
	cfg     *config.Config
	gw      broker.Gateway
	gate    *gate.Gate
	sniper  *strategy.Sniper
	sizer   *risk.Sizer
	exec    *execution.Engine
	trailer position.Trailer
	orch    *orchestrator.Orchestrator
	store   *telemetry.Store
	feeder  *news.Feeder
	log     zerolog.Logger
}

// New assembles the engine from already-constructed components.
func New(
	cfg *config.Config,
	gw broker.Gateway,
	g *gate.Gate,
	sniper *strategy.Sniper,
	sizer *risk.Sizer,
	exec *execution.Engine,
	trailer position.Trailer,
	orch *orchestrator.Orchestrator,
	store *telemetry.Store,
	feeder *news.Feeder,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		cfg: cfg, gw: gw, gate: g, sniper: sniper, sizer: sizer, exec: exec,
		trailer: trailer, orch: orch, store: store, feeder: feeder, log: log,
	}
}

// cycleState is the value threaded between iterations instead of shared
// mutable process state: history watermark plus the cached sentiment.
type cycleState struct {
	lastHistoryCheck time.Time
	sentiment        string
	sentimentAt      time.Time
}

// Run loops until the context is canceled. A failed cycle is logged and
// followed by a fixed pause; the process never exits on a single bad cycle.
func (e *Engine) Run(ctx context.Context) error {
	interval := time.Duration(e.cfg.Trading.LoopSeconds) * time.Second
	// Back the first watermark up one minute so the latest deal is not missed.
	state := cycleState{
		lastHistoryCheck: time.Now().Add(-time.Minute),
		sentiment:        "Neutral",
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		next, err := e.safeCycle(ctx, state)
		pause := interval
		if err != nil {
			e.log.Error().Err(err).Msg("cycle failed, pausing before next")
			metrics.CycleErrorsTotal.Inc()
			pause = errorPause
		} else {
			state = next
			metrics.CyclesTotal.Inc()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
}

// safeCycle converts a panic anywhere in the cycle into an error so the loop's
// supervisory continuation stays intact.
func (e *Engine) safeCycle(ctx context.Context, state cycleState) (out cycleState, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = state
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	return e.cycle(ctx, state)
}

func (e *Engine) cycle(ctx context.Context, state cycleState) (cycleState, error) {
	symbol := e.cfg.Trading.Symbol

	// A. Dashboard control flag, polled once per cycle.
	control := e.store.LoadControl()
	if !control.TradingEnabled {
		e.store.SaveStatus(telemetry.Status{Mode: "PAUSED", Market: telemetry.MarketStatus{Symbol: symbol}})
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-time.After(idlePause):
		}
		return state, nil
	}

	// B. Market data. A gap skips the cycle without touching state.
	h1, err := e.gw.Candles(ctx, broker.H1, e.cfg.Trading.HistoryBars)
	if err != nil {
		return state, fmt.Errorf("fetch H1 candles: %w", err)
	}
	m15, err := e.gw.Candles(ctx, broker.M15, e.cfg.Trading.HistoryBars)
	if err != nil {
		return state, fmt.Errorf("fetch M15 candles: %w", err)
	}
	tick, err := e.gw.Tick(ctx)
	if err != nil {
		return state, fmt.Errorf("fetch tick: %w", err)
	}
	if len(h1) < signal.MinBars || len(m15) < signal.MinBars {
		e.log.Warn().Int("h1", len(h1)).Int("m15", len(m15)).Msg("waiting for data feed")
		return state, nil
	}

	// C. Refresh cached sentiment every few minutes, not every cycle.
	refresh := time.Duration(e.cfg.News.RefreshSecs) * time.Second
	if time.Since(state.sentimentAt) > refresh {
		headlines := e.feeder.RecentHeadlines(ctx, 5, time.Duration(e.cfg.News.MaxAgeMinutes)*time.Minute)
		state.sentiment = e.orch.Sentiment(ctx, headlines)
		state.sentimentAt = time.Now()
		e.log.Info().Str("sentiment", state.sentiment).Msg("sentiment updated")
	}

	// D. Technical scan and condition gate.
	sigRes := e.sniper.Classify(h1, m15)
	gateRes := e.gate.Evaluate(time.Now(), m15)

	account, err := e.gw.Account(ctx)
	if err != nil {
		return state, fmt.Errorf("fetch account: %w", err)
	}
	positions, err := e.gw.OpenPositions(ctx)
	if err != nil {
		return state, fmt.Errorf("fetch positions: %w", err)
	}

	// E. Real-time dashboard snapshot.
	e.store.SaveStatus(telemetry.Status{
		Mode:      "ACTIVE",
		Account:   account,
		Positions: positions,
		Market: telemetry.MarketStatus{
			Symbol:   symbol,
			Price:    tick.Bid,
			TrendH1:  string(sigRes.H1.Trend),
			Momentum: string(sigRes.M15.Momentum),
			ADX:      sigRes.M15.ADX,
			Pattern:  string(sigRes.Pattern),
		},
	})

	// F. Reconcile closed trades before acting on new signals.
	now := time.Now()
	marketSnapshot := fmt.Sprintf("Trend %s, Pattern %s", sigRes.H1.Trend, sigRes.Pattern)
	deals, err := e.gw.ClosedDeals(ctx, state.lastHistoryCheck, now)
	if err != nil {
		e.log.Warn().Err(err).Msg("deal history unavailable this cycle")
	} else {
		for _, deal := range deals {
			if deal.Symbol != symbol {
				continue
			}
			e.log.Info().Uint64("ticket", deal.Ticket).Float64("pnl", deal.Profit).Msg("trade closed")
			rec := telemetry.TradeRecord{
				Ticket: deal.Ticket,
				Symbol: deal.Symbol,
				Side:   string(deal.Side),
				Volume: deal.Volume,
				Profit: deal.Profit,
				Reason: "closed (terminal detect)",
			}
			e.store.AppendTrade(rec)
			e.orch.RecordTradeResult(ctx, e.store, rec, marketSnapshot)
		}
		state.lastHistoryCheck = now
	}

	// G. One-shot dashboard command.
	if control.Command == telemetry.CommandCloseAll {
		e.log.Warn().Int("positions", len(positions)).Msg("close-all command received")
		for _, pos := range positions {
			if err := e.gw.ClosePosition(ctx, pos); err != nil {
				e.log.Error().Err(err).Uint64("ticket", pos.Ticket).Msg("close failed")
			}
		}
		e.store.ClearCommand()
		return state, nil
	}

	// H. Manage running positions before considering new entries.
	for _, pos := range positions {
		price := tick.Bid
		if pos.Side == broker.Sell {
			price = tick.Ask
		}
		if sl, ok := e.trailer.Trail(pos, price); ok {
			e.log.Info().Uint64("ticket", pos.Ticket).Float64("sl", sl).Msg("trailing stop advanced")
			if err := e.gw.ModifyStopLoss(ctx, pos.Ticket, sl, pos.TakeProfit); err != nil {
				e.log.Error().Err(err).Uint64("ticket", pos.Ticket).Msg("stop modify failed")
			}
		}
		if e.orch.CheckOpenPosition(pos, sigRes, state.sentiment) == "CLOSE_NOW" {
			if err := e.gw.ClosePosition(ctx, pos); err != nil {
				e.log.Error().Err(err).Uint64("ticket", pos.Ticket).Msg("smart exit close failed")
			}
		}
	}

	// I. New entry.
	if sigRes.Pattern == signal.PatternNone {
		return state, nil
	}
	if len(positions) >= e.cfg.Trading.MaxOpenTrades {
		e.log.Info().Int("open", len(positions)).Msg("max open trades reached, skipping entry")
		return state, nil
	}
	e.log.Info().Str("pattern", string(sigRes.Pattern)).Msg("sniper signal detected")

	spec, err := e.gw.SymbolSpec(ctx)
	if err != nil {
		return state, fmt.Errorf("fetch symbol spec: %w", err)
	}
	side := broker.Buy
	entryPrice := tick.Ask
	if sigRes.Pattern == signal.PatternSniperSell {
		side = broker.Sell
		entryPrice = tick.Bid
	}

	eval := e.sizer.Size(ctx, risk.Request{
		Symbol:       symbol,
		Side:         side,
		Price:        entryPrice,
		StopDistance: e.cfg.Risk.DefaultStopPoints,
		Account:      account,
		Spec:         spec,
	})
	if !eval.Allowed {
		e.log.Warn().Str("reason", eval.Reason).Msg("risk sizer vetoed entry")
		metrics.DecisionsTotal.WithLabelValues("RISK_VETO").Inc()
		return state, nil
	}

	decision := e.orch.Decide(ctx, orchestrator.Input{
		Signal:    sigRes,
		Gate:      gateRes,
		Control:   control,
		Sentiment: state.sentiment,
	})
	metrics.DecisionsTotal.WithLabelValues(decision.Action).Inc()
	if decision.Action != "BUY" && decision.Action != "SELL" {
		e.log.Info().Str("reason", decision.Reason).Msg("holding")
		return state, nil
	}

	volume := broker.NormalizeLot(eval.Lot*decision.LotFactor, spec.LotStep)
	volume = broker.ClampLot(volume, spec.MinLot, spec.MaxLot)
	req := &broker.OrderRequest{
		ClientID:   uuid.NewString(),
		Symbol:     symbol,
		Side:       broker.Side(decision.Action),
		Volume:     volume,
		Price:      entryPrice,
		StopLoss:   decision.StopLoss,
		TakeProfit: decision.TakeProfit,
		Comment:    truncate(decision.Reason, 25),
	}
	e.log.Info().
		Str("side", decision.Action).
		Float64("volume", volume).
		Str("reason", decision.Reason).
		Msg("executing entry")
	metrics.OrdersTotal.WithLabelValues(symbol, decision.Action).Inc()

	outcome := e.exec.Submit(ctx, req)
	e.log.Info().
		Str("status", outcome.Status.String()).
		Uint64("ticket", outcome.Ticket).
		Str("comment", outcome.Comment).
		Msg("entry resolved")
	return state, nil
}

// truncate shortens s to at most n runes; the order comment field is tiny and
// the oracle's reason may carry multibyte text.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
