// Package orchestrator sequences the per-cycle decision: gate, signal,
// two-stage advisory consultation, and the final execute/hold verdict.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/broker"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/gate"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/metrics"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/oracle"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/signal"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/telemetry"
)

// Asker abstracts the oracle client for testing.
type Asker interface {
	Ask(ctx context.Context, model, prompt string) (string, error)
}

// ChatLogger records every oracle exchange for observability.
type ChatLogger interface {
	AppendChat(speaker, message, action string)
}

// Models selects which oracle model serves each advisory role.
type Models struct {
	Strategist string
	Reviewer   string
	Evaluator  string
}

// Decision is the orchestrator's final verdict for one cycle.
type Decision struct {
	Action     string // BUY, SELL, or HOLD
	TakeProfit float64
	StopLoss   float64
	LotFactor  float64
	Reason     string
}

func hold(reason string) Decision {
	return Decision{Action: "HOLD", LotFactor: 1.0, Reason: reason}
}

// Orchestrator owns prompt construction, response parsing, and the veto chain.
type Orchestrator struct {
	oracle  Asker
	models  Models
	chat    ChatLogger
	symbol  string
	enabled bool
	log     zerolog.Logger
}

// New builds an orchestrator. With enabled=false every consultation resolves
// to HOLD without a remote call.
func New(asker Asker, models Models, chat ChatLogger, symbol string, enabled bool, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{oracle: asker, models: models, chat: chat, symbol: symbol, enabled: enabled, log: log}
}

// Input is the cycle context the decision draws on.
type Input struct {
	Signal    signal.Result
	Gate      gate.Result
	Control   telemetry.Control
	Sentiment string
}

// Decide walks the veto chain and, when everything lines up, runs the
// two-stage consultation. Short-circuits at the first veto; a NONE pattern
// never reaches the oracle, so quiet cycles cost no remote calls.
func (o *Orchestrator) Decide(ctx context.Context, in Input) Decision {
	if !in.Control.TradingEnabled {
		return hold("paused by dashboard")
	}
	if !in.Gate.Allowed {
		return hold(in.Gate.Reason)
	}
	if in.Signal.Pattern == signal.PatternNone {
		return hold("no technical pattern")
	}
	if !o.enabled {
		return hold("advisor disabled in settings")
	}
	return o.consult(ctx, in)
}

func (o *Orchestrator) marketContext(in Input) string {
	return fmt.Sprintf(`ASSET: %s | PRICE: %.2f
SIGNAL: %s (source: technical scan)

TREND H1: %s
MOMENTUM M15: %s
RSI M15: %.1f
NEWS SENTIMENT: %s`,
		o.symbol, in.Signal.CurrentPrice, in.Signal.Pattern,
		in.Signal.H1.Trend, in.Signal.M15.Momentum, in.Signal.M15.RSI, in.Sentiment)
}

// consult runs strategist then risk reviewer. Oracle failures and malformed
// output degrade to the stage's safe default: HOLD for the strategist,
// REJECT for the reviewer.
func (o *Orchestrator) consult(ctx context.Context, in Input) Decision {
	market := o.marketContext(in)

	promptStrat := fmt.Sprintf(`ROLE: You are a RUTHLESS SCALPER (%s specialist).

MARKET DATA:
%s

RULES:
1. FOLLOW TREND H1 STRICTLY. (If Bullish -> Buy Only, If Bearish -> Sell Only).
2. Signal '%s' detected. Confirm if momentum supports it.
3. IGNORE weak signals against the trend.
4. SET TIGHT STOP LOSS (Max 30-50 pips).
5. TARGET Risk-Reward > 1:1.5.

OUTPUT (JSON ONLY):
{"action": "BUY/SELL/HOLD", "tp": price_target, "sl": price_stop, "reason": "Brief tactical reason"}`,
		o.symbol, market, in.Signal.Pattern)

	rawStrat, err := o.oracle.Ask(ctx, o.models.Strategist, promptStrat)
	if err != nil {
		o.log.Warn().Err(err).Msg("strategist unavailable")
		metrics.OracleCallsTotal.WithLabelValues("strategist", "error").Inc()
		return hold("strategist unavailable")
	}
	proposal, ok := oracle.ParseProposal(rawStrat)
	outcome := "ok"
	if !ok {
		outcome = "malformed"
	}
	metrics.OracleCallsTotal.WithLabelValues("strategist", outcome).Inc()
	o.chat.AppendChat("Strategist", proposal.Reason, proposal.Action)

	if proposal.Action != "BUY" && proposal.Action != "SELL" {
		return hold("strategist veto (no entry)")
	}

	promptRisk := fmt.Sprintf(`ROLE: You are a SENIOR RISK MANAGER. Verify this trade proposal.

PROPOSAL: %s @ %.2f
TP: %.2f | SL: %.2f

MARKET CONTEXT:
%s

VERIFICATION CHECKLIST:
1. Is the trade aligned with H1 Trend? (Crucial)
2. Is the SL logical (not too wide/narrow)?
3. Is RSI currently extreme? (Overbought > 70 for Buy / Oversold < 30 for Sell)? If yes, REJECT immediately.

OUTPUT (JSON ONLY):
{"action": "APPROVE/REJECT", "reason": "Critique or Approval"}`,
		proposal.Action, in.Signal.CurrentPrice,
		float64(proposal.TakeProfit), float64(proposal.StopLoss), market)

	rawRisk, err := o.oracle.Ask(ctx, o.models.Reviewer, promptRisk)
	if err != nil {
		o.log.Warn().Err(err).Msg("risk reviewer unavailable")
		metrics.OracleCallsTotal.WithLabelValues("reviewer", "error").Inc()
		o.chat.AppendChat("SYSTEM", "reviewer unreachable, trade vetoed", "HOLD")
		return hold("risk reviewer unavailable")
	}
	review, ok := oracle.ParseReview(rawRisk)
	outcome = "ok"
	if !ok {
		outcome = "malformed"
	}
	metrics.OracleCallsTotal.WithLabelValues("reviewer", outcome).Inc()
	o.chat.AppendChat("Risk Reviewer", review.Reason, review.Action)

	if !review.Approved() {
		o.chat.AppendChat("SYSTEM", "veto by risk reviewer", "HOLD")
		return hold(fmt.Sprintf("risk reviewer rejected trade: %s", review.Reason))
	}

	o.chat.AppendChat("SYSTEM", "trade approved", "EXECUTE")
	return Decision{
		Action:     proposal.Action,
		TakeProfit: float64(proposal.TakeProfit),
		StopLoss:   float64(proposal.StopLoss),
		LotFactor:  1.0,
		Reason:     fmt.Sprintf("consensus: %s", review.Reason),
	}
}

// Sentiment condenses recent headlines into a one-word market mood via the
// evaluator model. Falls back to Neutral whenever the oracle is mute.
func (o *Orchestrator) Sentiment(ctx context.Context, headlines []string) string {
	if !o.enabled || len(headlines) == 0 {
		return "Neutral"
	}
	prompt := fmt.Sprintf(`Classify the overall market sentiment of these headlines for %s.
HEADLINES:
- %s

OUTPUT (ONE WORD ONLY): Bullish, Bearish, or Neutral`,
		o.symbol, strings.Join(headlines, "\n- "))

	raw, err := o.oracle.Ask(ctx, o.models.Evaluator, prompt)
	if err != nil || raw == "" {
		return "Neutral"
	}
	word := strings.Fields(raw)[0]
	switch strings.ToLower(strings.Trim(word, ".,\"'")) {
	case "bullish":
		return "Bullish"
	case "bearish":
		return "Bearish"
	default:
		return "Neutral"
	}
}

// CheckOpenPosition is the smart-exit hook for running trades. It currently
// always holds and lets the mechanical trailing stop do the work.
// TODO: consult the evaluator model for early exits on momentum reversal.
func (o *Orchestrator) CheckOpenPosition(pos broker.Position, sig signal.Result, sentiment string) string {
	return "HOLD"
}

// RecordTradeResult runs the post-mortem on a closed trade: a one-line lesson
// from the evaluator model, with a heuristic fallback when the oracle is mute,
// written newest-first into the journal.
func (o *Orchestrator) RecordTradeResult(ctx context.Context, journal interface {
	PrependJournal(telemetry.JournalEntry)
}, trade telemetry.TradeRecord, marketSnapshot string) {
	result := "LOSS"
	if trade.Profit > 0 {
		result = "WIN"
	}

	lesson := ""
	if o.enabled {
		prompt := fmt.Sprintf(`ACT AS A TRADING MENTOR. ANALYZE THIS CLOSED TRADE.

RESULT: %s (PnL: $%.2f)
TYPE: %s
MARKET CONTEXT: %s

TASK:
Provide a SHARP, 5-10 word reason for this result.
- If WIN: Was it trend following? Good trailing stop?
- If LOSS: Was it a reversal? News spike? Choppy market?

OUTPUT (JUST THE REASON TEXT, NO JSON):`,
			result, trade.Profit, trade.Side, marketSnapshot)
		raw, err := o.oracle.Ask(ctx, o.models.Evaluator, prompt)
		if err == nil {
			lesson = strings.TrimSpace(strings.NewReplacer(`"`, "", "'", "").Replace(raw))
		}
	}
	if len(lesson) < 3 || strings.Contains(strings.ToLower(lesson), "error") {
		switch {
		case result == "WIN" && trade.Profit > 5.0:
			lesson = "Strong trend capture."
		case result == "WIN":
			lesson = "Scalped small profit."
		default:
			lesson = "Stop loss hit by volatility."
		}
	}

	date := trade.ClosedAt
	if date == "" {
		date = time.Now().Format("2006-01-02 15:04")
	}
	journal.PrependJournal(telemetry.JournalEntry{
		Date:    date,
		Ticket:  trade.Ticket,
		Side:    trade.Side,
		Result:  result,
		PnL:     trade.Profit,
		Lesson:  lesson,
		Context: marketSnapshot,
	})
	o.log.Info().Str("result", result).Str("lesson", lesson).Msg("journal entry recorded")
}
