// Package execution submits orders and defends them against recoverable
// broker rejections (margin shortfall, requotes) with a bounded retry loop.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/broker"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/metrics"
)

// Status is the terminal state of one submission.
type Status int

const (
	StatusFilled Status = iota
	StatusRejected
	StatusRetryExhausted
)

func (s Status) String() string {
	switch s {
	case StatusFilled:
		return "FILLED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "RETRY_EXHAUSTED"
	}
}

// Outcome reports how a submission ended. Every call to Submit resolves to
// exactly one Outcome; rejections are never silently dropped.
type Outcome struct {
	Status  Status
	Ticket  uint64
	Volume  float64
	Retcode int
	Comment string
}

const (
	defaultMaxRetries  = 5
	defaultRequoteWait = 500 * time.Millisecond
)

// Engine drives the Sending -> {Filled, MarginRecovery, RequoteRecovery, Failed}
// state machine against the gateway.
type Engine struct {
	gw          broker.Gateway
	log         zerolog.Logger
	maxRetries  int
	requoteWait time.Duration
}

// NewEngine builds an engine with the default retry budget.
func NewEngine(gw broker.Gateway, log zerolog.Logger) *Engine {
	return &Engine{gw: gw, log: log, maxRetries: defaultMaxRetries, requoteWait: defaultRequoteWait}
}

// Submit blocks until the request reaches a terminal state. The request's
// volume and price may be mutated between attempts; nothing else is touched.
func (e *Engine) Submit(ctx context.Context, req *broker.OrderRequest) Outcome {
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		res, err := e.gw.SubmitOrder(ctx, req)
		if err != nil {
			e.log.Error().Err(err).Str("symbol", req.Symbol).Msg("order transport failed")
			return Outcome{Status: StatusRejected, Comment: err.Error()}
		}

		switch res.Retcode {
		case broker.RetcodeDone:
			e.log.Info().
				Uint64("ticket", res.Ticket).
				Float64("volume", res.Volume).
				Str("side", string(req.Side)).
				Msg("order filled")
			return Outcome{Status: StatusFilled, Ticket: res.Ticket, Volume: res.Volume, Retcode: res.Retcode}

		case broker.RetcodeNoMoney, broker.RetcodeInvalidVolume:
			metrics.OrderRetriesTotal.WithLabelValues("margin").Inc()
			next, outcome, recovered := e.recoverMargin(ctx, req, res)
			if !recovered {
				return outcome
			}
			e.log.Info().
				Float64("rejected_volume", req.Volume).
				Float64("retry_volume", next).
				Msg("margin recovery, retrying immediately")
			req.Volume = next

		case broker.RetcodeRequote:
			metrics.OrderRetriesTotal.WithLabelValues("requote").Inc()
			before := req.Price
			if tick, terr := e.gw.Tick(ctx); terr == nil {
				if req.Side == broker.Buy {
					req.Price = tick.Ask
				} else {
					req.Price = tick.Bid
				}
			}
			e.log.Warn().
				Float64("stale_price", before).
				Float64("fresh_price", req.Price).
				Msg("requote, refreshing price")
			select {
			case <-time.After(e.requoteWait):
			case <-ctx.Done():
				return Outcome{Status: StatusRejected, Retcode: res.Retcode, Comment: ctx.Err().Error()}
			}

		default:
			e.log.Error().
				Int("retcode", res.Retcode).
				Str("comment", res.Comment).
				Msg("order rejected terminally")
			return Outcome{Status: StatusRejected, Retcode: res.Retcode, Comment: res.Comment}
		}
	}
	e.log.Error().Int("attempts", e.maxRetries).Msg("retry budget exhausted")
	return Outcome{Status: StatusRetryExhausted, Comment: fmt.Sprintf("no fill after %d attempts", e.maxRetries)}
}

// recoverMargin computes the next volume to try after a margin rejection.
// Returns (nextVolume, _, true) to retry, or (_, terminalOutcome, false).
func (e *Engine) recoverMargin(ctx context.Context, req *broker.OrderRequest, res broker.OrderResult) (float64, Outcome, bool) {
	rejected := req.Volume
	failed := Outcome{Status: StatusRejected, Retcode: res.Retcode, Comment: res.Comment}

	acc, err := e.gw.Account(ctx)
	if err != nil {
		return 0, failed, false
	}
	tick, err := e.gw.Tick(ctx)
	if err != nil {
		return 0, failed, false
	}
	spec, err := e.gw.SymbolSpec(ctx)
	if err != nil {
		return 0, failed, false
	}

	price := tick.Ask
	if req.Side == broker.Sell {
		price = tick.Bid
	}
	marginMin, err := e.gw.CalcMargin(ctx, req.Side, spec.MinLot, price)
	if err != nil {
		return 0, failed, false
	}

	var next float64
	if marginMin > 0 {
		capacity := acc.MarginFree * 0.95 / marginMin * spec.MinLot
		next = broker.NormalizeLot(capacity, spec.LotStep)
	}

	// Anomaly correction: a recovery estimate at or above the volume the
	// broker just rejected contradicts the rejection itself. Never trust it;
	// force half the rejected volume instead.
	if next >= rejected {
		e.log.Warn().
			Float64("estimate", next).
			Float64("rejected", rejected).
			Msg("local margin math out of sync with broker, forcing 50% cut")
		next = broker.NormalizeLot(rejected*0.5, spec.LotStep)
	}

	if next < spec.MinLot {
		if acc.MarginFree > marginMin {
			next = spec.MinLot
		} else {
			e.log.Error().
				Float64("margin_free", acc.MarginFree).
				Float64("margin_min", marginMin).
				Msg("funds exhausted, cannot afford minimum lot")
			failed.Comment = "funds exhausted"
			return 0, failed, false
		}
	}

	if next >= rejected {
		// Volume is not shrinking; bail out rather than spin.
		e.log.Error().Msg("margin recovery stalled")
		failed.Comment = "margin recovery stalled"
		return 0, failed, false
	}
	return next, Outcome{}, true
}
