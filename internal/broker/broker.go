// Package broker defines the market-data and order-submission gateway contract
// plus the wire types shared by its implementations.
package broker

import (
	"context"
	"math"
	"time"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/signal"
)

// Side is the direction of an order or position.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Timeframe identifies a candle resolution at the gateway.
type Timeframe string

const (
	M1  Timeframe = "M1"
	M15 Timeframe = "M15"
	H1  Timeframe = "H1"
)

// Terminal return codes the recovery protocol distinguishes. Values mirror the
// terminal's wire codes so bridge payloads pass through untranslated.
const (
	RetcodeDone          = 10009
	RetcodeRequote       = 10004
	RetcodeInvalidVolume = 10014
	RetcodeNoMoney       = 10019
	RetcodeNoChanges     = 10025
)

// AccountSnapshot is read fresh each evaluation and never cached across risk decisions.
type AccountSnapshot struct {
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	MarginFree float64 `json:"margin_free"`
	Profit     float64 `json:"profit"`
}

// Spec is the broker-supplied per-symbol contract specification.
type Spec struct {
	MinLot    float64 `json:"min_lot"`
	MaxLot    float64 `json:"max_lot"`
	LotStep   float64 `json:"lot_step"`
	TickValue float64 `json:"tick_value"`
	Point     float64 `json:"point"`
}

// Position is a snapshot of one open position. The gateway owns the
// authoritative stop level; local trailing only proposes candidates.
type Position struct {
	Ticket     uint64  `json:"ticket"`
	Side       Side    `json:"side"`
	OpenPrice  float64 `json:"open_price"`
	StopLoss   float64 `json:"sl"`
	TakeProfit float64 `json:"tp"`
	Volume     float64 `json:"volume"`
	Profit     float64 `json:"profit"`
}

// Deal is a closed-trade history record used for cycle reconciliation.
type Deal struct {
	Ticket   uint64    `json:"ticket"`
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Volume   float64   `json:"volume"`
	Profit   float64   `json:"profit"`
	ClosedAt time.Time `json:"closed_at"`
}

// OrderRequest is mutable only inside the execution retry loop: volume and
// price may be revised between attempts, nothing else.
type OrderRequest struct {
	ClientID   string  `json:"client_id"`
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	StopLoss   float64 `json:"sl"`
	TakeProfit float64 `json:"tp"`
	Comment    string  `json:"comment"`
}

// OrderResult is the gateway's raw response to one submission attempt.
type OrderResult struct {
	Retcode int     `json:"retcode"`
	Ticket  uint64  `json:"ticket"`
	Volume  float64 `json:"volume"`
	Comment string  `json:"comment"`
}

// Gateway is the full broker-terminal surface the pipeline depends on.
// All calls are synchronous; implementations must honor ctx cancellation.
type Gateway interface {
	Connect(ctx context.Context) error
	Candles(ctx context.Context, timeframe Timeframe, count int) (signal.Series, error)
	Tick(ctx context.Context) (signal.Tick, error)
	Account(ctx context.Context) (AccountSnapshot, error)
	SymbolSpec(ctx context.Context) (Spec, error)
	OpenPositions(ctx context.Context) ([]Position, error)
	ClosedDeals(ctx context.Context, since, until time.Time) ([]Deal, error)
	CalcMargin(ctx context.Context, side Side, volume, price float64) (float64, error)
	SubmitOrder(ctx context.Context, req *OrderRequest) (OrderResult, error)
	ModifyStopLoss(ctx context.Context, ticket uint64, sl, tp float64) error
	ClosePosition(ctx context.Context, pos Position) error
}

// NormalizeLot snaps a volume to the nearest lot step, trimming float dust so
// the result stays an exact multiple of the step.
func NormalizeLot(volume, step float64) float64 {
	if step <= 0 {
		return volume
	}
	lots := math.Round(volume/step) * step
	return math.Round(lots*1e8) / 1e8
}

// ClampLot bounds a volume to the broker's [min, max] range.
func ClampLot(volume, min, max float64) float64 {
	if volume < min {
		return min
	}
	if volume > max {
		return max
	}
	return volume
}
