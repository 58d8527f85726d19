// Package risk computes approved lot sizes inside drawdown and margin limits.
package risk

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/broker"
)

// marginHaircut keeps 5% of free margin in reserve to buffer spread and slippage.
const marginHaircut = 0.95

// Evaluation is the immutable verdict for one sizing request.
// Allowed=false always carries Lot=0.
type Evaluation struct {
	Allowed bool
	Lot     float64
	Reason  string
}

func rejected(reason string) Evaluation { return Evaluation{Allowed: false, Lot: 0, Reason: reason} }

// MarginSource answers margin-requirement queries; the broker gateway satisfies it.
type MarginSource interface {
	CalcMargin(ctx context.Context, side broker.Side, volume, price float64) (float64, error)
}

// Request carries everything one sizing decision needs. Account and Spec must
// be freshly read; the sizer never caches broker state.
type Request struct {
	Symbol       string
	Side         broker.Side
	Price        float64
	StopDistance float64 // price-units distance to the stop, 0 when the strategy sent none
	Account      broker.AccountSnapshot
	Spec         broker.Spec
}

// Sizer applies the drawdown gate, the risk-based cap, and the wallet-based cap.
type Sizer struct {
	RiskPct        float64
	MaxDrawdownPct float64
	margin         MarginSource
	log            zerolog.Logger
}

// NewSizer builds a sizer with the configured risk profile.
func NewSizer(riskPct, maxDrawdownPct float64, margin MarginSource, log zerolog.Logger) *Sizer {
	return &Sizer{RiskPct: riskPct, MaxDrawdownPct: maxDrawdownPct, margin: margin, log: log}
}

// Size produces the approved lot for one trade, or a rejection with reason.
func (s *Sizer) Size(ctx context.Context, req Request) Evaluation {
	acc := req.Account
	if acc.Balance <= 0 {
		return rejected("account snapshot unavailable")
	}

	// Daily circuit breaker: equity shortfall below balance, independent of the trade.
	drawdownPct := (acc.Balance - acc.Equity) / acc.Balance * 100
	if drawdownPct > s.MaxDrawdownPct {
		s.log.Warn().
			Float64("drawdown_pct", drawdownPct).
			Float64("limit_pct", s.MaxDrawdownPct).
			Msg("daily drawdown limit hit, trading halted")
		return rejected("daily loss limit reached")
	}

	spec := req.Spec
	tickValue := spec.TickValue
	if tickValue <= 0 {
		tickValue = 1.0
	}

	// Soft limit: lose at most RiskPct of equity if the stop is hit.
	riskMoney := acc.Equity * (s.RiskPct / 100.0)
	lotFromRisk := spec.MaxLot
	if req.StopDistance > 0 {
		lotFromRisk = riskMoney / (req.StopDistance * tickValue)
	} else {
		// No stop distance supplied: the risk cap degenerates to the broker
		// maximum and only the wallet cap protects the account.
		s.log.Warn().Str("symbol", req.Symbol).Msg("sizing without stop distance, wallet cap only")
	}

	// Hard limit: what free margin can actually carry.
	lotFromWallet := spec.MinLot
	marginPerLot, err := s.margin.CalcMargin(ctx, req.Side, 1.0, req.Price)
	if err != nil {
		s.log.Error().Err(err).Msg("margin query failed, falling back to minimum lot")
	} else if marginPerLot > 0 {
		lotFromWallet = acc.MarginFree * marginHaircut / marginPerLot
	}

	final := lotFromRisk
	if lotFromWallet < final {
		final = lotFromWallet
	}
	final = broker.NormalizeLot(final, spec.LotStep)
	final = broker.ClampLot(final, spec.MinLot, spec.MaxLot)

	// Reality check: re-price the margin for the lot we actually intend to send.
	required, err := s.margin.CalcMargin(ctx, req.Side, final, req.Price)
	if err == nil && required > acc.MarginFree {
		if final <= spec.MinLot {
			return rejected(fmt.Sprintf("insufficient funds for minimum lot (need %.2f)", required))
		}
		final = broker.NormalizeLot(final-spec.LotStep, spec.LotStep)
	}

	reason := "risk approved"
	if final < lotFromRisk {
		reason = fmt.Sprintf("lot capped by wallet (risk wants %.2f, wallet max %.2f)", lotFromRisk, lotFromWallet)
	}
	return Evaluation{Allowed: true, Lot: final, Reason: reason}
}
