// Package strategy derives indicator snapshots and classifies the sniper trade pattern.
package strategy

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/signal"
)

const (
	obLookback = 50 // order-block scan window on the execution timeframe
	obSkip     = 3  // freshest two candles are unconfirmed closes, plus the confirmation offset

	rsiOverbought = 70.0
	rsiOversold   = 30.0

	// Proximity tolerance to an order-block level, as a fraction of price.
	obTolerance = 0.0015
)

// Sniper is the multi-timeframe signal engine: H1 sets the trend, M15 supplies
// momentum, RSI, and order-block zones.
type Sniper struct {
	log zerolog.Logger
}

// NewSniper builds the classifier with a logger for diagnostic scan output.
func NewSniper(log zerolog.Logger) *Sniper {
	return &Sniper{log: log}
}

// Analyze derives a full indicator snapshot for one timeframe.
func Analyze(candles signal.Series) signal.Snapshot {
	snap := signal.Snapshot{Trend: signal.TrendSideways, Momentum: signal.MomentumNeutral, RSI: 50}
	last, ok := candles.Last()
	if !ok {
		return snap
	}
	closes := candles.Closes()

	snap.Close = last.Close
	snap.RSI = RSI(closes, 14)
	snap.ADX = ADX(candles, 14)

	ema50 := EMA(closes, 50)
	switch {
	case last.Close > ema50:
		snap.Trend = signal.TrendBullish
	case last.Close < ema50:
		snap.Trend = signal.TrendBearish
	}

	macd := MACD(closes, 12, 26, 9)
	switch {
	case macd.Hist > macd.PrevHist && macd.Hist > 0:
		snap.Momentum = signal.MomentumBullAccel
	case macd.Hist < macd.PrevHist && macd.Hist < 0:
		snap.Momentum = signal.MomentumBearAccel
	}
	return snap
}

// DetectOrderBlocks scans the execution timeframe for supply/demand zones.
//
// The walk runs from index len-3 down toward len-50 and keeps overwriting the
// stored level on every match, so the value that survives is the match closest
// to the OLDEST edge of the window. Reversing the scan or breaking early would
// change signal placement materially; keep it as-is.
func DetectOrderBlocks(candles signal.Series) (bullOB, bearOB float64) {
	if len(candles) < obLookback+2 {
		return 0, 0
	}
	for i := len(candles) - obSkip; i > len(candles)-obLookback; i-- {
		cur := candles[i]
		next := candles[i+1]

		// Demand zone: last down-candle before a close through its high.
		if cur.Close < cur.Open && next.Close > cur.High {
			bullOB = cur.Low
		}
		// Supply zone: last up-candle before a close through its low.
		if cur.Close > cur.Open && next.Close < cur.Low {
			bearOB = cur.High
		}
	}
	return bullOB, bearOB
}

// Classify runs the full multi-timeframe decision and returns the cycle result.
func (s *Sniper) Classify(h1, m15 signal.Series) signal.Result {
	res := signal.Result{
		H1:      Analyze(h1),
		M15:     Analyze(m15),
		Pattern: signal.PatternNone,
		Reason:  "scanning",
	}
	res.CurrentPrice = res.M15.Close
	res.BullOB, res.BearOB = DetectOrderBlocks(m15)

	decide(&res)

	if res.Pattern == signal.PatternNone {
		s.log.Info().
			Str("h1_trend", string(res.H1.Trend)).
			Str("m15_momentum", string(res.M15.Momentum)).
			Float64("rsi", res.M15.RSI).
			Str("reason", res.Reason).
			Msg("scan: no trade")
	}
	return res
}

// decide applies the pattern rules to an already-analyzed result.
func decide(res *signal.Result) {
	rsi := res.M15.RSI
	mom := res.M15.Momentum
	tolerance := res.CurrentPrice * obTolerance

	distToBull := math.Inf(1)
	if res.BullOB != 0 {
		distToBull = math.Abs(res.CurrentPrice - res.BullOB)
	}
	distToBear := math.Inf(1)
	if res.BearOB != 0 {
		distToBear = math.Abs(res.CurrentPrice - res.BearOB)
	}

	switch res.H1.Trend {
	case signal.TrendBullish:
		strong := mom == signal.MomentumBullAccel
		healthy := rsi >= 45 && rsi <= 68
		nearOB := distToBull < tolerance
		if strong || (healthy && (mom == signal.MomentumNeutral || nearOB)) {
			if rsi < rsiOverbought {
				res.Pattern = signal.PatternSniperBuy
				res.Reason = "bullish trend with momentum confirmation"
			} else {
				res.Reason = fmt.Sprintf("bullish trend but RSI overbought (%.1f)", rsi)
			}
		} else {
			res.Reason = fmt.Sprintf("bullish trend but weak momentum (RSI %.1f)", rsi)
		}

	case signal.TrendBearish:
		strong := mom == signal.MomentumBearAccel
		healthy := rsi >= 32 && rsi <= 55
		nearOB := distToBear < tolerance
		if strong || (healthy && (mom == signal.MomentumNeutral || nearOB)) {
			if rsi > rsiOversold {
				res.Pattern = signal.PatternSniperSell
				res.Reason = "bearish trend with momentum confirmation"
			} else {
				res.Reason = fmt.Sprintf("bearish trend but RSI oversold (%.1f)", rsi)
			}
		} else {
			res.Reason = fmt.Sprintf("bearish trend but weak momentum (RSI %.1f)", rsi)
		}

	default:
		res.Reason = fmt.Sprintf("market sideways (H1 trend %s)", res.H1.Trend)
	}
}
