// Package signal standardizes payloads shared between market data ingestion and the decision layers.
package signal

import "time"

// Candle models a single OHLCV bar. Candles are immutable once received.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Ts     time.Time
}

// Range returns the high-low spread of the candle.
func (c Candle) Range() float64 { return c.High - c.Low }

// Series is an ordered sequence of candles for one timeframe, most-recent last.
type Series []Candle

// MinBars is the number of bars required before indicator output is considered stable.
const MinBars = 200

// Closes extracts the close prices in order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// Last returns the most recent candle and true, or a zero candle when the series is empty.
func (s Series) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}

// Tick is a single bid/ask quote from the gateway.
type Tick struct {
	Bid float64
	Ask float64
	Ts  time.Time
}

// Trend classifies the directional structure of one timeframe.
type Trend string

const (
	TrendBullish  Trend = "BULLISH"
	TrendBearish  Trend = "BEARISH"
	TrendSideways Trend = "SIDEWAYS"
)

// Momentum classifies MACD histogram acceleration.
type Momentum string

const (
	MomentumBullAccel Momentum = "BULLISH_ACCEL"
	MomentumBearAccel Momentum = "BEARISH_ACCEL"
	MomentumNeutral   Momentum = "NEUTRAL"
)

// Pattern is the trade setup classification emitted once per cycle.
type Pattern string

const (
	PatternNone       Pattern = "NONE"
	PatternSniperBuy  Pattern = "SNIPER_BUY"
	PatternSniperSell Pattern = "SNIPER_SELL"
)

// Snapshot is the fully derived indicator view of one timeframe.
// Recomputed from scratch every cycle, never mutated incrementally.
type Snapshot struct {
	Trend    Trend
	Momentum Momentum
	RSI      float64
	ADX      float64
	Close    float64
}

// Result bundles everything the classifier produced for one cycle.
// BullOB/BearOB of 0 mean no order block was found in the lookback window.
type Result struct {
	H1           Snapshot
	M15          Snapshot
	Pattern      Pattern
	Reason       string
	BullOB       float64
	BearOB       float64
	CurrentPrice float64
}
