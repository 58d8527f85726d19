package strategy

import (
	"math"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/signal"
)

// SMA returns the simple moving average of the trailing period, or 0 when data is short.
func SMA(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period)
}

// EMA returns the last value of an exponential moving average seeded with an SMA.
func EMA(prices []float64, period int) float64 {
	series := emaSeries(prices, period)
	if series == nil {
		return 0
	}
	return series[len(series)-1]
}

// emaSeries computes the full EMA curve aligned to the input. Entries before
// index period-1 are zero because the average is not yet seeded there.
func emaSeries(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}
	out := make([]float64, len(prices))
	multiplier := 2.0 / float64(period+1)
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += prices[i]
	}
	seed /= float64(period)
	out[period-1] = seed
	for i := period; i < len(prices); i++ {
		out[i] = (prices[i]-out[i-1])*multiplier + out[i-1]
	}
	return out
}

// RSI computes the Wilder-smoothed relative strength index. Returns 50 when
// there is not enough data or no net movement.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50.0
	}
	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	rsi := 100.0 - (100.0 / (1.0 + rs))
	return math.Min(100, math.Max(0, rsi))
}

// MACDResult carries the last two histogram values so callers can judge acceleration.
type MACDResult struct {
	Line     float64
	Signal   float64
	Hist     float64
	PrevHist float64
}

// MACD computes the 12/26 line with a 9-period signal over the full price history.
func MACD(prices []float64, fast, slow, sig int) MACDResult {
	if len(prices) < slow+sig {
		return MACDResult{}
	}
	fastCurve := emaSeries(prices, fast)
	slowCurve := emaSeries(prices, slow)

	// MACD line is defined from the point the slow EMA is seeded.
	line := make([]float64, 0, len(prices)-slow+1)
	for i := slow - 1; i < len(prices); i++ {
		line = append(line, fastCurve[i]-slowCurve[i])
	}
	signalCurve := emaSeries(line, sig)
	if signalCurve == nil {
		return MACDResult{}
	}

	last := len(line) - 1
	res := MACDResult{
		Line:   line[last],
		Signal: signalCurve[last],
		Hist:   line[last] - signalCurve[last],
	}
	if last >= sig {
		res.PrevHist = line[last-1] - signalCurve[last-1]
	}
	return res
}

// ADX computes the Wilder average directional index over candle data.
// Returns 0 when the series is too short for one full smoothing pass.
func ADX(candles []signal.Candle, period int) float64 {
	if period <= 0 || len(candles) < 2*period+1 {
		return 0
	}

	n := len(candles) - 1
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i <= n; i++ {
		cur, prev := candles[i], candles[i-1]
		highLow := cur.High - cur.Low
		highClose := math.Abs(cur.High - prev.Close)
		lowClose := math.Abs(cur.Low - prev.Close)
		tr[i-1] = math.Max(highLow, math.Max(highClose, lowClose))

		upMove := cur.High - prev.High
		downMove := prev.Low - cur.Low
		if upMove > downMove && upMove > 0 {
			plusDM[i-1] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i-1] = downMove
		}
	}

	smTR, smPlus, smMinus := 0.0, 0.0, 0.0
	for i := 0; i < period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := make([]float64, 0, n-period+1)
	dx = append(dx, directionalIndex(smPlus, smMinus, smTR))
	for i := period; i < n; i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		dx = append(dx, directionalIndex(smPlus, smMinus, smTR))
	}
	if len(dx) < period {
		return 0
	}

	adx := 0.0
	for i := 0; i < period; i++ {
		adx += dx[i]
	}
	adx /= float64(period)
	for i := period; i < len(dx); i++ {
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
	}
	return adx
}

func directionalIndex(smPlus, smMinus, smTR float64) float64 {
	if smTR == 0 {
		return 0
	}
	plusDI := 100 * smPlus / smTR
	minusDI := 100 * smMinus / smTR
	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / sum
}
