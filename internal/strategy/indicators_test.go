package strategy

import (
	"math"
	"testing"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/signal"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestSMA(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}
	if got := SMA(prices, 5); got != 3 {
		t.Fatalf("SMA(5)=%v, want 3", got)
	}
	if got := SMA(prices, 2); got != 4.5 {
		t.Fatalf("SMA(2)=%v, want 4.5", got)
	}
	if got := SMA(prices, 6); got != 0 {
		t.Fatalf("SMA over short data=%v, want 0", got)
	}
}

func TestEMA(t *testing.T) {
	// Constant input: every EMA step keeps the seed value.
	flat := make([]float64, 60)
	for i := range flat {
		flat[i] = 42
	}
	if got := EMA(flat, 20); !almostEqual(got, 42, 1e-9) {
		t.Fatalf("flat EMA=%v, want 42", got)
	}

	// Rising input: the EMA trails the last price but exceeds the SMA.
	rising := make([]float64, 60)
	for i := range rising {
		rising[i] = float64(i)
	}
	ema := EMA(rising, 20)
	sma := SMA(rising, 20)
	last := rising[len(rising)-1]
	if !(ema < last && ema > sma-10) {
		t.Fatalf("rising EMA=%v out of expected band (last=%v, sma=%v)", ema, last, sma)
	}

	if got := EMA([]float64{1, 2}, 5); got != 0 {
		t.Fatalf("short EMA=%v, want 0", got)
	}
}

func TestRSIBounds(t *testing.T) {
	if got := RSI([]float64{1, 2, 3}, 14); got != 50 {
		t.Fatalf("short-data RSI=%v, want 50", got)
	}

	up := make([]float64, 40)
	for i := range up {
		up[i] = float64(100 + i)
	}
	if got := RSI(up, 14); got != 100 {
		t.Fatalf("all-gains RSI=%v, want 100", got)
	}

	down := make([]float64, 40)
	for i := range down {
		down[i] = float64(100 - i)
	}
	if got := RSI(down, 14); !almostEqual(got, 0, 1e-9) {
		t.Fatalf("all-losses RSI=%v, want 0", got)
	}

	flat := make([]float64, 40)
	for i := range flat {
		flat[i] = 100
	}
	if got := RSI(flat, 14); got != 50 {
		t.Fatalf("flat RSI=%v, want 50", got)
	}
}

func TestMACD(t *testing.T) {
	if res := MACD([]float64{1, 2, 3}, 12, 26, 9); res != (MACDResult{}) {
		t.Fatalf("short-data MACD=%+v, want zero", res)
	}

	flat := make([]float64, 100)
	for i := range flat {
		flat[i] = 50
	}
	res := MACD(flat, 12, 26, 9)
	if !almostEqual(res.Line, 0, 1e-9) || !almostEqual(res.Hist, 0, 1e-9) {
		t.Fatalf("flat MACD=%+v, want zero line and hist", res)
	}

	// A sustained uptrend keeps the fast EMA above the slow one.
	up := make([]float64, 100)
	for i := range up {
		up[i] = float64(i)
	}
	res = MACD(up, 12, 26, 9)
	if res.Line <= 0 {
		t.Fatalf("uptrend MACD line=%v, want > 0", res.Line)
	}
}

func trendingCandles(n int, step float64) signal.Series {
	out := make(signal.Series, n)
	price := 1000.0
	for i := range out {
		open := price
		close := price + step*0.8
		hi, lo := open, close
		if lo > hi {
			hi, lo = lo, hi
		}
		out[i] = signal.Candle{Open: open, High: hi + 0.2, Low: lo - 0.2, Close: close}
		price += step
	}
	return out
}

func TestADX(t *testing.T) {
	if got := ADX(trendingCandles(10, 1), 14); got != 0 {
		t.Fatalf("short-data ADX=%v, want 0", got)
	}

	// A clean one-way trend must register strong directional movement.
	got := ADX(trendingCandles(120, 1), 14)
	if got < 25 || got > 100 {
		t.Fatalf("trending ADX=%v, want in [25, 100]", got)
	}
}
