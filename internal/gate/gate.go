// Package gate pre-filters trading cycles by session time and market volatility.
package gate

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/signal"
)

const (
	volWindow = 20
	deadFloor = 0.2 // latest range below 20% of the trailing mean: dead market
	spikeCeil = 5.0 // latest range above 500% of the trailing mean: news spike
)

// Result reports whether the cycle may trade and why.
type Result struct {
	Allowed bool
	Warning bool
	Reason  string
}

// Gate holds the configured trading window. The window may wrap past midnight
// (StartHour > EndHour), e.g. 13:00 through 01:00 local time.
type Gate struct {
	StartHour int
	EndHour   int
	loc       *time.Location
	log       zerolog.Logger
}

// New builds a gate for the given window and IANA time zone name. A zone that
// fails to load is remembered as nil and the time check fails open: trading
// availability is preferred over strict safety here.
func New(startHour, endHour int, zone string, log zerolog.Logger) *Gate {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		log.Error().Err(err).Str("zone", zone).Msg("time zone unavailable, time gate bypassed")
		loc = nil
	}
	return &Gate{StartHour: startHour, EndHour: endHour, loc: loc, log: log}
}

// inWindow tests the wrap-around session window. The end hour is excluded.
func (g *Gate) inWindow(hour int) bool {
	if g.StartHour > g.EndHour {
		return hour >= g.StartHour || hour < g.EndHour
	}
	return g.StartHour <= hour && hour < g.EndHour
}

// Evaluate runs the time check first, then the volatility check on the
// supplied execution-timeframe candles. A broken clock context only bypasses
// the window test; the volatility filter still runs.
func (g *Gate) Evaluate(now time.Time, candles signal.Series) Result {
	if g.loc == nil {
		res := g.volatility(candles)
		if res.Allowed {
			res.Warning = true
			res.Reason = "time check bypassed (zone unavailable)"
		}
		return res
	}
	hour := now.In(g.loc).Hour()
	if !g.inWindow(hour) {
		return Result{Allowed: false, Reason: fmt.Sprintf("outside trading window (%02d-%02d)", g.StartHour, g.EndHour)}
	}
	return g.volatility(candles)
}

func (g *Gate) volatility(candles signal.Series) Result {
	if len(candles) == 0 {
		return Result{Allowed: false, Reason: "waiting for data"}
	}
	if len(candles) < volWindow+1 {
		// Not enough history to judge volatility yet.
		return Result{Allowed: true, Reason: "market healthy"}
	}

	current := candles[len(candles)-1].Range()
	mean := 0.0
	for _, c := range candles[len(candles)-volWindow-1 : len(candles)-1] {
		mean += c.Range()
	}
	mean /= volWindow

	switch {
	case current < mean*deadFloor:
		return Result{Allowed: false, Reason: "low volatility (dead market)"}
	case current > mean*spikeCeil:
		return Result{Allowed: true, Warning: true, Reason: "high volatility warning"}
	default:
		return Result{Allowed: true, Reason: "market healthy"}
	}
}
