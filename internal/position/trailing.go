// Package position manages stop levels on open positions.
package position

import (
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/broker"
)

// Trailer proposes tighten-only stop-loss updates. All distances are in price
// units of the instrument.
type Trailer struct {
	// Activation is the minimum favorable excursion before trailing begins.
	Activation float64
	// Distance is the stop's offset behind the current price.
	Distance float64
	// SecureLock is the minimum profit guaranteed once trailing is active.
	SecureLock float64
}

// Trail returns a candidate stop for the position at the given price and
// whether it should be applied. Candidates only ever lock in more profit:
// a long's stop never moves down, a short's never moves up.
func (t Trailer) Trail(pos broker.Position, price float64) (float64, bool) {
	switch pos.Side {
	case broker.Buy:
		if price-pos.OpenPrice <= t.Activation {
			return 0, false
		}
		candidate := price - t.Distance
		if floor := pos.OpenPrice + t.SecureLock; candidate < floor {
			candidate = floor
		}
		if candidate > pos.StopLoss {
			return candidate, true
		}

	case broker.Sell:
		if pos.OpenPrice-price <= t.Activation {
			return 0, false
		}
		candidate := price + t.Distance
		if ceil := pos.OpenPrice - t.SecureLock; candidate > ceil {
			candidate = ceil
		}
		// A zero stop on a short means no stop is set yet.
		if pos.StopLoss == 0 || candidate < pos.StopLoss {
			return candidate, true
		}
	}
	return 0, false
}
