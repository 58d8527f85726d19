package position

import (
	"testing"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/broker"
)

func TestTrailLong(t *testing.T) {
	tr := Trailer{Activation: 1.00, Distance: 0.50, SecureLock: 0.20}

	cases := []struct {
		name    string
		pos     broker.Position
		price   float64
		wantSL  float64
		applied bool
	}{
		{
			name:    "below activation",
			pos:     broker.Position{Side: broker.Buy, OpenPrice: 2000.00},
			price:   2000.90,
			applied: false,
		},
		{
			name:    "activates and trails behind price",
			pos:     broker.Position{Side: broker.Buy, OpenPrice: 2000.00},
			price:   2002.00,
			wantSL:  2001.50,
			applied: true,
		},
		{
			name:    "tightens as price advances",
			pos:     broker.Position{Side: broker.Buy, OpenPrice: 2000.00, StopLoss: 2001.50},
			price:   2002.50,
			wantSL:  2002.00,
			applied: true,
		},
		{
			name:    "never loosens an existing stop",
			pos:     broker.Position{Side: broker.Buy, OpenPrice: 2000.00, StopLoss: 2001.80},
			price:   2002.00,
			applied: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sl, ok := tr.Trail(tc.pos, tc.price)
			if ok != tc.applied {
				t.Fatalf("applied=%v, want %v", ok, tc.applied)
			}
			if ok && sl != tc.wantSL {
				t.Fatalf("sl=%v, want %v", sl, tc.wantSL)
			}
		})
	}
}

func TestTrailShort(t *testing.T) {
	tr := Trailer{Activation: 1.00, Distance: 0.50, SecureLock: 0.20}

	cases := []struct {
		name    string
		pos     broker.Position
		price   float64
		wantSL  float64
		applied bool
	}{
		{
			name:    "below activation",
			pos:     broker.Position{Side: broker.Sell, OpenPrice: 2000.00},
			price:   1999.50,
			applied: false,
		},
		{
			name:    "unset stop gets the first candidate",
			pos:     broker.Position{Side: broker.Sell, OpenPrice: 2000.00},
			price:   1998.00,
			wantSL:  1998.50,
			applied: true,
		},
		{
			name:    "never loosens an existing stop",
			pos:     broker.Position{Side: broker.Sell, OpenPrice: 2000.00, StopLoss: 1998.20},
			price:   1998.00,
			applied: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sl, ok := tr.Trail(tc.pos, tc.price)
			if ok != tc.applied {
				t.Fatalf("applied=%v, want %v", ok, tc.applied)
			}
			if ok && sl != tc.wantSL {
				t.Fatalf("sl=%v, want %v", sl, tc.wantSL)
			}
		})
	}
}

// A trail distance wider than the activation gap would park the stop in loss
// territory; the secure lock must clamp it back to guaranteed profit.
func TestTrailSecureLock(t *testing.T) {
	tr := Trailer{Activation: 1.00, Distance: 2.00, SecureLock: 0.25}

	long := broker.Position{Side: broker.Buy, OpenPrice: 2000.00}
	sl, ok := tr.Trail(long, 2001.25)
	if !ok || sl != 2000.25 {
		t.Fatalf("long: got (%v, %v), want (2000.25, true)", sl, ok)
	}

	short := broker.Position{Side: broker.Sell, OpenPrice: 2000.00}
	sl, ok = tr.Trail(short, 1998.75)
	if !ok || sl != 1999.75 {
		t.Fatalf("short: got (%v, %v), want (1999.75, true)", sl, ok)
	}
}
