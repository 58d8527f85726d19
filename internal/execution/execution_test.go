package execution

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/broker"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/signal"
)

// fakeGateway replays a scripted sequence of order results and records what
// the engine actually submitted.
type fakeGateway struct {
	script    []broker.OrderResult
	submitted []broker.OrderRequest

	acc       broker.AccountSnapshot
	tick      signal.Tick
	spec      broker.Spec
	marginMin float64
}

func (f *fakeGateway) SubmitOrder(_ context.Context, req *broker.OrderRequest) (broker.OrderResult, error) {
	f.submitted = append(f.submitted, *req)
	if len(f.script) == 0 {
		return broker.OrderResult{Retcode: broker.RetcodeDone, Ticket: 1}, nil
	}
	res := f.script[0]
	f.script = f.script[1:]
	return res, nil
}

func (f *fakeGateway) Connect(context.Context) error { return nil }
func (f *fakeGateway) Candles(context.Context, broker.Timeframe, int) (signal.Series, error) {
	return nil, nil
}
func (f *fakeGateway) Tick(context.Context) (signal.Tick, error) { return f.tick, nil }
func (f *fakeGateway) Account(context.Context) (broker.AccountSnapshot, error) {
	return f.acc, nil
}
func (f *fakeGateway) SymbolSpec(context.Context) (broker.Spec, error) { return f.spec, nil }
func (f *fakeGateway) OpenPositions(context.Context) ([]broker.Position, error) {
	return nil, nil
}
func (f *fakeGateway) ClosedDeals(context.Context, time.Time, time.Time) ([]broker.Deal, error) {
	return nil, nil
}
func (f *fakeGateway) CalcMargin(_ context.Context, _ broker.Side, volume, _ float64) (float64, error) {
	return f.marginMin / f.spec.MinLot * volume, nil
}
func (f *fakeGateway) ModifyStopLoss(context.Context, uint64, float64, float64) error { return nil }
func (f *fakeGateway) ClosePosition(context.Context, broker.Position) error          { return nil }

func testEngine(gw broker.Gateway) *Engine {
	return &Engine{
		gw:          gw,
		log:         zerolog.New(&bytes.Buffer{}),
		maxRetries:  5,
		requoteWait: time.Millisecond,
	}
}

func baseGateway() *fakeGateway {
	return &fakeGateway{
		acc:       broker.AccountSnapshot{Balance: 1000, Equity: 1000, MarginFree: 500},
		tick:      signal.Tick{Bid: 1999.5, Ask: 2000.5},
		spec:      broker.Spec{MinLot: 0.01, MaxLot: 100, LotStep: 0.01, TickValue: 1},
		marginMin: 10,
	}
}

func TestSubmitFillsFirstTry(t *testing.T) {
	gw := baseGateway()
	gw.script = []broker.OrderResult{{Retcode: broker.RetcodeDone, Ticket: 77, Volume: 0.5}}

	out := testEngine(gw).Submit(context.Background(), &broker.OrderRequest{Side: broker.Buy, Volume: 0.5, Price: 2000})
	if out.Status != StatusFilled || out.Ticket != 77 {
		t.Fatalf("outcome=%+v, want filled ticket 77", out)
	}
	if len(gw.submitted) != 1 {
		t.Fatalf("%d submissions, want 1", len(gw.submitted))
	}
}

func TestSubmitTerminalRejection(t *testing.T) {
	gw := baseGateway()
	gw.script = []broker.OrderResult{{Retcode: 10013, Comment: "invalid request"}}

	out := testEngine(gw).Submit(context.Background(), &broker.OrderRequest{Side: broker.Buy, Volume: 0.5, Price: 2000})
	if out.Status != StatusRejected || out.Retcode != 10013 {
		t.Fatalf("outcome=%+v, want terminal rejection 10013", out)
	}
	if len(gw.submitted) != 1 {
		t.Fatalf("terminal retcode must not be retried, got %d submissions", len(gw.submitted))
	}
}

func TestSubmitRequoteRefreshesPrice(t *testing.T) {
	gw := baseGateway()
	gw.script = []broker.OrderResult{
		{Retcode: broker.RetcodeRequote},
		{Retcode: broker.RetcodeDone, Ticket: 5},
	}

	out := testEngine(gw).Submit(context.Background(), &broker.OrderRequest{Side: broker.Buy, Volume: 0.5, Price: 1990})
	if out.Status != StatusFilled {
		t.Fatalf("outcome=%+v, want fill after requote", out)
	}
	if got := gw.submitted[1].Price; got != gw.tick.Ask {
		t.Fatalf("retry price=%v, want refreshed ask %v", got, gw.tick.Ask)
	}
}

func TestSubmitMarginRecoveryShrinksVolume(t *testing.T) {
	gw := baseGateway()
	// Free margin 500 at 10 per minimum lot carries 0.475 lots before rounding.
	gw.script = []broker.OrderResult{
		{Retcode: broker.RetcodeNoMoney},
		{Retcode: broker.RetcodeDone, Ticket: 9},
	}

	out := testEngine(gw).Submit(context.Background(), &broker.OrderRequest{Side: broker.Buy, Volume: 1.0, Price: 2000})
	if out.Status != StatusFilled {
		t.Fatalf("outcome=%+v, want fill after recovery", out)
	}
	if got := gw.submitted[1].Volume; got != 0.48 {
		t.Fatalf("retry volume=%v, want 0.48", got)
	}
}

func TestSubmitMarginAnomalyForcesHalfCut(t *testing.T) {
	gw := baseGateway()
	// Plenty of free margin: the local estimate exceeds the rejected volume,
	// which contradicts the broker. The engine must cut to half instead.
	gw.acc.MarginFree = 1e6
	gw.script = []broker.OrderResult{
		{Retcode: broker.RetcodeNoMoney},
		{Retcode: broker.RetcodeDone, Ticket: 3},
	}

	out := testEngine(gw).Submit(context.Background(), &broker.OrderRequest{Side: broker.Buy, Volume: 1.0, Price: 2000})
	if out.Status != StatusFilled {
		t.Fatalf("outcome=%+v, want fill", out)
	}
	if got := gw.submitted[1].Volume; got != 0.5 {
		t.Fatalf("retry volume=%v, want forced half cut 0.5", got)
	}
}

func TestSubmitFundsExhausted(t *testing.T) {
	gw := baseGateway()
	gw.acc.MarginFree = 5 // below the minimum-lot margin of 10
	gw.script = []broker.OrderResult{{Retcode: broker.RetcodeNoMoney}}

	out := testEngine(gw).Submit(context.Background(), &broker.OrderRequest{Side: broker.Buy, Volume: 1.0, Price: 2000})
	if out.Status != StatusRejected || out.Comment != "funds exhausted" {
		t.Fatalf("outcome=%+v, want funds exhausted rejection", out)
	}
}

func TestSubmitRetryBudget(t *testing.T) {
	gw := baseGateway()
	for i := 0; i < 10; i++ {
		gw.script = append(gw.script, broker.OrderResult{Retcode: broker.RetcodeRequote})
	}

	out := testEngine(gw).Submit(context.Background(), &broker.OrderRequest{Side: broker.Sell, Volume: 0.5, Price: 2000})
	if out.Status != StatusRetryExhausted {
		t.Fatalf("outcome=%+v, want retry exhaustion", out)
	}
	if len(gw.submitted) != 5 {
		t.Fatalf("%d submissions, want exactly 5", len(gw.submitted))
	}
}
