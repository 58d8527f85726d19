package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/signal"
)

// BridgeGateway talks to the local terminal sidecar over HTTP. The sidecar
// fronts the actual broker terminal and exposes a small JSON API:
//
//	POST /initialize                      -> 204 when the terminal session is up
//	GET  /candles?timeframe=M15&count=500 -> [{open,high,low,close,volume,ts}]
//	GET  /tick                            -> {bid, ask, ts}
//	GET  /account                         -> {balance, equity, margin_free, profit}
//	GET  /symbol                          -> {min_lot, max_lot, lot_step, tick_value}
//	GET  /positions                       -> [Position]
//	GET  /deals?since=&until=             -> [Deal]
//	GET  /margin?side=&volume=&price=     -> {margin}
//	POST /order                           -> {retcode, ticket, volume, comment}
//	POST /position/modify                 -> {retcode}
//	POST /position/close                  -> {retcode}
type BridgeGateway struct {
	base   string
	symbol string
	token  string
	hc     *http.Client
}

// NewBridgeGateway builds a gateway bound to one symbol. An empty base falls
// back to the sidecar's default local address.
func NewBridgeGateway(base, symbol, token string) *BridgeGateway {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "http://127.0.0.1:8787"
	}
	return &BridgeGateway{
		base:   strings.TrimRight(base, "/"),
		symbol: symbol,
		token:  token,
		hc:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Symbol returns the instrument this gateway is bound to.
func (b *BridgeGateway) Symbol() string { return b.symbol }

func (b *BridgeGateway) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := b.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("new request %s: %w", path, err)
	}
	return b.do(req, out)
}

func (b *BridgeGateway) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(req, out)
}

func (b *BridgeGateway) do(req *http.Request, out any) error {
	req.Header.Set("User-Agent", "ai-treding-beta-1/1.0")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	resp, err := b.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bridge %s: status %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// Connect asks the sidecar to bring up (or verify) the terminal session.
func (b *BridgeGateway) Connect(ctx context.Context) error {
	payload := map[string]string{"symbol": b.symbol}
	if err := b.postJSON(ctx, "/initialize", payload, nil); err != nil {
		return fmt.Errorf("initialize terminal: %w", err)
	}
	return nil
}

type bridgeCandle struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Ts     int64   `json:"ts"`
}

// Candles fetches the most recent count bars, oldest first.
func (b *BridgeGateway) Candles(ctx context.Context, timeframe Timeframe, count int) (signal.Series, error) {
	q := url.Values{}
	q.Set("symbol", b.symbol)
	q.Set("timeframe", string(timeframe))
	q.Set("count", strconv.Itoa(count))
	var raw []bridgeCandle
	if err := b.getJSON(ctx, "/candles", q, &raw); err != nil {
		return nil, err
	}
	series := make(signal.Series, len(raw))
	for i, c := range raw {
		series[i] = signal.Candle{
			Open: c.Open, High: c.High, Low: c.Low, Close: c.Close,
			Volume: c.Volume, Ts: time.Unix(c.Ts, 0).UTC(),
		}
	}
	return series, nil
}

// Tick returns the latest bid/ask quote.
func (b *BridgeGateway) Tick(ctx context.Context) (signal.Tick, error) {
	q := url.Values{}
	q.Set("symbol", b.symbol)
	var raw struct {
		Bid float64 `json:"bid"`
		Ask float64 `json:"ask"`
		Ts  int64   `json:"ts"`
	}
	if err := b.getJSON(ctx, "/tick", q, &raw); err != nil {
		return signal.Tick{}, err
	}
	return signal.Tick{Bid: raw.Bid, Ask: raw.Ask, Ts: time.Unix(raw.Ts, 0).UTC()}, nil
}

// Account fetches a fresh balance/equity/margin snapshot.
func (b *BridgeGateway) Account(ctx context.Context) (AccountSnapshot, error) {
	var snap AccountSnapshot
	err := b.getJSON(ctx, "/account", nil, &snap)
	return snap, err
}

// SymbolSpec fetches the instrument's lot constraints and tick value.
func (b *BridgeGateway) SymbolSpec(ctx context.Context) (Spec, error) {
	q := url.Values{}
	q.Set("symbol", b.symbol)
	var spec Spec
	err := b.getJSON(ctx, "/symbol", q, &spec)
	return spec, err
}

// OpenPositions lists open positions on the bound symbol.
func (b *BridgeGateway) OpenPositions(ctx context.Context) ([]Position, error) {
	q := url.Values{}
	q.Set("symbol", b.symbol)
	var out []Position
	err := b.getJSON(ctx, "/positions", q, &out)
	return out, err
}

type bridgeDeal struct {
	Ticket   uint64  `json:"ticket"`
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Volume   float64 `json:"volume"`
	Profit   float64 `json:"profit"`
	ClosedAt int64   `json:"closed_at"`
}

// ClosedDeals lists exits recorded between since and until.
func (b *BridgeGateway) ClosedDeals(ctx context.Context, since, until time.Time) ([]Deal, error) {
	q := url.Values{}
	q.Set("symbol", b.symbol)
	q.Set("since", strconv.FormatInt(since.Unix(), 10))
	q.Set("until", strconv.FormatInt(until.Unix(), 10))
	var raw []bridgeDeal
	if err := b.getJSON(ctx, "/deals", q, &raw); err != nil {
		return nil, err
	}
	deals := make([]Deal, len(raw))
	for i, d := range raw {
		deals[i] = Deal{
			Ticket: d.Ticket, Symbol: d.Symbol, Side: d.Side,
			Volume: d.Volume, Profit: d.Profit, ClosedAt: time.Unix(d.ClosedAt, 0).UTC(),
		}
	}
	return deals, nil
}

// CalcMargin asks the terminal how much margin a given volume requires.
func (b *BridgeGateway) CalcMargin(ctx context.Context, side Side, volume, price float64) (float64, error) {
	q := url.Values{}
	q.Set("symbol", b.symbol)
	q.Set("side", string(side))
	q.Set("volume", strconv.FormatFloat(volume, 'f', -1, 64))
	q.Set("price", strconv.FormatFloat(price, 'f', -1, 64))
	var raw struct {
		Margin float64 `json:"margin"`
	}
	if err := b.getJSON(ctx, "/margin", q, &raw); err != nil {
		return 0, err
	}
	return raw.Margin, nil
}

// SubmitOrder forwards one placement attempt and returns the terminal's raw result.
func (b *BridgeGateway) SubmitOrder(ctx context.Context, req *OrderRequest) (OrderResult, error) {
	var res OrderResult
	err := b.postJSON(ctx, "/order", req, &res)
	return res, err
}

// ModifyStopLoss updates stop levels on an open position. The no-changes
// retcode is treated as success: the terminal already holds those levels.
func (b *BridgeGateway) ModifyStopLoss(ctx context.Context, ticket uint64, sl, tp float64) error {
	payload := map[string]any{"ticket": ticket, "sl": sl, "tp": tp}
	var res OrderResult
	if err := b.postJSON(ctx, "/position/modify", payload, &res); err != nil {
		return err
	}
	if res.Retcode != RetcodeDone && res.Retcode != RetcodeNoChanges {
		return fmt.Errorf("modify rejected: retcode %d %s", res.Retcode, res.Comment)
	}
	return nil
}

// ClosePosition sends a market close for the full position volume.
func (b *BridgeGateway) ClosePosition(ctx context.Context, pos Position) error {
	payload := map[string]any{"ticket": pos.Ticket, "volume": pos.Volume, "side": pos.Side}
	var res OrderResult
	if err := b.postJSON(ctx, "/position/close", payload, &res); err != nil {
		return err
	}
	if res.Retcode != RetcodeDone {
		return fmt.Errorf("close rejected: retcode %d %s", res.Retcode, res.Comment)
	}
	return nil
}
