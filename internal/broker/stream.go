package broker

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/metrics"
	"github.com/gempurbudianarki/ai-treding-beta-1/internal/signal"
)

type streamQuote struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
	Ts  int64   `json:"ts"`
}

// StreamTicks subscribes to the sidecar's live quote stream and pushes ticks
// onto out until the context is canceled. The stream only feeds write-behind
// telemetry; the decision loop keeps its own synchronous Tick reads. Reconnects
// use a capped exponential backoff.
func (b *BridgeGateway) StreamTicks(ctx context.Context, log zerolog.Logger, out chan<- signal.Tick) error {
	wsBase := strings.Replace(b.base, "http", "ws", 1)
	url := fmt.Sprintf("%s/ws/ticks?symbol=%s", wsBase, b.symbol)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := b.consumeTickStream(ctx, log, url, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Msg("tick stream disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (b *BridgeGateway) consumeTickStream(ctx context.Context, log zerolog.Logger, url string, out chan<- signal.Tick) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Info().Str("symbol", b.symbol).Msg("connected tick stream")

	conn.SetReadLimit(1 << 16)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var quote streamQuote
		if err := conn.ReadJSON(&quote); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		tick := signal.Tick{Bid: quote.Bid, Ask: quote.Ask, Ts: time.Unix(quote.Ts, 0).UTC()}
		select {
		case out <- tick:
			metrics.TicksTotal.WithLabelValues(b.symbol).Inc()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
