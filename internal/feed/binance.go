package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/papertrade/perp-engine/internal/model"
	"github.com/papertrade/perp-engine/internal/symbol"
)

// DefaultBinanceURL is the Binance USD-M futures stream endpoint.
const DefaultBinanceURL = "wss://fstream.binance.com/ws"

const (
	readTimeout      = 60 * time.Second
	pingInterval     = 30 * time.Second
	handshakeTimeout = 10 * time.Second
	maxBackoff       = 30 * time.Second
)

// Binance subscribes to the <symbol>@miniTicker stream and delivers the
// close price of each ticker event as a mark-price tick. The connection is
// re-established with exponential backoff on failure.
type Binance struct {
	url   string
	sym   symbol.Symbol
	ticks chan model.Tick
}

// NewBinance creates a feed for one symbol. Pass DefaultBinanceURL for the
// production endpoint.
func NewBinance(url string, sym symbol.Symbol) *Binance {
	return &Binance{
		url:   url,
		sym:   sym,
		ticks: make(chan model.Tick, 64),
	}
}

// Ticks returns the tick channel. Closed when Run returns.
func (b *Binance) Ticks() <-chan model.Tick {
	return b.ticks
}

// Run connects, subscribes, and pumps ticks until ctx is cancelled.
func (b *Binance) Run(ctx context.Context) error {
	defer close(b.ticks)

	retry := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := b.connect(ctx)
		if err != nil {
			delay := backoff(retry)
			retry++
			slog.Warn("feed connection failed", "url", b.url, "err", err, "retry_in", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		retry = 0
		slog.Info("feed connected", "symbol", b.sym.Name, "url", b.url)
		b.pump(ctx, conn)
		conn.Close()
	}
}

// subscribeRequest is the Binance stream subscription frame.
type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// miniTicker is the subset of the 24hrMiniTicker event the feed consumes.
type miniTicker struct {
	Event string `json:"e"`
	Close string `json:"c"`
}

func (b *Binance) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return nil, err
	}

	req := subscribeRequest{
		Method: "SUBSCRIBE",
		Params: []string{b.sym.Stream() + "@miniTicker"},
		ID:     1,
	}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// pump reads ticker events until the connection breaks or ctx is cancelled.
func (b *Binance) pump(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	// Ping ticker keeps the connection alive through proxies and unblocks
	// the read loop when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("feed read error", "err", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		var ev miniTicker
		if err := json.Unmarshal(raw, &ev); err != nil || ev.Close == "" {
			continue // subscription ack or unrelated frame
		}
		price, err := decimal.NewFromString(ev.Close)
		if err != nil || !price.IsPositive() {
			slog.Warn("feed dropped malformed price", "close", ev.Close)
			continue
		}

		tick := model.Tick{Symbol: b.sym.Name, Price: price, Time: time.Now().UTC()}
		select {
		case b.ticks <- tick:
		case <-ctx.Done():
			return
		}
	}
}

// backoff returns the reconnect delay for the nth consecutive failure.
func backoff(retry int) time.Duration {
	d := time.Second << uint(retry)
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}
