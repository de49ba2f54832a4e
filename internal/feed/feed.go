// Package feed provides the external mark-price collaborators: a live
// Binance futures miniTicker WebSocket client and a random-walk simulator
// for offline runs. The core only consumes the ticks they deliver.
package feed

import (
	"context"

	"github.com/papertrade/perp-engine/internal/model"
)

// Feed delivers a sequence of timestamped mark prices for one symbol.
// Run blocks until ctx is cancelled; the Ticks channel is closed when Run
// returns so consumers drain cleanly on shutdown.
type Feed interface {
	Ticks() <-chan model.Tick
	Run(ctx context.Context) error
}
