package feed

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/perp-engine/internal/model"
)

// Sim generates a seeded random-walk price series for offline runs and
// tests. Each step moves the price by a uniform fraction of ±drift.
type Sim struct {
	symbol   string
	price    decimal.Decimal
	drift    decimal.Decimal
	interval time.Duration
	rng      *rand.Rand
	ticks    chan model.Tick
}

// NewSim creates a simulated feed starting at the given price. drift is the
// maximum per-step fractional move (e.g. 0.001 for ±0.1%).
func NewSim(symbol string, start decimal.Decimal, drift decimal.Decimal, interval time.Duration, seed int64) *Sim {
	return &Sim{
		symbol:   symbol,
		price:    start,
		drift:    drift,
		interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
		ticks:    make(chan model.Tick, 64),
	}
}

// Ticks returns the tick channel. Closed when Run returns.
func (s *Sim) Ticks() <-chan model.Tick {
	return s.ticks
}

// Run emits one tick per interval until ctx is cancelled.
func (s *Sim) Run(ctx context.Context) error {
	defer close(s.ticks)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.step()
			tick := model.Tick{Symbol: s.symbol, Price: s.price, Time: time.Now().UTC()}
			select {
			case s.ticks <- tick:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// step advances the random walk by one move, keeping the price positive.
func (s *Sim) step() {
	// Uniform in [-1, 1), scaled by drift.
	move := decimal.NewFromFloat(s.rng.Float64()*2 - 1).Mul(s.drift)
	next := s.price.Add(s.price.Mul(move))
	if next.IsPositive() {
		s.price = next
	}
}
