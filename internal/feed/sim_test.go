package feed

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSimEmitsPositivePrices(t *testing.T) {
	s := NewSim("BTCUSDT", decimal.NewFromInt(30000), decimal.NewFromFloat(0.01), time.Millisecond, 42)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for i := 0; i < 20; i++ {
		select {
		case tick := <-s.Ticks():
			if tick.Symbol != "BTCUSDT" {
				t.Fatalf("tick symbol = %q", tick.Symbol)
			}
			if !tick.Price.IsPositive() {
				t.Fatalf("tick %d price = %s, want positive", i, tick.Price)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for a tick")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// The channel must be closed once Run returns.
	for range s.Ticks() {
	}
}

func TestSimDeterministicWithSeed(t *testing.T) {
	run := func() []string {
		s := NewSim("BTCUSDT", decimal.NewFromInt(100), decimal.NewFromFloat(0.05), time.Millisecond, 7)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go s.Run(ctx)

		var prices []string
		for i := 0; i < 5; i++ {
			tick := <-s.Ticks()
			prices = append(prices, tick.Price.String())
		}
		return prices
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("tick %d differs across runs with the same seed: %s vs %s", i, first[i], second[i])
		}
	}
}
