package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/perp-engine/internal/model"
)

func TestMemoryStoreEmpty(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.LoadSnapshot(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("LoadSnapshot on empty store = %v, want ErrNoSnapshot", err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	snap := &model.Snapshot{
		Symbol:      "BTCUSDT",
		LastPrice:   decimal.NewFromInt(16550),
		HasPrice:    true,
		Balance:     decimal.NewFromFloat(9986.76),
		NextOrderID: 3,
		Orders: []model.Order{
			{ID: 1, Side: model.SideBuy, Quantity: decimal.NewFromInt(2), Kind: model.KindMarket, Status: model.StatusFilled},
			{ID: 2, Side: model.SideSell, Quantity: decimal.NewFromInt(1), Kind: model.KindLimit, Price: decimal.NewFromInt(17000), Status: model.StatusOpen},
		},
		Position: model.Position{
			Side:       model.Long,
			Quantity:   decimal.NewFromInt(2),
			EntryPrice: decimal.NewFromInt(16550),
			Leverage:   100,
		},
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Symbol != snap.Symbol || !got.Balance.Equal(snap.Balance) || got.NextOrderID != snap.NextOrderID {
		t.Errorf("loaded snapshot differs: %+v", got)
	}
	if len(got.Orders) != 2 || got.Orders[1].Status != model.StatusOpen {
		t.Errorf("loaded orders differ: %+v", got.Orders)
	}
	if got.Position.Side != model.Long || !got.Position.EntryPrice.Equal(snap.Position.EntryPrice) {
		t.Errorf("loaded position differs: %+v", got.Position)
	}
}

// The store must hand out copies: mutating a loaded snapshot's slices must
// not leak back into the stored state.
func TestMemoryStoreIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	orig := &model.Snapshot{
		Symbol: "BTCUSDT",
		Orders: []model.Order{{ID: 1, Side: model.SideBuy, Status: model.StatusOpen}},
	}
	if err := s.SaveSnapshot(ctx, orig); err != nil {
		t.Fatal(err)
	}

	// Mutate the caller's copy after saving.
	orig.Orders[0].Status = model.StatusCancelled

	first, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Orders[0].Status != model.StatusOpen {
		t.Error("save did not copy the orders slice")
	}

	// Mutate the loaded copy; a second load must be unaffected.
	first.Orders[0].Status = model.StatusCancelled
	second, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.Orders[0].Status != model.StatusOpen {
		t.Error("load did not copy the orders slice")
	}
}
