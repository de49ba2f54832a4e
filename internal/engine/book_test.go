package engine

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/papertrade/perp-engine/internal/model"
)

func TestBookAssignsMonotonicIDs(t *testing.T) {
	b := NewOrderBook()

	var last int64
	for i := 0; i < 5; i++ {
		o, err := b.Submit(model.SideBuy, d(1), model.KindLimit, d(100))
		if err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
		if o.ID <= last {
			t.Fatalf("id %d not greater than previous %d", o.ID, last)
		}
		last = o.ID
	}
}

func TestBookValidation(t *testing.T) {
	b := NewOrderBook()

	cases := []struct {
		name  string
		side  model.Side
		qty   decimal.Decimal
		kind  model.OrderKind
		price decimal.Decimal
	}{
		{"invalid side", "HOLD", d(1), model.KindLimit, d(100)},
		{"zero quantity", model.SideBuy, decimal.Zero, model.KindLimit, d(100)},
		{"negative quantity", model.SideBuy, d(-1), model.KindLimit, d(100)},
		{"zero limit price", model.SideSell, d(1), model.KindLimit, decimal.Zero},
		{"negative limit price", model.SideSell, d(1), model.KindLimit, d(-5)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := b.Submit(tc.side, tc.qty, tc.kind, tc.price); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("got %v, want ErrInvalidArgument", err)
			}
		})
	}

	// Rejected submissions must not consume ids.
	o, err := b.Submit(model.SideBuy, d(1), model.KindLimit, d(100))
	if err != nil {
		t.Fatalf("valid submit failed: %v", err)
	}
	if o.ID != 1 {
		t.Errorf("first accepted order has id %d, want 1", o.ID)
	}
}

func TestBookCancelSemantics(t *testing.T) {
	b := NewOrderBook()
	o, _ := b.Submit(model.SideBuy, d(1), model.KindLimit, d(100))

	if err := b.Cancel(o.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	// Second cancel fails: the order is no longer Open.
	if err := b.Cancel(o.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second cancel = %v, want ErrNotFound", err)
	}
	if err := b.Cancel(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id cancel = %v, want ErrNotFound", err)
	}
}

func TestBookCancelFilledOrder(t *testing.T) {
	b := NewOrderBook()
	o, _ := b.Submit(model.SideBuy, d(1), model.KindLimit, d(100))
	o.Status = model.StatusFilled

	if err := b.Cancel(o.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cancel of filled order = %v, want ErrNotFound", err)
	}
}

func TestBookOpenInsertionOrder(t *testing.T) {
	b := NewOrderBook()
	first, _ := b.Submit(model.SideBuy, d(1), model.KindLimit, d(100))
	second, _ := b.Submit(model.SideSell, d(2), model.KindLimit, d(200))
	third, _ := b.Submit(model.SideBuy, d(3), model.KindLimit, d(90))
	b.Cancel(second.ID)

	open := b.Open()
	if len(open) != 2 {
		t.Fatalf("open count = %d, want 2", len(open))
	}
	if open[0].ID != first.ID || open[1].ID != third.ID {
		t.Errorf("open order ids = [%d %d], want [%d %d]", open[0].ID, open[1].ID, first.ID, third.ID)
	}
}

func TestBookCancelAllOpen(t *testing.T) {
	b := NewOrderBook()
	b.Submit(model.SideBuy, d(1), model.KindLimit, d(100))
	b.Submit(model.SideSell, d(1), model.KindLimit, d(200))

	if n := b.CancelAllOpen(); n != 2 {
		t.Fatalf("swept %d orders, want 2", n)
	}
	if len(b.Open()) != 0 {
		t.Errorf("open orders remain after sweep")
	}
}

func TestBookRestoreValidation(t *testing.T) {
	b := NewOrderBook()

	orders := []model.Order{
		{ID: 2, Side: model.SideBuy, Quantity: d(1), Kind: model.KindLimit, Price: d(100), Status: model.StatusOpen},
		{ID: 1, Side: model.SideSell, Quantity: d(1), Kind: model.KindLimit, Price: d(200), Status: model.StatusFilled},
	}
	// Out-of-order ids are rejected.
	if err := b.Restore(orders, 3); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("restore with descending ids = %v, want ErrInvalidArgument", err)
	}

	orders[0], orders[1] = orders[1], orders[0]
	if err := b.Restore(orders, 3); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if b.NextID() != 3 {
		t.Errorf("next id = %d, want 3", b.NextID())
	}
	if len(b.Open()) != 1 || b.Open()[0].ID != 2 {
		t.Errorf("restored open set wrong: %+v", b.Open())
	}

	// An id colliding with nextID is rejected.
	if err := b.Restore(orders, 2); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("restore with id collision = %v, want ErrInvalidArgument", err)
	}
}
