package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/perp-engine/internal/model"
)

// OrderBook owns the account's orders. IDs are assigned monotonically and
// are unique for the account's lifetime; resolved orders are retained for
// history but drop out of matching consideration.
//
// Not safe for concurrent use; the Engine serializes access.
type OrderBook struct {
	nextID int64
	orders []*model.Order
	byID   map[int64]*model.Order
}

// NewOrderBook creates an empty book. The first assigned id is 1.
func NewOrderBook() *OrderBook {
	return &OrderBook{
		nextID: 1,
		byID:   make(map[int64]*model.Order),
	}
}

// Submit validates the order parameters, assigns the next id, and appends
// the order to the open set.
func (b *OrderBook) Submit(side model.Side, quantity decimal.Decimal, kind model.OrderKind, price decimal.Decimal) (*model.Order, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("%w: side must be BUY or SELL, got %q", ErrInvalidArgument, side)
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidArgument, quantity)
	}
	if kind == model.KindLimit && !price.IsPositive() {
		return nil, fmt.Errorf("%w: limit price must be positive, got %s", ErrInvalidArgument, price)
	}

	o := &model.Order{
		ID:        b.nextID,
		Side:      side,
		Quantity:  quantity,
		Kind:      kind,
		Price:     price,
		Status:    model.StatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	b.nextID++
	b.orders = append(b.orders, o)
	b.byID[o.ID] = o
	return o, nil
}

// Cancel transitions an Open order to Cancelled. A second cancel, or a
// cancel of a Filled order, fails with ErrNotFound: the order is no longer
// Open.
func (b *OrderBook) Cancel(id int64) error {
	o, ok := b.byID[id]
	if !ok || o.Status != model.StatusOpen {
		return fmt.Errorf("%w: no open order with id %d", ErrNotFound, id)
	}
	o.Status = model.StatusCancelled
	return nil
}

// CancelAllOpen sweeps every Open order to Cancelled and returns how many
// were swept. Used when a liquidation makes resting orders meaningless.
func (b *OrderBook) CancelAllOpen() int {
	n := 0
	for _, o := range b.orders {
		if o.Status == model.StatusOpen {
			o.Status = model.StatusCancelled
			n++
		}
	}
	return n
}

// Open returns the Open orders in insertion order (ascending id).
func (b *OrderBook) Open() []*model.Order {
	var open []*model.Order
	for _, o := range b.orders {
		if o.Status == model.StatusOpen {
			open = append(open, o)
		}
	}
	return open
}

// OpenCount returns the number of Open orders.
func (b *OrderBook) OpenCount() int {
	return len(b.Open())
}

// All returns copies of every order ever submitted, insertion order.
func (b *OrderBook) All() []model.Order {
	out := make([]model.Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, *o)
	}
	return out
}

// NextID returns the id the next submitted order will receive.
func (b *OrderBook) NextID() int64 {
	return b.nextID
}

// Restore overwrites the book from a snapshot, re-validating id uniqueness
// and monotonicity.
func (b *OrderBook) Restore(orders []model.Order, nextID int64) error {
	if nextID < 1 {
		return fmt.Errorf("%w: next order id %d must be at least 1", ErrInvalidArgument, nextID)
	}
	byID := make(map[int64]*model.Order, len(orders))
	restored := make([]*model.Order, 0, len(orders))
	lastID := int64(0)
	for i := range orders {
		o := orders[i]
		if o.ID <= lastID {
			return fmt.Errorf("%w: order ids must be unique and ascending, got %d after %d", ErrInvalidArgument, o.ID, lastID)
		}
		if o.ID >= nextID {
			return fmt.Errorf("%w: order id %d collides with next id %d", ErrInvalidArgument, o.ID, nextID)
		}
		lastID = o.ID
		byID[o.ID] = &o
		restored = append(restored, &o)
	}
	b.orders = restored
	b.byID = byID
	b.nextID = nextID
	return nil
}
