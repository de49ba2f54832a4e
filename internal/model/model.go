// Package model defines the core domain types shared across the simulator.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is a known order side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the opposing side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderKind distinguishes immediate execution from resting orders.
type OrderKind string

const (
	KindMarket OrderKind = "MARKET"
	KindLimit  OrderKind = "LIMIT"
)

// OrderStatus is the lifecycle state of an order. Orders are immutable
// once Filled or Cancelled.
type OrderStatus string

const (
	StatusOpen      OrderStatus = "OPEN"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Order is a single-account order. IDs are assigned by the order book,
// monotonically increasing for the account's lifetime.
type Order struct {
	ID        int64           `json:"id"`
	Side      Side            `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Kind      OrderKind       `json:"kind"`
	Price     decimal.Decimal `json:"price"` // zero for market orders
	Status    OrderStatus     `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// Trade is an immutable record of a fill. Once created, these are never
// modified or deleted.
type Trade struct {
	ID          string          `json:"id"`
	OrderID     int64           `json:"order_id"` // zero for forced liquidations
	Side        Side            `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Fee         decimal.Decimal `json:"fee"`
	Liquidation bool            `json:"liquidation,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// PositionSide is the direction of the account's net position.
type PositionSide string

const (
	Long  PositionSide = "LONG"
	Short PositionSide = "SHORT"
	Flat  PositionSide = "FLAT"
)

// Sign returns +1 for Long, -1 for Short, 0 for Flat.
func (s PositionSide) Sign() int64 {
	switch s {
	case Long:
		return 1
	case Short:
		return -1
	}
	return 0
}

// FromOrderSide maps the side of an opening order to a position side.
func FromOrderSide(s Side) PositionSide {
	if s == SideBuy {
		return Long
	}
	return Short
}

// ClosingSide returns the order side that reduces a position on this side.
func (s PositionSide) ClosingSide() Side {
	if s == Long {
		return SideSell
	}
	return SideBuy
}

// Position is the account's single net position. Flat is represented as
// quantity zero with side Flat.
type Position struct {
	Side       PositionSide    `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Leverage   int64           `json:"leverage"`
}

// IsFlat reports whether the position is empty.
func (p Position) IsFlat() bool {
	return p.Side == Flat || p.Quantity.IsZero()
}

// Notional is the position value at entry: entryPrice × quantity.
func (p Position) Notional() decimal.Decimal {
	return p.EntryPrice.Mul(p.Quantity)
}

// RequiredMargin is notional divided by leverage.
func (p Position) RequiredMargin() decimal.Decimal {
	if p.Leverage <= 0 {
		return decimal.Zero
	}
	return p.Notional().Div(decimal.NewFromInt(p.Leverage))
}

// UnrealizedPnL marks the position against the given price:
// (mark − entry) × quantity for Long, (entry − mark) × quantity for Short.
func (p Position) UnrealizedPnL(mark decimal.Decimal) decimal.Decimal {
	if p.IsFlat() {
		return decimal.Zero
	}
	return mark.Sub(p.EntryPrice).Mul(p.Quantity).Mul(decimal.NewFromInt(p.Side.Sign()))
}

// PositionView is the position snapshot returned to clients, with the
// mark-dependent fields computed at read time.
type PositionView struct {
	Side             PositionSide    `json:"side"`
	Quantity         decimal.Decimal `json:"quantity"`
	EntryPrice       decimal.Decimal `json:"entry_price"`
	Leverage         int64           `json:"leverage"`
	LiquidationPrice decimal.Decimal `json:"liquidation_price"`
	UnrealizedPnL    decimal.Decimal `json:"pnl"`
	Margin           decimal.Decimal `json:"margin"`
}

// AccountView is the account snapshot returned to clients.
// Equity = balance + unrealized PnL.
type AccountView struct {
	Balance     decimal.Decimal `json:"balance"`
	Equity      decimal.Decimal `json:"equity"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Leverage    int64           `json:"leverage"`
}

// Tick is one mark-price observation from the external price feed.
type Tick struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Time   time.Time       `json:"time"`
}

// Snapshot is the full exportable engine state, serializable to a durable
// store and restorable on restart.
type Snapshot struct {
	Symbol      string          `json:"symbol"`
	LastPrice   decimal.Decimal `json:"last_price"`
	HasPrice    bool            `json:"has_price"`
	Balance     decimal.Decimal `json:"balance"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	NextOrderID int64           `json:"next_order_id"`
	Orders      []Order         `json:"orders"`
	Position    Position        `json:"position"`
	Trades      []Trade         `json:"trades"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// EventType identifies a state transition worth broadcasting.
type EventType string

const (
	EventTick        EventType = "tick"
	EventFill        EventType = "fill"
	EventLiquidation EventType = "liquidation"
)

// Event is emitted by the engine after a state transition, consumed by the
// WebSocket hub for real-time broadcasts.
type Event struct {
	Type  EventType
	Price decimal.Decimal
	Trade *Trade
}
