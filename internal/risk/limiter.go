// Package risk implements pre-trade checks applied before any fill is
// allowed to touch the position: a minimum margin-adjusted order value and
// an optional cap on total position notional.
package risk

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrOrderTooSmall is returned when an order's margin-adjusted value
	// falls below the configured minimum.
	ErrOrderTooSmall = errors.New("risk: order value below minimum")

	// ErrPositionLimitExceeded is returned when a fill would push the
	// position notional beyond the configured maximum.
	ErrPositionLimitExceeded = errors.New("risk: position notional limit exceeded")
)

// Limiter enforces pre-trade limits.
type Limiter struct {
	// MinOrderValue is the minimum accepted order value in quote units,
	// measured as price × quantity / leverage.
	MinOrderValue decimal.Decimal

	// MaxPositionNotional caps entryPrice × quantity after a fill.
	// Zero disables the cap.
	MaxPositionNotional decimal.Decimal
}

// NewLimiter creates a limiter with the given minimum order value and
// position notional cap.
func NewLimiter(minOrderValue, maxPositionNotional decimal.Decimal) *Limiter {
	return &Limiter{
		MinOrderValue:       minOrderValue,
		MaxPositionNotional: maxPositionNotional,
	}
}

// CheckOrderValue validates the margin-adjusted value of a single order.
func (l *Limiter) CheckOrderValue(price, quantity decimal.Decimal, leverage int64) error {
	if l.MinOrderValue.IsZero() || leverage <= 0 {
		return nil
	}
	value := price.Mul(quantity).Div(decimal.NewFromInt(leverage))
	if value.LessThan(l.MinOrderValue) {
		return ErrOrderTooSmall
	}
	return nil
}

// CheckNotional validates the position notional a fill would result in.
func (l *Limiter) CheckNotional(resulting decimal.Decimal) error {
	if l.MaxPositionNotional.IsPositive() && resulting.GreaterThan(l.MaxPositionNotional) {
		return ErrPositionLimitExceeded
	}
	return nil
}
