package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/papertrade/perp-engine/internal/model"
)

// PositionManager maintains the account's single net position: entry price,
// quantity, side, and leverage, plus the analytic risk numbers derived from
// them. Not safe for concurrent use; the Engine serializes access.
type PositionManager struct {
	pos             model.Position
	maintenanceRate decimal.Decimal // fraction of required margin kept as floor
}

// NewPositionManager creates a flat position with leverage 1.
func NewPositionManager(maintenanceRate decimal.Decimal) *PositionManager {
	return &PositionManager{
		pos: model.Position{
			Side:     model.Flat,
			Leverage: 1,
		},
		maintenanceRate: maintenanceRate,
	}
}

// Current returns a copy of the position.
func (pm *PositionManager) Current() model.Position {
	return pm.pos
}

// Leverage returns the leverage that applies to new position quantity.
func (pm *PositionManager) Leverage() int64 {
	return pm.pos.Leverage
}

// SetLeverage changes leverage. The Engine only calls this while flat.
func (pm *PositionManager) SetLeverage(n int64) error {
	if n <= 0 {
		return fmt.Errorf("%w: leverage must be positive, got %d", ErrInvalidArgument, n)
	}
	pm.pos.Leverage = n
	return nil
}

// Increase accumulates quantity on the given side, updating the entry price
// to the volume-weighted average of the constituent fills. The first fill
// sets the side.
func (pm *PositionManager) Increase(side model.PositionSide, quantity, price decimal.Decimal) {
	if pm.pos.IsFlat() {
		pm.pos.Side = side
		pm.pos.Quantity = quantity
		pm.pos.EntryPrice = price
		return
	}
	total := pm.pos.Quantity.Add(quantity)
	weighted := pm.pos.EntryPrice.Mul(pm.pos.Quantity).Add(price.Mul(quantity))
	pm.pos.EntryPrice = weighted.Div(total)
	pm.pos.Quantity = total
}

// Reduce closes part of the position at the given price and returns the
// realized PnL on the closed portion. The caller guarantees
// quantity ≤ current quantity. Reaching zero resets the position to Flat.
func (pm *PositionManager) Reduce(quantity, price decimal.Decimal) decimal.Decimal {
	realized := price.Sub(pm.pos.EntryPrice).
		Mul(quantity).
		Mul(decimal.NewFromInt(pm.pos.Side.Sign()))
	pm.pos.Quantity = pm.pos.Quantity.Sub(quantity)
	if pm.pos.Quantity.IsZero() {
		pm.Flatten()
	}
	return realized
}

// Flatten resets the position, keeping the leverage setting.
func (pm *PositionManager) Flatten() {
	pm.pos.Side = model.Flat
	pm.pos.Quantity = decimal.Zero
	pm.pos.EntryPrice = decimal.Zero
}

// MaintenanceThreshold is the equity floor below which the position is
// force-closed: maintenanceRate × requiredMargin.
func (pm *PositionManager) MaintenanceThreshold() decimal.Decimal {
	if pm.pos.IsFlat() {
		return decimal.Zero
	}
	return pm.maintenanceRate.Mul(pm.pos.RequiredMargin())
}

// Liquidatable reports whether equity at the given mark has fallen to the
// maintenance threshold.
func (pm *PositionManager) Liquidatable(mark, balance decimal.Decimal) bool {
	if pm.pos.IsFlat() {
		return false
	}
	equity := balance.Add(pm.pos.UnrealizedPnL(mark))
	return equity.LessThanOrEqual(pm.MaintenanceThreshold())
}

// LiquidationPrice solves analytically for the mark price at which
// balance + unrealizedPnL equals the maintenance threshold:
//
//	Long:  entry − (balance − threshold) / quantity
//	Short: entry + (balance − threshold) / quantity
//
// Returns zero while flat.
func (pm *PositionManager) LiquidationPrice(balance decimal.Decimal) decimal.Decimal {
	if pm.pos.IsFlat() {
		return decimal.Zero
	}
	buffer := balance.Sub(pm.MaintenanceThreshold()).Div(pm.pos.Quantity)
	if pm.pos.Side == model.Long {
		return pm.pos.EntryPrice.Sub(buffer)
	}
	return pm.pos.EntryPrice.Add(buffer)
}

// View assembles the client-facing position snapshot at the given mark.
// Returns nil while flat.
func (pm *PositionManager) View(mark, balance decimal.Decimal) *model.PositionView {
	if pm.pos.IsFlat() {
		return nil
	}
	return &model.PositionView{
		Side:             pm.pos.Side,
		Quantity:         pm.pos.Quantity,
		EntryPrice:       pm.pos.EntryPrice,
		Leverage:         pm.pos.Leverage,
		LiquidationPrice: pm.LiquidationPrice(balance),
		UnrealizedPnL:    pm.pos.UnrealizedPnL(mark),
		Margin:           pm.pos.RequiredMargin(),
	}
}

// Restore overwrites the position from a snapshot, re-validating the
// flat-iff-zero invariant.
func (pm *PositionManager) Restore(pos model.Position) error {
	if pos.Quantity.IsNegative() {
		return fmt.Errorf("%w: snapshot position quantity %s is negative", ErrInvalidArgument, pos.Quantity)
	}
	if pos.Leverage <= 0 {
		return fmt.Errorf("%w: snapshot leverage %d must be positive", ErrInvalidArgument, pos.Leverage)
	}
	switch pos.Side {
	case model.Flat:
		if !pos.Quantity.IsZero() {
			return fmt.Errorf("%w: flat position with quantity %s", ErrInvalidArgument, pos.Quantity)
		}
	case model.Long, model.Short:
		if pos.Quantity.IsZero() {
			return fmt.Errorf("%w: %s position with zero quantity", ErrInvalidArgument, pos.Side)
		}
		if !pos.EntryPrice.IsPositive() {
			return fmt.Errorf("%w: %s position with entry price %s", ErrInvalidArgument, pos.Side, pos.EntryPrice)
		}
	default:
		return fmt.Errorf("%w: unknown position side %q", ErrInvalidArgument, pos.Side)
	}
	pm.pos = pos
	return nil
}
