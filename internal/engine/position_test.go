package engine

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/papertrade/perp-engine/internal/model"
)

func newPM(t *testing.T) *PositionManager {
	t.Helper()
	return NewPositionManager(d(0.005))
}

func TestPositionWeightedAverageEntry(t *testing.T) {
	pm := newPM(t)

	fills := []struct{ qty, price float64 }{
		{1, 16000},
		{1, 17000},
		{2, 16250},
	}
	var notional, qty decimal.Decimal
	for _, f := range fills {
		pm.Increase(model.Long, d(f.qty), d(f.price))
		notional = notional.Add(d(f.qty).Mul(d(f.price)))
		qty = qty.Add(d(f.qty))
	}

	want := notional.Div(qty)
	got := pm.Current().EntryPrice
	if got.Sub(want).Abs().GreaterThan(decimal.New(1, -10)) {
		t.Errorf("entry price = %s, want quantity-weighted average %s", got, want)
	}
	if !pm.Current().Quantity.Equal(qty) {
		t.Errorf("quantity = %s, want %s", pm.Current().Quantity, qty)
	}
}

func TestPositionReduceRealizesAndFlattens(t *testing.T) {
	pm := newPM(t)
	pm.Increase(model.Long, d(2), d(100))

	realized := pm.Reduce(d(1), d(110))
	if !realized.Equal(d(10)) {
		t.Errorf("realized = %s, want 10", realized)
	}
	if pm.Current().IsFlat() {
		t.Fatal("position flat after partial reduce")
	}

	realized = pm.Reduce(d(1), d(90))
	if !realized.Equal(d(-10)) {
		t.Errorf("realized = %s, want -10", realized)
	}
	pos := pm.Current()
	if !pos.IsFlat() || pos.Side != model.Flat || !pos.EntryPrice.IsZero() {
		t.Errorf("position not reset to flat: %+v", pos)
	}
}

func TestPositionShortPnL(t *testing.T) {
	pm := newPM(t)
	pm.Increase(model.Short, d(3), d(200))

	if pnl := pm.Current().UnrealizedPnL(d(190)); !pnl.Equal(d(30)) {
		t.Errorf("short pnl at 190 = %s, want 30", pnl)
	}
	if pnl := pm.Current().UnrealizedPnL(d(210)); !pnl.Equal(d(-30)) {
		t.Errorf("short pnl at 210 = %s, want -30", pnl)
	}
}

// Feeding the analytic liquidation price back as the mark must land equity
// exactly on the maintenance threshold.
func TestPositionLiquidationPriceRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		side     model.PositionSide
		qty      float64
		entry    float64
		leverage int64
		balance  float64
	}{
		{"long 100x", model.Long, 2, 16550, 100, 9986.76},
		{"long 1x", model.Long, 4, 200, 1, 500},
		{"short 1x", model.Short, 4, 200, 1, 1000},
		{"short 10x", model.Short, 2, 30000, 10, 8000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pm := newPM(t)
			if err := pm.SetLeverage(tc.leverage); err != nil {
				t.Fatalf("set leverage: %v", err)
			}
			pm.Increase(tc.side, d(tc.qty), d(tc.entry))

			balance := d(tc.balance)
			liq := pm.LiquidationPrice(balance)
			equity := balance.Add(pm.Current().UnrealizedPnL(liq))
			thr := pm.MaintenanceThreshold()

			if equity.Sub(thr).Abs().GreaterThan(decimal.New(1, -10)) {
				t.Errorf("equity at liquidation price = %s, want threshold %s", equity, thr)
			}
			if !pm.Liquidatable(liq, balance) {
				t.Errorf("position not liquidatable at its own liquidation price %s", liq)
			}
		})
	}
}

func TestPositionLiquidatableBounds(t *testing.T) {
	pm := newPM(t)
	pm.SetLeverage(100)
	pm.Increase(model.Long, d(2), d(16550))
	balance := d(9986.76)

	liq := pm.LiquidationPrice(balance)
	above := liq.Add(d(0.01))
	if pm.Liquidatable(above, balance) {
		t.Errorf("liquidatable just above liquidation price %s", liq)
	}
	below := liq.Sub(d(0.01))
	if !pm.Liquidatable(below, balance) {
		t.Errorf("not liquidatable below liquidation price %s", liq)
	}
}

func TestPositionViewFlat(t *testing.T) {
	pm := newPM(t)
	if view := pm.View(d(100), d(1000)); view != nil {
		t.Errorf("flat view = %+v, want nil", view)
	}
}

func TestPositionRestoreValidation(t *testing.T) {
	pm := newPM(t)

	bad := []model.Position{
		{Side: model.Flat, Quantity: d(1), Leverage: 1},
		{Side: model.Long, Quantity: decimal.Zero, Leverage: 1},
		{Side: model.Long, Quantity: d(1), EntryPrice: decimal.Zero, Leverage: 1},
		{Side: model.Long, Quantity: d(1), EntryPrice: d(100), Leverage: 0},
		{Side: "SIDEWAYS", Quantity: d(1), EntryPrice: d(100), Leverage: 1},
	}
	for i, pos := range bad {
		if err := pm.Restore(pos); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("restore case %d = %v, want ErrInvalidArgument", i, err)
		}
	}

	good := model.Position{Side: model.Short, Quantity: d(2), EntryPrice: d(150), Leverage: 5}
	if err := pm.Restore(good); err != nil {
		t.Fatalf("valid restore failed: %v", err)
	}
	if pm.Leverage() != 5 {
		t.Errorf("leverage = %d, want 5", pm.Leverage())
	}
}
