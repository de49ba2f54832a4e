package risk

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestCheckOrderValue(t *testing.T) {
	l := NewLimiter(d(1), decimal.Zero)

	tests := []struct {
		name     string
		price    float64
		qty      float64
		leverage int64
		wantErr  error
	}{
		{"above minimum", 100, 1, 1, nil},
		{"exactly minimum", 100, 1, 100, nil},
		{"below minimum", 100, 0.001, 1, ErrOrderTooSmall},
		{"leverage shrinks value below minimum", 100, 0.5, 100, ErrOrderTooSmall},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := l.CheckOrderValue(d(tc.price), d(tc.qty), tc.leverage)
			if !errors.Is(err, tc.wantErr) && err != tc.wantErr {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCheckOrderValueDisabled(t *testing.T) {
	l := NewLimiter(decimal.Zero, decimal.Zero)
	if err := l.CheckOrderValue(d(0.0001), d(0.0001), 1); err != nil {
		t.Errorf("zero minimum should disable the check, got %v", err)
	}
}

func TestCheckNotional(t *testing.T) {
	l := NewLimiter(decimal.Zero, d(1000))

	if err := l.CheckNotional(d(1000)); err != nil {
		t.Errorf("notional at the cap rejected: %v", err)
	}
	if err := l.CheckNotional(d(1000.01)); !errors.Is(err, ErrPositionLimitExceeded) {
		t.Errorf("notional above cap = %v, want ErrPositionLimitExceeded", err)
	}

	unlimited := NewLimiter(decimal.Zero, decimal.Zero)
	if err := unlimited.CheckNotional(d(1e12)); err != nil {
		t.Errorf("zero cap should disable the check, got %v", err)
	}
}
