package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/perp-engine/internal/model"
	"github.com/papertrade/perp-engine/internal/risk"
)

// MatchingEngine executes fills against the ledger and position. Market
// orders execute immediately at the latest mark; limit orders are evaluated
// on every tick in ascending id order. Fills are all-or-nothing.
//
// Not safe for concurrent use; the Engine serializes access.
type MatchingEngine struct {
	book    *OrderBook
	acct    *Account
	pos     *PositionManager
	feeRate decimal.Decimal
	limiter *risk.Limiter
}

// NewMatchingEngine wires the matcher to the book, ledger, and position it
// mutates. The limiter may be nil to disable pre-trade limits.
func NewMatchingEngine(book *OrderBook, acct *Account, pos *PositionManager, feeRate decimal.Decimal, limiter *risk.Limiter) *MatchingEngine {
	return &MatchingEngine{
		book:    book,
		acct:    acct,
		pos:     pos,
		feeRate: feeRate,
		limiter: limiter,
	}
}

// eligible reports whether an Open limit order may fill at the given mark:
// a Buy fills when mark ≤ limit, a Sell when mark ≥ limit.
func eligible(o *model.Order, mark decimal.Decimal) bool {
	if o.Kind != model.KindLimit {
		return false
	}
	if o.Side == model.SideBuy {
		return mark.LessThanOrEqual(o.Price)
	}
	return mark.GreaterThanOrEqual(o.Price)
}

// MatchOpen scans the Open limit orders in ascending id order and executes
// every one eligible at the given mark, at the mark itself. An order whose
// execution is rejected (insufficient funds, limit breach) is cancelled
// rather than left resting.
func (m *MatchingEngine) MatchOpen(mark decimal.Decimal) []model.Trade {
	var trades []model.Trade
	for _, o := range m.book.Open() {
		if !eligible(o, mark) {
			continue
		}
		trade, err := m.Execute(o, mark)
		if err != nil {
			o.Status = model.StatusCancelled
			slog.Info("order not processed",
				"order_id", o.ID,
				"price", mark.String(),
				"reason", err.Error(),
			)
			continue
		}
		trades = append(trades, *trade)
	}
	return trades
}

// Execute fills the whole order at the given price: charges the fee, applies
// the position composition rule, and marks the order Filled. On error the
// order is left untouched for the caller to resolve.
func (m *MatchingEngine) Execute(o *model.Order, price decimal.Decimal) (*model.Trade, error) {
	fee := price.Mul(o.Quantity).Mul(m.feeRate)
	pos := m.pos.Current()
	leverage := m.pos.Leverage()

	if m.limiter != nil {
		if err := m.limiter.CheckOrderValue(price, o.Quantity, leverage); err != nil {
			return nil, err
		}
	}

	increases := pos.IsFlat() || model.FromOrderSide(o.Side) == pos.Side

	switch {
	case increases:
		if err := m.open(o.Side, o.Quantity, price, fee); err != nil {
			return nil, err
		}

	case o.Quantity.LessThanOrEqual(pos.Quantity):
		if err := m.reduce(o.Quantity, price, fee); err != nil {
			return nil, err
		}

	default:
		if err := m.flip(o.Side, o.Quantity, price, fee); err != nil {
			return nil, err
		}
	}

	o.Status = model.StatusFilled
	return &model.Trade{
		ID:        uuid.New().String(),
		OrderID:   o.ID,
		Side:      o.Side,
		Quantity:  o.Quantity,
		Price:     price,
		Fee:       fee,
		Timestamp: time.Now().UTC(),
	}, nil
}

// open admits a position-opening or -increasing fill: the post-fill required
// margin plus the fee must be covered by the balance.
func (m *MatchingEngine) open(side model.Side, quantity, price, fee decimal.Decimal) error {
	pos := m.pos.Current()
	notional := pos.Notional().Add(price.Mul(quantity))
	if m.limiter != nil {
		if err := m.limiter.CheckNotional(notional); err != nil {
			return err
		}
	}
	required := notional.Div(decimal.NewFromInt(m.pos.Leverage()))
	if m.acct.Balance().Sub(fee).LessThan(required) {
		return fmt.Errorf("%w: balance %s cannot cover margin %s plus fee %s",
			ErrInsufficientFunds, m.acct.Balance(), required, fee)
	}
	if err := m.acct.Withdraw(fee); err != nil {
		return err
	}
	m.pos.Increase(model.FromOrderSide(side), quantity, price)
	return nil
}

// reduce settles the PnL on the closed portion into the ledger and charges
// the fee. Rejected if the combined debit would drive the balance negative.
func (m *MatchingEngine) reduce(quantity, price, fee decimal.Decimal) error {
	pos := m.pos.Current()
	realized := price.Sub(pos.EntryPrice).
		Mul(quantity).
		Mul(decimal.NewFromInt(pos.Side.Sign()))
	if m.acct.Balance().Add(realized).Sub(fee).IsNegative() {
		return fmt.Errorf("%w: realizing %s and fee %s would drive balance %s negative",
			ErrInsufficientFunds, realized, fee, m.acct.Balance())
	}
	if err := m.acct.Realize(realized); err != nil {
		return err
	}
	if err := m.acct.Withdraw(fee); err != nil {
		return err
	}
	m.pos.Reduce(quantity, price)
	return nil
}

// flip closes the whole position and opens the excess on the opposite side.
// PnL on the closed portion is realized first; the excess starts a fresh
// entry at the fill price.
func (m *MatchingEngine) flip(side model.Side, quantity, price, fee decimal.Decimal) error {
	pos := m.pos.Current()
	closed := pos.Quantity
	excess := quantity.Sub(closed)
	realized := price.Sub(pos.EntryPrice).
		Mul(closed).
		Mul(decimal.NewFromInt(pos.Side.Sign()))

	newNotional := price.Mul(excess)
	if m.limiter != nil {
		if err := m.limiter.CheckNotional(newNotional); err != nil {
			return err
		}
	}
	required := newNotional.Div(decimal.NewFromInt(m.pos.Leverage()))
	after := m.acct.Balance().Add(realized).Sub(fee)
	if after.IsNegative() || after.LessThan(required) {
		return fmt.Errorf("%w: balance %s after realizing %s cannot cover margin %s plus fee %s",
			ErrInsufficientFunds, m.acct.Balance(), realized, required, fee)
	}

	if err := m.acct.Realize(realized); err != nil {
		return err
	}
	if err := m.acct.Withdraw(fee); err != nil {
		return err
	}
	m.pos.Reduce(closed, price)
	m.pos.Increase(model.FromOrderSide(side), excess, price)
	return nil
}
