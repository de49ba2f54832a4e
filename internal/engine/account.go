package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Account is the single-account ledger: balance and cumulative realized
// PnL. It is not safe for concurrent use; the Engine serializes access.
//
// The balance never goes negative except transiently during a liquidation,
// which settles it to zero in the same step.
type Account struct {
	balance  decimal.Decimal
	realized decimal.Decimal
}

// NewAccount creates a ledger with the given starting balance.
func NewAccount(balance decimal.Decimal) *Account {
	return &Account{balance: balance}
}

// Balance returns the current balance.
func (a *Account) Balance() decimal.Decimal {
	return a.balance
}

// RealizedPnL returns the cumulative realized PnL since the account started.
func (a *Account) RealizedPnL() decimal.Decimal {
	return a.realized
}

// Deposit credits the balance.
func (a *Account) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: deposit amount must be positive, got %s", ErrInvalidArgument, amount)
	}
	a.balance = a.balance.Add(amount)
	return nil
}

// Withdraw debits the balance. Used for fee charges as well as explicit
// withdrawals; fails rather than let the balance go negative.
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: withdraw amount must not be negative, got %s", ErrInvalidArgument, amount)
	}
	if a.balance.LessThan(amount) {
		return fmt.Errorf("%w: balance %s cannot cover %s", ErrInsufficientFunds, a.balance, amount)
	}
	a.balance = a.balance.Sub(amount)
	return nil
}

// Realize settles a closed position portion's PnL into the balance.
// A loss exceeding the balance is rejected; forced liquidations go through
// Liquidate instead.
func (a *Account) Realize(pnl decimal.Decimal) error {
	next := a.balance.Add(pnl)
	if next.IsNegative() {
		return fmt.Errorf("%w: realizing %s would drive balance %s negative", ErrInsufficientFunds, pnl, a.balance)
	}
	a.balance = next
	a.realized = a.realized.Add(pnl)
	return nil
}

// Liquidate settles the full unrealized PnL of a force-closed position.
// Unlike Realize it never fails: a loss beyond the balance settles to zero.
func (a *Account) Liquidate(pnl decimal.Decimal) {
	a.realized = a.realized.Add(pnl)
	a.balance = a.balance.Add(pnl)
	if a.balance.IsNegative() {
		a.balance = decimal.Zero
	}
}

// Restore overwrites the ledger from a snapshot.
func (a *Account) Restore(balance, realized decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("%w: snapshot balance %s is negative", ErrInvalidArgument, balance)
	}
	a.balance = balance
	a.realized = realized
	return nil
}
