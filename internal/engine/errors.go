package engine

import "errors"

// Error kinds reported synchronously to callers. The boundary layer maps
// these to transport status codes; none are retried internally.
var (
	// ErrInvalidArgument is returned for malformed input: non-positive
	// quantity or price, invalid side, invalid leverage.
	ErrInvalidArgument = errors.New("engine: invalid argument")

	// ErrInvalidState is returned when an operation is not permitted in the
	// current state: setting leverage while positioned, closing while flat.
	ErrInvalidState = errors.New("engine: invalid state")

	// ErrNotFound is returned for an unknown or already-resolved order id.
	ErrNotFound = errors.New("engine: not found")

	// ErrInsufficientFunds is returned when a fee or loss realization would
	// drive the balance below zero outside a liquidation settlement.
	ErrInsufficientFunds = errors.New("engine: insufficient funds")

	// ErrNoPrice is returned for market-dependent operations before the
	// first tick has arrived.
	ErrNoPrice = errors.New("engine: no price available")
)
