// Package symbol handles perpetual contract symbol parsing, validation,
// and derivation of the feed stream name.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// symbolRegex matches concatenated BASE+QUOTE symbols such as BTCUSDT.
var symbolRegex = regexp.MustCompile(`^[A-Z0-9]{5,20}$`)

// knownQuotes are the quote assets recognized as symbol suffixes, longest
// first so USDT wins over USD.
var knownQuotes = []string{"USDT", "USDC", "BUSD", "USD", "BTC", "ETH"}

var (
	ErrInvalidSymbol = errors.New("symbol: invalid symbol format")
	ErrUnknownQuote  = errors.New("symbol: unknown quote asset")
)

// Symbol is a parsed perpetual contract symbol.
type Symbol struct {
	Name  string `json:"name"`  // canonical uppercase, e.g. BTCUSDT
	Base  string `json:"base"`  // e.g. BTC
	Quote string `json:"quote"` // e.g. USDT
}

// Parse validates and splits a symbol string. Input is case-insensitive.
func Parse(raw string) (Symbol, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolRegex.MatchString(name) {
		return Symbol{}, fmt.Errorf("%w: %q (expected e.g. BTCUSDT)", ErrInvalidSymbol, raw)
	}
	for _, quote := range knownQuotes {
		base, found := strings.CutSuffix(name, quote)
		if found && base != "" {
			return Symbol{Name: name, Base: base, Quote: quote}, nil
		}
	}
	return Symbol{}, fmt.Errorf("%w: %q", ErrUnknownQuote, raw)
}

// Stream returns the lowercase stream identifier used in feed
// subscriptions, e.g. "btcusdt".
func (s Symbol) Stream() string {
	return strings.ToLower(s.Name)
}
