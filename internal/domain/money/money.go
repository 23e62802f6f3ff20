// Package money defines the fixed-point amount rules shared by balances and
// prices: non-negative, at most two fractional digits, strictly below 100.00.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("money: invalid amount")

// Scale is the maximum number of fractional digits an amount may carry.
const Scale = 2

// maxExclusive bounds amounts to four significant digits (99.99).
var maxExclusive = decimal.NewFromInt(100)

// Zero returns the canonical zero amount.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// Validate reports whether d is a well-formed amount.
func Validate(d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("%w: must not be negative, got %s", ErrInvalidAmount, d)
	}
	if d.Exponent() < -Scale {
		return fmt.Errorf("%w: at most %d decimal places, got %s", ErrInvalidAmount, Scale, d)
	}
	if !d.LessThan(maxExclusive) {
		return fmt.Errorf("%w: must be below %s, got %s", ErrInvalidAmount, maxExclusive, d)
	}
	return nil
}

// Parse converts a decimal string into a validated amount.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidAmount, s)
	}
	if err := Validate(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// Format renders an amount with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
