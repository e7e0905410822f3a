// Package core provides money parsing and handling utilities.
//
// Amounts travel as decimal strings on the wire and are stored as integer cents.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmountCents mirrors a DECIMAL(10,2) column: eight integer digits and two decimals.
const (
	maxAmountCents  = 99_999_999_99
	maxAmountDigits = 10
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("too many decimal places")
	ErrTooManyDigits   = errors.New("too many digits")
)

// Money is an amount in cents.
type Money struct {
	Cents int64
}

// ParseMoney parses a decimal string such as "45.50" or "300".
//
// Zero and negative values parse successfully; positivity is a domain rule checked by callers.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal converts d to cents, rejecting more than two decimal places.
//
// The exponent is bounded before any rescaling, so "1e999999999" fails fast
// instead of materialising a huge coefficient.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsZero() {
		return Money{}, nil
	}
	exp := int64(d.Exponent())
	if exp > maxAmountDigits {
		return Money{}, ErrTooManyDigits
	}
	// A nonzero coefficient of n digits cannot absorb more than n trailing zeros.
	if exp < -2-int64(d.NumDigits()) {
		return Money{}, ErrTooManyDecimals
	}
	if !d.Equal(d.Round(2)) {
		return Money{}, ErrTooManyDecimals
	}
	cents := d.Shift(2)
	if cents.Abs().GreaterThan(decimal.NewFromInt(maxAmountCents)) {
		return Money{}, ErrTooManyDigits
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Decimal returns the amount with exactly two decimal places.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount as "45.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) IsPositive() bool {
	return m.Cents > 0
}

// MoneyMessage maps a ParseMoney error onto its user facing message.
func MoneyMessage(err error) string {
	switch {
	case errors.Is(err, ErrTooManyDecimals):
		return MsgTooManyDecimals
	case errors.Is(err, ErrTooManyDigits):
		return MsgTooManyDigits
	default:
		return MsgInvalidNumber
	}
}
