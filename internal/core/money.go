// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents so that sums are exact; decimal text is
// only used at the edges (JSON and user input).
package core

import (
	"bytes"
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

// MaxAmountCents caps a single expense at one trillion currency units, far
// enough below math.MaxInt64 that report sums cannot realistically overflow.
const MaxAmountCents int64 = 100_000_000_000_000

var maxMoney = decimal.New(math.MaxInt64/100, 0)

// ErrAmountOverflow is returned when a sum no longer fits in int64 cents.
var ErrAmountOverflow = errors.New("amount overflow")

// MoneyFromString converts a decimal string to Money, rounding half away
// from zero to the cent.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. The sign
// is preserved; positivity is checked by Validate, not here.
//
// Examples:
//
//	MoneyFromString("12.34")  -> 1234 cents
//	MoneyFromString("12,34")  -> 1234 cents
//	MoneyFromString("12.345") -> 1235 cents
//	MoneyFromString("12.344") -> 1234 cents
func MoneyFromString(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal rounds d half away from zero to the cent.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.Abs().GreaterThan(maxMoney) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: d.Round(2).Shift(2).IntPart()}, nil
}

// Validate reports ErrInvalidAmount unless m is positive and within
// MaxAmountCents.
func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxAmountCents {
		return ErrInvalidAmount
	}
	return nil
}

// WithinLimit reports whether m does not exceed MaxAmountCents.
func (m Money) WithinLimit() bool {
	return m.Cents <= MaxAmountCents
}

// Add returns the sum of m and o, or ErrAmountOverflow when it does not fit.
func (m Money) Add(o Money) (Money, error) {
	sum := m.Cents + o.Cents
	if (o.Cents > 0 && sum < m.Cents) || (o.Cents < 0 && sum > m.Cents) {
		return Money{}, ErrAmountOverflow
	}
	return Money{Cents: sum}, nil
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with exactly two decimals.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON writes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	parsed, err := MoneyFromString(string(bytes.Trim(b, `"`)))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
