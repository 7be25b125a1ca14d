// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents. Conversion to and from decimal text goes
// through shopspring/decimal so that wire values like 12.345 round half-up
// exactly instead of through a float.
package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

type Money struct {
	Cents int64
}

// Cents builds a Money value.
func Cents(c int64) Money {
	return Money{Cents: c}
}

// ParseAmount converts user input to a positive Money value.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted and the
// third decimal place is rounded half-up. Signs, zero and anything that is
// not a plain decimal number are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234
//	ParseAmount("12,345") -> 1235
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return Money{}, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m, err := MoneyFromDecimal(d)
	if err != nil {
		return Money{}, err
	}
	if m.Cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

// MoneyFromDecimal rounds d half-up to cents.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	c := d.Shift(2).Round(0)
	if !c.IsInteger() || c.Abs().GreaterThan(decimal.NewFromInt(1<<62)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: c.IntPart()}, nil
}

// Decimal returns the value in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with two decimals and a dot separator.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Euros formats the value Italian style, e.g. "€1.234,50" or "-€3,00".
func (m Money) Euros() string {
	c := m.Cents
	neg := c < 0
	if neg {
		c = -c
	}
	whole := decimal.NewFromInt(c / 100).String()
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := fmt.Sprintf("€%s,%02d", b.String(), c%100)
	if neg {
		return "-" + out
	}
	return out
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
