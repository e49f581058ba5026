package models

import (
	"fmt"
	"strings"

	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/shopspring/decimal"
)

// Money is an immutable non-negative amount in a single ISO 4217 currency.
// Arithmetic and comparison are only defined between equal currencies.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney validates the amount and currency code.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if !isCurrencyCode(code) {
		return Money{}, fmt.Errorf("%w: currency %q is not a 3-letter ISO code", e.ErrInvalidInput, currency)
	}
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("%w: money amount must not be negative", e.ErrInvalidInput)
	}
	return Money{amount: amount, currency: code}, nil
}

// MustMoney parses amount and panics on failure. Intended for constants and tests.
func MustMoney(amount string, currency string) Money {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		panic(err)
	}
	m, err := NewMoney(d, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() string        { return m.currency }

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s and %s", e.ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Sub returns m - other; the result may not go below zero.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	diff := m.amount.Sub(other.amount)
	if diff.IsNegative() {
		return Money{}, fmt.Errorf("%w: subtraction would make money negative", e.ErrInvalidInput)
	}
	return Money{amount: diff, currency: m.currency}, nil
}

// Mul scales m by a non-negative factor. A negative factor is a caller bug.
func (m Money) Mul(factor decimal.Decimal) Money {
	if factor.IsNegative() {
		panic("models: money scaled by negative factor")
	}
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

// Cmp compares two amounts of the same currency.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

// Equal reports whether both currency and amount match.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// Round rounds the amount to the given number of decimal places.
func (m Money) Round(places int32) Money {
	return Money{amount: m.amount.Round(places), currency: m.currency}
}

func (m Money) String() string {
	return m.amount.StringFixed(2) + " " + m.currency
}

// GreaterThan reports whether m exceeds other of the same currency.
func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c > 0, err
}
