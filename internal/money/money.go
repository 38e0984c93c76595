package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount marks an amount that cannot be represented in its
	// currency: NaN, infinite, or smaller than the currency's minimum unit.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrCurrencyMismatch marks an operation between two Money values of
	// different currencies. Amounts are never coerced across currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrDivisionByZero marks a division of Money by a zero scalar.
	ErrDivisionByZero = errors.New("division by zero")
)

// Money is an exact amount of exactly one currency. It is an immutable value
// type: every arithmetic operation returns a new Money and leaves the
// operands untouched.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// New creates a Money from a decimal amount. It fails with ErrInvalidAmount
// when the currency is unsupported or the amount is a non-zero value smaller
// than the currency's minimum representable unit.
func New(amount decimal.Decimal, currency Currency) (Money, error) {
	if !currency.IsValid() {
		return Money{}, fmt.Errorf("%w: unsupported currency %q", ErrInvalidAmount, currency)
	}
	if !amount.IsZero() && amount.Abs().LessThan(currency.MinUnit()) {
		return Money{}, fmt.Errorf("%w: %s is below the minimum unit of %s",
			ErrInvalidAmount, amount, currency)
	}
	return Money{amount: amount, currency: currency}, nil
}

// FromFloat creates a Money from a float amount, rejecting NaN and infinities.
func FromFloat(amount float64, currency Currency) (Money, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Money{}, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return New(decimal.NewFromFloat(amount), currency)
}

// MustNew is a test and wiring helper that panics on invalid input.
func MustNew(amount string, currency Currency) Money {
	m, err := New(decimal.RequireFromString(amount), currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns the zero amount of the given currency.
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency of the amount.
func (m Money) Currency() Currency {
	return m.currency
}

// Add returns m + other, failing with ErrCurrencyMismatch when the currencies
// differ.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Sub returns m - other, failing with ErrCurrencyMismatch when the currencies
// differ.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// MulScalar returns m scaled by a dimensionless factor.
func (m Money) MulScalar(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

// DivScalar returns m divided by a dimensionless divisor, failing with
// ErrDivisionByZero when the divisor is zero.
func (m Money) DivScalar(divisor decimal.Decimal) (Money, error) {
	if divisor.IsZero() {
		return Money{}, fmt.Errorf("%w: cannot divide %s", ErrDivisionByZero, m)
	}
	return Money{amount: m.amount.Div(divisor), currency: m.currency}, nil
}

// Cmp compares two amounts of the same currency, returning -1, 0 or 1. It
// fails with ErrCurrencyMismatch across currencies; amounts of different
// currencies have no ordering.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

// LessThan reports whether m < other within the same currency.
func (m Money) LessThan(other Money) (bool, error) {
	cmp, err := m.Cmp(other)
	if err != nil {
		return false, err
	}
	return cmp < 0, nil
}

// Equal reports whether two Money values have the same currency and amount.
// Unlike Cmp it never fails: amounts of different currencies are simply not
// equal.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Neg returns the amount with its sign flipped.
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.String(), m.currency)
}

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}
