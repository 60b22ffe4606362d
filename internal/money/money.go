package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for every balance and amount.
const Scale int32 = 2

// Accepted amounts are strictly below 10^18 in magnitude, the range of a
// NUMERIC(20,2) column. minExponent bounds how many fractional digits an
// input may carry before rounding.
const (
	maxExponent int32 = 18
	minExponent int32 = -32
)

var maxAbs = decimal.New(1, maxExponent)

var (
	ErrInvalidAmount = errors.New("invalid money amount")
)

// Round rounds d to Scale places, half away from zero.
// Every value entering or leaving the ledger goes through here.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// FromFloat converts a binary float into an exact decimal at the boundary.
// The shortest decimal representation of f is used, so 123.45 becomes
// exactly 123.45 and not 123.4500000000000028421709430404007434844970703125.
func FromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, ErrInvalidAmount
	}
	d := decimal.NewFromFloat(f)
	if err := checkRange(d); err != nil {
		return decimal.Zero, err
	}
	return Round(d), nil
}

// Parse reads a textual amount such as "876.55" and rounds it to Scale.
func Parse(s string) (decimal.Decimal, error) {
	d, err := ParseExact(s)
	if err != nil {
		return decimal.Zero, err
	}
	return Round(d), nil
}

// ParseExact is Parse without the rounding, for inputs whose sign must be
// judged before they are rounded.
func ParseExact(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if err := checkRange(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// checkRange rejects values the ledger cannot hold. The exponent is checked
// first since rescaling a value like 1e200000000 is unbounded work.
func checkRange(d decimal.Decimal) error {
	exp := d.Exponent()
	if exp > maxExponent || exp < minExponent {
		return fmt.Errorf("%w: exponent %d out of range", ErrInvalidAmount, exp)
	}
	if d.Abs().GreaterThanOrEqual(maxAbs) {
		return fmt.Errorf("%w: magnitude exceeds %s", ErrInvalidAmount, maxAbs)
	}
	return nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Sum adds values exactly and rounds the total once.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return Round(total)
}

// Format renders d with exactly Scale fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
