package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidAmount = errors.New("money: invalid decimal amount")
	ErrInvalidRate   = errors.New("money: invalid rate")
)

// Amount is a fixed-point decimal with two fractional digits, stored as an
// integer number of cents to avoid floating point drift.
type Amount int64

// Zero is the zero amount.
const Zero Amount = 0

// maxUnits is the largest whole-unit value whose cent form cannot overflow.
const maxUnits = (math.MaxInt64 - 99) / 100

// FromCents builds an Amount from an integer number of cents.
func FromCents(cents int64) Amount {
	return Amount(cents)
}

// FromUnits builds an Amount from whole currency units.
func FromUnits(units int64) Amount {
	return Amount(units * 100)
}

// Parse reads a decimal string such as "100", "49.9" or "12.345".
// Digits beyond the second fractional place are rounded half-up
// (half away from zero for negative values).
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return 0, ErrInvalidAmount
	}
	units, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if units > maxUnits {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, intPart)
	}

	// Pad to at least three fractional digits so the third decides rounding.
	padded := fracPart + "000"
	cents := int64(padded[0]-'0')*10 + int64(padded[1]-'0')
	if padded[2] >= '5' {
		cents++
	}

	total := units*100 + cents
	if neg {
		total = -total
	}
	return Amount(total), nil
}

// MustParse is Parse that panics; useful in tests and fixtures.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return a + b
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return a - b
}

// Mul multiplies the amount by an integer factor; the result is exact.
func (a Amount) Mul(n int64) Amount {
	return Amount(int64(a) * n)
}

// MulChecked is Mul that reports false instead of overflowing.
func (a Amount) MulChecked(n int64) (Amount, bool) {
	if a == 0 || n == 0 {
		return 0, true
	}
	p := int64(a) * n
	if p/n != int64(a) || (int64(a) == -1 && n == math.MinInt64) || (n == -1 && int64(a) == math.MinInt64) {
		return 0, false
	}
	return Amount(p), true
}

// ApplyRateChecked is ApplyRate that reports false instead of overflowing.
func (a Amount) ApplyRateChecked(r Rate) (Amount, bool) {
	if _, ok := a.MulChecked(int64(r)); !ok {
		return 0, false
	}
	if a > 0 && int64(a)*int64(r) > math.MaxInt64-rateScale/2 {
		return 0, false
	}
	if a < 0 && int64(a)*int64(r) < math.MinInt64+rateScale/2 {
		return 0, false
	}
	return a.ApplyRate(r), true
}

// ApplyRate returns a*rate rounded half-up to the cent.
func (a Amount) ApplyRate(r Rate) Amount {
	product := int64(a) * int64(r)
	if product >= 0 {
		return Amount((product + rateScale/2) / rateScale)
	}
	return Amount((product - rateScale/2) / rateScale)
}

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool {
	return a < 0
}

// IsPositive reports whether the amount is above zero.
func (a Amount) IsPositive() bool {
	return a > 0
}

// String renders the amount with exactly two fractional digits.
func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		return nil
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Sum adds up a list of amounts.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}
