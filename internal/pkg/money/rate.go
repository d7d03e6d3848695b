package money

import (
	"strconv"
	"strings"
)

// rateScale is the fixed-point denominator of Rate (1 = 0.01%).
const rateScale = 10000

// Rate is a non-negative ratio with four fractional digits, e.g. 0.10 = Rate(1000).
type Rate int64

// ParseRate reads a ratio such as "0.10" or "0.125".
func ParseRate(s string) (Rate, error) {
	s = strings.TrimSpace(s)
	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if s == "" || !digitsOnly(intPart) || !digitsOnly(fracPart) || len(fracPart) > 4 {
		return 0, ErrInvalidRate
	}
	units, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidRate
	}
	frac := fracPart + strings.Repeat("0", 4-len(fracPart))
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, ErrInvalidRate
	}
	return Rate(units*rateScale + f), nil
}

// MustParseRate is ParseRate that panics.
func MustParseRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rate) String() string {
	s := strconv.FormatInt(int64(r)/rateScale, 10) + "." + leftPad(strconv.FormatInt(int64(r)%rateScale, 10), 4)
	return strings.TrimRight(strings.TrimRight(s, "0"), ".")
}

func leftPad(s string, n int) string {
	for len(s) < n {
		s = "0" + s
	}
	return s
}
