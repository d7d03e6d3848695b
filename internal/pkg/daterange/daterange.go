package daterange

import (
	"errors"
	"time"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

var (
	ErrInvalidRange = errors.New("daterange: check-out must be after check-in")
	ErrInvalidDate  = errors.New("daterange: invalid calendar date")
)

// Range is a half-open interval of calendar dates [CheckIn, CheckOut).
// Both ends are normalized to midnight UTC so that no time zone or DST
// offset can leak into night counts or comparisons.
type Range struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// Day returns the calendar date of t (as seen in t's own location) at midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Day(now.In(loc))
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// MustDate parses a YYYY-MM-DD date and panics on failure; for tests and fixtures.
func MustDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// New builds a normalized range, rejecting empty or inverted ones.
func New(checkIn, checkOut time.Time) (Range, error) {
	r := Range{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Validate checks that both ends are set and check-out is strictly after check-in.
func (r Range) Validate() error {
	if r.CheckIn.IsZero() || r.CheckOut.IsZero() {
		return ErrInvalidRange
	}
	if !r.CheckOut.After(r.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

// Nights is the number of nights between check-in and check-out.
func (r Range) Nights() int {
	return int(Day(r.CheckOut).Sub(Day(r.CheckIn)) / (24 * time.Hour))
}

// Overlaps reports whether two half-open ranges share at least one night.
// Touching ranges (one's check-out equals the other's check-in) do not overlap.
func (r Range) Overlaps(other Range) bool {
	return !(!r.CheckOut.After(other.CheckIn) || !r.CheckIn.Before(other.CheckOut))
}

// String renders the range as "YYYY-MM-DD/YYYY-MM-DD".
func (r Range) String() string {
	return r.CheckIn.Format(DateLayout) + "/" + r.CheckOut.Format(DateLayout)
}
