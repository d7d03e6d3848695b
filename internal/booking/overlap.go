package booking

import (
	"context"

	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/daterange"
)

// overlapFinder is implemented by both the repository and its transactions.
type overlapFinder interface {
	// FindOverlapping returns bookings of the property in one of statuses whose
	// range intersects r. excludeBookingID, if set, is ignored.
	FindOverlapping(ctx context.Context, propertyID string, r daterange.Range, statuses []Status, excludeBookingID string) ([]*Booking, error)
}

// OverlapChecker answers whether a candidate stay collides with a blocking reservation.
type OverlapChecker struct {
	includeCompleted bool
}

// NewOverlapChecker builds a checker. With includeCompleted, completed stays
// also block, which protects same-day turnover around a just-finished stay.
func NewOverlapChecker(includeCompleted bool) OverlapChecker {
	return OverlapChecker{includeCompleted: includeCompleted}
}

// BlockingStatuses returns the reservation statuses that occupy nights.
func (c OverlapChecker) BlockingStatuses() []Status {
	if c.includeCompleted {
		return []Status{StatusPending, StatusConfirmed, StatusCompleted}
	}
	return []Status{StatusPending, StatusConfirmed}
}

// IsBlocking reports whether s occupies nights.
func (c OverlapChecker) IsBlocking(s Status) bool {
	for _, b := range c.BlockingStatuses() {
		if b == s {
			return true
		}
	}
	return false
}

// Conflicts filters existing bookings down to those that block r.
func (c OverlapChecker) Conflicts(existing []*Booking, r daterange.Range, excludeBookingID string) []*Booking {
	var out []*Booking
	for _, b := range existing {
		if b.ID == excludeBookingID && excludeBookingID != "" {
			continue
		}
		if !c.IsBlocking(b.Status) {
			continue
		}
		if b.Range().Overlaps(r) {
			out = append(out, b)
		}
	}
	return out
}

// Find returns the blocking bookings of a property that intersect r.
func (c OverlapChecker) Find(ctx context.Context, q overlapFinder, propertyID string, r daterange.Range, excludeBookingID string) ([]*Booking, error) {
	candidates, err := q.FindOverlapping(ctx, propertyID, r, c.BlockingStatuses(), excludeBookingID)
	if err != nil {
		return nil, err
	}
	return c.Conflicts(candidates, r, excludeBookingID), nil
}

// HasConflict reports whether any blocking booking of the property intersects r.
func (c OverlapChecker) HasConflict(ctx context.Context, q overlapFinder, propertyID string, r daterange.Range, excludeBookingID string) (bool, error) {
	conflicts, err := c.Find(ctx, q, propertyID, r, excludeBookingID)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}
