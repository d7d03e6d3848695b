package booking

import (
	"time"

	"github.com/nekogravitycat/rental-booking-backend/internal/auth"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/apperror"
)

// Status is the reservation lifecycle stage of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
)

// Statuses lists every reservation status.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusRefunded}

// next is the reservation transition table. A status missing from the
// switch has no outgoing edges.
func (s Status) next() []Status {
	switch s {
	case StatusPending:
		return []Status{StatusConfirmed, StatusCancelled}
	case StatusConfirmed:
		return []Status{StatusCompleted, StatusCancelled}
	case StatusCancelled:
		return []Status{StatusRefunded}
	case StatusCompleted, StatusRefunded:
		return nil
	default:
		return nil
	}
}

// Valid returns true if the status is a recognized reservation status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusRefunded:
		return true
	default:
		return false
	}
}

// CanTransitionTo returns true if the edge s -> target is in the table.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range s.next() {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s Status) IsTerminal() bool {
	return len(s.next()) == 0
}

// ParseStatus converts a string to a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.Valid() {
		return "", apperror.Detail(ErrInvalidStatus, "invalid booking status %q", s)
	}
	return status, nil
}

// canSetStatus reports whether a party may request a move into target.
func canSetStatus(target Status, party auth.Role) bool {
	switch target {
	case StatusCancelled:
		return party == auth.RoleGuest || party == auth.RoleHost || party == auth.RoleAdmin
	case StatusConfirmed, StatusCompleted:
		return party == auth.RoleHost || party == auth.RoleAdmin
	case StatusRefunded:
		return party == auth.RoleAdmin
	default:
		return false
	}
}

// partyOf resolves the actor's relationship to the booking. Administrators act
// as admin regardless of ownership.
func partyOf(b *Booking, actor auth.Actor) (auth.Role, bool) {
	switch {
	case actor.ID == "":
		return "", false
	case actor.IsAdmin():
		return auth.RoleAdmin, true
	case actor.ID == b.GuestID:
		return auth.RoleGuest, true
	case actor.ID == b.HostID:
		return auth.RoleHost, true
	default:
		return "", false
	}
}

// transition moves the reservation along one edge of the table on behalf of party.
// Entering cancelled stamps the cancellation metadata.
func (b *Booking) transition(target Status, party auth.Role, reason string, now time.Time) error {
	if !b.Status.CanTransitionTo(target) {
		return apperror.Detail(ErrInvalidTransition, "cannot move booking from %s to %s", b.Status, target)
	}
	if !canSetStatus(target, party) {
		return apperror.Detail(ErrPermissionDenied, "%s cannot move booking from %s to %s", party, b.Status, target)
	}
	b.Status = target
	if target == StatusCancelled {
		b.Cancellation = &Cancellation{At: now.UTC(), By: party, Reason: reason}
	}
	b.UpdatedAt = now.UTC()
	return nil
}
