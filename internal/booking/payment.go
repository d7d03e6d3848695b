package booking

import (
	"time"

	"github.com/nekogravitycat/rental-booking-backend/internal/auth"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/money"
)

// PaymentStatus is the financial settlement stage of a booking.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentPartial  PaymentStatus = "partial"
)

// PaymentStatuses lists every payment status.
var PaymentStatuses = []PaymentStatus{PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded, PaymentPartial}

// next is the payment transition table.
func (s PaymentStatus) next() []PaymentStatus {
	switch s {
	case PaymentPending:
		return []PaymentStatus{PaymentPaid, PaymentFailed, PaymentPartial}
	case PaymentPartial:
		return []PaymentStatus{PaymentPaid, PaymentFailed, PaymentRefunded}
	case PaymentPaid:
		return []PaymentStatus{PaymentRefunded, PaymentPartial}
	case PaymentFailed:
		return []PaymentStatus{PaymentPaid, PaymentPartial, PaymentPending}
	case PaymentRefunded:
		return nil
	default:
		return nil
	}
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded, PaymentPartial:
		return true
	default:
		return false
	}
}

func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, t := range s.next() {
		if t == target {
			return true
		}
	}
	return false
}

func (s PaymentStatus) IsTerminal() bool {
	return len(s.next()) == 0
}

// ParsePaymentStatus converts a string to a PaymentStatus.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(s)
	if !status.Valid() {
		return "", apperror.Detail(ErrInvalidPaymentStatus, "invalid payment status %q", s)
	}
	return status, nil
}

// PaymentUpdate is a request to change payment status and/or its metadata.
// Nil fields are left untouched.
type PaymentUpdate struct {
	Status    *PaymentStatus
	Method    *string
	Reference *string
	Note      string
}

// paymentResult reports what applyPayment changed.
type paymentResult struct {
	entry         *PaymentHistoryEntry // nil when the status did not change
	autoConfirmed bool
}

// applyPayment validates and applies a payment update on behalf of actor.
// refundedToDate is the sum of refund records for the booking; it is only
// consulted when the update asks for the refunded status.
func (b *Booking) applyPayment(upd PaymentUpdate, actor auth.Actor, party auth.Role, refundedToDate money.Amount, now time.Time) (paymentResult, error) {
	var res paymentResult

	if b.PaymentStatus == PaymentRefunded && party != auth.RoleAdmin {
		return res, ErrPaymentLocked
	}

	statusChange := upd.Status != nil && *upd.Status != b.PaymentStatus
	if !statusChange && upd.Method == nil && upd.Reference == nil {
		return res, ErrNothingToUpdate
	}

	if statusChange {
		target := *upd.Status
		if !target.Valid() {
			return res, apperror.Detail(ErrInvalidPaymentStatus, "invalid payment status %q", target)
		}
		if !b.PaymentStatus.CanTransitionTo(target) {
			return res, apperror.Detail(ErrInvalidPaymentTransition, "cannot move payment from %s to %s", b.PaymentStatus, target)
		}
		if target == PaymentRefunded && refundedToDate != b.TotalAmount {
			return res, apperror.Detail(ErrRefundOutstanding, "refunded %s of %s; process the remaining refund first", refundedToDate, b.TotalAmount)
		}
	}

	if upd.Method != nil {
		b.PaymentMethod = *upd.Method
	}
	if upd.Reference != nil {
		b.PaymentReference = *upd.Reference
	}

	if statusChange {
		res.entry = &PaymentHistoryEntry{
			BookingID:      b.ID,
			PreviousStatus: b.PaymentStatus,
			NewStatus:      *upd.Status,
			Method:         b.PaymentMethod,
			Reference:      b.PaymentReference,
			ActorID:        actor.ID,
			Note:           upd.Note,
			CreatedAt:      now.UTC(),
		}
		b.PaymentStatus = *upd.Status

		// The only coupling edge between the two machines.
		if b.PaymentStatus == PaymentPaid && b.Status == StatusPending {
			b.Status = StatusConfirmed
			res.autoConfirmed = true
		}
	}

	b.UpdatedAt = now.UTC()
	return res, nil
}
