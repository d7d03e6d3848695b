package booking

import (
	"strings"
	"time"

	"github.com/nekogravitycat/rental-booking-backend/internal/auth"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/money"
)

// RefundRequest asks for part or all of a booking's total to be returned.
type RefundRequest struct {
	Amount money.Amount
	Reason string
	Method string // defaults to the booking's payment method
}

type refundResult struct {
	record   *RefundRecord
	entry    *PaymentHistoryEntry
	previous Status
	full     bool
}

// applyRefund validates a refund against the booking and the refunds already
// recorded for it, then moves payment (and, for a full refund, reservation)
// status. Preconditions are checked in a fixed order; each has its own error.
func (b *Booking) applyRefund(req RefundRequest, admin auth.Actor, refundedSoFar money.Amount, now time.Time) (refundResult, error) {
	var res refundResult

	if b.PaymentStatus != PaymentPaid && b.PaymentStatus != PaymentPartial {
		return res, apperror.Detail(ErrNotRefundable, "cannot refund a booking whose payment is %s", b.PaymentStatus)
	}
	if !req.Amount.IsPositive() {
		return res, ErrInvalidRefundAmount
	}
	if req.Amount > b.TotalAmount {
		return res, apperror.Detail(ErrRefundExceedsTotal, "refund %s exceeds booking total %s", req.Amount, b.TotalAmount)
	}
	refundedToDate := refundedSoFar.Add(req.Amount)
	if refundedToDate > b.TotalAmount {
		return res, apperror.Detail(ErrRefundBalanceExceeded, "refund %s exceeds remaining balance %s", req.Amount, b.TotalAmount.Sub(refundedSoFar))
	}

	method := strings.TrimSpace(req.Method)
	if method == "" {
		method = b.PaymentMethod
	}
	if method == "" {
		return res, ErrRefundMethodRequired
	}

	now = now.UTC()
	res.previous = b.Status
	res.full = refundedToDate == b.TotalAmount

	nextPayment := PaymentPartial
	if res.full {
		nextPayment = PaymentRefunded
	}

	if res.full {
		// A full refund closes the reservation. Open reservations pass through
		// cancelled so that every step stays on the transition table; a
		// completed stay keeps its status.
		switch b.Status {
		case StatusPending, StatusConfirmed:
			if err := b.transition(StatusCancelled, auth.RoleAdmin, req.Reason, now); err != nil {
				return res, err
			}
			if err := b.transition(StatusRefunded, auth.RoleAdmin, req.Reason, now); err != nil {
				return res, err
			}
		case StatusCancelled:
			if err := b.transition(StatusRefunded, auth.RoleAdmin, req.Reason, now); err != nil {
				return res, err
			}
		}
	}

	res.record = &RefundRecord{
		BookingID:      b.ID,
		Amount:         req.Amount,
		RefundedToDate: refundedToDate,
		Reason:         req.Reason,
		Method:         method,
		ProcessedBy:    admin.ID,
		ProcessedAt:    now,
	}
	res.entry = &PaymentHistoryEntry{
		BookingID:      b.ID,
		PreviousStatus: b.PaymentStatus,
		NewStatus:      nextPayment,
		Amount:         req.Amount,
		Method:         method,
		Reference:      b.PaymentReference,
		ActorID:        admin.ID,
		Note:           refundNote(req),
		CreatedAt:      now,
	}

	b.PaymentStatus = nextPayment
	b.UpdatedAt = now
	return res, nil
}

func refundNote(req RefundRequest) string {
	note := "refund " + req.Amount.String()
	if req.Reason != "" {
		note += ": " + req.Reason
	}
	return note
}
