package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/rental-booking-backend/internal/auth"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/money"
)

func TestBooking_ApplyPayment(t *testing.T) {
	now := time.Date(2025, 5, 2, 12, 0, 0, 0, time.UTC)

	t.Run("Paid auto-confirms pending reservation", func(t *testing.T) {
		b := newBooking(StatusPending, PaymentPending, "710")
		res, err := b.applyPayment(PaymentUpdate{Status: ptr(PaymentPaid), Reference: ptr("txn-1"), Note: "settled"}, host, auth.RoleHost, money.Zero, now)
		require.NoError(t, err)

		assert.Equal(t, PaymentPaid, b.PaymentStatus)
		assert.Equal(t, StatusConfirmed, b.Status)
		assert.True(t, res.autoConfirmed)
		require.NotNil(t, res.entry)
		assert.Equal(t, PaymentPending, res.entry.PreviousStatus)
		assert.Equal(t, PaymentPaid, res.entry.NewStatus)
		assert.Equal(t, "txn-1", res.entry.Reference)
		assert.Equal(t, "card", res.entry.Method)
		assert.Equal(t, testHostID, res.entry.ActorID)
		assert.Equal(t, "settled", res.entry.Note)
	})

	t.Run("Paid on confirmed does not touch reservation", func(t *testing.T) {
		b := newBooking(StatusConfirmed, PaymentFailed, "710")
		res, err := b.applyPayment(PaymentUpdate{Status: ptr(PaymentPaid)}, guest, auth.RoleGuest, money.Zero, now)
		require.NoError(t, err)
		assert.False(t, res.autoConfirmed)
		assert.Equal(t, StatusConfirmed, b.Status)
	})

	t.Run("Metadata only writes no history", func(t *testing.T) {
		b := newBooking(StatusPending, PaymentPending, "710")
		res, err := b.applyPayment(PaymentUpdate{Method: ptr("bank_transfer")}, guest, auth.RoleGuest, money.Zero, now)
		require.NoError(t, err)
		assert.Nil(t, res.entry)
		assert.Equal(t, "bank_transfer", b.PaymentMethod)
		assert.Equal(t, PaymentPending, b.PaymentStatus)
	})

	t.Run("Nothing to update", func(t *testing.T) {
		b := newBooking(StatusPending, PaymentPending, "710")
		_, err := b.applyPayment(PaymentUpdate{Status: ptr(PaymentPending)}, guest, auth.RoleGuest, money.Zero, now)
		assert.ErrorIs(t, err, ErrNothingToUpdate)
	})

	t.Run("Illegal edge", func(t *testing.T) {
		b := newBooking(StatusConfirmed, PaymentPaid, "710")
		_, err := b.applyPayment(PaymentUpdate{Status: ptr(PaymentPending)}, host, auth.RoleHost, money.Zero, now)
		require.ErrorIs(t, err, ErrInvalidPaymentTransition)
		assert.True(t, apperror.IsKind(err, apperror.KindInvalidTransition))
		assert.Equal(t, PaymentPaid, b.PaymentStatus)
	})

	t.Run("Unknown status", func(t *testing.T) {
		b := newBooking(StatusConfirmed, PaymentPaid, "710")
		_, err := b.applyPayment(PaymentUpdate{Status: ptr(PaymentStatus("void"))}, host, auth.RoleHost, money.Zero, now)
		assert.ErrorIs(t, err, ErrInvalidPaymentStatus)
	})

	t.Run("Refunded requires the full total refunded", func(t *testing.T) {
		b := newBooking(StatusCancelled, PaymentPartial, "710")
		_, err := b.applyPayment(PaymentUpdate{Status: ptr(PaymentRefunded)}, admin, auth.RoleAdmin, money.MustParse("300"), now)
		require.ErrorIs(t, err, ErrRefundOutstanding)
		assert.Equal(t, PaymentPartial, b.PaymentStatus)

		_, err = b.applyPayment(PaymentUpdate{Status: ptr(PaymentRefunded)}, admin, auth.RoleAdmin, money.MustParse("710"), now)
		require.NoError(t, err)
		assert.Equal(t, PaymentRefunded, b.PaymentStatus)
	})

	t.Run("Refunded payment locked to non-admins", func(t *testing.T) {
		b := newBooking(StatusRefunded, PaymentRefunded, "710")
		_, err := b.applyPayment(PaymentUpdate{Reference: ptr("x")}, host, auth.RoleHost, money.Zero, now)
		require.ErrorIs(t, err, ErrPaymentLocked)
		assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

		_, err = b.applyPayment(PaymentUpdate{Reference: ptr("chargeback-77")}, admin, auth.RoleAdmin, money.Zero, now)
		require.NoError(t, err)
		assert.Equal(t, "chargeback-77", b.PaymentReference)

		_, err = b.applyPayment(PaymentUpdate{Status: ptr(PaymentPaid)}, admin, auth.RoleAdmin, money.Zero, now)
		assert.ErrorIs(t, err, ErrInvalidPaymentTransition)
	})
}

func TestBooking_ApplyRefund(t *testing.T) {
	now := time.Date(2025, 5, 3, 8, 0, 0, 0, time.UTC)

	t.Run("Full refund of cancelled booking", func(t *testing.T) {
		b := newBooking(StatusCancelled, PaymentPaid, "710")
		res, err := b.applyRefund(RefundRequest{Amount: money.MustParse("710"), Reason: "guest cancelled"}, admin, money.Zero, now)
		require.NoError(t, err)

		assert.True(t, res.full)
		assert.Equal(t, StatusRefunded, b.Status)
		assert.Equal(t, PaymentRefunded, b.PaymentStatus)
		assert.Equal(t, "710.00", res.record.Amount.String())
		assert.Equal(t, "710.00", res.record.RefundedToDate.String())
		assert.Equal(t, "card", res.record.Method)
		assert.Equal(t, testAdminID, res.record.ProcessedBy)
		assert.Equal(t, PaymentPaid, res.entry.PreviousStatus)
		assert.Equal(t, PaymentRefunded, res.entry.NewStatus)
		assert.Equal(t, res.record.Amount, res.entry.Amount)
		assert.Contains(t, res.entry.Note, "guest cancelled")
	})

	t.Run("Full refund of confirmed booking passes through cancelled", func(t *testing.T) {
		b := newBooking(StatusConfirmed, PaymentPaid, "710")
		res, err := b.applyRefund(RefundRequest{Amount: money.MustParse("710"), Reason: "host unavailable"}, admin, money.Zero, now)
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, res.previous)
		assert.Equal(t, StatusRefunded, b.Status)
		require.NotNil(t, b.Cancellation)
		assert.Equal(t, auth.RoleAdmin, b.Cancellation.By)
	})

	t.Run("Full refund keeps completed stay", func(t *testing.T) {
		b := newBooking(StatusCompleted, PaymentPaid, "710")
		_, err := b.applyRefund(RefundRequest{Amount: money.MustParse("710")}, admin, money.Zero, now)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, b.Status)
		assert.Equal(t, PaymentRefunded, b.PaymentStatus)
	})

	t.Run("Partial refund", func(t *testing.T) {
		b := newBooking(StatusConfirmed, PaymentPaid, "710")
		res, err := b.applyRefund(RefundRequest{Amount: money.MustParse("100"), Method: "voucher"}, admin, money.Zero, now)
		require.NoError(t, err)
		assert.False(t, res.full)
		assert.Equal(t, PaymentPartial, b.PaymentStatus)
		assert.Equal(t, StatusConfirmed, b.Status)
		assert.Equal(t, "voucher", res.record.Method)
	})

	t.Run("Second partial refund stays partial", func(t *testing.T) {
		b := newBooking(StatusConfirmed, PaymentPartial, "710")
		res, err := b.applyRefund(RefundRequest{Amount: money.MustParse("100")}, admin, money.MustParse("100"), now)
		require.NoError(t, err)
		assert.False(t, res.full)
		assert.Equal(t, PaymentPartial, b.PaymentStatus)
		assert.Equal(t, PaymentPartial, res.entry.PreviousStatus)
		assert.Equal(t, PaymentPartial, res.entry.NewStatus)
		assert.Equal(t, "200.00", res.record.RefundedToDate.String())
	})

	t.Run("Preconditions in order", func(t *testing.T) {
		b := newBooking(StatusConfirmed, PaymentPending, "710")
		_, err := b.applyRefund(RefundRequest{Amount: money.MustParse("-5")}, admin, money.Zero, now)
		assert.ErrorIs(t, err, ErrNotRefundable)

		b = newBooking(StatusConfirmed, PaymentPaid, "710")
		_, err = b.applyRefund(RefundRequest{Amount: money.Zero}, admin, money.Zero, now)
		assert.ErrorIs(t, err, ErrInvalidRefundAmount)

		_, err = b.applyRefund(RefundRequest{Amount: money.MustParse("800")}, admin, money.Zero, now)
		require.ErrorIs(t, err, ErrRefundExceedsTotal)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))

		_, err = b.applyRefund(RefundRequest{Amount: money.MustParse("500")}, admin, money.MustParse("300"), now)
		require.ErrorIs(t, err, ErrRefundBalanceExceeded)
		assert.True(t, apperror.IsKind(err, apperror.KindInvariantViolation))

		b.PaymentMethod = ""
		_, err = b.applyRefund(RefundRequest{Amount: money.MustParse("10")}, admin, money.Zero, now)
		assert.ErrorIs(t, err, ErrRefundMethodRequired)

		assert.Equal(t, PaymentPaid, b.PaymentStatus)
		assert.Equal(t, StatusConfirmed, b.Status)
	})
}
