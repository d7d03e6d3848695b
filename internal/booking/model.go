package booking

import (
	"time"

	"github.com/nekogravitycat/rental-booking-backend/internal/auth"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/daterange"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/money"
)

var (
	ErrNotFound             = apperror.NewField(apperror.KindNotFound, "booking_id", "booking not found")
	ErrPropertyNotAvailable = apperror.NewField(apperror.KindNotAvailable, "property_id", "property is not accepting reservations")
	ErrDateConflict         = apperror.NewField(apperror.KindConflict, "check_in", "dates overlap an existing reservation")

	ErrInvalidDateRange     = apperror.NewField(apperror.KindValidation, "check_out", "check-out must be after check-in")
	ErrCheckInPast          = apperror.NewField(apperror.KindValidation, "check_in", "check-in cannot be in the past")
	ErrOutsideBookingWindow = apperror.NewField(apperror.KindValidation, "check_in", "check-in is beyond the advance booking window")
	ErrStayTooShort         = apperror.NewField(apperror.KindValidation, "check_out", "stay is shorter than the minimum nights")
	ErrStayTooLong          = apperror.NewField(apperror.KindValidation, "check_out", "stay is longer than the maximum nights")
	ErrInvalidGuestCount    = apperror.NewField(apperror.KindValidation, "guest_count", "guest count must be at least 1")
	ErrTooManyGuests        = apperror.NewField(apperror.KindValidation, "guest_count", "guest count exceeds property capacity")
	ErrInvalidPricingInput  = apperror.NewField(apperror.KindValidation, "pricing", "pricing inputs must be non-negative")
	ErrPriceOutOfRange      = apperror.NewField(apperror.KindValidation, "pricing", "stay price exceeds the supported amount")
	ErrInvalidStatus        = apperror.NewField(apperror.KindValidation, "status", "invalid booking status")
	ErrInvalidPaymentStatus = apperror.NewField(apperror.KindValidation, "payment_status", "invalid payment status")
	ErrNothingToUpdate      = apperror.NewField(apperror.KindValidation, "payment_status", "no payment change requested")

	ErrInvalidTransition        = apperror.NewField(apperror.KindInvalidTransition, "status", "status transition not allowed")
	ErrInvalidPaymentTransition = apperror.NewField(apperror.KindInvalidTransition, "payment_status", "payment status transition not allowed")
	ErrRefundViaProcessor       = apperror.NewField(apperror.KindInvalidTransition, "status", "refunded status is reached only by processing a refund")
	ErrNotRefundable            = apperror.NewField(apperror.KindInvalidTransition, "payment_status", "only paid or partially refunded bookings can be refunded")

	ErrPermissionDenied = apperror.New(apperror.KindForbidden, "permission denied")
	ErrGuestOnly        = apperror.New(apperror.KindForbidden, "only guests can create bookings")
	ErrOwnProperty      = apperror.New(apperror.KindForbidden, "hosts cannot book their own property")
	ErrAdminOnly        = apperror.New(apperror.KindForbidden, "administrator access required")
	ErrPaymentLocked    = apperror.NewField(apperror.KindForbidden, "payment_status", "refunded payments can only be changed by an administrator")

	ErrInvalidRefundAmount   = apperror.NewField(apperror.KindValidation, "amount", "refund amount must be positive")
	ErrRefundExceedsTotal    = apperror.NewField(apperror.KindValidation, "amount", "refund amount exceeds booking total")
	ErrRefundMethodRequired  = apperror.NewField(apperror.KindValidation, "method", "refund method is required")
	ErrRefundBalanceExceeded = apperror.NewField(apperror.KindInvariantViolation, "amount", "refunds would exceed the booking total")
	ErrRefundOutstanding     = apperror.NewField(apperror.KindInvariantViolation, "payment_status", "payment can be marked refunded only once the full total has been refunded")
	ErrTotalMismatch         = apperror.New(apperror.KindInvariantViolation, "booking total does not match its components")
)

// Booking is a guest's claim on a property for a contiguous range of nights,
// together with its price snapshot and the two lifecycle statuses.
type Booking struct {
	ID         string
	PropertyID string
	GuestID    string
	HostID     string // copy of the property's host at booking time

	CheckIn    time.Time
	CheckOut   time.Time
	Nights     int
	GuestCount int

	BasePrice       money.Amount
	CleaningFee     money.Amount
	SecurityDeposit money.Amount
	ServiceFee      money.Amount
	TotalAmount     money.Amount

	Status           Status
	PaymentStatus    PaymentStatus
	PaymentMethod    string
	PaymentReference string

	SpecialRequests string
	Notes           string
	Cancellation    *Cancellation

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cancellation is present only while a booking is (or has passed through) cancelled.
type Cancellation struct {
	At     time.Time
	By     auth.Role
	Reason string
}

// Range returns the stay as a half-open date range.
func (b *Booking) Range() daterange.Range {
	return daterange.Range{CheckIn: b.CheckIn, CheckOut: b.CheckOut}
}

// Clone returns a deep copy.
func (b *Booking) Clone() *Booking {
	c := *b
	if b.Cancellation != nil {
		cancel := *b.Cancellation
		c.Cancellation = &cancel
	}
	return &c
}

// RefundRecord is an immutable ledger entry for money returned to the guest.
type RefundRecord struct {
	ID             string
	BookingID      string
	Amount         money.Amount
	RefundedToDate money.Amount // cumulative refunds including this one
	Reason         string
	Method         string
	ProcessedBy    string
	ProcessedAt    time.Time
}

// PaymentHistoryEntry records one payment status mutation. Entries are append-only.
type PaymentHistoryEntry struct {
	ID             string
	BookingID      string
	PreviousStatus PaymentStatus
	NewStatus      PaymentStatus
	Amount         money.Amount // refund amount for refund entries, zero otherwise
	Method         string
	Reference      string
	ActorID        string
	Note           string
	CreatedAt      time.Time
}

// PriceBreakdown is the output of the pricing calculator.
type PriceBreakdown struct {
	NightlyRate     money.Amount
	Nights          int
	GuestCount      int
	BasePrice       money.Amount
	CleaningFee     money.Amount
	SecurityDeposit money.Amount
	ServiceFee      money.Amount
	Total           money.Amount
}

// Conflict describes an existing reservation that blocks a requested stay.
type Conflict struct {
	ID       string
	CheckIn  time.Time
	CheckOut time.Time
	Status   Status
}

// Availability is the answer to an availability query.
type Availability struct {
	Available bool
	Nights    int
	Pricing   *PriceBreakdown
	Conflicts []Conflict
}

type Filter struct {
	GuestID       string
	HostID        string
	PropertyID    string
	Status        Status
	PaymentStatus PaymentStatus
	From          *time.Time // bookings checking out after this date
	To            *time.Time // bookings checking in before this date
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
