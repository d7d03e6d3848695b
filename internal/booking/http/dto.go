package http

import (
	"time"

	"github.com/nekogravitycat/rental-booking-backend/internal/booking"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/daterange"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/money"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/request"
)

// StayQuery defines query parameters for availability and pricing quotes.
type StayQuery struct {
	CheckIn    string `form:"check_in" binding:"required,datetime=2006-01-02"`
	CheckOut   string `form:"check_out" binding:"required,datetime=2006-01-02"`
	GuestCount *int   `form:"guest_count"`
}

// ToStayRequest converts the query into a service request. Guest count defaults to 1.
func (q *StayQuery) ToStayRequest(propertyID string) (booking.StayRequest, error) {
	in, out, err := parseStay(q.CheckIn, q.CheckOut)
	if err != nil {
		return booking.StayRequest{}, err
	}
	guests := 1
	if q.GuestCount != nil {
		guests = *q.GuestCount
	}
	return booking.StayRequest{PropertyID: propertyID, CheckIn: in, CheckOut: out, GuestCount: guests}, nil
}

// ListBookingsRequest defines query parameters for listing bookings.
type ListBookingsRequest struct {
	request.ListParams
	PropertyID    string `form:"property_id" binding:"omitempty,uuid"`
	Status        string `form:"status" binding:"omitempty,oneof=pending confirmed cancelled completed refunded"`
	PaymentStatus string `form:"payment_status" binding:"omitempty,oneof=pending paid failed refunded partial"`
	From          string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To            string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	SortBy        string `form:"sort_by" binding:"omitempty,oneof=check_in created_at total_amount"`
}

// ToFilter validates the date window and builds a booking filter.
func (r *ListBookingsRequest) ToFilter() (booking.Filter, error) {
	r.ListParams.Normalize()

	f := booking.Filter{
		PropertyID:    r.PropertyID,
		Status:        booking.Status(r.Status),
		PaymentStatus: booking.PaymentStatus(r.PaymentStatus),
		Page:          r.Page,
		PageSize:      r.PageSize,
		SortBy:        r.SortBy,
		SortOrder:     r.SortOrder,
	}
	if r.From != "" {
		t, err := daterange.ParseDate(r.From)
		if err != nil {
			return booking.Filter{}, err
		}
		f.From = &t
	}
	if r.To != "" {
		t, err := daterange.ParseDate(r.To)
		if err != nil {
			return booking.Filter{}, err
		}
		f.To = &t
	}
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		return booking.Filter{}, booking.ErrInvalidDateRange
	}
	return f, nil
}

type CreateBookingRequest struct {
	PropertyID      string `json:"property_id" binding:"required,uuid"`
	CheckIn         string `json:"check_in" binding:"required,datetime=2006-01-02"`
	CheckOut        string `json:"check_out" binding:"required,datetime=2006-01-02"`
	GuestCount      int    `json:"guest_count"`
	SpecialRequests string `json:"special_requests" binding:"max=2000"`
	PaymentMethod   string `json:"payment_method" binding:"max=64"`
}

type TransitionStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes" binding:"max=2000"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"max=2000"`
}

// UpdatePaymentRequest carries optional fields; omitted fields are left untouched.
type UpdatePaymentRequest struct {
	PaymentStatus *string `json:"payment_status"`
	Method        *string `json:"method" binding:"omitempty,max=64"`
	Reference     *string `json:"reference" binding:"omitempty,max=255"`
	Note          string  `json:"note" binding:"max=2000"`
}

// ToPaymentUpdate parses the requested status, if any.
func (r *UpdatePaymentRequest) ToPaymentUpdate() (booking.PaymentUpdate, error) {
	upd := booking.PaymentUpdate{Method: r.Method, Reference: r.Reference, Note: r.Note}
	if r.PaymentStatus != nil {
		s, err := booking.ParsePaymentStatus(*r.PaymentStatus)
		if err != nil {
			return booking.PaymentUpdate{}, err
		}
		upd.Status = &s
	}
	return upd, nil
}

type ProcessRefundRequest struct {
	Amount money.Amount `json:"amount"`
	Reason string       `json:"reason" binding:"max=2000"`
	Method string       `json:"method" binding:"max=64"`
}

type CancellationResponse struct {
	At     time.Time `json:"at"`
	By     string    `json:"by"`
	Reason string    `json:"reason"`
}

type BookingResponse struct {
	ID               string                `json:"id"`
	PropertyID       string                `json:"property_id"`
	GuestID          string                `json:"guest_id"`
	HostID           string                `json:"host_id"`
	CheckIn          string                `json:"check_in"`
	CheckOut         string                `json:"check_out"`
	Nights           int                   `json:"nights"`
	GuestCount       int                   `json:"guest_count"`
	BasePrice        money.Amount          `json:"base_price"`
	CleaningFee      money.Amount          `json:"cleaning_fee"`
	SecurityDeposit  money.Amount          `json:"security_deposit"`
	ServiceFee       money.Amount          `json:"service_fee"`
	TotalAmount      money.Amount          `json:"total_amount"`
	Status           string                `json:"status"`
	PaymentStatus    string                `json:"payment_status"`
	PaymentMethod    string                `json:"payment_method,omitempty"`
	PaymentReference string                `json:"payment_reference,omitempty"`
	SpecialRequests  string                `json:"special_requests,omitempty"`
	Notes            string                `json:"notes,omitempty"`
	Cancellation     *CancellationResponse `json:"cancellation,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	resp := BookingResponse{
		ID:               b.ID,
		PropertyID:       b.PropertyID,
		GuestID:          b.GuestID,
		HostID:           b.HostID,
		CheckIn:          b.CheckIn.Format(daterange.DateLayout),
		CheckOut:         b.CheckOut.Format(daterange.DateLayout),
		Nights:           b.Nights,
		GuestCount:       b.GuestCount,
		BasePrice:        b.BasePrice,
		CleaningFee:      b.CleaningFee,
		SecurityDeposit:  b.SecurityDeposit,
		ServiceFee:       b.ServiceFee,
		TotalAmount:      b.TotalAmount,
		Status:           string(b.Status),
		PaymentStatus:    string(b.PaymentStatus),
		PaymentMethod:    b.PaymentMethod,
		PaymentReference: b.PaymentReference,
		SpecialRequests:  b.SpecialRequests,
		Notes:            b.Notes,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
	if b.Cancellation != nil {
		resp.Cancellation = &CancellationResponse{
			At:     b.Cancellation.At,
			By:     string(b.Cancellation.By),
			Reason: b.Cancellation.Reason,
		}
	}
	return resp
}

type PriceResponse struct {
	NightlyRate     money.Amount `json:"nightly_rate"`
	Nights          int          `json:"nights"`
	GuestCount      int          `json:"guest_count"`
	BasePrice       money.Amount `json:"base_price"`
	CleaningFee     money.Amount `json:"cleaning_fee"`
	SecurityDeposit money.Amount `json:"security_deposit"`
	ServiceFee      money.Amount `json:"service_fee"`
	Total           money.Amount `json:"total"`
}

func NewPriceResponse(p *booking.PriceBreakdown) PriceResponse {
	return PriceResponse{
		NightlyRate:     p.NightlyRate,
		Nights:          p.Nights,
		GuestCount:      p.GuestCount,
		BasePrice:       p.BasePrice,
		CleaningFee:     p.CleaningFee,
		SecurityDeposit: p.SecurityDeposit,
		ServiceFee:      p.ServiceFee,
		Total:           p.Total,
	}
}

type ConflictResponse struct {
	ID       string `json:"id"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Status   string `json:"status"`
}

type AvailabilityResponse struct {
	Available bool               `json:"available"`
	Nights    int                `json:"nights"`
	Pricing   *PriceResponse     `json:"pricing,omitempty"`
	Conflicts []ConflictResponse `json:"conflicts"`
}

func NewAvailabilityResponse(a *booking.Availability) AvailabilityResponse {
	resp := AvailabilityResponse{
		Available: a.Available,
		Nights:    a.Nights,
		Conflicts: make([]ConflictResponse, 0, len(a.Conflicts)),
	}
	if a.Pricing != nil {
		p := NewPriceResponse(a.Pricing)
		resp.Pricing = &p
	}
	for _, c := range a.Conflicts {
		resp.Conflicts = append(resp.Conflicts, ConflictResponse{
			ID:       c.ID,
			CheckIn:  c.CheckIn.Format(daterange.DateLayout),
			CheckOut: c.CheckOut.Format(daterange.DateLayout),
			Status:   string(c.Status),
		})
	}
	return resp
}

type RefundResponse struct {
	ID             string       `json:"id"`
	BookingID      string       `json:"booking_id"`
	Amount         money.Amount `json:"amount"`
	RefundedToDate money.Amount `json:"refunded_to_date"`
	Reason         string       `json:"reason"`
	Method         string       `json:"method"`
	ProcessedBy    string       `json:"processed_by"`
	ProcessedAt    time.Time    `json:"processed_at"`
}

func NewRefundResponse(r *booking.RefundRecord) RefundResponse {
	return RefundResponse{
		ID:             r.ID,
		BookingID:      r.BookingID,
		Amount:         r.Amount,
		RefundedToDate: r.RefundedToDate,
		Reason:         r.Reason,
		Method:         r.Method,
		ProcessedBy:    r.ProcessedBy,
		ProcessedAt:    r.ProcessedAt,
	}
}

type PaymentHistoryResponse struct {
	ID             string       `json:"id"`
	PreviousStatus string       `json:"previous_status"`
	NewStatus      string       `json:"new_status"`
	Amount         money.Amount `json:"amount"`
	Method         string       `json:"method"`
	Reference      string       `json:"reference"`
	ActorID        string       `json:"actor_id"`
	Note           string       `json:"note"`
	CreatedAt      time.Time    `json:"created_at"`
}

func NewPaymentHistoryResponse(e *booking.PaymentHistoryEntry) PaymentHistoryResponse {
	return PaymentHistoryResponse{
		ID:             e.ID,
		PreviousStatus: string(e.PreviousStatus),
		NewStatus:      string(e.NewStatus),
		Amount:         e.Amount,
		Method:         e.Method,
		Reference:      e.Reference,
		ActorID:        e.ActorID,
		Note:           e.Note,
		CreatedAt:      e.CreatedAt,
	}
}

func parseStay(checkIn, checkOut string) (time.Time, time.Time, error) {
	in, err := daterange.ParseDate(checkIn)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	out, err := daterange.ParseDate(checkOut)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return in, out, nil
}
