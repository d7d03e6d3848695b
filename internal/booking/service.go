package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/rental-booking-backend/internal/auth"
	"github.com/nekogravitycat/rental-booking-backend/internal/event"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/daterange"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/money"
	"github.com/nekogravitycat/rental-booking-backend/internal/property"
)

// StayRequest describes a candidate stay for availability and pricing queries.
type StayRequest struct {
	PropertyID string
	CheckIn    time.Time
	CheckOut   time.Time
	GuestCount int
}

type CreateRequest struct {
	Actor           auth.Actor
	PropertyID      string
	CheckIn         time.Time
	CheckOut        time.Time
	GuestCount      int
	SpecialRequests string
	PaymentMethod   string
}

type Service interface {
	CheckAvailability(ctx context.Context, req StayRequest) (*Availability, error)
	CalculatePricing(ctx context.Context, req StayRequest) (*PriceBreakdown, error)
	Create(ctx context.Context, req CreateRequest) (*Booking, error)
	GetByID(ctx context.Context, id string, actor auth.Actor) (*Booking, error)
	List(ctx context.Context, filter Filter, actor auth.Actor) ([]*Booking, int, error)
	TransitionStatus(ctx context.Context, id string, target Status, actor auth.Actor, notes string) (*Booking, error)
	Cancel(ctx context.Context, id string, actor auth.Actor, reason string) (*Booking, error)
	UpdatePayment(ctx context.Context, id string, upd PaymentUpdate, actor auth.Actor) (*Booking, error)
	ProcessRefund(ctx context.Context, id string, req RefundRequest, actor auth.Actor) (*RefundRecord, error)
	ListRefunds(ctx context.Context, id string, actor auth.Actor) ([]*RefundRecord, error)
	ListPaymentHistory(ctx context.Context, id string, actor auth.Actor) ([]*PaymentHistoryEntry, error)
}

// Config holds the engine's fixed business inputs.
type Config struct {
	ServiceFeeRate      money.Rate
	BlockCompletedStays bool
	Location            *time.Location   // defines "today"; UTC when nil
	Now                 func() time.Time // time.Now when nil
}

type service struct {
	repo       Repository
	properties property.Repository
	publisher  event.Publisher
	calc       Calculator
	overlap    OverlapChecker
	loc        *time.Location
	now        func() time.Time
	logger     *slog.Logger
}

func NewService(repo Repository, properties property.Repository, publisher event.Publisher, cfg Config, logger *slog.Logger) Service {
	if publisher == nil {
		publisher = event.Nop{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		repo:       repo,
		properties: properties,
		publisher:  publisher,
		calc:       NewCalculator(cfg.ServiceFeeRate),
		overlap:    NewOverlapChecker(cfg.BlockCompletedStays),
		loc:        cfg.Location,
		now:        cfg.Now,
		logger:     logger,
	}
}

// clock returns the current instant at the precision the database stores.
func (s *service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// validateStay applies the property's stay rules to a candidate stay and
// returns the normalized range.
func (s *service) validateStay(p *property.Property, checkIn, checkOut time.Time, guestCount int) (daterange.Range, error) {
	if guestCount < 1 {
		return daterange.Range{}, ErrInvalidGuestCount
	}
	r, err := daterange.New(checkIn, checkOut)
	if err != nil {
		return daterange.Range{}, ErrInvalidDateRange
	}

	today := daterange.Today(s.now(), s.loc)
	if r.CheckIn.Before(today) {
		return daterange.Range{}, apperror.Detail(ErrCheckInPast, "check-in %s is before today %s",
			r.CheckIn.Format(daterange.DateLayout), today.Format(daterange.DateLayout))
	}
	if p.AdvanceBookingDays > 0 {
		limit := today.AddDate(0, 0, p.AdvanceBookingDays)
		if r.CheckIn.After(limit) {
			return daterange.Range{}, apperror.Detail(ErrOutsideBookingWindow, "check-in must be on or before %s", limit.Format(daterange.DateLayout))
		}
	}

	nights := r.Nights()
	if p.MinNights > 0 && nights < p.MinNights {
		return daterange.Range{}, apperror.Detail(ErrStayTooShort, "stay of %d nights is shorter than the minimum of %d", nights, p.MinNights)
	}
	if p.MaxNights > 0 && nights > p.MaxNights {
		return daterange.Range{}, apperror.Detail(ErrStayTooLong, "stay of %d nights is longer than the maximum of %d", nights, p.MaxNights)
	}
	if p.MaxGuests > 0 && guestCount > p.MaxGuests {
		return daterange.Range{}, apperror.Detail(ErrTooManyGuests, "%d guests exceed the capacity of %d", guestCount, p.MaxGuests)
	}
	return r, nil
}

func (s *service) quote(p *property.Property, r daterange.Range, guestCount int) (PriceBreakdown, error) {
	return s.calc.Compute(p.NightlyRate, r.Nights(), guestCount, p.CleaningFee, p.SecurityDeposit)
}

func (s *service) CheckAvailability(ctx context.Context, req StayRequest) (*Availability, error) {
	p, err := s.properties.GetByID(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if !p.IsBookable() {
		return nil, ErrPropertyNotAvailable
	}
	r, err := s.validateStay(p, req.CheckIn, req.CheckOut, req.GuestCount)
	if err != nil {
		return nil, err
	}
	pricing, err := s.quote(p, r, req.GuestCount)
	if err != nil {
		return nil, err
	}

	blocking, err := s.overlap.Find(ctx, s.repo, p.ID, r, "")
	if err != nil {
		return nil, err
	}
	conflicts := make([]Conflict, 0, len(blocking))
	for _, b := range blocking {
		conflicts = append(conflicts, Conflict{ID: b.ID, CheckIn: b.CheckIn, CheckOut: b.CheckOut, Status: b.Status})
	}

	return &Availability{
		Available: len(conflicts) == 0,
		Nights:    r.Nights(),
		Pricing:   &pricing,
		Conflicts: conflicts,
	}, nil
}

func (s *service) CalculatePricing(ctx context.Context, req StayRequest) (*PriceBreakdown, error) {
	p, err := s.properties.GetByID(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}
	r, err := s.validateStay(p, req.CheckIn, req.CheckOut, req.GuestCount)
	if err != nil {
		return nil, err
	}
	pricing, err := s.quote(p, r, req.GuestCount)
	if err != nil {
		return nil, err
	}
	return &pricing, nil
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Booking, error) {
	if req.Actor.ID == "" || req.Actor.Role != auth.RoleGuest {
		return nil, ErrGuestOnly
	}

	p, err := s.properties.GetByID(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if p.HostID == req.Actor.ID {
		return nil, ErrOwnProperty
	}
	if !p.IsBookable() {
		return nil, apperror.Detail(ErrPropertyNotAvailable, "property is %s and not accepting reservations", p.Status)
	}

	r, err := s.validateStay(p, req.CheckIn, req.CheckOut, req.GuestCount)
	if err != nil {
		return nil, err
	}
	pricing, err := s.quote(p, r, req.GuestCount)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	status := StatusPending
	if p.InstantBook {
		status = StatusConfirmed
	}
	b := &Booking{
		ID:              uuid.NewString(),
		PropertyID:      p.ID,
		GuestID:         req.Actor.ID,
		HostID:          p.HostID,
		CheckIn:         r.CheckIn,
		CheckOut:        r.CheckOut,
		Nights:          pricing.Nights,
		GuestCount:      req.GuestCount,
		BasePrice:       pricing.BasePrice,
		CleaningFee:     pricing.CleaningFee,
		SecurityDeposit: pricing.SecurityDeposit,
		ServiceFee:      pricing.ServiceFee,
		TotalAmount:     pricing.Total,
		Status:          status,
		PaymentStatus:   PaymentPending,
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
		SpecialRequests: strings.TrimSpace(req.SpecialRequests),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockProperty(ctx, p.ID); err != nil {
			return err
		}
		conflicts, err := s.overlap.Find(ctx, tx, p.ID, r, "")
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return apperror.Detail(ErrDateConflict, "dates %s overlap reservation %s (%s)",
				r, conflicts[0].ID, conflicts[0].Range())
		}
		return tx.Create(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "booking created",
		slog.String("booking_id", b.ID),
		slog.String("property_id", b.PropertyID),
		slog.String("guest_id", b.GuestID),
		slog.String("status", string(b.Status)),
		slog.String("total", b.TotalAmount.String()),
	)
	s.publish(ctx, event.New(event.BookingCreated, b.ID, now, bookingData(b)))
	return b, nil
}

func (s *service) GetByID(ctx context.Context, id string, actor auth.Actor) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := partyOf(b, actor); !ok {
		return nil, ErrPermissionDenied
	}
	return b, nil
}

func (s *service) List(ctx context.Context, filter Filter, actor auth.Actor) ([]*Booking, int, error) {
	if actor.ID == "" {
		return nil, 0, ErrPermissionDenied
	}
	switch actor.Role {
	case auth.RoleAdmin:
	case auth.RoleHost:
		filter.HostID = actor.ID
	case auth.RoleGuest:
		filter.GuestID = actor.ID
	default:
		return nil, 0, ErrPermissionDenied
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperror.Detail(ErrInvalidStatus, "invalid booking status %q", filter.Status)
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		return nil, 0, apperror.Detail(ErrInvalidPaymentStatus, "invalid payment status %q", filter.PaymentStatus)
	}
	return s.repo.List(ctx, filter)
}

func (s *service) TransitionStatus(ctx context.Context, id string, target Status, actor auth.Actor, notes string) (*Booking, error) {
	if !target.Valid() {
		return nil, apperror.Detail(ErrInvalidStatus, "invalid booking status %q", target)
	}
	notes = strings.TrimSpace(notes)

	var updated *Booking
	var previous Status
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		party, ok := partyOf(b, actor)
		if !ok {
			return ErrPermissionDenied
		}
		if target == StatusRefunded {
			return ErrRefundViaProcessor
		}

		previous = b.Status
		if err := b.transition(target, party, notes, s.clock()); err != nil {
			return err
		}
		if notes != "" {
			b.Notes = notes
		}
		if err := tx.Update(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "booking status changed",
		slog.String("booking_id", updated.ID),
		slog.String("property_id", updated.PropertyID),
		slog.String("from", string(previous)),
		slog.String("to", string(updated.Status)),
		slog.String("actor_id", actor.ID),
	)
	s.publish(ctx, statusChanged(updated, previous, actor))
	return updated, nil
}

func (s *service) Cancel(ctx context.Context, id string, actor auth.Actor, reason string) (*Booking, error) {
	return s.TransitionStatus(ctx, id, StatusCancelled, actor, reason)
}

func (s *service) UpdatePayment(ctx context.Context, id string, upd PaymentUpdate, actor auth.Actor) (*Booking, error) {
	upd.Method = trimmed(upd.Method)
	upd.Reference = trimmed(upd.Reference)
	upd.Note = strings.TrimSpace(upd.Note)

	var updated *Booking
	var res paymentResult
	var previous PaymentStatus
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		party, ok := partyOf(b, actor)
		if !ok {
			return ErrPermissionDenied
		}
		refunded, err := tx.RefundedTotal(ctx, b.ID)
		if err != nil {
			return err
		}

		previous = b.PaymentStatus
		res, err = b.applyPayment(upd, actor, party, refunded, s.clock())
		if err != nil {
			return err
		}
		if res.entry != nil {
			res.entry.ID = uuid.NewString()
			if err := tx.AppendPaymentHistory(ctx, res.entry); err != nil {
				return err
			}
		}
		if err := tx.Update(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "booking payment updated",
		slog.String("booking_id", updated.ID),
		slog.String("from", string(previous)),
		slog.String("to", string(updated.PaymentStatus)),
		slog.Bool("auto_confirmed", res.autoConfirmed),
		slog.String("actor_id", actor.ID),
	)

	events := []event.Event{event.New(event.BookingPaymentUpdated, updated.ID, updated.UpdatedAt, map[string]any{
		"previous_payment_status": string(previous),
		"payment_status":          string(updated.PaymentStatus),
		"payment_method":          updated.PaymentMethod,
		"actor_id":                actor.ID,
	})}
	if res.autoConfirmed {
		events = append(events, statusChanged(updated, StatusPending, actor))
	}
	s.publish(ctx, events...)
	return updated, nil
}

func (s *service) ProcessRefund(ctx context.Context, id string, req RefundRequest, actor auth.Actor) (*RefundRecord, error) {
	if actor.ID == "" || !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	req.Reason = strings.TrimSpace(req.Reason)

	var updated *Booking
	var res refundResult
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		refunded, err := tx.RefundedTotal(ctx, b.ID)
		if err != nil {
			return err
		}

		res, err = b.applyRefund(req, actor, refunded, s.clock())
		if err != nil {
			return err
		}
		res.record.ID = uuid.NewString()
		res.entry.ID = uuid.NewString()

		if err := tx.CreateRefund(ctx, res.record); err != nil {
			return err
		}
		if err := tx.AppendPaymentHistory(ctx, res.entry); err != nil {
			return err
		}
		if err := tx.Update(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "booking refunded",
		slog.String("booking_id", updated.ID),
		slog.String("amount", res.record.Amount.String()),
		slog.String("refunded_to_date", res.record.RefundedToDate.String()),
		slog.Bool("full", res.full),
		slog.String("actor_id", actor.ID),
	)

	events := []event.Event{event.New(event.BookingRefunded, updated.ID, res.record.ProcessedAt, map[string]any{
		"refund_id":        res.record.ID,
		"amount":           res.record.Amount.String(),
		"refunded_to_date": res.record.RefundedToDate.String(),
		"payment_status":   string(updated.PaymentStatus),
		"full":             res.full,
	})}
	if updated.Status != res.previous {
		events = append(events, statusChanged(updated, res.previous, actor))
	}
	s.publish(ctx, events...)
	return res.record, nil
}

func (s *service) ListRefunds(ctx context.Context, id string, actor auth.Actor) ([]*RefundRecord, error) {
	if _, err := s.GetByID(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.repo.ListRefunds(ctx, id)
}

func (s *service) ListPaymentHistory(ctx context.Context, id string, actor auth.Actor) ([]*PaymentHistoryEntry, error) {
	if _, err := s.GetByID(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.repo.ListPaymentHistory(ctx, id)
}

// publish delivers events after a commit. Delivery failures are logged only;
// the committed change stands.
func (s *service) publish(ctx context.Context, events ...event.Event) {
	if err := s.publisher.Publish(ctx, events...); err != nil {
		names := make([]string, len(events))
		for i, e := range events {
			names[i] = e.Name
		}
		s.logger.ErrorContext(ctx, "publish booking events failed",
			slog.Any("events", names),
			slog.Any("error", err),
		)
	}
}

func statusChanged(b *Booking, previous Status, actor auth.Actor) event.Event {
	return event.New(event.BookingStatusChanged, b.ID, b.UpdatedAt, map[string]any{
		"property_id":     b.PropertyID,
		"previous_status": string(previous),
		"status":          string(b.Status),
		"actor_id":        actor.ID,
	})
}

func bookingData(b *Booking) map[string]any {
	return map[string]any{
		"property_id":    b.PropertyID,
		"guest_id":       b.GuestID,
		"host_id":        b.HostID,
		"check_in":       b.CheckIn.Format(daterange.DateLayout),
		"check_out":      b.CheckOut.Format(daterange.DateLayout),
		"guest_count":    b.GuestCount,
		"status":         string(b.Status),
		"payment_status": string(b.PaymentStatus),
		"total_amount":   b.TotalAmount.String(),
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
