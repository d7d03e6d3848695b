package property

import (
	"time"

	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/money"
)

var (
	ErrNotFound = apperror.NewField(apperror.KindNotFound, "property_id", "property not found")
)

// Status is the listing state of a property in the catalog.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
)

// Property is the read-only view of a catalog listing that the booking engine
// needs: who hosts it, what it costs and which stays it accepts.
type Property struct {
	ID                 string       `json:"id"`
	HostID             string       `json:"host_id"`
	Title              string       `json:"title"`
	Status             Status       `json:"status"`
	NightlyRate        money.Amount `json:"nightly_rate"`
	CleaningFee        money.Amount `json:"cleaning_fee"`
	SecurityDeposit    money.Amount `json:"security_deposit"`
	MaxGuests          int          `json:"max_guests"`
	MinNights          int          `json:"min_nights"`
	MaxNights          int          `json:"max_nights"`           // 0 means unlimited
	InstantBook        bool         `json:"instant_book"`
	AdvanceBookingDays int          `json:"advance_booking_days"` // 0 means no window
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// IsBookable reports whether the listing accepts new reservations.
func (p *Property) IsBookable() bool {
	return p.Status == StatusActive
}
