package booking

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nekogravitycat/rental-booking-backend/internal/auth"
	"github.com/nekogravitycat/rental-booking-backend/internal/event"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/daterange"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/money"
	"github.com/nekogravitycat/rental-booking-backend/internal/property"
)

const (
	testPropertyID = "11111111-1111-1111-1111-111111111111"
	testHostID     = "host-1"
	testGuestID    = "guest-1"
	otherGuestID   = "guest-2"
	testAdminID    = "admin-1"
)

var (
	testNow = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	guest      = auth.Actor{ID: testGuestID, Role: auth.RoleGuest}
	otherGuest = auth.Actor{ID: otherGuestID, Role: auth.RoleGuest}
	host       = auth.Actor{ID: testHostID, Role: auth.RoleHost}
	otherHost  = auth.Actor{ID: "host-2", Role: auth.RoleHost}
	admin      = auth.Actor{ID: testAdminID, Role: auth.RoleAdmin}
)

// testProperty is the property of the worked pricing example: $100 a night,
// $50 cleaning, two-night minimum, four guests.
func testProperty() property.Property {
	return property.Property{
		ID:              testPropertyID,
		HostID:          testHostID,
		Title:           "Seaside loft",
		Status:          property.StatusActive,
		NightlyRate:     money.MustParse("100"),
		CleaningFee:     money.MustParse("50"),
		SecurityDeposit: money.MustParse("200"),
		MaxGuests:       4,
		MinNights:       2,
		MaxNights:       14,
	}
}

type testEnv struct {
	svc        Service
	repo       *MemoryRepository
	properties *property.MemoryRepository
	events     *event.Recorder
}

func newTestEnv(t *testing.T, props ...property.Property) *testEnv {
	t.Helper()
	if len(props) == 0 {
		props = []property.Property{testProperty()}
	}
	env := &testEnv{
		repo:       NewMemoryRepository(),
		properties: property.NewMemoryRepository(props...),
		events:     &event.Recorder{},
	}
	env.svc = NewService(env.repo, env.properties, env.events, Config{
		ServiceFeeRate:      DefaultServiceFeeRate,
		BlockCompletedStays: true,
		Now:                 func() time.Time { return testNow },
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return env
}

func createRequest(actor auth.Actor, in, out string, guests int) CreateRequest {
	return CreateRequest{
		Actor:         actor,
		PropertyID:    testPropertyID,
		CheckIn:       daterange.MustDate(in),
		CheckOut:      daterange.MustDate(out),
		GuestCount:    guests,
		PaymentMethod: "card",
	}
}

func stayRequest(in, out string, guests int) StayRequest {
	return StayRequest{
		PropertyID: testPropertyID,
		CheckIn:    daterange.MustDate(in),
		CheckOut:   daterange.MustDate(out),
		GuestCount: guests,
	}
}

// newBooking builds an in-memory booking for unit tests of the state machines.
func newBooking(status Status, payment PaymentStatus, total string) *Booking {
	return &Booking{
		ID:            "b-1",
		PropertyID:    testPropertyID,
		GuestID:       testGuestID,
		HostID:        testHostID,
		CheckIn:       daterange.MustDate("2025-06-01"),
		CheckOut:      daterange.MustDate("2025-06-04"),
		Nights:        3,
		GuestCount:    2,
		TotalAmount:   money.MustParse(total),
		Status:        status,
		PaymentStatus: payment,
		PaymentMethod: "card",
	}
}

func ptr[T any](v T) *T {
	return &v
}
