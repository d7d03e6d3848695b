package booking

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/rental-booking-backend/internal/auth"
	"github.com/nekogravitycat/rental-booking-backend/internal/db"
	"github.com/nekogravitycat/rental-booking-backend/internal/event"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/daterange"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/money"
	"github.com/nekogravitycat/rental-booking-backend/internal/property"
)

var (
	pgOnce sync.Once
	pgPool *pgxpool.Pool
	pgErr  error
)

// testPool connects to TEST_DB_DSN and migrates it once per run. Tests that
// need it are skipped when no database is configured.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pgOnce.Do(func() {
		_ = godotenv.Load("../../.env")
		dsn := os.Getenv("TEST_DB_DSN")
		if dsn == "" {
			return
		}
		ctx := context.Background()
		if pgPool, pgErr = db.NewPool(ctx, dsn); pgErr != nil {
			return
		}
		pgErr = db.Migrate(ctx, pgPool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	})
	if pgPool == nil && pgErr == nil {
		t.Skip("TEST_DB_DSN is not set")
	}
	require.NoError(t, pgErr)
	return pgPool
}

// seedProperty inserts a fresh copy of testProperty under a new id.
func seedProperty(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	p := testProperty()
	id := uuid.NewString()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO public.properties
			(id, host_id, title, status, nightly_rate, cleaning_fee, security_deposit, max_guests, min_nights, max_nights)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10)`,
		id, p.HostID, p.Title, string(p.Status),
		p.NightlyRate.String(), p.CleaningFee.String(), p.SecurityDeposit.String(),
		p.MaxGuests, p.MinNights, p.MaxNights,
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		for _, q := range []string{
			`DELETE FROM public.booking_payment_history WHERE booking_id IN (SELECT id FROM public.bookings WHERE property_id = $1)`,
			`DELETE FROM public.booking_refunds WHERE booking_id IN (SELECT id FROM public.bookings WHERE property_id = $1)`,
			`DELETE FROM public.bookings WHERE property_id = $1`,
			`DELETE FROM public.properties WHERE id = $1`,
		} {
			_, _ = pool.Exec(ctx, q, id)
		}
	})
	return id
}

func newPgxService(pool *pgxpool.Pool) (Service, Repository) {
	repo := NewPgxRepository(pool)
	svc := NewService(repo, property.NewPgxRepository(pool), event.Nop{}, Config{
		ServiceFeeRate:      DefaultServiceFeeRate,
		BlockCompletedStays: true,
		Now:                 func() time.Time { return testNow },
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, repo
}

func TestPgxRepository_Lifecycle(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	propertyID := seedProperty(t, pool)
	svc, repo := newPgxService(pool)

	req := createRequest(guest, "2025-06-01", "2025-06-04", 2)
	req.PropertyID = propertyID
	b, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("710"), b.TotalAmount)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.CheckIn, got.CheckIn)
	assert.Equal(t, b.CheckOut, got.CheckOut)
	assert.Equal(t, b.TotalAmount, got.TotalAmount)
	assert.Equal(t, b.ServiceFee, got.ServiceFee)

	b, err = svc.UpdatePayment(ctx, b.ID, PaymentUpdate{Status: ptr(PaymentPaid)}, guest)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, b.Status)

	_, err = svc.ProcessRefund(ctx, b.ID, RefundRequest{Amount: money.MustParse("210"), Reason: "partial"}, admin)
	require.NoError(t, err)
	rec, err := svc.ProcessRefund(ctx, b.ID, RefundRequest{Amount: money.MustParse("500"), Reason: "rest"}, admin)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("710"), rec.RefundedToDate)

	b, err = svc.GetByID(ctx, b.ID, guest)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, b.Status)
	assert.Equal(t, PaymentRefunded, b.PaymentStatus)
	require.NotNil(t, b.Cancellation)
	assert.Equal(t, auth.RoleAdmin, b.Cancellation.By)

	refunds, err := svc.ListRefunds(ctx, b.ID, admin)
	require.NoError(t, err)
	assert.Len(t, refunds, 2)

	history, err := svc.ListPaymentHistory(ctx, b.ID, host)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, PaymentPaid, history[0].NewStatus)
	assert.Equal(t, PaymentPartial, history[1].NewStatus)
	assert.Equal(t, PaymentRefunded, history[2].NewStatus)

	_, err = repo.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPgxRepository_ExclusionConstraint(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	propertyID := seedProperty(t, pool)
	repo := NewPgxRepository(pool)

	insert := func(in, out string, status Status) error {
		b := newBooking(status, PaymentPending, "350")
		b.ID = uuid.NewString()
		b.PropertyID = propertyID
		b.CheckIn = daterange.MustDate(in)
		b.CheckOut = daterange.MustDate(out)
		b.Nights = int(b.CheckOut.Sub(b.CheckIn).Hours() / 24)
		b.BasePrice = money.MustParse("300")
		b.CleaningFee = money.MustParse("50")
		b.CreatedAt, b.UpdatedAt = testNow, testNow
		return repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.Create(ctx, b)
		})
	}

	require.NoError(t, insert("2025-08-01", "2025-08-04", StatusConfirmed))
	// The constraint holds even when the application check is bypassed.
	assert.ErrorIs(t, insert("2025-08-03", "2025-08-05", StatusPending), ErrDateConflict)
	assert.NoError(t, insert("2025-08-04", "2025-08-06", StatusPending))
	assert.NoError(t, insert("2025-08-02", "2025-08-03", StatusCancelled))

	b := newBooking(StatusPending, PaymentPending, "999")
	b.ID = uuid.NewString()
	b.PropertyID = propertyID
	b.CheckIn = daterange.MustDate("2025-09-01")
	b.CheckOut = daterange.MustDate("2025-09-04")
	b.CreatedAt, b.UpdatedAt = testNow, testNow
	err := repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Create(ctx, b)
	})
	assert.ErrorIs(t, err, ErrTotalMismatch)
}

func TestPgxRepository_ConcurrentCreate(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	propertyID := seedProperty(t, pool)
	svc, _ := newPgxService(pool)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			actor := auth.Actor{ID: "racer-" + string(rune('a'+i)), Role: auth.RoleGuest}
			req := createRequest(actor, "2025-07-01", "2025-07-04", 1)
			req.PropertyID = propertyID
			_, errs[i] = svc.Create(ctx, req)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrDateConflict)
	}
	assert.Equal(t, 1, succeeded)

	_, total, err := svc.List(ctx, Filter{PropertyID: propertyID}, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
