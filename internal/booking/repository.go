package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/rental-booking-backend/internal/auth"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/daterange"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/money"
)

// Repository reads bookings and opens transactions for mutating them.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Booking, error)
	FindOverlapping(ctx context.Context, propertyID string, r daterange.Range, statuses []Status, excludeBookingID string) ([]*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
	ListRefunds(ctx context.Context, bookingID string) ([]*RefundRecord, error)
	ListPaymentHistory(ctx context.Context, bookingID string) ([]*PaymentHistoryEntry, error)

	// WithinTx runs fn in a single transaction. The transaction commits only
	// if fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	// LockProperty serializes writers of a property's calendar until the
	// transaction ends.
	LockProperty(ctx context.Context, propertyID string) error
	FindOverlapping(ctx context.Context, propertyID string, r daterange.Range, statuses []Status, excludeBookingID string) ([]*Booking, error)
	// GetForUpdate loads a booking and holds its row lock until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Booking, error)
	Create(ctx context.Context, b *Booking) error
	Update(ctx context.Context, b *Booking) error
	RefundedTotal(ctx context.Context, bookingID string) (money.Amount, error)
	CreateRefund(ctx context.Context, r *RefundRecord) error
	AppendPaymentHistory(ctx context.Context, e *PaymentHistoryEntry) error
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var bookingColumns = []string{
	"b.id", "b.property_id", "b.guest_id", "b.host_id",
	"b.check_in_date", "b.check_out_date", "b.nights", "b.guest_count",
	"b.base_price::text", "b.cleaning_fee::text", "b.security_deposit::text", "b.service_fee::text", "b.total_amount::text",
	"b.status", "b.payment_status", "b.payment_method", "b.payment_reference",
	"b.special_requests", "b.notes",
	"b.cancelled_at", "b.cancelled_by", "b.cancellation_reason",
	"b.created_at", "b.updated_at",
}

// sortColumns whitelists the columns List may order by.
var sortColumns = map[string]string{
	"check_in":     "b.check_in_date",
	"created_at":   "b.created_at",
	"total_amount": "b.total_amount",
}

type pgxRepository struct {
	pool *pgxpool.Pool
	pgxQueries
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool, pgxQueries: pgxQueries{q: pool}}
}

func (r *pgxRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &pgxTx{pgxQueries: pgxQueries{q: tx}})
	})
}

// pgxQueries holds the statements shared by the pool and transactions.
type pgxQueries struct {
	q querier
}

func (r pgxQueries) GetByID(ctx context.Context, id string) (*Booking, error) {
	return r.get(ctx, id, false)
}

func (r pgxQueries) get(ctx context.Context, id string, forUpdate bool) (*Booking, error) {
	builder := psql.Select(bookingColumns...).
		From("public.bookings b").
		Where(squirrel.Eq{"b.id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanBooking(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) ||
			(errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}
	return b, nil
}

func (r pgxQueries) FindOverlapping(ctx context.Context, propertyID string, rng daterange.Range, statuses []Status, excludeBookingID string) ([]*Booking, error) {
	// Half-open intersection: existing.check_in < new.check_out AND existing.check_out > new.check_in
	builder := psql.Select(bookingColumns...).
		From("public.bookings b").
		Where(squirrel.Eq{"b.property_id": propertyID}).
		Where(squirrel.Eq{"b.status": statusStrings(statuses)}).
		Where(squirrel.Lt{"b.check_in_date": rng.CheckOut}).
		Where(squirrel.Gt{"b.check_out_date": rng.CheckIn}).
		OrderBy("b.check_in_date ASC")
	if excludeBookingID != "" {
		builder = builder.Where(squirrel.NotEq{"b.id": excludeBookingID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find overlapping query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find overlapping bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (r pgxQueries) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	query := psql.Select(append(bookingColumns, "count(*) OVER() AS total_count")...).
		From("public.bookings b")

	if filter.GuestID != "" {
		query = query.Where(squirrel.Eq{"b.guest_id": filter.GuestID})
	}
	if filter.HostID != "" {
		query = query.Where(squirrel.Eq{"b.host_id": filter.HostID})
	}
	if filter.PropertyID != "" {
		query = query.Where(squirrel.Eq{"b.property_id": filter.PropertyID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"b.status": string(filter.Status)})
	}
	if filter.PaymentStatus != "" {
		query = query.Where(squirrel.Eq{"b.payment_status": string(filter.PaymentStatus)})
	}
	if filter.From != nil {
		query = query.Where(squirrel.Gt{"b.check_out_date": *filter.From})
	}
	if filter.To != nil {
		query = query.Where(squirrel.Lt{"b.check_in_date": *filter.To})
	}

	orderBy, ok := sortColumns[filter.SortBy]
	if !ok {
		orderBy = "b.check_in_date"
	}
	orderDir := "DESC"
	if filter.SortOrder == "asc" || filter.SortOrder == "ASC" {
		orderDir = "ASC"
	}
	query = query.OrderBy(orderBy+" "+orderDir, "b.id "+orderDir)

	page, pageSize := pageBounds(filter)
	query = query.Limit(uint64(pageSize)).Offset(uint64((page - 1) * pageSize))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	var total int
	for rows.Next() {
		b, err := scanBooking(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	return bookings, total, nil
}

func (r pgxQueries) ListRefunds(ctx context.Context, bookingID string) ([]*RefundRecord, error) {
	query, args, err := psql.Select(
		"id", "booking_id", "amount::text", "refunded_to_date::text", "reason", "method", "processed_by", "processed_at",
	).
		From("public.booking_refunds").
		Where(squirrel.Eq{"booking_id": bookingID}).
		OrderBy("processed_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list refunds query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list refunds failed: %w", err)
	}
	defer rows.Close()

	var out []*RefundRecord
	for rows.Next() {
		var rec RefundRecord
		var amount, toDate string
		if err := rows.Scan(&rec.ID, &rec.BookingID, &amount, &toDate, &rec.Reason, &rec.Method, &rec.ProcessedBy, &rec.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan refund failed: %w", err)
		}
		if rec.Amount, err = money.Parse(amount); err != nil {
			return nil, fmt.Errorf("parse refund amount: %w", err)
		}
		if rec.RefundedToDate, err = money.Parse(toDate); err != nil {
			return nil, fmt.Errorf("parse refunded_to_date: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r pgxQueries) ListPaymentHistory(ctx context.Context, bookingID string) ([]*PaymentHistoryEntry, error) {
	query, args, err := psql.Select(
		"id", "booking_id", "previous_status", "new_status", "amount::text",
		"method", "reference", "actor_id", "note", "created_at",
	).
		From("public.booking_payment_history").
		Where(squirrel.Eq{"booking_id": bookingID}).
		OrderBy("created_at ASC", "seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list payment history query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payment history failed: %w", err)
	}
	defer rows.Close()

	var out []*PaymentHistoryEntry
	for rows.Next() {
		var e PaymentHistoryEntry
		var prev, next, amount string
		if err := rows.Scan(&e.ID, &e.BookingID, &prev, &next, &amount, &e.Method, &e.Reference, &e.ActorID, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment history failed: %w", err)
		}
		e.PreviousStatus = PaymentStatus(prev)
		e.NewStatus = PaymentStatus(next)
		if e.Amount, err = money.Parse(amount); err != nil {
			return nil, fmt.Errorf("parse payment history amount: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

type pgxTx struct {
	pgxQueries
}

func (t *pgxTx) LockProperty(ctx context.Context, propertyID string) error {
	if _, err := t.q.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", propertyID); err != nil {
		return fmt.Errorf("lock property calendar failed: %w", err)
	}
	return nil
}

func (t *pgxTx) GetForUpdate(ctx context.Context, id string) (*Booking, error) {
	return t.get(ctx, id, true)
}

func (t *pgxTx) Create(ctx context.Context, b *Booking) error {
	cancelledAt, cancelledBy, cancelReason := cancellationColumns(b.Cancellation)
	query, args, err := psql.Insert("public.bookings").
		Columns(
			"id", "property_id", "guest_id", "host_id",
			"check_in_date", "check_out_date", "nights", "guest_count",
			"base_price", "cleaning_fee", "security_deposit", "service_fee", "total_amount",
			"status", "payment_status", "payment_method", "payment_reference",
			"special_requests", "notes",
			"cancelled_at", "cancelled_by", "cancellation_reason",
			"created_at", "updated_at",
		).
		Values(
			b.ID, b.PropertyID, b.GuestID, b.HostID,
			b.CheckIn, b.CheckOut, b.Nights, b.GuestCount,
			numeric(b.BasePrice), numeric(b.CleaningFee), numeric(b.SecurityDeposit), numeric(b.ServiceFee), numeric(b.TotalAmount),
			string(b.Status), string(b.PaymentStatus), b.PaymentMethod, b.PaymentReference,
			b.SpecialRequests, b.Notes,
			cancelledAt, cancelledBy, cancelReason,
			b.CreatedAt, b.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create booking query failed: %w", err)
	}

	if _, err := t.q.Exec(ctx, query, args...); err != nil {
		return mapWriteError(err, "create booking failed")
	}
	return nil
}

func (t *pgxTx) Update(ctx context.Context, b *Booking) error {
	cancelledAt, cancelledBy, cancelReason := cancellationColumns(b.Cancellation)
	query, args, err := psql.Update("public.bookings").
		Set("status", string(b.Status)).
		Set("payment_status", string(b.PaymentStatus)).
		Set("payment_method", b.PaymentMethod).
		Set("payment_reference", b.PaymentReference).
		Set("notes", b.Notes).
		Set("cancelled_at", cancelledAt).
		Set("cancelled_by", cancelledBy).
		Set("cancellation_reason", cancelReason).
		Set("updated_at", b.UpdatedAt).
		Where(squirrel.Eq{"id": b.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update booking query failed: %w", err)
	}

	ct, err := t.q.Exec(ctx, query, args...)
	if err != nil {
		return mapWriteError(err, "update booking failed")
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgxTx) RefundedTotal(ctx context.Context, bookingID string) (money.Amount, error) {
	const query = `SELECT COALESCE(SUM(amount), 0)::text FROM public.booking_refunds WHERE booking_id = $1`
	var sum string
	if err := t.q.QueryRow(ctx, query, bookingID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum refunds failed: %w", err)
	}
	return money.Parse(sum)
}

func (t *pgxTx) CreateRefund(ctx context.Context, rec *RefundRecord) error {
	query, args, err := psql.Insert("public.booking_refunds").
		Columns("id", "booking_id", "amount", "refunded_to_date", "reason", "method", "processed_by", "processed_at").
		Values(rec.ID, rec.BookingID, numeric(rec.Amount), numeric(rec.RefundedToDate), rec.Reason, rec.Method, rec.ProcessedBy, rec.ProcessedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create refund query failed: %w", err)
	}
	if _, err := t.q.Exec(ctx, query, args...); err != nil {
		return mapWriteError(err, "create refund failed")
	}
	return nil
}

func (t *pgxTx) AppendPaymentHistory(ctx context.Context, e *PaymentHistoryEntry) error {
	query, args, err := psql.Insert("public.booking_payment_history").
		Columns("id", "booking_id", "previous_status", "new_status", "amount", "method", "reference", "actor_id", "note", "created_at").
		Values(e.ID, e.BookingID, string(e.PreviousStatus), string(e.NewStatus), numeric(e.Amount), e.Method, e.Reference, e.ActorID, e.Note, e.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build append payment history query failed: %w", err)
	}
	if _, err := t.q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("append payment history failed: %w", err)
	}
	return nil
}

// mapWriteError translates constraint failures into domain errors.
func mapWriteError(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ExclusionViolation:
			return apperror.Detail(ErrDateConflict, "dates overlap an existing reservation")
		case pgerrcode.CheckViolation:
			if pgErr.ConstraintName == "bookings_total_amount_check" {
				return ErrTotalMismatch
			}
			return apperror.Wrap(err, apperror.KindInvariantViolation, "booking violates constraint "+pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner, extra ...any) (*Booking, error) {
	var b Booking
	var status, paymentStatus string
	var base, cleaning, deposit, service, total string
	var cancelledAt *time.Time
	var cancelledBy, cancelReason *string

	dest := []any{
		&b.ID, &b.PropertyID, &b.GuestID, &b.HostID,
		&b.CheckIn, &b.CheckOut, &b.Nights, &b.GuestCount,
		&base, &cleaning, &deposit, &service, &total,
		&status, &paymentStatus, &b.PaymentMethod, &b.PaymentReference,
		&b.SpecialRequests, &b.Notes,
		&cancelledAt, &cancelledBy, &cancelReason,
		&b.CreatedAt, &b.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	b.Status = Status(status)
	b.PaymentStatus = PaymentStatus(paymentStatus)
	b.CheckIn = daterange.Day(b.CheckIn)
	b.CheckOut = daterange.Day(b.CheckOut)

	amounts := []struct {
		dst *money.Amount
		src string
	}{
		{&b.BasePrice, base}, {&b.CleaningFee, cleaning}, {&b.SecurityDeposit, deposit},
		{&b.ServiceFee, service}, {&b.TotalAmount, total},
	}
	for _, a := range amounts {
		v, err := money.Parse(a.src)
		if err != nil {
			return nil, fmt.Errorf("parse booking amount %q: %w", a.src, err)
		}
		*a.dst = v
	}

	if cancelledAt != nil {
		c := &Cancellation{At: *cancelledAt}
		if cancelledBy != nil {
			c.By = auth.Role(*cancelledBy)
		}
		if cancelReason != nil {
			c.Reason = *cancelReason
		}
		b.Cancellation = c
	}
	return &b, nil
}

func cancellationColumns(c *Cancellation) (at *time.Time, by, reason *string) {
	if c == nil {
		return nil, nil, nil
	}
	t := c.At
	role := string(c.By)
	r := c.Reason
	return &t, &role, &r
}

// numeric binds an amount as an explicitly typed numeric literal.
func numeric(a money.Amount) squirrel.Sqlizer {
	return squirrel.Expr("?::numeric", a.String())
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func pageBounds(f Filter) (page, pageSize int) {
	page, pageSize = f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return page, pageSize
}
