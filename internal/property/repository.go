package property

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/money"
)

// Repository is the narrow contract the booking engine needs from the catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Property, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Property, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(
		"id", "host_id", "title", "status",
		"nightly_rate::text", "cleaning_fee::text", "security_deposit::text",
		"max_guests", "min_nights", "max_nights", "instant_book", "advance_booking_days",
		"created_at", "updated_at",
	).
		From("public.properties").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get property query failed: %w", err)
	}

	var p Property
	var nightly, cleaning, deposit string
	err = r.pool.QueryRow(ctx, query, args...).Scan(
		&p.ID, &p.HostID, &p.Title, &p.Status,
		&nightly, &cleaning, &deposit,
		&p.MaxGuests, &p.MinNights, &p.MaxNights, &p.InstantBook, &p.AdvanceBookingDays,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get property failed: %w", err)
	}
	if p.NightlyRate, err = money.Parse(nightly); err != nil {
		return nil, fmt.Errorf("parse nightly_rate: %w", err)
	}
	if p.CleaningFee, err = money.Parse(cleaning); err != nil {
		return nil, fmt.Errorf("parse cleaning_fee: %w", err)
	}
	if p.SecurityDeposit, err = money.Parse(deposit); err != nil {
		return nil, fmt.Errorf("parse security_deposit: %w", err)
	}
	return &p, nil
}
