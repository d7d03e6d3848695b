package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/rental-booking-backend/internal/api"
	"github.com/nekogravitycat/rental-booking-backend/internal/auth"
	"github.com/nekogravitycat/rental-booking-backend/internal/booking"
	"github.com/nekogravitycat/rental-booking-backend/internal/config"
	"github.com/nekogravitycat/rental-booking-backend/internal/db"
	"github.com/nekogravitycat/rental-booking-backend/internal/event"
	"github.com/nekogravitycat/rental-booking-backend/internal/property"
)

// Container holds the initialized components that are needed externally.
type Container struct {
	Router         *gin.Engine
	JWTManager     *auth.JWTManager
	BookingService booking.Service

	closers []func() error
}

// NewContainer initializes all modules and returns the container.
// Close must be called to release the database pool and the event producer.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{}

	// Storage
	var (
		bookingRepo  booking.Repository
		propertyRepo property.Repository
	)
	switch cfg.StorageDriver {
	case config.StorageMemory:
		var seed []property.Property
		if cfg.PropertySeedFile != "" {
			var err error
			if seed, err = property.LoadSeedFile(cfg.PropertySeedFile); err != nil {
				return nil, err
			}
		}
		logger.Info("using in-memory storage", slog.Int("properties", len(seed)))
		bookingRepo = booking.NewMemoryRepository()
		propertyRepo = property.NewMemoryRepository(seed...)
	default:
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to db: %w", err)
		}
		c.closers = append(c.closers, func() error { pool.Close(); return nil })
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx, pool, logger); err != nil {
				c.Close()
				return nil, err
			}
		}
		bookingRepo = booking.NewPgxRepository(pool)
		propertyRepo = property.NewPgxRepository(pool)
	}

	// Events
	var publisher event.Publisher = event.NewLogPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := event.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, nil)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, kafka.Close)
		publisher = kafka
		logger.Info("publishing booking events to kafka",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("topic", cfg.KafkaTopic),
		)
	}

	// Booking Module
	c.BookingService = booking.NewService(bookingRepo, propertyRepo, publisher, booking.Config{
		ServiceFeeRate:      cfg.ServiceFeeRate,
		BlockCompletedStays: cfg.BlockCompletedStays,
		Location:            cfg.BookingLocation,
	}, logger)

	c.JWTManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTokenTTL)

	// Router
	c.Router = api.NewRouter(api.Config{
		IsProduction:   cfg.IsProduction,
		ProdOrigins:    cfg.ProdOrigins,
		Logger:         logger,
		BookingService: c.BookingService,
		JWTManager:     c.JWTManager,
	})

	return c, nil
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}
