package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DSN", "postgres://localhost/rentals")
}

func TestFromEnv_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.False(t, cfg.IsProduction)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTokenTTL)
	assert.Equal(t, "0.1", cfg.ServiceFeeRate.String())
	assert.True(t, cfg.BlockCompletedStays)
	assert.Equal(t, time.UTC, cfg.BookingLocation)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "booking.events.v1", cfg.KafkaTopic)
}

func TestFromEnv_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("SERVICE_FEE_RATE", "0.125")
	t.Setenv("BLOCK_COMPLETED_STAYS", "false")
	t.Setenv("BOOKING_TIMEZONE", "Asia/Taipei")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction)
	assert.Equal(t, "0.125", cfg.ServiceFeeRate.String())
	assert.False(t, cfg.BlockCompletedStays)
	assert.Equal(t, "Asia/Taipei", cfg.BookingLocation.String())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestFromEnv_MemoryStorage(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DSN", "")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("PROPERTY_SEED_FILE", "fixtures/properties.json")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, "fixtures/properties.json", cfg.PropertySeedFile)
}

func TestFromEnv_Errors(t *testing.T) {
	cases := map[string]map[string]string{
		"missing dsn":    {"JWT_SECRET": "s", "DB_DSN": ""},
		"missing secret": {"JWT_SECRET": "", "DB_DSN": "x"},
		"bad driver":     {"JWT_SECRET": "s", "STORAGE_DRIVER": "mysql"},
		"bad rate":       {"JWT_SECRET": "s", "DB_DSN": "x", "SERVICE_FEE_RATE": "ten"},
		"bad bool":       {"JWT_SECRET": "s", "DB_DSN": "x", "AUTO_MIGRATE": "sometimes"},
		"bad timezone":   {"JWT_SECRET": "s", "DB_DSN": "x", "BOOKING_TIMEZONE": "Mars/Olympus"},
		"bad token ttl":  {"JWT_SECRET": "s", "DB_DSN": "x", "JWT_ACCESS_TOKEN_TTL": "forever"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
