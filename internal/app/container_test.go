package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/rental-booking-backend/internal/config"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/logger"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/money"
)

func TestMemoryContainerServesSeededProperty(t *testing.T) {
	gin.SetMode(gin.TestMode)

	seed := filepath.Join(t.TempDir(), "properties.json")
	require.NoError(t, os.WriteFile(seed, []byte(`[{
		"id": "11111111-1111-1111-1111-111111111111",
		"host_id": "host-1",
		"title": "Seaside loft",
		"status": "active",
		"nightly_rate": "100.00",
		"cleaning_fee": "50.00",
		"security_deposit": "0.00",
		"max_guests": 4,
		"min_nights": 1,
		"max_nights": 30
	}]`), 0o600))

	c, err := NewContainer(context.Background(), &config.Config{
		StorageDriver:     config.StorageMemory,
		PropertySeedFile:  seed,
		JWTSecret:         "secret",
		JWTAccessTokenTTL: time.Minute,
		ServiceFeeRate:    money.MustParseRate("0.10"),
		BookingLocation:   time.UTC,
	}, logger.Discard())
	require.NoError(t, err)
	defer c.Close()

	// Far enough ahead to stay valid for years.
	in := time.Now().UTC().AddDate(1, 0, 0).Format("2006-01-02")
	out := time.Now().UTC().AddDate(1, 0, 2).Format("2006-01-02")
	w := httptest.NewRecorder()
	c.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/v1/properties/11111111-1111-1111-1111-111111111111/pricing?check_in="+in+"&check_out="+out, nil))

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"total":270.00`)
}

func TestMemoryContainerRejectsMissingSeed(t *testing.T) {
	_, err := NewContainer(context.Background(), &config.Config{
		StorageDriver:    config.StorageMemory,
		PropertySeedFile: filepath.Join(t.TempDir(), "missing.json"),
	}, logger.Discard())
	assert.Error(t, err)
}
