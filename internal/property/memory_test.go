package property

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/money"
)

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository(Property{ID: "p-1", HostID: "h-1", Status: StatusActive, MaxGuests: 4})

	p, err := repo.GetByID(context.Background(), "p-1")
	require.NoError(t, err)
	p.MaxGuests = 99

	again, err := repo.GetByID(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 4, again.MaxGuests)

	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "properties.json")
	content := `[{"id":"p-1","host_id":"h-1","status":"active","nightly_rate":"100.00","cleaning_fee":50,"max_guests":4,"min_nights":2,"instant_book":true}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	props, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, money.FromUnits(100), props[0].NightlyRate)
	assert.Equal(t, money.FromUnits(50), props[0].CleaningFee)
	assert.True(t, props[0].IsBookable())
	assert.True(t, props[0].InstantBook)
}
