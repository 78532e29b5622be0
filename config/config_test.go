package config

import (
	"testing"
	"time"

	"github.com/ds124wfegd/busbooker/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	t.Setenv("BOOKING_CAPACITY", "30")
	t.Setenv("DATABASE_DRIVER", "memory")

	v, err := LoadConfig()
	require.NoError(t, err)

	cfg, err := ParseConfig(v)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Booking.Capacity)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "@every 30m", cfg.Worker.CleanupSchedule)
	assert.False(t, cfg.Worker.Enabled)
	assert.Empty(t, cfg.Redis.Host)
}

func TestBuildCatalog(t *testing.T) {
	t.Run("empty section yields default catalog", func(t *testing.T) {
		catalog, err := CatalogConfig{}.BuildCatalog()
		require.NoError(t, err)
		_, restricted := catalog.Restriction("Mosque Slot 3", time.Saturday)
		assert.True(t, restricted)
	})

	t.Run("custom days", func(t *testing.T) {
		catalog, err := CatalogConfig{Categories: []CategoryConfig{
			{Name: "MOSQUE", Keyword: "mosque", Slots: []string{"Mosque Slot 1"}, Days: []string{"Fri", "saturday"}},
		}}.BuildCatalog()
		require.NoError(t, err)

		_, ok := catalog.Restriction("mosque slot 1", time.Saturday)
		assert.False(t, ok)

		category, ok := catalog.Restriction("mosque slot 1", time.Sunday)
		require.True(t, ok)
		assert.Equal(t, []time.Weekday{time.Friday, time.Saturday}, category.Days)
		assert.Equal(t, "Mosque slots are only available on Fridays and Saturdays.", category.RestrictionMessage())
	})

	t.Run("unknown weekday", func(t *testing.T) {
		_, err := CatalogConfig{Categories: []CategoryConfig{{Name: "X", Days: []string{"someday"}}}}.BuildCatalog()
		assert.ErrorContains(t, err, "someday")
	})

	t.Run("nameless category", func(t *testing.T) {
		_, err := CatalogConfig{Categories: []CategoryConfig{{Slots: []string{"a"}}}}.BuildCatalog()
		assert.Error(t, err)
	})
}

func TestLocation(t *testing.T) {
	loc, err := AppConfig{Timezone: "Local"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = AppConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = AppConfig{Timezone: "Mars/Olympus"}.Location()
	assert.Error(t, err)
}

func TestDefaultCapacityConstant(t *testing.T) {
	v, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, entity.DefaultCapacity, v.GetInt("booking.capacity"))
}
