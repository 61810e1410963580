package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		original, had := os.LookupEnv(key)
		os.Unsetenv(key)
		t.Cleanup(func() {
			if had {
				os.Setenv(key, original)
			} else {
				os.Unsetenv(key)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, "FEED_URL", "DATA_DIR", "PORT", "MAINTENANCE_DAY",
		"RETENTION_TRADE_DAYS", "SECTOR_GRID_SIZE_LY")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tcp://eddn.edcd.io:9500", cfg.FeedURL)
	assert.Equal(t, 8500, cfg.Port)
	assert.Equal(t, 90, cfg.RetentionTradeDays)
	assert.Equal(t, 100.0, cfg.SectorGridSizeLY)
	assert.Equal(t, "Sol", cfg.OriginSystemName)
	assert.Equal(t, "Colonia", cfg.ColonySystemName)
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	clearEnv(t, "FEED_URL", "PORT", "RETENTION_TRADE_DAYS")
	os.Setenv("FEED_URL", "ws://example.invalid:9500")
	os.Setenv("PORT", "9100")
	os.Setenv("RETENTION_TRADE_DAYS", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ws://example.invalid:9500", cfg.FeedURL)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 30, cfg.RetentionTradeDays)
}

func TestValidate_RejectsEmptyFeedURL(t *testing.T) {
	cfg := &Config{FeedURL: "", DataDir: "./data", Port: 8500}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestDBPath(t *testing.T) {
	cfg := &Config{DataDir: "/var/data"}
	assert.Equal(t, "/var/data/systems.db", cfg.DBPath("systems"))
}
