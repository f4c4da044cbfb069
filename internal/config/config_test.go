package config

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATABASE_URL", "REDIS_URL", "AUTO_MIGRATE", "TRACKER_PORT", "TRACKER_GRPC_PORT",
		"DISCOVERY_PORT", "LOG_LEVEL", "LOG_FORMAT", "THEIRSTACK_API_KEY", "HOME_LAT",
		"HOME_LON", "RADIUS_KM", "SCRAPE_INTERVAL_HOURS", "MAX_AGE_DAYS", "ITEWIKI_PAGES",
		"INGEST_WORKERS", "DISCOVERY_SOURCES",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, "8000", cfg.TrackerPort)
	assert.Equal(t, "8081", cfg.DiscoveryPort)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, 50.0, cfg.RadiusKM)
	assert.Equal(t, 24, cfg.ScrapeIntervalHours)
	assert.Equal(t, 1, cfg.MaxAgeDays)
	assert.Equal(t, 3, cfg.ItewikiPages)
	assert.Equal(t, 4, cfg.IngestWorkers)
	assert.Equal(t, []string{"fi", "emea", "itewiki"}, cfg.Sources)
	assert.Nil(t, cfg.HomeLat)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/jobs")
	t.Setenv("AUTO_MIGRATE", "false")
	t.Setenv("HOME_LAT", "60.17")
	t.Setenv("HOME_LON", "24.94")
	t.Setenv("RADIUS_KM", "30")
	t.Setenv("DISCOVERY_SOURCES", " emea , itewiki ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/jobs", cfg.DatabaseURL)
	assert.False(t, cfg.AutoMigrate)
	require.NotNil(t, cfg.HomeLat)
	assert.InDelta(t, 60.17, *cfg.HomeLat, 1e-9)
	assert.InDelta(t, 24.94, *cfg.HomeLon, 1e-9)
	assert.Equal(t, 30.0, cfg.RadiusKM)
	assert.Equal(t, []string{"emea", "itewiki"}, cfg.Sources)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"SCRAPE_INTERVAL_HOURS": "0",
		"INGEST_WORKERS":        "many",
		"AUTO_MIGRATE":          "perhaps",
		"HOME_LAT":              "91",
		"RADIUS_KM":             "-1",
		"DISCOVERY_SOURCES":     "fi,mars",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			if key == "HOME_LAT" {
				t.Setenv("HOME_LON", "24")
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_HomeCoordinatesTogether(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME_LAT", "60.1")

	_, err := Load()
	assert.ErrorContains(t, err, "HOME_LAT and HOME_LON")
}

func TestNewLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := NewLogger(&Config{LogLevel: "warn", LogFormat: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}
