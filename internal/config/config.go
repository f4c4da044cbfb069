// Package config loads and validates environment variables at startup.
// Fail-fast: a malformed value stops the process before anything connects.
//
// A .env file in the working directory is loaded first when present; real
// environment variables always win over it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for every binary. It is built once by
// Load and passed down explicitly.
type Config struct {
	DatabaseURL string
	RedisURL    string // empty disables event publishing
	AutoMigrate bool

	TrackerPort     string
	TrackerGRPCPort string // empty disables the gRPC health endpoint
	DiscoveryPort   string

	LogLevel  string
	LogFormat string

	TheirStackAPIKey string
	HomeLat          *float64
	HomeLon          *float64
	RadiusKM         float64

	ScrapeIntervalHours int
	MaxAgeDays          int
	ItewikiPages        int
	IngestWorkers       int
	Sources             []string
}

// DefaultDatabaseURL is the local single-file store.
const DefaultDatabaseURL = "sqlite://./duunikanban.db"

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	// Missing .env is the normal case in containers.
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:      getenv("DATABASE_URL", DefaultDatabaseURL),
		RedisURL:         os.Getenv("REDIS_URL"),
		TrackerPort:      getenv("TRACKER_PORT", "8000"),
		TrackerGRPCPort:  os.Getenv("TRACKER_GRPC_PORT"),
		DiscoveryPort:    getenv("DISCOVERY_PORT", "8081"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogFormat:        getenv("LOG_FORMAT", "text"),
		TheirStackAPIKey: os.Getenv("THEIRSTACK_API_KEY"),
	}

	var err error
	if cfg.AutoMigrate, err = boolEnv("AUTO_MIGRATE", true); err != nil {
		return nil, err
	}
	if cfg.HomeLat, err = coordEnv("HOME_LAT", 90); err != nil {
		return nil, err
	}
	if cfg.HomeLon, err = coordEnv("HOME_LON", 180); err != nil {
		return nil, err
	}
	if (cfg.HomeLat == nil) != (cfg.HomeLon == nil) {
		return nil, fmt.Errorf("HOME_LAT and HOME_LON must be set together")
	}

	if s := os.Getenv("RADIUS_KM"); s != "" {
		v, perr := strconv.ParseFloat(s, 64)
		if perr != nil || v <= 0 {
			return nil, fmt.Errorf("RADIUS_KM must be a positive number, got %q", s)
		}
		cfg.RadiusKM = v
	} else {
		cfg.RadiusKM = 50
	}

	if cfg.ScrapeIntervalHours, err = positiveIntEnv("SCRAPE_INTERVAL_HOURS", 24); err != nil {
		return nil, err
	}
	if cfg.MaxAgeDays, err = positiveIntEnv("MAX_AGE_DAYS", 1); err != nil {
		return nil, err
	}
	if cfg.ItewikiPages, err = positiveIntEnv("ITEWIKI_PAGES", 3); err != nil {
		return nil, err
	}
	if cfg.IngestWorkers, err = positiveIntEnv("INGEST_WORKERS", 4); err != nil {
		return nil, err
	}

	cfg.Sources = splitList(getenv("DISCOVERY_SOURCES", "fi,emea,itewiki"))
	for _, s := range cfg.Sources {
		switch s {
		case "fi", "emea", "itewiki":
		default:
			return nil, fmt.Errorf("DISCOVERY_SOURCES: unknown source %q", s)
		}
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolEnv(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, s)
	}
	return v, nil
}

func positiveIntEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}

func coordEnv(key string, limit float64) (*float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < -limit || v > limit {
		return nil, fmt.Errorf("%s must be a number in [-%g, %g], got %q", key, limit, limit, s)
	}
	return &v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
