package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the hall-pass
// service.
type Config struct {
	HTTPPort     int
	SQLiteDSN    string
	SessionTTL   time.Duration
	SeedDemoData bool
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults; values that are present but
// unparsable are collected and reported together.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:   8080,
		SQLiteDSN:  "file:hallpass.db",
		SessionTTL: 12 * time.Hour,
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("HALLPASS_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "HALLPASS_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("HALLPASS_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(os.Getenv("HALLPASS_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "HALLPASS_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if seedValue := strings.TrimSpace(os.Getenv("HALLPASS_SEED_DEMO_DATA")); seedValue != "" {
		seed, err := strconv.ParseBool(seedValue)
		if err != nil {
			invalid = append(invalid, "HALLPASS_SEED_DEMO_DATA")
		} else {
			cfg.SeedDemoData = seed
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
