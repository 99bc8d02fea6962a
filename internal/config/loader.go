package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the admin daemon.
type Config struct {
	HTTPPort           int
	SQLiteDSN          string
	SettleDuration     time.Duration
	PostureCacheTTL    time.Duration
	MaxAffectedDevices int
}

// Load parses configuration values from the current process environment.
//
// Every field has a default; set values are validated and all invalid
// entries are reported together.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:           8080,
		SQLiteDSN:          "file:smarthome-admin.db?_foreign_keys=on",
		SettleDuration:     5 * time.Second,
		PostureCacheTTL:    30 * time.Second,
		MaxAffectedDevices: 0,
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("SMARTHOME_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "SMARTHOME_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("SMARTHOME_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if settleValue := strings.TrimSpace(os.Getenv("SMARTHOME_SETTLE_DURATION")); settleValue != "" {
		settle, err := time.ParseDuration(settleValue)
		if err != nil || settle <= 0 {
			invalid = append(invalid, "SMARTHOME_SETTLE_DURATION")
		} else {
			cfg.SettleDuration = settle
		}
	}

	if ttlValue := strings.TrimSpace(os.Getenv("SMARTHOME_POSTURE_CACHE_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "SMARTHOME_POSTURE_CACHE_TTL")
		} else {
			cfg.PostureCacheTTL = ttl
		}
	}

	if maxValue := strings.TrimSpace(os.Getenv("SMARTHOME_MAX_AFFECTED_DEVICES")); maxValue != "" {
		max, err := strconv.Atoi(maxValue)
		if err != nil || max < 0 {
			invalid = append(invalid, "SMARTHOME_MAX_AFFECTED_DEVICES")
		} else {
			cfg.MaxAffectedDevices = max
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
