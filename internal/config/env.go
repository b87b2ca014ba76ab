// Package config handles environment-based configuration loading.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings. These are read
// once at startup and never change while the process runs.
type EnvConfig struct {
	// Directories
	StateDir string

	// Network
	ListenAddress   string
	Port            int
	APIMaxBodyBytes int

	// Auth
	AdminToken string

	// Engine
	NormalisationCacheCapacity int
	DomainErrorThreshold       int
	DomainErrorWindow          time.Duration

	// Background jobs (standard cron expressions)
	SnapshotFlushSchedule string
	BreakerScrubSchedule  string
}

// LoadEnvConfig reads environment variables and returns a validated
// EnvConfig. Returns an error listing every invalid or missing variable.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Directories ---
	cfg.StateDir = envStr("SIEVE_STATE_DIR", "/var/lib/sieve")

	// --- Network ---
	cfg.ListenAddress = strings.TrimSpace(envStr("SIEVE_LISTEN_ADDRESS", "0.0.0.0"))
	cfg.Port = envInt("SIEVE_PORT", 2290, &errs)
	cfg.APIMaxBodyBytes = envInt("SIEVE_API_MAX_BODY_BYTES", 1<<20, &errs)

	// --- Auth (must be defined; empty means auth disabled) ---
	adminToken, hasAdminToken := os.LookupEnv("SIEVE_ADMIN_TOKEN")
	cfg.AdminToken = adminToken

	// --- Engine ---
	cfg.NormalisationCacheCapacity = envInt("SIEVE_NORMALISATION_CACHE_CAPACITY", 4096, &errs)
	cfg.DomainErrorThreshold = envInt("SIEVE_DOMAIN_ERROR_THRESHOLD", 3, &errs)
	cfg.DomainErrorWindow = envDuration("SIEVE_DOMAIN_ERROR_WINDOW", 10*time.Minute, &errs)

	// --- Background jobs ---
	cfg.SnapshotFlushSchedule = envStr("SIEVE_SNAPSHOT_FLUSH_SCHEDULE", "*/5 * * * *")
	cfg.BreakerScrubSchedule = envStr("SIEVE_BREAKER_SCRUB_SCHEDULE", "0 * * * *")

	// --- Validation ---
	if !hasAdminToken {
		errs = append(errs, "SIEVE_ADMIN_TOKEN must be defined (can be empty)")
	}
	if cfg.ListenAddress == "" {
		errs = append(errs, "SIEVE_LISTEN_ADDRESS must not be empty")
	}
	validatePort("SIEVE_PORT", cfg.Port, &errs)
	validatePositive("SIEVE_API_MAX_BODY_BYTES", cfg.APIMaxBodyBytes, &errs)

	// Zero disables the normalisation cache and the domain error breaker.
	validateNonNegative("SIEVE_NORMALISATION_CACHE_CAPACITY", cfg.NormalisationCacheCapacity, &errs)
	validateNonNegative("SIEVE_DOMAIN_ERROR_THRESHOLD", cfg.DomainErrorThreshold, &errs)
	if cfg.DomainErrorWindow <= 0 {
		errs = append(errs, "SIEVE_DOMAIN_ERROR_WINDOW must be positive")
	}

	if _, err := cron.ParseStandard(cfg.SnapshotFlushSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("SIEVE_SNAPSHOT_FLUSH_SCHEDULE: invalid cron expression %q: %v", cfg.SnapshotFlushSchedule, err))
	}
	if _, err := cron.ParseStandard(cfg.BreakerScrubSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("SIEVE_BREAKER_SCRUB_SCHEDULE: invalid cron expression %q: %v", cfg.BreakerScrubSchedule, err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}

func validateNonNegative(name string, value int, errs *[]string) {
	if value < 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must not be negative, got %d", name, value))
	}
}
