package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SIEVE_ADMIN_TOKEN", "correct-horse-battery-staple")
}

func TestLoadEnvConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("LoadEnvConfig: %v", err)
	}

	if cfg.StateDir != "/var/lib/sieve" {
		t.Errorf("StateDir = %q", cfg.StateDir)
	}
	if cfg.ListenAddress != "0.0.0.0" {
		t.Errorf("ListenAddress = %q", cfg.ListenAddress)
	}
	if cfg.Port != 2290 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.APIMaxBodyBytes != 1<<20 {
		t.Errorf("APIMaxBodyBytes = %d", cfg.APIMaxBodyBytes)
	}
	if cfg.NormalisationCacheCapacity != 4096 {
		t.Errorf("NormalisationCacheCapacity = %d", cfg.NormalisationCacheCapacity)
	}
	if cfg.DomainErrorThreshold != 3 {
		t.Errorf("DomainErrorThreshold = %d", cfg.DomainErrorThreshold)
	}
	if cfg.DomainErrorWindow != 10*time.Minute {
		t.Errorf("DomainErrorWindow = %v", cfg.DomainErrorWindow)
	}
	if cfg.SnapshotFlushSchedule != "*/5 * * * *" {
		t.Errorf("SnapshotFlushSchedule = %q", cfg.SnapshotFlushSchedule)
	}
}

func TestLoadEnvConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SIEVE_STATE_DIR", "/tmp/sieve-test")
	t.Setenv("SIEVE_PORT", "8080")
	t.Setenv("SIEVE_NORMALISATION_CACHE_CAPACITY", "0")
	t.Setenv("SIEVE_DOMAIN_ERROR_THRESHOLD", "0")
	t.Setenv("SIEVE_DOMAIN_ERROR_WINDOW", "1h")
	t.Setenv("SIEVE_BREAKER_SCRUB_SCHEDULE", "30 2 * * *")

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("LoadEnvConfig: %v", err)
	}

	if cfg.StateDir != "/tmp/sieve-test" {
		t.Errorf("StateDir = %q", cfg.StateDir)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.NormalisationCacheCapacity != 0 {
		t.Errorf("NormalisationCacheCapacity = %d, want 0 (disabled)", cfg.NormalisationCacheCapacity)
	}
	if cfg.DomainErrorThreshold != 0 {
		t.Errorf("DomainErrorThreshold = %d, want 0 (disabled)", cfg.DomainErrorThreshold)
	}
	if cfg.DomainErrorWindow != time.Hour {
		t.Errorf("DomainErrorWindow = %v", cfg.DomainErrorWindow)
	}
	if cfg.BreakerScrubSchedule != "30 2 * * *" {
		t.Errorf("BreakerScrubSchedule = %q", cfg.BreakerScrubSchedule)
	}
}

func TestLoadEnvConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing admin token",
			env:  map[string]string{},
			want: "SIEVE_ADMIN_TOKEN must be defined",
		},
		{
			name: "bad port",
			env: map[string]string{
				"SIEVE_ADMIN_TOKEN": "x",
				"SIEVE_PORT":        "70000",
			},
			want: "SIEVE_PORT: port must be 1-65535",
		},
		{
			name: "non-integer capacity",
			env: map[string]string{
				"SIEVE_ADMIN_TOKEN":                  "x",
				"SIEVE_NORMALISATION_CACHE_CAPACITY": "lots",
			},
			want: "SIEVE_NORMALISATION_CACHE_CAPACITY: invalid integer",
		},
		{
			name: "negative threshold",
			env: map[string]string{
				"SIEVE_ADMIN_TOKEN":            "x",
				"SIEVE_DOMAIN_ERROR_THRESHOLD": "-1",
			},
			want: "SIEVE_DOMAIN_ERROR_THRESHOLD: must not be negative",
		},
		{
			name: "bad window",
			env: map[string]string{
				"SIEVE_ADMIN_TOKEN":         "x",
				"SIEVE_DOMAIN_ERROR_WINDOW": "soon",
			},
			want: "SIEVE_DOMAIN_ERROR_WINDOW: invalid duration",
		},
		{
			name: "bad cron expression",
			env: map[string]string{
				"SIEVE_ADMIN_TOKEN":             "x",
				"SIEVE_SNAPSHOT_FLUSH_SCHEDULE": "whenever",
			},
			want: "SIEVE_SNAPSHOT_FLUSH_SCHEDULE: invalid cron expression",
		},
		{
			name: "blank listen address",
			env: map[string]string{
				"SIEVE_ADMIN_TOKEN":    "x",
				"SIEVE_LISTEN_ADDRESS": "   ",
			},
			want: "SIEVE_LISTEN_ADDRESS must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Registers cleanup so the unset below cannot leak out of the test.
			t.Setenv("SIEVE_ADMIN_TOKEN", "placeholder")
			os.Unsetenv("SIEVE_ADMIN_TOKEN")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadEnvConfig()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
