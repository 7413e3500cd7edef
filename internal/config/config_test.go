package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_TYPE", "sqlite-pure")
	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("IDENTITY_JWT_SECRET", "secret")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.DatabaseType != "sqlite-pure" {
		t.Errorf("DatabaseType = %q, want sqlite-pure", cfg.DatabaseType)
	}
	if cfg.RateLimitRequests != 5 {
		t.Errorf("RateLimitRequests = %d, want 5", cfg.RateLimitRequests)
	}
	if cfg.RateLimitWindow != 30*time.Second {
		t.Errorf("RateLimitWindow = %v, want 30s", cfg.RateLimitWindow)
	}
	if cfg.MetricsEnabled {
		t.Error("MetricsEnabled should be false")
	}
	if cfg.Location().String() != "Europe/Berlin" {
		t.Errorf("Location() = %v, want Europe/Berlin", cfg.Location())
	}
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollcall.yaml")
	content := "port: \"7070\"\ntimezone: America/New_York\nadvance_schedule: \"@hourly\"\nrate_limit_window: 2m\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.ServerPort != "7070" {
		t.Errorf("ServerPort = %q, want 7070", cfg.ServerPort)
	}
	if cfg.Timezone != "America/New_York" {
		t.Errorf("Timezone = %q", cfg.Timezone)
	}
	if cfg.AdvanceSchedule != "@hourly" {
		t.Errorf("AdvanceSchedule = %q", cfg.AdvanceSchedule)
	}
	if cfg.RateLimitWindow != 2*time.Minute {
		t.Errorf("RateLimitWindow = %v, want 2m", cfg.RateLimitWindow)
	}
	// untouched keys keep their defaults
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("DatabaseType = %q, want sqlite", cfg.DatabaseType)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults with secret",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown database type",
			mutate:  func(c *Config) { c.DatabaseType = "oracle" },
			wantErr: true,
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.DatabaseType = "postgres" },
			wantErr: true,
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Timezone = "Mars/Olympus" },
			wantErr: true,
		},
		{
			name: "missing identity key",
			mutate: func(c *Config) {
				c.IdentityJWTSecret = ""
				c.IdentityJWTPublicKey = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.IdentityJWTSecret = "secret"
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
