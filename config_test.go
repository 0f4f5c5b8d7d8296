package sessionkit

import (
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Storage.CredentialKey != "finance_tracker_token" || cfg.Storage.IdentityKey != "finance_tracker_user" {
		t.Fatalf("unexpected default keys: %+v", cfg.Storage)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "https base url valid",
			mutate:    func(c *Config) { c.API.BaseURL = "https://finance.example.com/api" },
			wantValid: true,
		},
		{
			name:      "relative base url invalid",
			mutate:    func(c *Config) { c.API.BaseURL = "/api" },
			wantValid: false,
		},
		{
			name:      "ftp base url invalid",
			mutate:    func(c *Config) { c.API.BaseURL = "ftp://example.com/api" },
			wantValid: false,
		},
		{
			name:      "bearer scheme valid",
			mutate:    func(c *Config) { c.API.AuthScheme = "Bearer" },
			wantValid: true,
		},
		{
			name:      "scheme with space invalid",
			mutate:    func(c *Config) { c.API.AuthScheme = "Token x" },
			wantValid: false,
		},
		{
			name:      "blank credential key invalid",
			mutate:    func(c *Config) { c.Storage.CredentialKey = "  " },
			wantValid: false,
		},
		{
			name:      "shared keys invalid",
			mutate:    func(c *Config) { c.Storage.IdentityKey = c.Storage.CredentialKey },
			wantValid: false,
		},
		{
			name:      "zero reconcile timeout invalid",
			mutate:    func(c *Config) { c.Reconcile.Timeout = 0 },
			wantValid: false,
		},
		{
			name:      "zero refresh interval valid",
			mutate:    func(c *Config) { c.Reconcile.MinInterval = 0 },
			wantValid: true,
		},
		{
			name:      "large leeway invalid",
			mutate:    func(c *Config) { c.Reconcile.ExpiryLeeway = time.Hour },
			wantValid: false,
		},
		{
			name: "events without buffer invalid",
			mutate: func(c *Config) {
				c.Events.Enabled = true
				c.Events.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "histograms without metrics invalid",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatalf("expected invalid")
			}
		})
	}
}
