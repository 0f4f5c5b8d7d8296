package sessionkit

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config holds every tunable of a [Controller]. Build copies it, so later
// changes to the caller's value have no effect.
type Config struct {
	API       APIConfig
	Storage   StorageConfig
	Reconcile ReconcileConfig
	Events    EventsConfig
	Metrics   MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the backend.
type APIConfig struct {
	// BaseURL is the API root, e.g. "http://localhost:8000/api".
	BaseURL string
	// Timeout bounds every request made through the controller's client.
	Timeout time.Duration
	// AuthScheme prefixes the credential in the Authorization header.
	AuthScheme string
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig names the durable entries.
type StorageConfig struct {
	// Namespace scopes a backend the way an origin scopes browser storage.
	Namespace     string
	CredentialKey string
	IdentityKey   string
	PreferenceKey string
}

/*
====================================
RECONCILE CONFIG
====================================
*/

// ReconcileConfig controls background profile reconciliation.
type ReconcileConfig struct {
	// Timeout bounds one background fetch.
	Timeout time.Duration
	// MinInterval throttles manual Refresh calls.
	MinInterval time.Duration
	// ExpiryLeeway is the clock skew tolerated when a credential is a JWT.
	ExpiryLeeway time.Duration
}

/*
====================================
EVENTS / METRICS
====================================
*/

// EventsConfig controls the asynchronous session event dispatcher.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool

	// FlushTimeout bounds how long Close waits for the sink. Zero waits
	// until the queue is empty.
	FlushTimeout time.Duration
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration the web client shipped with.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:    "http://localhost:8000/api",
			Timeout:    10 * time.Second,
			AuthScheme: "Token",
		},
		Storage: StorageConfig{
			Namespace:     "default",
			CredentialKey: "finance_tracker_token",
			IdentityKey:   "finance_tracker_user",
			PreferenceKey: "theme",
		},
		Reconcile: ReconcileConfig{
			Timeout:      15 * time.Second,
			MinInterval:  30 * time.Second,
			ExpiryLeeway: 30 * time.Second,
		},
		Events: EventsConfig{
			Enabled:      false,
			BufferSize:   64,
			DropIfFull:   true,
			FlushTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("API BaseURL must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("API BaseURL scheme must be http or https")
	}
	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}
	if strings.TrimSpace(c.API.AuthScheme) == "" || strings.ContainsAny(c.API.AuthScheme, " \t") {
		return errors.New("API AuthScheme must be a single non-empty token")
	}

	if strings.TrimSpace(c.Storage.CredentialKey) == "" {
		return errors.New("Storage CredentialKey must be set")
	}
	if strings.TrimSpace(c.Storage.IdentityKey) == "" {
		return errors.New("Storage IdentityKey must be set")
	}
	if strings.TrimSpace(c.Storage.PreferenceKey) == "" {
		return errors.New("Storage PreferenceKey must be set")
	}
	if c.Storage.CredentialKey == c.Storage.IdentityKey ||
		c.Storage.CredentialKey == c.Storage.PreferenceKey ||
		c.Storage.IdentityKey == c.Storage.PreferenceKey {
		return errors.New("Storage keys must be distinct")
	}

	if c.Reconcile.Timeout <= 0 {
		return errors.New("Reconcile Timeout must be > 0")
	}
	if c.Reconcile.MinInterval < 0 {
		return errors.New("Reconcile MinInterval must be >= 0")
	}
	if c.Reconcile.ExpiryLeeway < 0 || c.Reconcile.ExpiryLeeway > 10*time.Minute {
		return errors.New("Reconcile ExpiryLeeway must be between 0 and 10m")
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when events are enabled")
	}
	if c.Events.FlushTimeout < 0 {
		return errors.New("Events FlushTimeout must be >= 0")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	return nil
}
