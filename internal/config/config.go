// Package config resolves service configuration from the environment.
// Variables are prefixed with SKILLREEL_, e.g. SKILLREEL_HTTP_ADDR.
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime settings for the API service.
type Config struct {
	// HTTPAddr is the listen address of the HTTP API.
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// PGDSN selects the Postgres store when set; empty means in-memory.
	PGDSN string `envconfig:"PG_DSN" default:""`

	// BlobGatewayURL is the ingest endpoint of the external blob store.
	// Uploads by raw bytes are rejected when unset; uploads by URL
	// reference still work.
	BlobGatewayURL string `envconfig:"BLOB_GATEWAY_URL" default:""`

	// Admins lists bootstrap admin identities, comma separated.
	Admins []string `envconfig:"ADMINS" default:""`

	// RateBurst / RatePerSec tune the per-IP request limiter.
	RateBurst  int `envconfig:"RATE_BURST" default:"20"`
	RatePerSec int `envconfig:"RATE_PER_SEC" default:"10"`

	// MaxBodyBytes caps request bodies (multipart uploads included).
	MaxBodyBytes int64 `envconfig:"MAX_BODY_BYTES" default:"268435456"`
}

// Load parses SKILLREEL_-prefixed environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("SKILLREEL", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	cleaned := cfg.Admins[:0]
	for _, id := range cfg.Admins {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	cfg.Admins = cleaned
	if cfg.RateBurst <= 0 || cfg.RatePerSec <= 0 {
		return nil, fmt.Errorf("rate limits must be positive (burst=%d, per_sec=%d)", cfg.RateBurst, cfg.RatePerSec)
	}
	if cfg.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("max body bytes must be positive: %d", cfg.MaxBodyBytes)
	}
	return &cfg, nil
}
