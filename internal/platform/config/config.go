// Package config builds runtime configuration from the environment so main
// stays lean. A .env file is honored in development when present.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr        string
	PostgresDSN string
	RedisURL    string
	LogLevel    string

	// JWTSigningKey signs and verifies worker bearer tokens.
	JWTSigningKey string

	// DefaultFenceRadiusKm applies when a job has no site-specific radius.
	DefaultFenceRadiusKm float64

	// DeviceSecretFallback is the HMAC secret used for offline batches when
	// no per-device secret is provisioned. Development only.
	DeviceSecretFallback string

	// DeviceSecretTTL bounds how long provisioned per-device secrets live in
	// the keyed secret store.
	DeviceSecretTTL time.Duration

	// RequestTimeout bounds handling time for any single request.
	RequestTimeout time.Duration

	ShutdownTimeout time.Duration
}

// FromEnv loads a Config from environment variables, first merging a .env
// file if one exists (missing file is not an error).
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{
		Addr:                 getenv("HAAZRI_ADDR", ":8080"),
		PostgresDSN:          os.Getenv("HAAZRI_POSTGRES_DSN"),
		RedisURL:             os.Getenv("HAAZRI_REDIS_URL"),
		LogLevel:             getenv("HAAZRI_LOG_LEVEL", "info"),
		JWTSigningKey:        getenv("HAAZRI_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		DefaultFenceRadiusKm: 0.5,
		DeviceSecretFallback: getenv("HAAZRI_DEVICE_SECRET_FALLBACK", "default_secret_dev"),
		DeviceSecretTTL:      30 * 24 * time.Hour,
		RequestTimeout:       30 * time.Second,
		ShutdownTimeout:      10 * time.Second,
	}

	if v := os.Getenv("HAAZRI_FENCE_RADIUS_KM"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r > 0 {
			cfg.DefaultFenceRadiusKm = r
		}
	}
	if v := os.Getenv("HAAZRI_DEVICE_SECRET_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.DeviceSecretTTL = d
		}
	}
	if v := os.Getenv("HAAZRI_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RequestTimeout = d
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
