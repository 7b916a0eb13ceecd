// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ericfisherdev/concourse-proxy/internal/crypto"
)

// Credential store backends.
const (
	StoreAuto   = "auto"
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr      string
	BackendURL      string
	Secret          string
	Salt            string
	KDFIterations   int
	KDFDigest       string
	Store           string
	RedisURL        string
	StateFile       string
	DBPath          string
	UpstreamTimeout time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// CONCOURSE_PROXY_SECRET is required. Optional variables with defaults:
// CONCOURSE_PROXY_LISTEN_ADDR (127.0.0.1:3001), CONCOURSE_PROXY_SALT (concourse-proxy),
// CONCOURSE_PROXY_KDF_ITERATIONS (100000), CONCOURSE_PROXY_KDF_DIGEST (sha256),
// CONCOURSE_PROXY_STORE (auto), CONCOURSE_PROXY_STATE_FILE (credentials.json),
// CONCOURSE_PROXY_DB_PATH (concourse-proxy.db), CONCOURSE_PROXY_UPSTREAM_TIMEOUT (60s).
// CONCOURSE_PROXY_BACKEND_URL and CONCOURSE_PROXY_REDIS_URL default to empty.
func Load() (*Config, error) {
	secret := os.Getenv("CONCOURSE_PROXY_SECRET")
	if secret == "" {
		return nil, errors.New("CONCOURSE_PROXY_SECRET is required")
	}

	iterations := 100000
	if v, ok := os.LookupEnv("CONCOURSE_PROXY_KDF_ITERATIONS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("CONCOURSE_PROXY_KDF_ITERATIONS has invalid value %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("CONCOURSE_PROXY_KDF_ITERATIONS must be positive, got %d", parsed)
		}
		iterations = parsed
	}

	digest := lookupDefault("CONCOURSE_PROXY_KDF_DIGEST", "sha256")
	if !crypto.SupportedDigest(digest) {
		return nil, fmt.Errorf("CONCOURSE_PROXY_KDF_DIGEST has unsupported value %q", digest)
	}

	upstreamTimeout := 60 * time.Second
	if v, ok := os.LookupEnv("CONCOURSE_PROXY_UPSTREAM_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CONCOURSE_PROXY_UPSTREAM_TIMEOUT has invalid duration %q: %w", v, err)
		}
		upstreamTimeout = parsed
	}

	redisURL := os.Getenv("CONCOURSE_PROXY_REDIS_URL")
	store, err := resolveStore(lookupDefault("CONCOURSE_PROXY_STORE", StoreAuto), redisURL)
	if err != nil {
		return nil, err
	}

	return &Config{
		ListenAddr:      lookupDefault("CONCOURSE_PROXY_LISTEN_ADDR", "127.0.0.1:3001"),
		BackendURL:      os.Getenv("CONCOURSE_PROXY_BACKEND_URL"),
		Secret:          secret,
		Salt:            lookupDefault("CONCOURSE_PROXY_SALT", "concourse-proxy"),
		KDFIterations:   iterations,
		KDFDigest:       digest,
		Store:           store,
		RedisURL:        redisURL,
		StateFile:       lookupDefault("CONCOURSE_PROXY_STATE_FILE", "credentials.json"),
		DBPath:          lookupDefault("CONCOURSE_PROXY_DB_PATH", "concourse-proxy.db"),
		UpstreamTimeout: upstreamTimeout,
	}, nil
}

// resolveStore turns "auto" into a concrete backend: redis when a redis URL
// is configured, memory otherwise.
func resolveStore(store, redisURL string) (string, error) {
	switch store {
	case StoreAuto:
		if redisURL != "" {
			return StoreRedis, nil
		}
		return StoreMemory, nil
	case StoreRedis:
		if redisURL == "" {
			return "", errors.New("CONCOURSE_PROXY_STORE=redis requires CONCOURSE_PROXY_REDIS_URL")
		}
		return store, nil
	case StoreMemory, StoreSQLite:
		return store, nil
	}
	return "", fmt.Errorf("CONCOURSE_PROXY_STORE has unsupported value %q", store)
}

// lookupDefault returns the variable's value when set, even if empty.
func lookupDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
