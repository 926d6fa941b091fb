// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Errors returned by Load when a selected backend lacks its settings.
var (
	ErrMissingAPIKey             = errors.New("missing LASTFM_API_KEY environment variable")
	ErrMissingSpotifyCredentials = errors.New("missing SPOTIFY_ID or SPOTIFY_SECRET environment variable")
	ErrMissingRedisURL           = errors.New("missing REDIS_URL environment variable")
	ErrMissingDatabaseURL        = errors.New("missing DATABASE_URL environment variable")
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreNone     = "none"
)

// Catalog providers. ProviderAuto picks spotify, then lastfm, then none,
// depending on which credentials are present.
const (
	ProviderAuto    = "auto"
	ProviderSpotify = "spotify"
	ProviderLastFM  = "lastfm"
	ProviderNone    = "none"
)

// Intent policies.
const (
	PolicyNeutral    = "neutral"
	PolicyBehavioral = "behavioral"
)

// Config holds the service configuration.
type Config struct {
	AppEnv string

	// HTTP
	HTTPAddr         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimit        int
	RateWindow       time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Volatile store
	StoreBackend  string
	RedisURL      string
	DatabaseURL   string
	SweepInterval time.Duration

	// Catalog
	CatalogProvider string
	SpotifyID       string
	SpotifySecret   string
	LastFMAPIKey    string
	ChartsRegion    string
	CatalogCacheTTL time.Duration
	CatalogTimeout  time.Duration

	// Activity
	ActivityCapacity int
	SessionTTL       time.Duration
	EventTTL         time.Duration

	IntentPolicy string
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv and validates it.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{get: getenv}

	cfg := &Config{
		AppEnv: e.str("APP_ENV", "dev"),

		HTTPAddr:         e.str("HTTP_ADDR", "127.0.0.1:8080"),
		HTTPReadTimeout:  e.duration("HTTP_READ_TIMEOUT", 15*time.Second),
		HTTPWriteTimeout: e.duration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		HTTPIdleTimeout:  e.duration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		RateLimit:        e.int("RATE_LIMIT", 120),
		RateWindow:       e.duration("RATE_WINDOW", time.Minute),

		LogLevel:  e.str("LOG_LEVEL", "info"),
		LogFormat: e.str("LOG_FORMAT", "console"),

		StoreBackend:  strings.ToLower(e.str("STORE_BACKEND", StoreMemory)),
		RedisURL:      e.str("REDIS_URL", ""),
		DatabaseURL:   e.str("DATABASE_URL", ""),
		SweepInterval: e.duration("STORE_SWEEP_INTERVAL", 5*time.Minute),

		CatalogProvider: strings.ToLower(e.str("CATALOG_PROVIDER", ProviderAuto)),
		SpotifyID:       e.str("SPOTIFY_ID", ""),
		SpotifySecret:   e.str("SPOTIFY_SECRET", ""),
		LastFMAPIKey:    e.str("LASTFM_API_KEY", ""),
		ChartsRegion:    strings.ToUpper(e.str("CHARTS_REGION", "IN")),
		CatalogCacheTTL: e.duration("CATALOG_CACHE_TTL", 10*time.Minute),
		CatalogTimeout:  e.duration("CATALOG_TIMEOUT", 8*time.Second),

		ActivityCapacity: e.int("ACTIVITY_CAPACITY", 50),
		SessionTTL:       e.duration("SESSION_TTL", 24*time.Hour),
		EventTTL:         e.duration("EVENT_TTL", 7*24*time.Hour),

		IntentPolicy: strings.ToLower(e.str("INTENT_POLICY", PolicyNeutral)),
	}
	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}

	if cfg.CatalogProvider == ProviderAuto {
		cfg.CatalogProvider = cfg.detectProvider()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDev reports whether the service runs in a development environment.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev" || c.AppEnv == "development"
}

func (c *Config) detectProvider() string {
	switch {
	case c.SpotifyID != "" && c.SpotifySecret != "":
		return ProviderSpotify
	case c.LastFMAPIKey != "":
		return ProviderLastFM
	default:
		return ProviderNone
	}
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreNone:
	case StoreRedis:
		if c.RedisURL == "" {
			return ErrMissingRedisURL
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.CatalogProvider {
	case ProviderNone:
	case ProviderSpotify:
		if c.SpotifyID == "" || c.SpotifySecret == "" {
			return ErrMissingSpotifyCredentials
		}
	case ProviderLastFM:
		if c.LastFMAPIKey == "" {
			return ErrMissingAPIKey
		}
	default:
		return fmt.Errorf("unknown CATALOG_PROVIDER %q", c.CatalogProvider)
	}

	switch c.IntentPolicy {
	case PolicyNeutral, PolicyBehavioral:
	default:
		return fmt.Errorf("unknown INTENT_POLICY %q", c.IntentPolicy)
	}

	if c.ActivityCapacity <= 0 {
		return fmt.Errorf("ACTIVITY_CAPACITY must be positive, got %d", c.ActivityCapacity)
	}
	if len(c.ChartsRegion) != 2 {
		return fmt.Errorf("CHARTS_REGION must be a two-letter country code, got %q", c.ChartsRegion)
	}
	return nil
}

// env reads typed values and collects parse errors instead of falling back
// silently.
type env struct {
	get  func(string) string
	errs []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid integer %s=%q", key, v))
		return def
	}
	return i
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid duration %s=%q", key, v))
		return def
	}
	return d
}
