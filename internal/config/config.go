// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Routing   RoutingConfig
	Crime     CrimeConfig
	Safety    SafetyConfig
	Places    PlacesConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
	Worker    WorkerConfig
	PubSub    PubSubConfig

	// UserAgent is sent to every upstream provider.
	UserAgent string
}

type ServerConfig struct {
	Port       string
	Env        string
	// RequireTLS rejects plain-HTTP requests that did not arrive via a TLS-terminating proxy.
	RequireTLS bool
}

type LogConfig struct {
	Level string
}

type RoutingConfig struct {
	BaseURL string
	Timeout time.Duration
}

type CrimeConfig struct {
	BaseURL      string
	Timeout      time.Duration
	RadiusMeters float64
	// Month pins the dataset month (YYYY-MM). Empty means latest available.
	Month    string
	CacheTTL time.Duration
}

type SafetyConfig struct {
	Samples     int
	Sampler     string
	Concurrency int
}

type PlacesConfig struct {
	NominatimBaseURL string
	OverpassBaseURL  string
}

type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64
}

type WorkerConfig struct {
	Schedule    string
	Concurrency int
	Timeout     time.Duration
	RunOnStart  bool
}

type PubSubConfig struct {
	ProjectID    string
	Subscription string
}

// Defaults mirrors the documented defaults for every key.
var defaults = map[string]any{
	"APP_PORT":                    "8080",
	"APP_ENV":                     "development",
	"REQUIRE_TLS":                 false,
	"LOG_LEVEL":                   "info",
	"OSRM_BASE_URL":               "https://router.project-osrm.org",
	"ROUTING_TIMEOUT":             "15s",
	"CRIME_BASE_URL":              "https://data.police.uk/api",
	"CRIME_TIMEOUT":               "10s",
	"CRIME_RADIUS_METERS":         2000,
	"CRIME_DATA_MONTH":            "",
	"CRIME_CACHE_TTL":             "6h",
	"SAFETY_SAMPLES":              10,
	"SAFETY_SAMPLER":              "feed",
	"SAFETY_CONCURRENCY":          10,
	"NOMINATIM_BASE_URL":          "https://nominatim.openstreetmap.org",
	"OVERPASS_BASE_URL":           "https://overpass-api.de/api",
	"USER_AGENT":                  "SafeRoute/1.0 (+https://github.com/saferoute/saferoute)",
	"CACHE_BACKEND":               "memory",
	"REDIS_ADDR":                  "localhost:6379",
	"REDIS_PASSWORD":              "",
	"REDIS_DB":                    0,
	"OTEL_ENABLED":                false,
	"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4317",
	"OTEL_TRACE_SAMPLE_RATIO":     1.0,
	"WORKER_SCHEDULE":             "@every 6h",
	"WORKER_CONCURRENCY":          3,
	"WORKER_TIMEOUT":              "30s",
	"WORKER_RUN_ON_START":         true,
	"PUBSUB_PROJECT_ID":           "",
	"PUBSUB_SUBSCRIPTION":         "",
}

// Load reads configuration from the environment, after applying any
// variables found in the given .env files. Missing .env files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:       v.GetString("APP_PORT"),
			Env:        v.GetString("APP_ENV"),
			RequireTLS: v.GetBool("REQUIRE_TLS"),
		},
		Log: LogConfig{
			Level: strings.ToLower(v.GetString("LOG_LEVEL")),
		},
		Routing: RoutingConfig{
			BaseURL: v.GetString("OSRM_BASE_URL"),
			Timeout: v.GetDuration("ROUTING_TIMEOUT"),
		},
		Crime: CrimeConfig{
			BaseURL:      v.GetString("CRIME_BASE_URL"),
			Timeout:      v.GetDuration("CRIME_TIMEOUT"),
			RadiusMeters: v.GetFloat64("CRIME_RADIUS_METERS"),
			Month:        v.GetString("CRIME_DATA_MONTH"),
			CacheTTL:     v.GetDuration("CRIME_CACHE_TTL"),
		},
		Safety: SafetyConfig{
			Samples:     v.GetInt("SAFETY_SAMPLES"),
			Sampler:     strings.ToLower(v.GetString("SAFETY_SAMPLER")),
			Concurrency: v.GetInt("SAFETY_CONCURRENCY"),
		},
		Places: PlacesConfig{
			NominatimBaseURL: v.GetString("NOMINATIM_BASE_URL"),
			OverpassBaseURL:  v.GetString("OVERPASS_BASE_URL"),
		},
		Cache: CacheConfig{
			Backend: strings.ToLower(v.GetString("CACHE_BACKEND")),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("OTEL_ENABLED"),
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			SampleRatio:  v.GetFloat64("OTEL_TRACE_SAMPLE_RATIO"),
		},
		Worker: WorkerConfig{
			Schedule:    v.GetString("WORKER_SCHEDULE"),
			Concurrency: v.GetInt("WORKER_CONCURRENCY"),
			Timeout:     v.GetDuration("WORKER_TIMEOUT"),
			RunOnStart:  v.GetBool("WORKER_RUN_ON_START"),
		},
		PubSub: PubSubConfig{
			ProjectID:    v.GetString("PUBSUB_PROJECT_ID"),
			Subscription: v.GetString("PUBSUB_SUBSCRIPTION"),
		},
		UserAgent: v.GetString("USER_AGENT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Routing.Timeout <= 0 {
		errs = append(errs, errors.New("ROUTING_TIMEOUT must be positive"))
	}
	if c.Crime.Timeout <= 0 {
		errs = append(errs, errors.New("CRIME_TIMEOUT must be positive"))
	}
	if c.Crime.RadiusMeters <= 0 {
		errs = append(errs, errors.New("CRIME_RADIUS_METERS must be positive"))
	}
	if c.Crime.Month != "" {
		if _, err := time.Parse("2006-01", c.Crime.Month); err != nil {
			errs = append(errs, fmt.Errorf("CRIME_DATA_MONTH must be YYYY-MM, got %q", c.Crime.Month))
		}
	}
	if c.Worker.Concurrency < 1 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be at least 1"))
	}
	if c.Safety.Samples < 1 {
		errs = append(errs, errors.New("SAFETY_SAMPLES must be at least 1"))
	}
	if c.Safety.Sampler != "feed" && c.Safety.Sampler != "random" {
		errs = append(errs, fmt.Errorf("SAFETY_SAMPLER must be feed or random, got %q", c.Safety.Sampler))
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be memory or redis, got %q", c.Cache.Backend))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
