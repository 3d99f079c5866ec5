// Package main provides the entrypoint for the SafeRoute API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/api"
	"github.com/saferoute/saferoute/internal/api/handler"
	"github.com/saferoute/saferoute/internal/api/middleware"
	"github.com/saferoute/saferoute/internal/cache"
	"github.com/saferoute/saferoute/internal/config"
	"github.com/saferoute/saferoute/internal/crime"
	"github.com/saferoute/saferoute/internal/crime/police"
	"github.com/saferoute/saferoute/internal/places"
	"github.com/saferoute/saferoute/internal/places/nominatim"
	"github.com/saferoute/saferoute/internal/places/overpass"
	"github.com/saferoute/saferoute/internal/planner"
	"github.com/saferoute/saferoute/internal/provider/resilience"
	"github.com/saferoute/saferoute/internal/routing"
	"github.com/saferoute/saferoute/internal/routing/osrm"
	"github.com/saferoute/saferoute/internal/safety"
	"github.com/saferoute/saferoute/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "saferoute-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil && level != zerolog.NoLevel {
		log = log.Level(level)
	} else {
		log.Warn().Str("level", cfg.Log.Level).Msg("unknown log level, using info")
		log = log.Level(zerolog.InfoLevel)
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Server.Env).
		Msg("starting SafeRoute API")

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Server.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	httpMetrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize http metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	domainMetrics, err := telemetry.NewMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize domain metrics")
		os.Exit(1)
	}

	store, err := newStore(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize cache")
		os.Exit(1)
	}
	defer store.Close() //nolint:errcheck // best effort on exit

	registry := resilience.NewRegistry()

	// Upstream providers
	osrmClient := osrm.NewClient(osrm.ClientConfig{
		BaseURL:   cfg.Routing.BaseURL,
		Timeout:   cfg.Routing.Timeout,
		UserAgent: cfg.UserAgent,
		Registry:  registry,
		Logger:    log,
	})
	policeClient := police.NewClient(police.ClientConfig{
		BaseURL:   cfg.Crime.BaseURL,
		Timeout:   cfg.Crime.Timeout,
		UserAgent: cfg.UserAgent,
		Registry:  registry,
		Logger:    log,
	})
	nominatimClient := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:   cfg.Places.NominatimBaseURL,
		UserAgent: cfg.UserAgent,
		Registry:  registry,
		Logger:    log,
	})
	overpassClient := overpass.NewClient(overpass.ClientConfig{
		BaseURL:   cfg.Places.OverpassBaseURL,
		UserAgent: cfg.UserAgent,
		Registry:  registry,
		Logger:    log,
	})

	// Domain services
	routingService := routing.NewService(routing.ServiceConfig{
		Engine:  osrmClient,
		Logger:  log,
		Timeout: cfg.Routing.Timeout,
		Metrics: domainMetrics,
	})
	crimeService := crime.NewService(crime.ServiceConfig{
		Feed:     policeClient,
		Store:    store,
		Logger:   log,
		Month:    cfg.Crime.Month,
		Radius:   cfg.Crime.RadiusMeters,
		Timeout:  cfg.Crime.Timeout,
		CacheTTL: cfg.Crime.CacheTTL,
		Metrics:  domainMetrics,
	})
	annotator := safety.NewAnnotator(safety.Config{
		Source:        crimeService,
		Sampler:       safety.Sampler(cfg.Safety.Sampler),
		Concurrency:   cfg.Safety.Concurrency,
		SampleTimeout: cfg.Crime.Timeout,
		Logger:        log,
		Metrics:       domainMetrics,
	})
	routePlanner := planner.New(planner.Config{
		Router:   routingService,
		Assessor: annotator,
		Samples:  cfg.Safety.Samples,
		Logger:   log,
	})
	placesService := places.NewService(places.ServiceConfig{
		Geocoder: nominatimClient,
		POI:      overpassClient,
		Store:    store,
		Logger:   log,
		Metrics:  domainMetrics,
	})
	log.Info().
		Str("cache", cfg.Cache.Backend).
		Str("sampler", cfg.Safety.Sampler).
		Int("samples", cfg.Safety.Samples).
		Msg("services initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     httpMetrics,
		RequireTLS:  cfg.Server.RequireTLS,
		Planner:     routePlanner,
		Crime:       crimeService,
		Places:      placesService,
		Registry:    registry,
		ReadinessChecks: map[string]handler.ReadinessCheck{
			"cache": store.Ping,
		},
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

func newStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.Store, error) {
	if cfg.Cache.Backend != "redis" {
		return cache.NewMemory(), nil
	}
	return cache.NewRedis(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Logger:   log,
	})
}
