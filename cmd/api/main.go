package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/nearbyfinder/internal/adapters/cache"
	"github.com/zatekoja/nearbyfinder/internal/adapters/database"
	"github.com/zatekoja/nearbyfinder/internal/adapters/events"
	"github.com/zatekoja/nearbyfinder/internal/adapters/providers/geolocation"
	"github.com/zatekoja/nearbyfinder/internal/adapters/providers/places"
	"github.com/zatekoja/nearbyfinder/internal/api/handlers"
	"github.com/zatekoja/nearbyfinder/internal/api/middleware"
	"github.com/zatekoja/nearbyfinder/internal/api/routes"
	"github.com/zatekoja/nearbyfinder/internal/application/services"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
	"github.com/zatekoja/nearbyfinder/internal/domain/repositories"
	"github.com/zatekoja/nearbyfinder/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/nearbyfinder/internal/infrastructure/clients/redis"
	"github.com/zatekoja/nearbyfinder/internal/infrastructure/observability"
	"github.com/zatekoja/nearbyfinder/pkg/config"
	"github.com/zatekoja/nearbyfinder/pkg/secrets"
)

const (
	cacheKeyPrefix  = "nearbyfinder:"
	janitorInterval = time.Minute
)

func main() {
	// Secrets must land in the environment before config reads it.
	_ = godotenv.Load()
	vaultResult, err := secrets.Load(context.Background(), secrets.LoadVaultConfigFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load secrets from Vault")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.App.Env, cfg.App.LogLevel)
	if len(vaultResult.Loaded) > 0 || len(vaultResult.Skipped) > 0 {
		log.Info().Strs("loaded", vaultResult.Loaded).Strs("skipped", vaultResult.Skipped).Msg("Vault secrets applied")
	}

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			observability.EnableOTelLogs()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Redis is optional: without it the cache is off and events stay in-process.
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; running without cache and with in-process events")
		eventBus = events.NewMemoryEventBus()
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewInstrumentedCache(cache.NewRedisAdapter(redisClient, cacheKeyPrefix), metrics)
		eventBus = events.NewRedisEventBus(redisClient)
		log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized")
	}

	// Search analytics are optional
	var analyticsRepo repositories.SearchAnalyticsRepository
	if cfg.Database.Enabled {
		pgClient, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
		}
		defer pgClient.Close()
		if err := pgClient.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to apply analytics schema")
		}
		analyticsRepo = database.NewSearchAnalyticsAdapter(pgClient)
		log.Info().Msg("search analytics enabled")
	}

	// Places backend
	var placesProvider providers.PlacesProvider
	switch {
	case cfg.Places.Provider == "google" && cfg.Places.APIKey != "":
		placesProvider = places.NewGooglePlacesProvider(cfg.Places.APIKey, cacheProvider)
	case cfg.Places.Provider == "google":
		log.Warn().Msg("GOOGLE_MAPS_API_KEY is not set; using mock places provider")
		placesProvider = places.NewMockPlacesProvider()
	default:
		placesProvider = places.NewMockPlacesProvider()
	}

	defaultLocation := entities.Coordinate{Latitude: cfg.Map.DefaultLatitude, Longitude: cfg.Map.DefaultLongitude}

	newSource, closeSources, err := positionSourceFactory(cfg.Location, defaultLocation)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize position source")
	}
	defer closeSources()

	// Initialize services
	placesService := services.NewPlacesQueryService(placesProvider, cfg.Places.Category, cfg.Places.RadiusMeters)
	placesService.SetMetrics(metrics)
	if analyticsRepo != nil {
		placesService.SetAnalytics(analyticsRepo)
	}

	registry := services.NewWidgetRegistry(services.RegistryConfig{
		MapID:              cfg.Map.MapID,
		DefaultLocation:    defaultLocation,
		Zoom:               cfg.Map.Zoom,
		RadiusMeters:       cfg.Places.RadiusMeters,
		Category:           cfg.Places.Category,
		LocationTimeout:    cfg.Location.Timeout,
		LocationMaximumAge: cfg.Location.MaximumAge,
		IdleTTL:            cfg.Widget.IdleTTL,
	}, placesService, newSource, eventBus)
	registry.SetMetrics(metrics)
	go registry.StartJanitor(ctx, janitorInterval)

	// Initialize handlers
	widgetHandler := handlers.NewWidgetHandler(registry)
	sseHandler := handlers.NewSSEHandler(eventBus, registry)
	if err := observability.RegisterActiveStreams(sseHandler.GetClientCount); err != nil {
		log.Warn().Err(err).Msg("failed to register event stream gauge")
	}
	mapsHandler := handlers.NewMapsHandler(cfg.Places.APIKey, cacheProvider, registry)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsRepo)

	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider)
	}

	router := routes.NewRouter(
		widgetHandler,
		sseHandler,
		mapsHandler,
		analyticsHandler,
		cacheMiddleware,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	// WriteTimeout stays zero so event streams are not cut off.
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")
	cancel()

	// Closing widgets ends their event streams so Shutdown can drain.
	registry.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("error closing event bus")
	}

	log.Info().Msg("server stopped")
}

// positionSourceFactory builds the per-widget position source for the
// configured LOCATION_SOURCE. The returned closer releases shared resources.
func positionSourceFactory(cfg config.LocationConfig, defaultLocation entities.Coordinate) (services.PositionSourceFactory, func(), error) {
	noop := func() {}

	switch cfg.Source {
	case "client":
		return func(string) providers.PositionSource {
			return geolocation.NewClientPositionSource()
		}, noop, nil
	case "geoip":
		db, err := geolocation.OpenGeoIPDatabase(cfg.GeoIPPath)
		if err != nil {
			return nil, noop, err
		}
		factory := func(clientIP string) providers.PositionSource {
			return geolocation.NewGeoIPPositionSource(db, clientIP)
		}
		closer := func() {
			if err := db.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close geoip database")
			}
		}
		return factory, closer, nil
	case "mock":
		return func(string) providers.PositionSource {
			return geolocation.NewMockPositionSource(defaultLocation)
		}, noop, nil
	default:
		return func(string) providers.PositionSource { return nil }, noop, nil
	}
}
