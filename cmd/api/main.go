package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/openimis/openimis-be-medical/internal/adapters/cache"
	"github.com/openimis/openimis-be-medical/internal/adapters/database"
	"github.com/openimis/openimis-be-medical/internal/adapters/events"
	"github.com/openimis/openimis-be-medical/internal/adapters/memory"
	"github.com/openimis/openimis-be-medical/internal/adapters/search"
	"github.com/openimis/openimis-be-medical/internal/api/handlers"
	"github.com/openimis/openimis-be-medical/internal/api/middleware"
	"github.com/openimis/openimis-be-medical/internal/api/routes"
	"github.com/openimis/openimis-be-medical/internal/application/services"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/providers"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/clients/postgres"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/clients/redis"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/clients/typesense"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/observability"
	"github.com/openimis/openimis-be-medical/migrations"
	"github.com/openimis/openimis-be-medical/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	health := handlers.NewHealthHandler()

	store, closeStore, err := openStore(ctx, cfg, metrics, health, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open catalog store")
	}
	defer closeStore()

	permissions, err := loadPermissions(cfg.Catalog.PermissionsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load permission overrides")
	}

	var (
		cacheProvider providers.CacheProvider
		eventBus      providers.EventBus
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			// The catalog works without Redis, only slower and without events.
			logger.Warn().Err(err).Msg("Redis unavailable; running without cache and events")
		} else {
			defer redisClient.Close()
			health.AddCheck("redis", redisClient.Ping)
			cacheProvider = cache.NewRedisAdapter(redisClient)
			eventBus = events.NewRedisEventBus(redisClient, logger)
		}
	}

	deps := services.CatalogDeps{
		Store:       store,
		Permissions: permissions,
		Events:      eventBus,
		Metrics:     metrics,
	}
	if cacheProvider != nil {
		deps.Diagnoses = database.NewCachedDiagnosisAdapter(
			store.Store().Diagnoses(), cacheProvider, cfg.Catalog.DiagnosisCacheTTL, metrics, logger)
	}
	catalog := services.NewCatalogService(deps)

	var searchHandler *handlers.SearchHandler
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(&cfg.Typesense, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Typesense unavailable; catalog search disabled")
		} else {
			health.AddCheck("typesense", tsClient.Ping)
			index := search.NewTypesenseCatalogIndex(tsClient)
			if err := index.EnsureCollection(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to init Typesense collection")
			}
			searchHandler = handlers.NewSearchHandler(index)
		}
	}

	if cfg.Auth.JWTSecret == "" {
		logger.Warn().Msg("JWT_SECRET is not set; every request runs as anonymous")
	}

	router := routes.NewRouter(
		handlers.NewCatalogHandler(catalog, store.Store()),
		searchHandler,
		middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		cfg.Server.AllowedOrigins,
		metrics,
	).WithHealth(health)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Str("store", cfg.Store.Driver).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing event bus")
		}
	}

	logger.Info().Msg("server stopped")
}

// openStore builds the configured unit of work and returns its closer
func openStore(
	ctx context.Context,
	cfg *config.Config,
	metrics *observability.Metrics,
	health *handlers.HealthHandler,
	logger zerolog.Logger,
) (repositories.UnitOfWork, func(), error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		logger.Warn().Msg("using the in-memory catalog store; data is lost on exit")
		return memory.NewStore(), func() {}, nil
	}

	pgClient, err := postgres.NewClient(&cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.MigrateOnStart {
		applied, err := pgClient.Migrate(ctx, migrations.FS)
		if err != nil {
			pgClient.Close()
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
		logger.Info().Int("applied", applied).Msg("database migrations applied")
	}
	health.AddCheck("postgres", pgClient.Ping)
	return database.NewStore(pgClient, metrics), func() { pgClient.Close() }, nil
}

// loadPermissions merges the permission file over the stock table
func loadPermissions(path string) (entities.PermissionTable, error) {
	overrides, err := config.LoadPermissionOverrides(path)
	if err != nil {
		return nil, err
	}
	table := make(entities.PermissionTable, len(overrides))
	for op, perms := range overrides {
		table[entities.Operation(op)] = perms
	}
	return entities.DefaultPermissionTable().Merge(table), nil
}
