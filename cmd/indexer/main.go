package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openimis/openimis-be-medical/internal/adapters/database"
	"github.com/openimis/openimis-be-medical/internal/adapters/events"
	"github.com/openimis/openimis-be-medical/internal/adapters/search"
	"github.com/openimis/openimis-be-medical/internal/application/services"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/clients/postgres"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/clients/redis"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/clients/typesense"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/observability"
	"github.com/openimis/openimis-be-medical/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "indexer",
		Short: "Keeps the Typesense catalog index in line with the medical catalog",
	}

	rootCmd.AddCommand(reindexCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func reindexCmd() *cobra.Command {
	var (
		reset    bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Index every current item and service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval < 0 {
				return errors.New("interval must not be negative")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			env, err := setup(ctx, false)
			if err != nil {
				return err
			}
			defer env.close()

			for {
				if reset {
					if err := env.ts.DropSchema(ctx); err != nil {
						return err
					}
					reset = false
				}
				written, err := env.indexer.Reindex(ctx)
				if err != nil {
					env.logger.Error().Err(err).Msg("reindex failed")
				} else {
					env.logger.Info().Int("documents", written).Msg("reindex complete")
				}

				if interval == 0 {
					return err
				}
				select {
				case <-ctx.Done():
					env.logger.Info().Msg("indexer shutting down")
					return nil
				case <-time.After(interval):
				}
			}
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "drop the collection before the first run")
	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat every interval (e.g. 6h); 0 runs once")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Apply catalog events from Redis to the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			env, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer env.close()

			return env.indexer.Watch(ctx)
		},
	}
}

type environment struct {
	logger  zerolog.Logger
	ts      *typesense.Client
	indexer *services.CatalogIndexService
	closers []func() error
}

func (e *environment) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Warn().Err(err).Msg("error during shutdown")
		}
	}
}

// setup connects to PostgreSQL and Typesense, and to Redis when withEvents
// is set.
func setup(ctx context.Context, withEvents bool) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := observability.InitLogger(cfg.OTEL.ServiceName+"-indexer", cfg.Env)
	env := &environment{logger: logger}

	pgClient, err := postgres.NewClient(&cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	env.closers = append(env.closers, pgClient.Close)

	env.ts, err = typesense.NewClient(&cfg.Typesense, logger)
	if err != nil {
		env.close()
		return nil, err
	}

	store := database.NewStore(pgClient, nil)
	index := search.NewTypesenseCatalogIndex(env.ts)

	if !withEvents {
		env.indexer = services.NewCatalogIndexService(store, index, nil, logger)
		return env, nil
	}

	redisClient, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		env.close()
		return nil, fmt.Errorf("watch needs Redis: %w", err)
	}
	bus := events.NewRedisEventBus(redisClient, logger)
	env.closers = append(env.closers, redisClient.Close, bus.Close)
	env.indexer = services.NewCatalogIndexService(store, index, bus, logger)

	if err := index.EnsureCollection(ctx); err != nil {
		env.close()
		return nil, err
	}
	return env, nil
}
