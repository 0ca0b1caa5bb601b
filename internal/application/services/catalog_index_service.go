package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/providers"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

const reindexPageSize = 200

// CatalogIndexService keeps the search index in line with the current
// catalog rows.
type CatalogIndexService struct {
	store    repositories.UnitOfWork
	index    providers.CatalogIndex
	eventBus providers.EventBus
	logger   zerolog.Logger
}

// NewCatalogIndexService creates a new catalog index service
func NewCatalogIndexService(store repositories.UnitOfWork, index providers.CatalogIndex, eventBus providers.EventBus, logger zerolog.Logger) *CatalogIndexService {
	return &CatalogIndexService{
		store:    store,
		index:    index,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Reindex upserts every current item and service and returns how many
// documents were written.
func (s *CatalogIndexService) Reindex(ctx context.Context) (int, error) {
	if err := s.index.EnsureCollection(ctx); err != nil {
		return 0, err
	}

	items, err := reindexKind(ctx, s, s.store.Store().Items())
	if err != nil {
		return items, fmt.Errorf("failed to reindex items: %w", err)
	}
	services, err := reindexKind(ctx, s, s.store.Store().Services())
	if err != nil {
		return items + services, fmt.Errorf("failed to reindex services: %w", err)
	}

	s.logger.Info().Int("items", items).Int("services", services).Msg("catalog reindexed")
	return items + services, nil
}

func reindexKind[T entities.CatalogEntry](ctx context.Context, s *CatalogIndexService, repo repositories.EntryRepository[T]) (int, error) {
	written := 0
	for offset := 0; ; offset += reindexPageSize {
		page, total, err := repo.List(ctx, entities.CatalogFilter{Limit: reindexPageSize, Offset: offset})
		if err != nil {
			return written, err
		}
		for _, entry := range page {
			if err := s.index.Upsert(ctx, providers.NewCatalogDocument(entry)); err != nil {
				return written, err
			}
			written++
		}
		if len(page) == 0 || offset+len(page) >= total {
			return written, nil
		}
	}
}

// Sync applies one catalog event to the index
func (s *CatalogIndexService) Sync(ctx context.Context, event *entities.CatalogEvent) error {
	if event.Action == entities.CatalogActionDeleted {
		return s.index.Remove(ctx, event.Kind, event.UUID)
	}

	var (
		entry entities.CatalogEntry
		err   error
	)
	switch event.Kind {
	case entities.KindItem:
		entry, err = s.store.Store().Items().FindCurrent(ctx, event.UUID)
	case entities.KindService:
		entry, err = s.store.Store().Services().FindCurrent(ctx, event.UUID)
	default:
		return fmt.Errorf("unknown catalog kind %q", event.Kind)
	}
	if apperrors.IsNotFound(err) {
		// deleted before the event was handled
		return s.index.Remove(ctx, event.Kind, event.UUID)
	}
	if err != nil {
		return err
	}
	return s.index.Upsert(ctx, providers.NewCatalogDocument(entry))
}

// Watch applies catalog events until ctx ends or the bus closes
func (s *CatalogIndexService) Watch(ctx context.Context) error {
	events, err := s.eventBus.Subscribe(ctx, entities.CatalogChannelPattern)
	if err != nil {
		return fmt.Errorf("failed to subscribe to catalog events: %w", err)
	}
	s.logger.Info().Str("channel", entities.CatalogChannelPattern).Msg("watching catalog events")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if event == nil {
				continue
			}
			s.handle(ctx, event)
		}
	}
}

func (s *CatalogIndexService) handle(ctx context.Context, event *entities.CatalogEvent) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.Sync(ctx, event); err != nil {
		s.logger.Error().
			Err(err).
			Str("event_id", event.ID).
			Str("kind", string(event.Kind)).
			Str("uuid", event.UUID).
			Msg("failed to sync catalog index")
		return
	}
	s.logger.Debug().
		Str("kind", string(event.Kind)).
		Str("action", string(event.Action)).
		Str("uuid", event.UUID).
		Msg("catalog index synced")
}
