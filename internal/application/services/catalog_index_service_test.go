package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openimis/openimis-be-medical/internal/application/services"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/providers"
)

func TestReindex_UpsertsCurrentEntries(t *testing.T) {
	ctx := context.Background()
	catalog, store := newCatalog(t, nil)
	mustCreateItem(t, catalog, "A")
	deleted := mustCreateItem(t, catalog, "B")
	_, err := catalog.CreateService(ctx, admin(), serviceInput("CONS", "Consultation"))
	require.NoError(t, err)
	_, err = catalog.DeleteItems(ctx, admin(), []string{deleted.UUID})
	require.NoError(t, err)

	index := &mockCatalogIndex{}
	index.On("EnsureCollection", mock.Anything).Return(nil)
	index.On("Upsert", mock.Anything, mock.AnythingOfType("*providers.CatalogDocument")).Return(nil)

	svc := services.NewCatalogIndexService(store, index, nil, zerolog.Nop())
	written, err := svc.Reindex(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, written)
	index.AssertNumberOfCalls(t, "Upsert", 2)
}

func TestReindex_StopsOnIndexFailure(t *testing.T) {
	ctx := context.Background()
	catalog, store := newCatalog(t, nil)
	mustCreateItem(t, catalog, "A")

	index := &mockCatalogIndex{}
	index.On("EnsureCollection", mock.Anything).Return(nil)
	index.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("typesense unavailable"))

	svc := services.NewCatalogIndexService(store, index, nil, zerolog.Nop())
	_, err := svc.Reindex(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reindex items")
}

func TestSync_FollowsEventAction(t *testing.T) {
	ctx := context.Background()
	catalog, store := newCatalog(t, nil)
	item := mustCreateItem(t, catalog, "PARA")

	index := &mockCatalogIndex{}
	index.On("Upsert", mock.Anything, mock.MatchedBy(func(doc *providers.CatalogDocument) bool {
		return doc.ID == providers.CatalogDocumentID(entities.KindItem, item.UUID) && doc.Code == "PARA"
	})).Return(nil).Once()
	index.On("Remove", mock.Anything, entities.KindItem, "gone").Return(nil).Once()
	index.On("Remove", mock.Anything, entities.KindService, "missing").Return(nil).Once()

	svc := services.NewCatalogIndexService(store, index, nil, zerolog.Nop())

	require.NoError(t, svc.Sync(ctx, &entities.CatalogEvent{Kind: entities.KindItem, Action: entities.CatalogActionUpdated, UUID: item.UUID}))
	require.NoError(t, svc.Sync(ctx, &entities.CatalogEvent{Kind: entities.KindItem, Action: entities.CatalogActionDeleted, UUID: "gone"}))
	require.NoError(t, svc.Sync(ctx, &entities.CatalogEvent{Kind: entities.KindService, Action: entities.CatalogActionCreated, UUID: "missing"}))
	assert.Error(t, svc.Sync(ctx, &entities.CatalogEvent{Kind: "diagnosis", Action: entities.CatalogActionCreated, UUID: "x"}))

	index.AssertExpectations(t)
}

func TestWatch_AppliesEventsUntilBusCloses(t *testing.T) {
	ctx := context.Background()
	_, store := newCatalog(t, nil)

	ch := make(chan *entities.CatalogEvent, 2)
	ch <- &entities.CatalogEvent{ID: "1", Kind: entities.KindItem, Action: entities.CatalogActionDeleted, UUID: "u1"}
	ch <- nil
	close(ch)

	bus := &mockEventBus{}
	bus.On("Subscribe", mock.Anything, entities.CatalogChannelPattern).Return((<-chan *entities.CatalogEvent)(ch), nil)

	index := &mockCatalogIndex{}
	index.On("Remove", mock.Anything, entities.KindItem, "u1").Return(nil).Once()

	svc := services.NewCatalogIndexService(store, index, bus, zerolog.Nop())
	require.NoError(t, svc.Watch(ctx))

	index.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestWatch_SubscribeFailure(t *testing.T) {
	_, store := newCatalog(t, nil)

	bus := &mockEventBus{}
	bus.On("Subscribe", mock.Anything, entities.CatalogChannelPattern).Return(nil, errors.New("redis down"))

	svc := services.NewCatalogIndexService(store, &mockCatalogIndex{}, bus, zerolog.Nop())
	err := svc.Watch(context.Background())

	assert.ErrorContains(t, err, "failed to subscribe")
}
