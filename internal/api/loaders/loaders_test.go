package loaders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openimis/openimis-be-medical/internal/adapters/memory"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
)

func seed(t *testing.T, store *memory.Store, entry entities.CatalogEntry) {
	t.Helper()
	err := store.WithinTx(context.Background(), func(ctx context.Context, s repositories.CatalogStore) error {
		switch e := entry.(type) {
		case *entities.Item:
			return s.Items().Create(ctx, e)
		case *entities.Service:
			return s.Services().Create(ctx, e)
		}
		return nil
	})
	require.NoError(t, err)
}

func entry(code string) entities.Entry {
	return entities.Entry{
		Code:            code,
		Name:            code,
		Type:            "D",
		CareType:        entities.CareTypeBoth,
		Price:           decimal.NewFromInt(10),
		PatientCategory: entities.PatientCategoryAll,
		Version:         1,
	}
}

func TestResolveChildren(t *testing.T) {
	store := memory.NewStore()
	item := &entities.Item{Entry: entry("A")}
	sub := &entities.Service{Entry: entry("S1"), Level: entities.ServiceLevelSimple}
	seed(t, store, item)
	seed(t, store, sub)

	parent := &entities.Service{
		Items:    []*entities.ServiceItem{{ItemID: item.ID}},
		Services: []*entities.ServiceService{{ServiceID: sub.ID}},
	}
	l := NewLoaders(store.Store())

	require.NoError(t, l.ResolveChildren(context.Background(), []*entities.Service{parent}))
	require.NotNil(t, parent.Items[0].Item)
	assert.Equal(t, "A", parent.Items[0].Item.Code)
	require.NotNil(t, parent.Services[0].Service)
	assert.Equal(t, "S1", parent.Services[0].Service.Code)
}

func TestResolveChildren_MissingReference(t *testing.T) {
	l := NewLoaders(memory.NewStore().Store())
	parent := &entities.Service{Items: []*entities.ServiceItem{{ItemID: 404}}}

	err := l.ResolveChildren(context.Background(), []*entities.Service{parent})

	assert.ErrorContains(t, err, "item 404 not found")
}

func TestWithLoaders(t *testing.T) {
	assert.Nil(t, For(context.Background()))

	l := NewLoaders(memory.NewStore().Store())
	assert.Same(t, l, For(WithLoaders(context.Background(), l)))
}

func TestMiddleware_AttachesLoadersPerRequest(t *testing.T) {
	var seen []*Loaders
	handler := Middleware(memory.NewStore().Store())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, For(r.Context()))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/services", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/services", nil))

	require.Len(t, seen, 2)
	assert.NotNil(t, seen[0])
	assert.NotSame(t, seen[0], seen[1])
}
