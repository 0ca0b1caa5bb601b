package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openimis/openimis-be-medical/internal/adapters/memory"
	"github.com/openimis/openimis-be-medical/internal/application/services"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/providers"
)

var allPerms = []string{
	"122101", "122102", "122103", "122104",
	"121401", "121402", "121403", "121404",
}

func admin() *entities.Caller {
	return entities.NewCaller("admin", 1, allPerms...)
}

// steppingClock returns a clock that advances one second per call
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newCatalog(t *testing.T, bus providers.EventBus) (*services.CatalogService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := services.NewCatalogService(services.CatalogDeps{
		Store:       store,
		Permissions: entities.DefaultPermissionTable(),
		Events:      bus,
		Clock:       steppingClock(),
	})
	return svc, store
}

func itemInput(code, name string) *entities.ItemInput {
	category := int16(entities.PatientCategoryAll)
	return &entities.ItemInput{
		EntryInput: entities.EntryInput{
			Code:            code,
			Name:            name,
			CareType:        entities.CareTypeBoth,
			Price:           price(100),
			PatientCategory: &category,
		},
		Type: entities.ItemTypeDrug,
	}
}

func serviceInput(code, name string) *entities.ServiceInput {
	category := int16(entities.PatientCategoryAll)
	return &entities.ServiceInput{
		EntryInput: entities.EntryInput{
			Code:            code,
			Name:            name,
			CareType:        entities.CareTypeOutPatient,
			Price:           price(500),
			PatientCategory: &category,
		},
		Type:        "P",
		Level:       entities.ServiceLevelSimple,
		PackageType: entities.PackageTypePackage,
	}
}

func mustCreateItem(t *testing.T, svc *services.CatalogService, code string) *entities.Item {
	t.Helper()
	item, err := svc.CreateItem(context.Background(), admin(), itemInput(code, "Item "+code))
	require.NoError(t, err)
	return item
}

func price(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func qty(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

// mockEventBus is a testify mock of providers.EventBus
type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) Publish(ctx context.Context, event *entities.CatalogEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.CatalogEvent, error) {
	args := m.Called(ctx, channel)
	ch, _ := args.Get(0).(<-chan *entities.CatalogEvent)
	return ch, args.Error(1)
}

func (m *mockEventBus) Close() error {
	return m.Called().Error(0)
}

// mockCatalogIndex is a testify mock of providers.CatalogIndex
type mockCatalogIndex struct {
	mock.Mock
}

func (m *mockCatalogIndex) EnsureCollection(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockCatalogIndex) Upsert(ctx context.Context, doc *providers.CatalogDocument) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *mockCatalogIndex) Remove(ctx context.Context, kind entities.EntryKind, uuid string) error {
	return m.Called(ctx, kind, uuid).Error(0)
}

func (m *mockCatalogIndex) Search(ctx context.Context, params providers.CatalogSearchParams) ([]*providers.CatalogDocument, error) {
	args := m.Called(ctx, params)
	docs, _ := args.Get(0).([]*providers.CatalogDocument)
	return docs, args.Error(1)
}
