package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openimis/openimis-be-medical/internal/adapters/memory"
	"github.com/openimis/openimis-be-medical/internal/application/services"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
)

func seedItem(t *testing.T, repo repositories.ItemRepository) *entities.Item {
	t.Helper()
	pkg := "box"
	freq := 30
	item := &entities.Item{
		Entry: entities.Entry{
			Code: "AMOX", Name: "Amoxicillin", Type: entities.ItemTypeDrug, CareType: entities.CareTypeBoth,
			Price: decimal.NewFromInt(10), PatientCategory: entities.PatientCategoryAll, Frequency: &freq,
			ValidityFrom: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		Package: &pkg,
	}
	require.NoError(t, repo.Create(context.Background(), item))
	return item
}

func TestArchiveAndReplace_KeepsIdentityAndLeavesHistory(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repo := store.Store().Items()
	current := seedItem(t, repo)
	engine := services.NewVersioningEngine[*entities.Item](steppingClock())

	incoming := &entities.Item{Entry: entities.Entry{
		Code: "AMOX", Name: "Amoxicillin 500", Type: entities.ItemTypeDrug, CareType: entities.CareTypeOutPatient,
		Price: decimal.NewFromInt(12), PatientCategory: entities.PatientCategoryAdult, AuditUserID: 9,
	}}

	saved, err := engine.ArchiveAndReplace(ctx, repo, current, incoming)
	require.NoError(t, err)

	assert.Equal(t, current.ID, saved.ID)
	assert.Equal(t, 2, saved.Version)
	assert.Equal(t, "Amoxicillin 500", saved.Name)
	assert.Equal(t, 9, saved.AuditUserID)
	// omitted fields do not survive the replace
	assert.Nil(t, saved.Package)
	assert.Nil(t, saved.Frequency)

	lineage, _, err := repo.List(ctx, entities.CatalogFilter{UUID: saved.UUID, ShowHistory: true, OrderBy: []string{"validity_from"}})
	require.NoError(t, err)
	require.Len(t, lineage, 2)

	history := lineage[0]
	assert.NotEqual(t, saved.ID, history.ID)
	require.NotNil(t, history.LegacyID)
	assert.Equal(t, saved.ID, *history.LegacyID)
	require.NotNil(t, history.ValidityTo)
	assert.Equal(t, 1, history.Version)
	assert.Equal(t, "Amoxicillin", history.Name)
	require.NotNil(t, history.Package)

	found, err := repo.FindByCode(ctx, "AMOX", true)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, found.ID)
}

type failingPersist struct {
	repositories.ItemRepository
}

func (failingPersist) Persist(context.Context, *entities.Item) error {
	return errors.New("disk full")
}

func TestSoftDelete_ReportsFailureKeyedByUUID(t *testing.T) {
	store := memory.NewStore()
	item := seedItem(t, store.Store().Items())
	engine := services.NewVersioningEngine[*entities.Item](steppingClock())

	failure := engine.SoftDelete(context.Background(), failingPersist{store.Store().Items()}, item, nil)

	require.NotNil(t, failure)
	assert.Equal(t, item.UUID, failure.Title)
	require.Len(t, failure.List, 1)
	assert.Equal(t, item.UUID, failure.List[0].Detail)
}

func TestSoftDelete_RunsCascade(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	item := seedItem(t, store.Store().Items())
	engine := services.NewVersioningEngine[*entities.Item](steppingClock())

	var cascadedID int64
	failure := engine.SoftDelete(ctx, store.Store().Items(), item, func(_ context.Context, id int64, _ time.Time) error {
		cascadedID = id
		return nil
	})

	require.Nil(t, failure)
	assert.Equal(t, item.ID, cascadedID)
	_, err := store.Store().Items().FindCurrent(ctx, item.UUID)
	assert.Error(t, err)
}
