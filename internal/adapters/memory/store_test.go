package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

func newItem(code, name string) *entities.Item {
	return &entities.Item{Entry: entities.Entry{
		Code:            code,
		Name:            name,
		Type:            entities.ItemTypeDrug,
		CareType:        entities.CareTypeBoth,
		Price:           decimal.NewFromInt(10),
		PatientCategory: entities.PatientCategoryAll,
	}}
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	item := newItem("PARA", "Paracetamol")
	err := store.WithinTx(ctx, func(ctx context.Context, tx repositories.CatalogStore) error {
		return tx.Items().Create(ctx, item)
	})
	require.NoError(t, err)

	got, err := store.Store().Items().FindCurrent(ctx, item.UUID)
	require.NoError(t, err)
	assert.Equal(t, "PARA", got.Code)
	assert.Equal(t, 1, got.Version)
}

func TestWithinTx_DiscardsOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	boom := errors.New("boom")

	item := newItem("PARA", "Paracetamol")
	err := store.WithinTx(ctx, func(ctx context.Context, tx repositories.CatalogStore) error {
		if err := tx.Items().Create(ctx, item); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Store().Items().FindCurrent(ctx, item.UUID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestItems_ReturnedRowsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	item := newItem("PARA", "Paracetamol")
	require.NoError(t, store.Store().Items().Create(ctx, item))

	got, err := store.Store().Items().FindByID(ctx, item.ID)
	require.NoError(t, err)
	got.Name = "changed"

	again, err := store.Store().Items().FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol", again.Name)
}

func TestItems_CurrentCodeIsUnique(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Store().Items().Create(ctx, newItem("PARA", "Paracetamol")))

	err := store.Store().Items().Create(ctx, newItem("PARA", "Other"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeCodeAlreadyExists))
}

func TestItems_ListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	items := store.Store().Items()

	for _, it := range []*entities.Item{newItem("B1", "Bandage"), newItem("A1", "Aspirin"), newItem("C1", "Codeine")} {
		require.NoError(t, items.Create(ctx, it))
	}
	old := newItem("Z9", "Retired")
	closed := time.Now().UTC()
	old.ValidityTo = &closed
	require.NoError(t, items.Create(ctx, old))

	page, total, err := items.List(ctx, entities.CatalogFilter{OrderBy: []string{"-name"}, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "Codeine", page[0].Name)
	assert.Equal(t, "Bandage", page[1].Name)

	_, total, err = items.List(ctx, entities.CatalogFilter{ShowHistory: true})
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	found, _, err := items.List(ctx, entities.CatalogFilter{Search: "asp"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "A1", found[0].Code)
}

func TestItems_ListByPricelistAndMutation(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	a, b := newItem("A1", "Aspirin"), newItem("B1", "Bandage")
	require.NoError(t, store.Store().Items().Create(ctx, a))
	require.NoError(t, store.Store().Items().Create(ctx, b))

	detail := store.AddPricelistDetail(entities.KindItem, "pl-1", b.ID)
	require.NoError(t, store.Store().MutationLog().Record(ctx, entities.KindItem, a.ID, "cm-1"))

	onList, _, err := store.Store().Items().List(ctx, entities.CatalogFilter{PricelistUUID: "pl-1"})
	require.NoError(t, err)
	require.Len(t, onList, 1)
	assert.Equal(t, "B1", onList[0].Code)

	touched, _, err := store.Store().Items().List(ctx, entities.CatalogFilter{ClientMutationID: "cm-1"})
	require.NoError(t, err)
	require.Len(t, touched, 1)
	assert.Equal(t, "A1", touched[0].Code)

	require.NoError(t, store.Store().Pricelists().CloseItemDetails(ctx, b.ID, time.Now()))
	assert.False(t, store.PricelistDetailOpen(detail))
}

func TestLinks_CloseByParent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	links := store.Store().ServiceItems()

	require.NoError(t, links.Create(ctx, &entities.ServiceItem{ServiceLink: entities.ServiceLink{ParentID: 1, Status: 1}, ItemID: 10}))
	require.NoError(t, links.Create(ctx, &entities.ServiceItem{ServiceLink: entities.ServiceLink{ParentID: 1, Status: 1}, ItemID: 11}))
	require.NoError(t, links.Create(ctx, &entities.ServiceItem{ServiceLink: entities.ServiceLink{ParentID: 2, Status: 1}, ItemID: 10}))

	current, err := links.ListByParent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, current, 2)
	assert.Equal(t, int64(10), current[0].ItemID)

	require.NoError(t, links.CloseByParent(ctx, 1, time.Now()))

	current, err = links.ListByParent(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, current)

	other, err := links.ListByParent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestDiagnoses_ListAsOf(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	store.AddDiagnosis(entities.Diagnosis{Code: "A00", Name: "Cholera", ValidityFrom: jan})
	store.AddDiagnosis(entities.Diagnosis{Code: "B01", Name: "Varicella", ValidityFrom: jan, ValidityTo: &jun})

	current, err := store.Store().Diagnoses().List(ctx, entities.DiagnosisFilter{})
	require.NoError(t, err)
	require.Len(t, current, 1)

	march := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	past, err := store.Store().Diagnoses().List(ctx, entities.DiagnosisFilter{AsOf: &march})
	require.NoError(t, err)
	require.Len(t, past, 2)
	assert.Equal(t, "A00", past[0].Code)

	_, err = store.Store().Diagnoses().GetByCode(ctx, "B01")
	assert.True(t, apperrors.IsNotFound(err))
}
