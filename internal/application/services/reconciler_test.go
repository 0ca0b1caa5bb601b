package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openimis/openimis-be-medical/internal/adapters/memory"
	"github.com/openimis/openimis-be-medical/internal/application/services"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

type reconcileFixture struct {
	store  *memory.Store
	parent *entities.Service
	a, b   *entities.Item
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	tx := store.Store()

	a := &entities.Item{Entry: entities.Entry{Code: "A", Name: "A"}}
	b := &entities.Item{Entry: entities.Entry{Code: "B", Name: "B"}}
	parent := &entities.Service{Entry: entities.Entry{Code: "PKG", Name: "Package"}, PackageType: entities.PackageTypePackage}
	require.NoError(t, tx.Items().Create(ctx, a))
	require.NoError(t, tx.Items().Create(ctx, b))
	require.NoError(t, tx.Services().Create(ctx, parent))

	return &reconcileFixture{store: store, parent: parent, a: a, b: b}
}

func (f *reconcileFixture) reconcile(items, subServices []entities.ChildLinkInput) error {
	r := services.NewReconciler(steppingClock())
	return f.store.WithinTx(context.Background(), func(ctx context.Context, tx repositories.CatalogStore) error {
		return r.Reconcile(ctx, tx, f.parent, items, subServices, 1)
	})
}

func (f *reconcileFixture) itemLinks(t *testing.T) []*entities.ServiceItem {
	t.Helper()
	links, err := f.store.Store().ServiceItems().ListByParent(context.Background(), f.parent.ID)
	require.NoError(t, err)
	return links
}

func TestReconcile_RoundTripDropsOmittedRows(t *testing.T) {
	f := newReconcileFixture(t)

	require.NoError(t, f.reconcile([]entities.ChildLinkInput{
		{ChildID: f.a.ID, QtyProvided: qty(2), Status: entities.LinkStatusActive},
		{ChildID: f.b.ID, QtyProvided: qty(1), Status: entities.LinkStatusActive},
	}, nil))
	require.Len(t, f.itemLinks(t), 2)

	require.NoError(t, f.reconcile([]entities.ChildLinkInput{
		{ChildID: f.a.ID, QtyProvided: qty(3), Status: entities.LinkStatusActive},
	}, nil))

	links := f.itemLinks(t)
	require.Len(t, links, 1)
	assert.Equal(t, f.a.ID, links[0].ItemID)
	assert.True(t, links[0].QtyProvided.Decimal.Equal(qty(3).Decimal))
}

func TestReconcile_UpdateRowKeepsLink(t *testing.T) {
	f := newReconcileFixture(t)
	require.NoError(t, f.reconcile([]entities.ChildLinkInput{{ChildID: f.a.ID, QtyProvided: qty(2)}}, nil))
	existing := f.itemLinks(t)[0]

	require.NoError(t, f.reconcile([]entities.ChildLinkInput{
		{ID: &existing.ID, ChildID: f.b.ID, QtyProvided: qty(5), Status: entities.LinkStatusInactive},
	}, nil))

	links := f.itemLinks(t)
	require.Len(t, links, 1)
	assert.Equal(t, existing.ID, links[0].ID)
	assert.Equal(t, f.b.ID, links[0].ItemID)
	assert.Equal(t, entities.LinkStatusInactive, links[0].Status)
}

func TestReconcile_NilListLeavesRelationAlone(t *testing.T) {
	f := newReconcileFixture(t)
	require.NoError(t, f.reconcile([]entities.ChildLinkInput{{ChildID: f.a.ID}}, nil))

	require.NoError(t, f.reconcile(nil, []entities.ChildLinkInput{}))
	assert.Len(t, f.itemLinks(t), 1)

	require.NoError(t, f.reconcile([]entities.ChildLinkInput{}, nil))
	assert.Empty(t, f.itemLinks(t))
}

func TestReconcile_Errors(t *testing.T) {
	f := newReconcileFixture(t)

	err := f.reconcile([]entities.ChildLinkInput{{ChildID: 9999}}, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeReferenceNotFound))

	err = f.reconcile(nil, []entities.ChildLinkInput{{ChildID: f.parent.ID}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	foreign := int64(4242)
	err = f.reconcile([]entities.ChildLinkInput{{ID: &foreign, ChildID: f.a.ID}}, nil)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestReconcile_FailureRollsBackWholeSave(t *testing.T) {
	f := newReconcileFixture(t)
	require.NoError(t, f.reconcile([]entities.ChildLinkInput{{ChildID: f.a.ID}}, nil))

	err := f.reconcile([]entities.ChildLinkInput{{ChildID: f.b.ID}, {ChildID: 9999}}, nil)
	require.Error(t, err)

	links := f.itemLinks(t)
	require.Len(t, links, 1)
	assert.Equal(t, f.a.ID, links[0].ItemID)
}
