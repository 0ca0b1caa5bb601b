package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePatientCategory(t *testing.T) {
	t.Run("combines flags", func(t *testing.T) {
		in := EntryInput{PatientCategories: []string{"ADULT", "FEMALE"}}

		got, err := in.ResolvePatientCategory()

		require.NoError(t, err)
		assert.Equal(t, PatientCategoryAdult|PatientCategoryFemale, got)
		assert.Equal(t, PatientCategory(9), got)
	})

	t.Run("flags win over the direct mask", func(t *testing.T) {
		mask := int16(15)
		in := EntryInput{PatientCategory: &mask, PatientCategories: []string{"minor"}}

		got, err := in.ResolvePatientCategory()

		require.NoError(t, err)
		assert.Equal(t, PatientCategoryMinor, got)
	})

	t.Run("direct mask", func(t *testing.T) {
		mask := int16(6)
		in := EntryInput{PatientCategory: &mask}

		got, err := in.ResolvePatientCategory()

		require.NoError(t, err)
		assert.True(t, got.Has(PatientCategoryMinor|PatientCategoryMale))
		assert.False(t, got.Has(PatientCategoryAdult))
	})

	t.Run("neither given", func(t *testing.T) {
		in := EntryInput{}

		_, err := in.ResolvePatientCategory()

		assert.ErrorIs(t, err, ErrPatientCategoryMissing)
	})
}

func TestItem_ResetThenAssignDropsOmittedFields(t *testing.T) {
	pkg := "box of 10"
	freq := 3
	current := &Item{
		Entry: Entry{
			ID: 7, UUID: "c8c4c2a8-3a5f-4c59-8d0b-0d0f3b7ac1de", Version: 2,
			Code: "ITM01", Name: "Paracetamol", Type: ItemTypeDrug,
			Price: decimal.NewFromInt(10), Frequency: &freq,
			MaximumAmount: decimal.NewNullDecimal(decimal.NewFromInt(100)),
		},
		Package:  &pkg,
		Quantity: decimal.NewNullDecimal(decimal.NewFromInt(10)),
	}
	incoming := &Item{Entry: Entry{Code: "ITM01", Name: "Paracetamol 500", Type: ItemTypeDrug, CareType: CareTypeBoth}}

	current.ResetBusinessFields()
	current.AssignFrom(incoming)

	assert.Equal(t, int64(7), current.ID)
	assert.Equal(t, 2, current.Version)
	assert.Equal(t, "Paracetamol 500", current.Name)
	assert.Nil(t, current.Package)
	assert.Nil(t, current.Frequency)
	assert.False(t, current.Quantity.Valid)
	assert.False(t, current.MaximumAmount.Valid)
}

func TestService_CloneIsDeep(t *testing.T) {
	category := ServiceCategorySurgery
	now := time.Now()
	svc := &Service{
		Entry:    Entry{Code: "SRV01", ValidityTo: &now},
		Category: &category,
		Items:    []*ServiceItem{{ServiceLink: ServiceLink{ID: 1}, ItemID: 5}},
	}

	c := svc.Clone()
	*c.Category = ServiceCategoryOther
	c.Items[0].ItemID = 6
	later := now.Add(time.Hour)
	*c.ValidityTo = later

	assert.Equal(t, ServiceCategorySurgery, *svc.Category)
	assert.Equal(t, int64(5), svc.Items[0].ItemID)
	assert.Equal(t, now, *svc.ValidityTo)
}

func TestDeleteResult_MarshalJSON(t *testing.T) {
	t.Run("single failure is flattened", func(t *testing.T) {
		res := DeleteResult{Errors: []MutationError{{
			Title: "uuid-1",
			List:  []ErrorDetail{{Message: "Item uuid-1 does not exist"}},
		}}}

		raw, err := json.Marshal(res)

		require.NoError(t, err)
		assert.JSONEq(t, `[{"message":"Item uuid-1 does not exist"}]`, string(raw))
	})

	t.Run("several failures keep the per-uuid form", func(t *testing.T) {
		res := DeleteResult{Errors: []MutationError{
			{Title: "uuid-1", List: []ErrorDetail{{Message: "a"}}},
			{Title: "uuid-2", List: []ErrorDetail{{Message: "b", Detail: "uuid-2"}}},
		}}

		raw, err := json.Marshal(res)

		require.NoError(t, err)
		assert.JSONEq(t, `[{"title":"uuid-1","list":[{"message":"a"}]},{"title":"uuid-2","list":[{"message":"b","detail":"uuid-2"}]}]`, string(raw))
	})

	t.Run("no failure", func(t *testing.T) {
		raw, err := json.Marshal(DeleteResult{})

		require.NoError(t, err)
		assert.Equal(t, "[]", string(raw))
	})
}

func TestCaller_HasPerms(t *testing.T) {
	caller := NewCaller("admin", 1, "122101", "122102")

	assert.True(t, caller.IsAuthenticated())
	assert.True(t, caller.HasPerms(nil))
	assert.True(t, caller.HasPerms([]string{"122101"}))
	assert.False(t, caller.HasPerms([]string{"122101", "122104"}))
	assert.False(t, Anonymous().IsAuthenticated())
	assert.True(t, Anonymous().HasPerms(DefaultPermissionTable().Required(OpQueryDiagnoses)))
}

func TestCatalogFilter_OrderTerms(t *testing.T) {
	f := CatalogFilter{OrderBy: []string{"-price", "bogus", "name"}}

	assert.Equal(t, []OrderTerm{{Field: "price", Desc: true}, {Field: "name"}}, f.OrderTerms())
	assert.Equal(t, []OrderTerm{{Field: "code"}}, (&CatalogFilter{}).OrderTerms())
}
