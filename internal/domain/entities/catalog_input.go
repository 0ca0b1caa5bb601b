package entities

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrPatientCategoryMissing is returned when a payload carries neither a
// patient category mask nor a list of category flags.
var ErrPatientCategoryMissing = errors.New("patient category missing")

// EntryInput carries the fields shared by item and service payloads
type EntryInput struct {
	UUID              string              `json:"uuid,omitempty" validate:"omitempty,uuid"`
	ClientMutationID  string              `json:"client_mutation_id,omitempty" validate:"max=255"`
	Code              string              `json:"code" validate:"required,max=6"`
	Name              string              `json:"name" validate:"required,max=100"`
	CareType          string              `json:"care_type" validate:"required,oneof=I O B"`
	Price             *decimal.Decimal    `json:"price"`
	PatientCategory   *int16              `json:"patient_category,omitempty" validate:"omitempty,min=0,max=15"`
	PatientCategories []string            `json:"patient_categories,omitempty" validate:"omitempty,dive,oneof=ADULT MINOR MALE FEMALE"`
	Frequency         *int                `json:"frequency,omitempty" validate:"omitempty,min=0,max=32767"`
	MaximumAmount     decimal.NullDecimal `json:"maximum_amount"`
}

// ResolvePatientCategory returns the OR of PatientCategories when present,
// otherwise the direct mask.
func (in *EntryInput) ResolvePatientCategory() (PatientCategory, error) {
	if len(in.PatientCategories) > 0 {
		flags := make([]PatientCategory, 0, len(in.PatientCategories))
		for _, name := range in.PatientCategories {
			flag, err := ParsePatientCategory(name)
			if err != nil {
				return 0, err
			}
			flags = append(flags, flag)
		}
		return CombinePatientCategories(flags...), nil
	}
	if in.PatientCategory != nil {
		return PatientCategory(*in.PatientCategory), nil
	}
	return 0, ErrPatientCategoryMissing
}

func (in *EntryInput) toEntry(category PatientCategory, itemType string) Entry {
	price := decimal.Zero
	if in.Price != nil {
		price = *in.Price
	}
	return Entry{
		UUID:            in.UUID,
		Code:            in.Code,
		Name:            in.Name,
		Type:            itemType,
		CareType:        in.CareType,
		Price:           price,
		PatientCategory: category,
		Frequency:       cloneInt(in.Frequency),
		MaximumAmount:   in.MaximumAmount,
	}
}

// ItemInput is the create/update payload of an item
type ItemInput struct {
	EntryInput
	Type     string              `json:"type" validate:"required,oneof=D M"`
	Package  *string             `json:"package,omitempty" validate:"omitempty,max=255"`
	Quantity decimal.NullDecimal `json:"quantity"`
}

// ToItem builds the item described by the payload
func (in *ItemInput) ToItem(category PatientCategory) *Item {
	return &Item{
		Entry:    in.toEntry(category, in.Type),
		Package:  cloneString(in.Package),
		Quantity: in.Quantity,
	}
}

// ServiceInput is the create/update payload of a service. A nil Items or
// Services list leaves that relation untouched; an empty one clears it.
type ServiceInput struct {
	EntryInput
	Type        string                `json:"type" validate:"required,len=1"`
	Level       string                `json:"level" validate:"required,oneof=S V D H"`
	Category    *string               `json:"category,omitempty" validate:"omitempty,oneof=S D A H C O V"`
	PackageType string                `json:"package_type,omitempty" validate:"omitempty,oneof=S P F"`
	ManualPrice bool                  `json:"manual_price"`
	Items       []ServiceItemInput    `json:"items" validate:"omitempty,dive"`
	Services    []ServiceServiceInput `json:"services" validate:"omitempty,dive"`
}

// ToService builds the service described by the payload, child links excluded
func (in *ServiceInput) ToService(category PatientCategory) *Service {
	return &Service{
		Entry:       in.toEntry(category, in.Type),
		Level:       in.Level,
		Category:    cloneString(in.Category),
		PackageType: in.PackageType,
		ManualPrice: in.ManualPrice,
	}
}

// ItemLinks returns the item rows in their kind-neutral form, nil when the
// payload did not send the list.
func (in *ServiceInput) ItemLinks() []ChildLinkInput {
	if in.Items == nil {
		return nil
	}
	out := make([]ChildLinkInput, 0, len(in.Items))
	for _, row := range in.Items {
		out = append(out, ChildLinkInput{
			ID:          row.ID,
			ChildID:     row.ItemID,
			Status:      derefStatus(row.Status),
			QtyProvided: row.QtyProvided,
			PriceAsked:  row.PriceAsked,
		})
	}
	return out
}

// ServiceLinks returns the sub-service rows in their kind-neutral form, nil
// when the payload did not send the list.
func (in *ServiceInput) ServiceLinks() []ChildLinkInput {
	if in.Services == nil {
		return nil
	}
	out := make([]ChildLinkInput, 0, len(in.Services))
	for _, row := range in.Services {
		out = append(out, ChildLinkInput{
			ID:          row.ID,
			ChildID:     row.ServiceID,
			Status:      derefStatus(row.Status),
			QtyProvided: row.QtyProvided,
			PriceAsked:  row.PriceAsked,
		})
	}
	return out
}

// ServiceItemInput describes one contained item. Rows carrying an ID update
// the existing link, the others create one.
type ServiceItemInput struct {
	ID          *int64              `json:"id,omitempty"`
	ItemID      int64               `json:"item_id" validate:"required"`
	Status      *int16              `json:"status" validate:"required,min=0,max=1"`
	QtyProvided decimal.NullDecimal `json:"qty_provided"`
	PriceAsked  decimal.NullDecimal `json:"price_asked"`
}

// ServiceServiceInput describes one contained service
type ServiceServiceInput struct {
	ID          *int64              `json:"id,omitempty"`
	ServiceID   int64               `json:"service_id" validate:"required"`
	Status      *int16              `json:"status" validate:"required,min=0,max=1"`
	QtyProvided decimal.NullDecimal `json:"qty_provided"`
	PriceAsked  decimal.NullDecimal `json:"price_asked"`
}

// StatusOf returns a pointer to a link status, for building link payloads
func StatusOf(status int16) *int16 {
	return &status
}

func derefStatus(status *int16) int16 {
	if status == nil {
		return LinkStatusInactive
	}
	return *status
}

// ChildLinkInput is a desired child link independent of the child kind
type ChildLinkInput struct {
	ID          *int64
	ChildID     int64
	Status      int16
	QtyProvided decimal.NullDecimal
	PriceAsked  decimal.NullDecimal
}
