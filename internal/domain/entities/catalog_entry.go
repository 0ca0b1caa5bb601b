package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind distinguishes the two versioned catalog entities
type EntryKind string

const (
	KindItem    EntryKind = "item"
	KindService EntryKind = "service"
)

// Care types shared by items and services
const (
	CareTypeInPatient  = "I"
	CareTypeOutPatient = "O"
	CareTypeBoth       = "B"
)

// Entry holds the fields items and services share. A row is currently valid
// while ValidityTo is nil; all rows sharing a UUID form one lineage.
type Entry struct {
	ID              int64               `json:"id"`
	UUID            string              `json:"uuid"`
	LegacyID        *int64              `json:"legacy_id,omitempty"`
	Version         int                 `json:"version"`
	Code            string              `json:"code"`
	Name            string              `json:"name"`
	Type            string              `json:"type"`
	CareType        string              `json:"care_type"`
	Price           decimal.Decimal     `json:"price"`
	PatientCategory PatientCategory     `json:"patient_category"`
	Frequency       *int                `json:"frequency,omitempty"`
	MaximumAmount   decimal.NullDecimal `json:"maximum_amount"`
	ValidityFrom    time.Time           `json:"validity_from"`
	ValidityTo      *time.Time          `json:"validity_to,omitempty"`
	AuditUserID     int                 `json:"audit_user_id"`
}

// CatalogEntry is implemented by Item and Service.
type CatalogEntry interface {
	Base() *Entry
	Kind() EntryKind
	// ResetBusinessFields clears every business field so that a following
	// assignment is a whole-record replace rather than a partial patch.
	ResetBusinessFields()
}

// IsCurrent reports whether the row is the currently valid one of its lineage
func (e *Entry) IsCurrent() bool {
	return e.ValidityTo == nil
}

// ValidAt reports whether the row's validity window contains t.
func (e *Entry) ValidAt(t time.Time) bool {
	if t.Before(e.ValidityFrom) {
		return false
	}
	return e.ValidityTo == nil || t.Before(*e.ValidityTo)
}

func (e *Entry) resetBusinessFields() {
	e.Code = ""
	e.Name = ""
	e.Type = ""
	e.CareType = ""
	e.Price = decimal.Zero
	e.PatientCategory = 0
	e.Frequency = nil
	e.MaximumAmount = decimal.NullDecimal{}
}

func (e *Entry) assignBusinessFields(src *Entry) {
	e.Code = src.Code
	e.Name = src.Name
	e.Type = src.Type
	e.CareType = src.CareType
	e.Price = src.Price
	e.PatientCategory = src.PatientCategory
	e.Frequency = cloneInt(src.Frequency)
	e.MaximumAmount = src.MaximumAmount
}

func (e Entry) clone() Entry {
	c := e
	c.LegacyID = cloneInt64(e.LegacyID)
	c.Frequency = cloneInt(e.Frequency)
	c.ValidityTo = cloneTime(e.ValidityTo)
	return c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
