package entities

import "github.com/shopspring/decimal"

// Item types
const (
	ItemTypeDrug       = "D"
	ItemTypeConsumable = "M"
)

// Item represents a billable product such as a drug or a medical consumable
type Item struct {
	Entry
	Package  *string             `json:"package,omitempty"`
	Quantity decimal.NullDecimal `json:"quantity"`
}

var _ CatalogEntry = (*Item)(nil)

// Base returns the shared entry fields
func (i *Item) Base() *Entry { return &i.Entry }

// Kind returns KindItem
func (i *Item) Kind() EntryKind { return KindItem }

// ResetBusinessFields clears every business field
func (i *Item) ResetBusinessFields() {
	i.Entry.resetBusinessFields()
	i.Package = nil
	i.Quantity = decimal.NullDecimal{}
}

// AssignFrom copies the business fields of src, leaving identity and
// validity untouched.
func (i *Item) AssignFrom(src *Item) {
	i.Entry.assignBusinessFields(&src.Entry)
	i.Package = cloneString(src.Package)
	i.Quantity = src.Quantity
}

// Clone returns a deep copy
func (i *Item) Clone() *Item {
	return &Item{
		Entry:    i.Entry.clone(),
		Package:  cloneString(i.Package),
		Quantity: i.Quantity,
	}
}
