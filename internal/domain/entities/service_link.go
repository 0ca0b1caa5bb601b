package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Link statuses
const (
	LinkStatusInactive int16 = 0
	LinkStatusActive   int16 = 1
)

// ServiceLink holds the fields shared by ServiceItem and ServiceService join rows.
type ServiceLink struct {
	ID           int64               `json:"id"`
	ParentID     int64               `json:"parent_id"`
	QtyProvided  decimal.NullDecimal `json:"qty_provided"`
	PriceAsked   decimal.NullDecimal `json:"price_asked"`
	Status       int16               `json:"status"`
	ValidityFrom time.Time           `json:"validity_from"`
	ValidityTo   *time.Time          `json:"validity_to,omitempty"`
	AuditUserID  int                 `json:"audit_user_id"`
	CreatedAt    time.Time           `json:"created_at"`
}

// ChildLink is implemented by the join rows a service owns.
type ChildLink interface {
	Link() *ServiceLink
	// ChildID returns the internal id of the referenced item or service.
	ChildID() int64
	SetChildID(id int64)
}

// IsCurrent reports whether the link is still valid
func (l *ServiceLink) IsCurrent() bool {
	return l.ValidityTo == nil
}

// ServiceItem links a parent service to a contained item
type ServiceItem struct {
	ServiceLink
	ItemID int64 `json:"item_id"`

	Item *Item `json:"item,omitempty"`
}

func (l *ServiceItem) Link() *ServiceLink { return &l.ServiceLink }
func (l *ServiceItem) ChildID() int64     { return l.ItemID }
func (l *ServiceItem) SetChildID(id int64) {
	l.ItemID = id
}

// Clone returns a copy without the resolved item
func (l *ServiceItem) Clone() *ServiceItem {
	c := *l
	c.ValidityTo = cloneTime(l.ValidityTo)
	c.Item = nil
	return &c
}

// ServiceService links a parent service to a contained service
type ServiceService struct {
	ServiceLink
	ServiceID int64 `json:"service_id"`

	Service *Service `json:"service,omitempty"`
}

func (l *ServiceService) Link() *ServiceLink { return &l.ServiceLink }
func (l *ServiceService) ChildID() int64     { return l.ServiceID }
func (l *ServiceService) SetChildID(id int64) {
	l.ServiceID = id
}

// Clone returns a copy without the resolved service
func (l *ServiceService) Clone() *ServiceService {
	c := *l
	c.ValidityTo = cloneTime(l.ValidityTo)
	c.Service = nil
	return &c
}
