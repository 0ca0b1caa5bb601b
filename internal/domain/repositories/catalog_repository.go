package repositories

import (
	"context"
	"time"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
)

// EntryRepository defines the lineage-aware operations shared by items and
// services.
type EntryRepository[T entities.CatalogEntry] interface {
	// FindCurrent returns the currently valid row carrying uuid
	FindCurrent(ctx context.Context, uuid string) (T, error)

	// FindByCode returns the currently valid row with code, or the most
	// recent row of any validity when currentOnly is false
	FindByCode(ctx context.Context, code string, currentOnly bool) (T, error)

	// FindByID retrieves a row by internal id, whatever its validity
	FindByID(ctx context.Context, id int64) (T, error)

	// GetByIDs retrieves rows by internal ids
	GetByIDs(ctx context.Context, ids []int64) ([]T, error)

	// Create inserts a row, assigning a uuid when absent and the internal id
	Create(ctx context.Context, entry T) error

	// Persist writes the current state of an existing row
	Persist(ctx context.Context, entry T) error

	// List retrieves rows matching the filter and the total match count
	List(ctx context.Context, filter entities.CatalogFilter) ([]T, int, error)
}

// ItemRepository stores items
type ItemRepository interface {
	EntryRepository[*entities.Item]
}

// ServiceRepository stores services
type ServiceRepository interface {
	EntryRepository[*entities.Service]
}

// LinkRepository stores the join rows a service owns
type LinkRepository[L entities.ChildLink] interface {
	// ListByParent returns the currently valid links of a service
	ListByParent(ctx context.Context, parentID int64) ([]L, error)

	// ListByParents returns the currently valid links of several services, keyed by parent
	ListByParents(ctx context.Context, parentIDs []int64) (map[int64][]L, error)

	// GetByID retrieves a link by id, whatever its validity
	GetByID(ctx context.Context, id int64) (L, error)

	// Create inserts a link and assigns its id
	Create(ctx context.Context, link L) error

	// Update writes every field of an existing link
	Update(ctx context.Context, link L) error

	// Delete removes a link row
	Delete(ctx context.Context, id int64) error

	// CloseByParent ends the validity of every current link of a service
	CloseByParent(ctx context.Context, parentID int64, at time.Time) error
}

// ServiceItemRepository stores service to item links
type ServiceItemRepository interface {
	LinkRepository[*entities.ServiceItem]
}

// ServiceServiceRepository stores service to service links
type ServiceServiceRepository interface {
	LinkRepository[*entities.ServiceService]
}

// PricelistRepository closes the pricelist rows attached to catalog entries
type PricelistRepository interface {
	CloseItemDetails(ctx context.Context, itemID int64, at time.Time) error
	CloseServiceDetails(ctx context.Context, serviceID int64, at time.Time) error
}

// MutationLogRepository links client mutation ids to the rows they touched
type MutationLogRepository interface {
	Record(ctx context.Context, kind entities.EntryKind, entryID int64, clientMutationID string) error
}

// DiagnosisRepository reads ICD codes
type DiagnosisRepository interface {
	List(ctx context.Context, filter entities.DiagnosisFilter) ([]*entities.Diagnosis, error)
	GetByCode(ctx context.Context, code string) (*entities.Diagnosis, error)
}

// CatalogStore groups the repositories one unit of work operates on
type CatalogStore interface {
	Items() ItemRepository
	Services() ServiceRepository
	ServiceItems() ServiceItemRepository
	ServiceServices() ServiceServiceRepository
	Pricelists() PricelistRepository
	MutationLog() MutationLogRepository
	Diagnoses() DiagnosisRepository
}

// UnitOfWork runs fn against a transactional store. The transaction commits
// when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, store CatalogStore) error) error

	// Store returns a non-transactional store for reads
	Store() CatalogStore
}
