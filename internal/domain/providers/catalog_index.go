package providers

import (
	"context"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
)

// CatalogDocument is the searchable projection of a current catalog entry
type CatalogDocument struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"`
	UUID     string  `json:"uuid"`
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	CareType string  `json:"care_type"`
	Price    float64 `json:"price"`
	Version  int     `json:"version"`

	PatientGroups []string `json:"patient_groups,omitempty"`
	// IsPackage is set for services composed of other entries
	IsPackage bool `json:"is_package"`
}

// CatalogSearchParams narrows a catalog search
type CatalogSearchParams struct {
	Query string
	Kind  entities.EntryKind
	Limit int
}

// CatalogIndex defines the full-text index over current catalog entries
type CatalogIndex interface {
	// EnsureCollection creates the collection when missing
	EnsureCollection(ctx context.Context) error

	// Upsert indexes or replaces a document
	Upsert(ctx context.Context, doc *CatalogDocument) error

	// Remove drops a document, ignoring absent ones
	Remove(ctx context.Context, kind entities.EntryKind, uuid string) error

	// Search runs a full-text query over code and name
	Search(ctx context.Context, params CatalogSearchParams) ([]*CatalogDocument, error)
}

// CatalogDocumentID returns the index id of a catalog entry
func CatalogDocumentID(kind entities.EntryKind, uuid string) string {
	return string(kind) + "-" + uuid
}

// NewCatalogDocument projects a catalog entry into its search document
func NewCatalogDocument(entry entities.CatalogEntry) *CatalogDocument {
	base := entry.Base()
	price, _ := base.Price.Float64()
	doc := &CatalogDocument{
		ID:       CatalogDocumentID(entry.Kind(), base.UUID),
		Kind:     string(entry.Kind()),
		UUID:     base.UUID,
		Code:     base.Code,
		Name:     base.Name,
		Type:     base.Type,
		CareType: base.CareType,
		Price:    price,
		Version:  base.Version,

		PatientGroups: base.PatientCategory.Names(),
	}
	if service, ok := entry.(*entities.Service); ok {
		doc.IsPackage = service.IsPackage()
	}
	return doc
}
