package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/providers"
	tsclient "github.com/openimis/openimis-be-medical/internal/infrastructure/clients/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

// TypesenseCatalogIndex implements CatalogIndex on a Typesense collection
type TypesenseCatalogIndex struct {
	client *tsclient.Client
}

var _ providers.CatalogIndex = (*TypesenseCatalogIndex)(nil)

// NewTypesenseCatalogIndex creates a new catalog index
func NewTypesenseCatalogIndex(client *tsclient.Client) *TypesenseCatalogIndex {
	return &TypesenseCatalogIndex{client: client}
}

// EnsureCollection creates the collection when missing
func (a *TypesenseCatalogIndex) EnsureCollection(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

// Upsert indexes or replaces a document
func (a *TypesenseCatalogIndex) Upsert(ctx context.Context, doc *providers.CatalogDocument) error {
	_, err := a.client.Client().Collection(tsclient.CatalogCollection).Documents().Upsert(ctx, documentFields(doc))
	if err != nil {
		return fmt.Errorf("failed to index %s %s: %w", doc.Kind, doc.Code, err)
	}
	return nil
}

// Remove drops a document
func (a *TypesenseCatalogIndex) Remove(ctx context.Context, kind entities.EntryKind, uuid string) error {
	_, err := a.client.Client().Collection(tsclient.CatalogCollection).Document(providers.CatalogDocumentID(kind, uuid)).Delete(ctx)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to remove %s %s from index: %w", kind, uuid, err)
	}
	return nil
}

// Search runs a full-text query over code and name
func (a *TypesenseCatalogIndex) Search(ctx context.Context, params providers.CatalogSearchParams) ([]*providers.CatalogDocument, error) {
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := strings.TrimSpace(params.Query)
	if q == "" {
		q = "*"
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(q),
		QueryBy: pointer.String("code,name"),
		PerPage: pointer.Int(limit),
	}
	if params.Kind != "" {
		searchParams.FilterBy = pointer.String("kind:=" + string(params.Kind))
	}

	result, err := a.client.Client().Collection(tsclient.CatalogCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search catalog: %w", err)
	}

	docs := []*providers.CatalogDocument{}
	if result.Hits == nil {
		return docs, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		docs = append(docs, documentFromFields(*hit.Document))
	}
	return docs, nil
}

func documentFields(doc *providers.CatalogDocument) map[string]interface{} {
	return map[string]interface{}{
		"id":        doc.ID,
		"kind":      doc.Kind,
		"uuid":      doc.UUID,
		"code":      doc.Code,
		"name":      doc.Name,
		"type":      doc.Type,
		"care_type": doc.CareType,
		"price":     doc.Price,
		"version":   doc.Version,

		"patient_groups": doc.PatientGroups,
		"is_package":     doc.IsPackage,
	}
}

// documentFromFields tolerates missing keys. Typesense returns numbers as float64
func documentFromFields(fields map[string]interface{}) *providers.CatalogDocument {
	doc := &providers.CatalogDocument{
		ID:       stringField(fields, "id"),
		Kind:     stringField(fields, "kind"),
		UUID:     stringField(fields, "uuid"),
		Code:     stringField(fields, "code"),
		Name:     stringField(fields, "name"),
		Type:     stringField(fields, "type"),
		CareType: stringField(fields, "care_type"),
	}
	if v, ok := fields["price"].(float64); ok {
		doc.Price = v
	}
	if v, ok := fields["version"].(float64); ok {
		doc.Version = int(v)
	}
	doc.IsPackage, _ = fields["is_package"].(bool)
	switch groups := fields["patient_groups"].(type) {
	case []string:
		doc.PatientGroups = groups
	case []interface{}:
		for _, g := range groups {
			if name, ok := g.(string); ok {
				doc.PatientGroups = append(doc.PatientGroups, name)
			}
		}
	}
	return doc
}

func stringField(fields map[string]interface{}, key string) string {
	v, _ := fields[key].(string)
	return v
}

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "404") || strings.Contains(strings.ToLower(err.Error()), "not found")
}
