package entities

import (
	"strings"
	"time"
)

// CatalogFilter narrows an item or service listing. Fields that do not apply
// to a kind (Package for services, Category for items) are ignored.
type CatalogFilter struct {
	UUID             string
	Code             string
	CodeContains     string
	CodeStartsWith   string
	NameContains     string
	Search           string
	Type             string
	CareType         string
	Package          string
	Category         string
	PackageTypes     []string
	AsOf             *time.Time
	PricelistUUID    string
	ClientMutationID string
	ShowHistory      bool
	WithChildren     bool
	OrderBy          []string
	Limit            int
	Offset           int
}

// Sortable catalog columns
var catalogOrderFields = map[string]bool{
	"code":          true,
	"name":          true,
	"type":          true,
	"price":         true,
	"validity_from": true,
}

// OrderTerm is a parsed OrderBy entry
type OrderTerm struct {
	Field string
	Desc  bool
}

// OrderTerms parses OrderBy, dropping unknown fields. A leading "-" sorts
// descending. Code ascending is the default order.
func (f *CatalogFilter) OrderTerms() []OrderTerm {
	var terms []OrderTerm
	for _, raw := range f.OrderBy {
		raw = strings.TrimSpace(raw)
		desc := strings.HasPrefix(raw, "-")
		field := strings.TrimPrefix(raw, "-")
		if !catalogOrderFields[field] {
			continue
		}
		terms = append(terms, OrderTerm{Field: field, Desc: desc})
	}
	if len(terms) == 0 {
		terms = []OrderTerm{{Field: "code"}}
	}
	return terms
}

// CatalogPage is one page of a listing
type CatalogPage[T any] struct {
	Entries    []T `json:"entries"`
	TotalCount int `json:"total_count"`
}
