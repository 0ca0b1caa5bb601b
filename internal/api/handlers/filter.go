package handlers

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// parseCatalogFilter reads a listing filter from query parameters
func parseCatalogFilter(q url.Values) (entities.CatalogFilter, error) {
	filter := entities.CatalogFilter{
		UUID:             q.Get("uuid"),
		Code:             q.Get("code"),
		CodeContains:     q.Get("code_contains"),
		CodeStartsWith:   q.Get("code_starts_with"),
		NameContains:     q.Get("name_contains"),
		Search:           q.Get("search"),
		Type:             q.Get("type"),
		CareType:         q.Get("care_type"),
		Package:          q.Get("package"),
		Category:         q.Get("category"),
		PackageTypes:     splitList(q.Get("package_type")),
		PricelistUUID:    q.Get("pricelist_uuid"),
		ClientMutationID: q.Get("client_mutation_id"),
		OrderBy:          splitList(q.Get("order_by")),
		Limit:            defaultPageSize,
	}

	var err error
	if filter.ShowHistory, err = parseBool(q, "show_history"); err != nil {
		return filter, err
	}
	if filter.WithChildren, err = parseBool(q, "children"); err != nil {
		return filter, err
	}
	if filter.AsOf, err = parseDate(q.Get("date")); err != nil {
		return filter, err
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			return filter, apperrors.NewValidationError("limit must be between 1 and " + strconv.Itoa(maxPageSize))
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, apperrors.NewValidationError("offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter, nil
}

func parseBool(q url.Values, key string) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, apperrors.NewValidationError(key + " must be a boolean")
	}
	return b, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp
func parseDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperrors.NewValidationError("date must be YYYY-MM-DD or RFC 3339")
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
