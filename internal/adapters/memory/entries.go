package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

// entryRepo implements the lineage-aware repository over one row map
type entryRepo[T entities.CatalogEntry] struct {
	v      *view
	label  string
	rows   func(*state) map[int64]T
	clone  func(T) T
	kind   entities.EntryKind
	filter func(T, entities.CatalogFilter) bool
}

func (r *entryRepo[T]) notFound(what string) error {
	return apperrors.NewNotFoundError(fmt.Sprintf("%s %s does not exist", r.label, what))
}

func (r *entryRepo[T]) FindCurrent(_ context.Context, id string) (T, error) {
	var out T
	err := r.v.read(func(s *state) error {
		for _, row := range r.rows(s) {
			if b := row.Base(); b.UUID == id && b.IsCurrent() {
				out = r.clone(row)
				return nil
			}
		}
		return r.notFound(id)
	})
	return out, err
}

func (r *entryRepo[T]) FindByCode(_ context.Context, code string, currentOnly bool) (T, error) {
	var out T
	err := r.v.read(func(s *state) error {
		var best T
		found := false
		for _, row := range r.rows(s) {
			b := row.Base()
			if b.Code != code || (currentOnly && !b.IsCurrent()) {
				continue
			}
			if !found || newer(b, best.Base()) {
				best, found = row, true
			}
		}
		if !found {
			return r.notFound(code)
		}
		out = r.clone(best)
		return nil
	})
	return out, err
}

func newer(a, b *entities.Entry) bool {
	if !a.ValidityFrom.Equal(b.ValidityFrom) {
		return a.ValidityFrom.After(b.ValidityFrom)
	}
	return a.ID > b.ID
}

func (r *entryRepo[T]) FindByID(_ context.Context, id int64) (T, error) {
	var out T
	err := r.v.read(func(s *state) error {
		row, ok := r.rows(s)[id]
		if !ok {
			return r.notFound(fmt.Sprintf("#%d", id))
		}
		out = r.clone(row)
		return nil
	})
	return out, err
}

func (r *entryRepo[T]) GetByIDs(_ context.Context, ids []int64) ([]T, error) {
	out := []T{}
	err := r.v.read(func(s *state) error {
		rows := r.rows(s)
		for _, id := range ids {
			if row, ok := rows[id]; ok {
				out = append(out, r.clone(row))
			}
		}
		return nil
	})
	return out, err
}

func (r *entryRepo[T]) Create(_ context.Context, entry T) error {
	return r.v.write(func(s *state) error {
		b := entry.Base()
		if b.UUID == "" {
			b.UUID = uuid.NewString()
		}
		if b.Version == 0 {
			b.Version = 1
		}
		if b.ValidityFrom.IsZero() {
			b.ValidityFrom = time.Now().UTC()
		}
		if err := r.checkUnique(s, b); err != nil {
			return err
		}
		b.ID = s.id()
		r.rows(s)[b.ID] = r.clone(entry)
		return nil
	})
}

func (r *entryRepo[T]) Persist(_ context.Context, entry T) error {
	return r.v.write(func(s *state) error {
		b := entry.Base()
		rows := r.rows(s)
		if _, ok := rows[b.ID]; !ok {
			return r.notFound(b.UUID)
		}
		if err := r.checkUnique(s, b); err != nil {
			return err
		}
		rows[b.ID] = r.clone(entry)
		return nil
	})
}

// checkUnique mirrors the partial unique indexes on current rows
func (r *entryRepo[T]) checkUnique(s *state, b *entities.Entry) error {
	if !b.IsCurrent() {
		return nil
	}
	for id, row := range r.rows(s) {
		other := row.Base()
		if id == b.ID || !other.IsCurrent() {
			continue
		}
		if other.Code == b.Code {
			return apperrors.NewCodeAlreadyExistsError(fmt.Sprintf("%s code %s already exists", r.label, b.Code))
		}
		if other.UUID == b.UUID {
			return apperrors.NewCodeAlreadyExistsError(fmt.Sprintf("%s %s already has a current row", r.label, b.UUID))
		}
	}
	return nil
}

func (r *entryRepo[T]) List(_ context.Context, filter entities.CatalogFilter) ([]T, int, error) {
	var matched []T
	err := r.v.read(func(s *state) error {
		for _, row := range r.rows(s) {
			if r.matches(s, row, filter) {
				matched = append(matched, r.clone(row))
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	terms := filter.OrderTerms()
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i].Base(), matched[j].Base()
		for _, term := range terms {
			c := compareField(a, b, term.Field)
			if c == 0 {
				continue
			}
			if term.Desc {
				return c > 0
			}
			return c < 0
		}
		return a.ID < b.ID
	})

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	page := append([]T{}, matched[start:end]...)
	return page, total, nil
}

func (r *entryRepo[T]) matches(s *state, row T, f entities.CatalogFilter) bool {
	b := row.Base()

	if f.UUID != "" && b.UUID != f.UUID {
		return false
	}
	if f.Code != "" && b.Code != f.Code {
		return false
	}
	if f.CodeContains != "" && !containsFold(b.Code, f.CodeContains) {
		return false
	}
	if f.CodeStartsWith != "" && !strings.HasPrefix(strings.ToLower(b.Code), strings.ToLower(f.CodeStartsWith)) {
		return false
	}
	if f.NameContains != "" && !containsFold(b.Name, f.NameContains) {
		return false
	}
	if f.Search != "" && !containsFold(b.Code, f.Search) && !containsFold(b.Name, f.Search) {
		return false
	}
	if f.Type != "" && b.Type != f.Type {
		return false
	}
	if f.CareType != "" && b.CareType != f.CareType {
		return false
	}

	if !f.ShowHistory {
		if f.AsOf != nil {
			if !b.ValidAt(*f.AsOf) {
				return false
			}
		} else if !b.IsCurrent() {
			return false
		}
	}

	if f.PricelistUUID != "" && !onPricelist(s, r.kind, b.ID, f.PricelistUUID) {
		return false
	}
	if f.ClientMutationID != "" && !touchedBy(s, r.kind, b.ID, f.ClientMutationID) {
		return false
	}

	return r.filter == nil || r.filter(row, f)
}

func onPricelist(s *state, kind entities.EntryKind, id int64, pricelistUUID string) bool {
	for _, d := range s.details {
		if d.Kind == kind && d.EntryID == id && d.PricelistUUID == pricelistUUID && d.ValidityTo == nil {
			return true
		}
	}
	return false
}

func touchedBy(s *state, kind entities.EntryKind, id int64, clientMutationID string) bool {
	for _, m := range s.mutations {
		if m.Kind == kind && m.EntryID == id && m.ClientMutationID == clientMutationID {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func compareField(a, b *entities.Entry, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "type":
		return strings.Compare(a.Type, b.Type)
	case "price":
		return a.Price.Cmp(b.Price)
	case "validity_from":
		return a.ValidityFrom.Compare(b.ValidityFrom)
	default:
		return strings.Compare(a.Code, b.Code)
	}
}

func itemMatches(item *entities.Item, f entities.CatalogFilter) bool {
	if f.Package == "" {
		return true
	}
	return item.Package != nil && containsFold(*item.Package, f.Package)
}

func serviceMatches(service *entities.Service, f entities.CatalogFilter) bool {
	if f.Category != "" && (service.Category == nil || *service.Category != f.Category) {
		return false
	}
	if len(f.PackageTypes) > 0 {
		for _, pt := range f.PackageTypes {
			if service.PackageType == pt {
				return true
			}
		}
		return false
	}
	return true
}

type itemRepo struct {
	entryRepo[*entities.Item]
}

type serviceRepo struct {
	entryRepo[*entities.Service]
}
