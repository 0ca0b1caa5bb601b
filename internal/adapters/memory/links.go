package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

type linkRepo[L entities.ChildLink] struct {
	v     *view
	label string
	rows  func(*state) map[int64]L
	clone func(L) L
}

func (r *linkRepo[L]) notFound(id int64) error {
	return apperrors.NewNotFoundError(fmt.Sprintf("%s link %d does not exist", r.label, id))
}

func (r *linkRepo[L]) ListByParent(ctx context.Context, parentID int64) ([]L, error) {
	grouped, err := r.ListByParents(ctx, []int64{parentID})
	if err != nil {
		return nil, err
	}
	if links, ok := grouped[parentID]; ok {
		return links, nil
	}
	return []L{}, nil
}

func (r *linkRepo[L]) ListByParents(_ context.Context, parentIDs []int64) (map[int64][]L, error) {
	wanted := make(map[int64]bool, len(parentIDs))
	for _, id := range parentIDs {
		wanted[id] = true
	}

	grouped := make(map[int64][]L, len(parentIDs))
	err := r.v.read(func(s *state) error {
		for _, link := range r.rows(s) {
			l := link.Link()
			if wanted[l.ParentID] && l.IsCurrent() {
				grouped[l.ParentID] = append(grouped[l.ParentID], r.clone(link))
			}
		}
		return nil
	})
	for _, links := range grouped {
		sort.Slice(links, func(i, j int) bool { return links[i].Link().ID < links[j].Link().ID })
	}
	return grouped, err
}

func (r *linkRepo[L]) GetByID(_ context.Context, id int64) (L, error) {
	var out L
	err := r.v.read(func(s *state) error {
		link, ok := r.rows(s)[id]
		if !ok {
			return r.notFound(id)
		}
		out = r.clone(link)
		return nil
	})
	return out, err
}

func (r *linkRepo[L]) Create(_ context.Context, link L) error {
	return r.v.write(func(s *state) error {
		l := link.Link()
		now := time.Now().UTC()
		if l.ValidityFrom.IsZero() {
			l.ValidityFrom = now
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		l.ID = s.id()
		r.rows(s)[l.ID] = r.clone(link)
		return nil
	})
}

func (r *linkRepo[L]) Update(_ context.Context, link L) error {
	return r.v.write(func(s *state) error {
		rows := r.rows(s)
		id := link.Link().ID
		if _, ok := rows[id]; !ok {
			return r.notFound(id)
		}
		rows[id] = r.clone(link)
		return nil
	})
}

func (r *linkRepo[L]) Delete(_ context.Context, id int64) error {
	return r.v.write(func(s *state) error {
		delete(r.rows(s), id)
		return nil
	})
}

func (r *linkRepo[L]) CloseByParent(_ context.Context, parentID int64, at time.Time) error {
	return r.v.write(func(s *state) error {
		for _, link := range r.rows(s) {
			l := link.Link()
			if l.ParentID == parentID && l.IsCurrent() {
				closed := at
				l.ValidityTo = &closed
			}
		}
		return nil
	})
}

type serviceItemRepo struct {
	linkRepo[*entities.ServiceItem]
}

type serviceServiceRepo struct {
	linkRepo[*entities.ServiceService]
}
