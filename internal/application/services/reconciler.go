package services

import (
	"context"
	"fmt"
	"time"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

// Reconciler makes the persisted child links of a service match the list a
// caller sent.
type Reconciler struct {
	now func() time.Time
}

// NewReconciler creates a reconciler stamping links with now
func NewReconciler(now func() time.Time) *Reconciler {
	if now == nil {
		now = utcNow
	}
	return &Reconciler{now: now}
}

// Reconcile applies the desired item and sub-service lists to parent. A nil
// list leaves that relation untouched; an empty list removes every link.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	store repositories.CatalogStore,
	parent *entities.Service,
	items, services []entities.ChildLinkInput,
	auditUserID int,
) error {
	if items != nil {
		resolveItem := func(ctx context.Context, id int64) error {
			item, err := store.Items().FindByID(ctx, id)
			if err != nil && !apperrors.IsNotFound(err) {
				return err
			}
			if err != nil || !item.IsCurrent() {
				return apperrors.NewReferenceNotFoundError(fmt.Sprintf("item %d does not exist", id))
			}
			return nil
		}
		err := reconcileLinks(ctx, r.now(), parent.ID, items, store.ServiceItems(), resolveItem,
			func() *entities.ServiceItem { return &entities.ServiceItem{} }, auditUserID)
		if err != nil {
			return err
		}
	}

	if services != nil {
		resolveService := func(ctx context.Context, id int64) error {
			if id == parent.ID {
				return apperrors.NewValidationError(fmt.Sprintf("service %s cannot contain itself", parent.Code))
			}
			service, err := store.Services().FindByID(ctx, id)
			if err != nil && !apperrors.IsNotFound(err) {
				return err
			}
			if err != nil || !service.IsCurrent() {
				return apperrors.NewReferenceNotFoundError(fmt.Sprintf("service %d does not exist", id))
			}
			return nil
		}
		err := reconcileLinks(ctx, r.now(), parent.ID, services, store.ServiceServices(), resolveService,
			func() *entities.ServiceService { return &entities.ServiceService{} }, auditUserID)
		if err != nil {
			return err
		}
	}

	return nil
}

func reconcileLinks[L entities.ChildLink](
	ctx context.Context,
	at time.Time,
	parentID int64,
	desired []entities.ChildLinkInput,
	links repositories.LinkRepository[L],
	resolve func(ctx context.Context, childID int64) error,
	newLink func() L,
	auditUserID int,
) error {
	existing, err := links.ListByParent(ctx, parentID)
	if err != nil {
		return err
	}

	kept := make(map[int64]bool, len(desired))
	for _, row := range desired {
		if row.ID != nil {
			link, err := links.GetByID(ctx, *row.ID)
			if err != nil && !apperrors.IsNotFound(err) {
				return err
			}
			if err != nil || link.Link().ParentID != parentID {
				return apperrors.NewNotFoundError(fmt.Sprintf("link %d does not belong to this service", *row.ID))
			}
			if link.ChildID() != row.ChildID {
				if err := resolve(ctx, row.ChildID); err != nil {
					return err
				}
			}

			l := link.Link()
			link.SetChildID(row.ChildID)
			l.QtyProvided = row.QtyProvided
			l.PriceAsked = row.PriceAsked
			l.Status = row.Status
			l.ValidityTo = nil
			l.AuditUserID = auditUserID
			if err := links.Update(ctx, link); err != nil {
				return err
			}
			kept[l.ID] = true
			continue
		}

		if err := resolve(ctx, row.ChildID); err != nil {
			return err
		}
		link := newLink()
		l := link.Link()
		l.ParentID = parentID
		l.QtyProvided = row.QtyProvided
		l.PriceAsked = row.PriceAsked
		l.Status = row.Status
		l.ValidityFrom = at
		l.CreatedAt = at
		l.AuditUserID = auditUserID
		link.SetChildID(row.ChildID)
		if err := links.Create(ctx, link); err != nil {
			return err
		}
	}

	for _, link := range existing {
		if id := link.Link().ID; !kept[id] {
			if err := links.Delete(ctx, id); err != nil {
				return err
			}
		}
	}
	return nil
}
