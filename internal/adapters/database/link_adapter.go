package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

type linkTable struct {
	name   string
	id     string
	parent string
	child  string
}

// linkAdapter stores the join rows of one child kind
type linkAdapter[L entities.ChildLink] struct {
	q     execer
	t     linkTable
	label string
	new   func() L
}

func (a *linkAdapter[L]) columns() []interface{} {
	return []interface{}{
		a.t.id, a.t.parent, a.t.child, "qty_provided", "price_asked", "status",
		"ValidityFrom", "ValidityTo", "AuditUserID", "created_date",
	}
}

func (a *linkAdapter[L]) record(link L) goqu.Record {
	l := link.Link()
	return goqu.Record{
		a.t.parent:     l.ParentID,
		a.t.child:      link.ChildID(),
		"qty_provided": l.QtyProvided,
		"price_asked":  l.PriceAsked,
		"status":       l.Status,
		"ValidityFrom": l.ValidityFrom,
		"ValidityTo":   nullTime(l.ValidityTo),
		"AuditUserID":  l.AuditUserID,
		"created_date": l.CreatedAt,
	}
}

func (a *linkAdapter[L]) scan(row rowScanner) (L, error) {
	link := a.new()
	l := link.Link()
	var (
		childID    int64
		validityTo sql.NullTime
	)
	err := row.Scan(&l.ID, &l.ParentID, &childID, &l.QtyProvided, &l.PriceAsked, &l.Status,
		&l.ValidityFrom, &validityTo, &l.AuditUserID, &l.CreatedAt)
	if err != nil {
		var zero L
		return zero, err
	}
	l.ValidityTo = timePtr(validityTo)
	link.SetChildID(childID)
	return link, nil
}

// ListByParent returns the current links of a service
func (a *linkAdapter[L]) ListByParent(ctx context.Context, parentID int64) ([]L, error) {
	grouped, err := a.ListByParents(ctx, []int64{parentID})
	if err != nil {
		return nil, err
	}
	if links, ok := grouped[parentID]; ok {
		return links, nil
	}
	return []L{}, nil
}

// ListByParents returns the current links of several services keyed by parent
func (a *linkAdapter[L]) ListByParents(ctx context.Context, parentIDs []int64) (map[int64][]L, error) {
	grouped := make(map[int64][]L, len(parentIDs))
	if len(parentIDs) == 0 {
		return grouped, nil
	}

	query, args, err := dialect.From(a.t.name).
		Select(a.columns()...).
		Where(goqu.C(a.t.parent).In(parentIDs), goqu.C("ValidityTo").IsNull()).
		Order(goqu.C(a.t.id).Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, buildError(err)
	}

	rows, err := a.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewPersistenceError(fmt.Sprintf("failed to list %s links", a.label), err)
	}
	defer rows.Close()

	for rows.Next() {
		link, err := a.scan(rows)
		if err != nil {
			return nil, apperrors.NewPersistenceError(fmt.Sprintf("failed to scan %s link", a.label), err)
		}
		parent := link.Link().ParentID
		grouped[parent] = append(grouped[parent], link)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistenceError(fmt.Sprintf("failed to list %s links", a.label), err)
	}
	return grouped, nil
}

// GetByID retrieves a link whatever its validity
func (a *linkAdapter[L]) GetByID(ctx context.Context, id int64) (L, error) {
	var zero L
	query, args, err := dialect.From(a.t.name).
		Select(a.columns()...).
		Where(goqu.C(a.t.id).Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return zero, buildError(err)
	}

	link, err := a.scan(a.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return zero, apperrors.NewNotFoundError(fmt.Sprintf("%s link %d does not exist", a.label, id))
	}
	if err != nil {
		return zero, apperrors.NewPersistenceError(fmt.Sprintf("failed to get %s link", a.label), err)
	}
	return link, nil
}

// Create inserts a link and assigns its id
func (a *linkAdapter[L]) Create(ctx context.Context, link L) error {
	l := link.Link()
	now := time.Now().UTC()
	if l.ValidityFrom.IsZero() {
		l.ValidityFrom = now
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}

	query, args, err := dialect.Insert(a.t.name).
		Rows(a.record(link)).
		Returning(goqu.C(a.t.id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return buildError(err)
	}
	if err := a.q.QueryRowContext(ctx, query, args...).Scan(&l.ID); err != nil {
		return writeError(fmt.Sprintf("failed to create %s link", a.label), err)
	}
	return nil
}

// Update writes every field of an existing link
func (a *linkAdapter[L]) Update(ctx context.Context, link L) error {
	l := link.Link()
	query, args, err := dialect.Update(a.t.name).
		Set(a.record(link)).
		Where(goqu.C(a.t.id).Eq(l.ID)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return buildError(err)
	}

	res, err := a.q.ExecContext(ctx, query, args...)
	if err != nil {
		return writeError(fmt.Sprintf("failed to update %s link", a.label), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("%s link %d does not exist", a.label, l.ID))
	}
	return nil
}

// Delete removes a link row
func (a *linkAdapter[L]) Delete(ctx context.Context, id int64) error {
	query, args, err := dialect.Delete(a.t.name).
		Where(goqu.C(a.t.id).Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return buildError(err)
	}
	if _, err := a.q.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewPersistenceError(fmt.Sprintf("failed to delete %s link", a.label), err)
	}
	return nil
}

// CloseByParent ends the validity of every current link of a service
func (a *linkAdapter[L]) CloseByParent(ctx context.Context, parentID int64, at time.Time) error {
	query, args, err := dialect.Update(a.t.name).
		Set(goqu.Record{"ValidityTo": at}).
		Where(goqu.C(a.t.parent).Eq(parentID), goqu.C("ValidityTo").IsNull()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return buildError(err)
	}
	if _, err := a.q.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewPersistenceError(fmt.Sprintf("failed to close %s links", a.label), err)
	}
	return nil
}

// ServiceItemAdapter implements ServiceItemRepository on tblServiceContainedItems
type ServiceItemAdapter struct {
	*linkAdapter[*entities.ServiceItem]
}

var _ repositories.ServiceItemRepository = (*ServiceItemAdapter)(nil)

func newServiceItemAdapter(q execer) *ServiceItemAdapter {
	return &ServiceItemAdapter{&linkAdapter[*entities.ServiceItem]{
		q:     q,
		t:     linkTable{name: "tblServiceContainedItems", id: "idSCI", parent: "ServiceID", child: "ItemID"},
		label: "item",
		new:   func() *entities.ServiceItem { return &entities.ServiceItem{} },
	}}
}

// ServiceServiceAdapter implements ServiceServiceRepository on tblServiceContainedServices
type ServiceServiceAdapter struct {
	*linkAdapter[*entities.ServiceService]
}

var _ repositories.ServiceServiceRepository = (*ServiceServiceAdapter)(nil)

func newServiceServiceAdapter(q execer) *ServiceServiceAdapter {
	return &ServiceServiceAdapter{&linkAdapter[*entities.ServiceService]{
		q:     q,
		t:     linkTable{name: "tblServiceContainedServices", id: "idSCS", parent: "ServiceLinked", child: "ServiceID"},
		label: "service",
		new:   func() *entities.ServiceService { return &entities.ServiceService{} },
	}}
}
