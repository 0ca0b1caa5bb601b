package database

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

// PricelistAdapter closes pricelist detail rows when their entry is deleted
type PricelistAdapter struct {
	q execer
}

var _ repositories.PricelistRepository = (*PricelistAdapter)(nil)

// CloseItemDetails ends the validity of the current pricelist rows of an item
func (a *PricelistAdapter) CloseItemDetails(ctx context.Context, itemID int64, at time.Time) error {
	return a.close(ctx, "tblPLItemsDetail", "ItemID", itemID, at)
}

// CloseServiceDetails ends the validity of the current pricelist rows of a service
func (a *PricelistAdapter) CloseServiceDetails(ctx context.Context, serviceID int64, at time.Time) error {
	return a.close(ctx, "tblPLServicesDetail", "ServiceID", serviceID, at)
}

func (a *PricelistAdapter) close(ctx context.Context, table, column string, id int64, at time.Time) error {
	query, args, err := dialect.Update(table).
		Set(goqu.Record{"ValidityTo": at}).
		Where(goqu.C(column).Eq(id), goqu.C("ValidityTo").IsNull()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return buildError(err)
	}
	if _, err := a.q.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewPersistenceError("failed to close pricelist details", err)
	}
	return nil
}
