package database

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

// MutationLogAdapter records which rows a client mutation touched
type MutationLogAdapter struct {
	q execer
}

var _ repositories.MutationLogRepository = (*MutationLogAdapter)(nil)

// Record links clientMutationID to an entry row
func (a *MutationLogAdapter) Record(ctx context.Context, kind entities.EntryKind, entryID int64, clientMutationID string) error {
	var table, column string
	switch kind {
	case entities.KindItem:
		table, column = itemTable.mutationTable, itemTable.mutationFK
	case entities.KindService:
		table, column = serviceTable.mutationTable, serviceTable.mutationFK
	default:
		return apperrors.NewValidationError(fmt.Sprintf("unknown entry kind %q", kind))
	}

	query, args, err := dialect.Insert(table).
		Rows(goqu.Record{
			"id":                 uuid.New(),
			column:               entryID,
			"client_mutation_id": clientMutationID,
			"created_at":         time.Now().UTC(),
		}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return buildError(err)
	}
	if _, err := a.q.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewPersistenceError("failed to record client mutation", err)
	}
	return nil
}
