package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

// DiagnosisAdapter reads ICD codes from tblICDCodes
type DiagnosisAdapter struct {
	q execer
}

var _ repositories.DiagnosisRepository = (*DiagnosisAdapter)(nil)

var diagnosisColumns = []interface{}{"ICDID", "ICDCode", "ICDName", "ValidityFrom", "ValidityTo", "AuditUserID"}

// List returns the diagnoses matching filter ordered by code
func (a *DiagnosisAdapter) List(ctx context.Context, filter entities.DiagnosisFilter) ([]*entities.Diagnosis, error) {
	where := []exp.Expression{}
	if filter.AsOf != nil {
		where = append(where,
			goqu.C("ValidityFrom").Lte(*filter.AsOf),
			goqu.Or(goqu.C("ValidityTo").IsNull(), goqu.C("ValidityTo").Gt(*filter.AsOf)),
		)
	} else {
		where = append(where, goqu.C("ValidityTo").IsNull())
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		where = append(where, goqu.Or(goqu.C("ICDCode").ILike(pattern), goqu.C("ICDName").ILike(pattern)))
	}

	query, args, err := dialect.From("tblICDCodes").
		Select(diagnosisColumns...).
		Where(where...).
		Order(goqu.C("ICDCode").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, buildError(err)
	}

	rows, err := a.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to list diagnoses", err)
	}
	defer rows.Close()

	diagnoses := []*entities.Diagnosis{}
	for rows.Next() {
		d, err := scanDiagnosis(rows)
		if err != nil {
			return nil, apperrors.NewPersistenceError("failed to scan diagnosis", err)
		}
		diagnoses = append(diagnoses, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistenceError("failed to list diagnoses", err)
	}
	return diagnoses, nil
}

// GetByCode returns the current diagnosis with code
func (a *DiagnosisAdapter) GetByCode(ctx context.Context, code string) (*entities.Diagnosis, error) {
	query, args, err := dialect.From("tblICDCodes").
		Select(diagnosisColumns...).
		Where(goqu.C("ICDCode").Eq(code), goqu.C("ValidityTo").IsNull()).
		Limit(1).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, buildError(err)
	}

	d, err := scanDiagnosis(a.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("diagnosis %s does not exist", code))
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to get diagnosis", err)
	}
	return d, nil
}

func scanDiagnosis(row rowScanner) (*entities.Diagnosis, error) {
	var (
		d          entities.Diagnosis
		validityTo sql.NullTime
	)
	if err := row.Scan(&d.ID, &d.Code, &d.Name, &d.ValidityFrom, &validityTo, &d.AuditUserID); err != nil {
		return nil, err
	}
	d.ValidityTo = timePtr(validityTo)
	return &d, nil
}
