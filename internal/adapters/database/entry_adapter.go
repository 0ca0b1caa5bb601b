package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

// entryTable names the columns a catalog table uses for the shared entry
// fields, plus the tables hanging off it.
type entryTable struct {
	name      string
	id        string
	uuid      string
	code      string
	title     string
	kindType  string
	price     string
	careType  string
	frequency string
	patCat    string

	mutationTable string
	mutationFK    string

	pricelistTable  string
	pricelistID     string
	pricelistUUID   string
	pricelistDetail string
}

func (t entryTable) baseColumns() []interface{} {
	return []interface{}{
		t.id, t.uuid, "LegacyID", t.code, t.title, t.kindType, t.price, t.careType,
		t.frequency, t.patCat, "MaximumAmount", "ValidityFrom", "ValidityTo", "AuditUserID", "Version",
	}
}

func (t entryTable) baseRecord(e *entities.Entry) goqu.Record {
	var frequency interface{}
	if e.Frequency != nil {
		frequency = *e.Frequency
	}
	var legacyID interface{}
	if e.LegacyID != nil {
		legacyID = *e.LegacyID
	}
	return goqu.Record{
		t.uuid:          e.UUID,
		"LegacyID":      legacyID,
		t.code:          e.Code,
		t.title:         e.Name,
		t.kindType:      e.Type,
		t.price:         e.Price,
		t.careType:      e.CareType,
		t.frequency:     frequency,
		t.patCat:        int16(e.PatientCategory),
		"MaximumAmount": e.MaximumAmount,
		"ValidityFrom":  e.ValidityFrom,
		"ValidityTo":    nullTime(e.ValidityTo),
		"AuditUserID":   e.AuditUserID,
		"Version":       e.Version,
	}
}

// entryScan holds the nullable intermediates of a shared-field scan
type entryScan struct {
	legacyID   sql.NullInt64
	frequency  sql.NullInt32
	validityTo sql.NullTime
}

func (s *entryScan) dest(e *entities.Entry) []interface{} {
	return []interface{}{
		&e.ID, &e.UUID, &s.legacyID, &e.Code, &e.Name, &e.Type, &e.Price, &e.CareType,
		&s.frequency, &e.PatientCategory, &e.MaximumAmount, &e.ValidityFrom, &s.validityTo, &e.AuditUserID, &e.Version,
	}
}

func (s *entryScan) apply(e *entities.Entry) {
	e.LegacyID = int64Ptr(s.legacyID)
	e.Frequency = intPtr(s.frequency)
	e.ValidityTo = timePtr(s.validityTo)
}

// entryAdapter implements the lineage-aware repository shared by items and
// services. Kind adapters supply the extra columns.
type entryAdapter[T entities.CatalogEntry] struct {
	q       execer
	t       entryTable
	label   string
	columns []interface{}
	scan    func(rowScanner) (T, error)
	record  func(T) goqu.Record
	filter  func(entities.CatalogFilter) []exp.Expression
}

func (a *entryAdapter[T]) notFound(what string) error {
	return apperrors.NewNotFoundError(fmt.Sprintf("%s %s does not exist", a.label, what))
}

// FindCurrent returns the currently valid row carrying uuid
func (a *entryAdapter[T]) FindCurrent(ctx context.Context, id string) (T, error) {
	ds := dialect.From(a.t.name).Select(a.columns...).
		Where(goqu.C(a.t.uuid).Eq(id), goqu.C("ValidityTo").IsNull()).
		Limit(1)
	return a.getOne(ctx, ds, id)
}

// FindByCode returns the current row with code, or the latest row of any
// validity when currentOnly is false
func (a *entryAdapter[T]) FindByCode(ctx context.Context, code string, currentOnly bool) (T, error) {
	ds := dialect.From(a.t.name).Select(a.columns...).Where(goqu.C(a.t.code).Eq(code))
	if currentOnly {
		ds = ds.Where(goqu.C("ValidityTo").IsNull())
	}
	ds = ds.Order(goqu.C("ValidityFrom").Desc(), goqu.C(a.t.id).Desc()).Limit(1)
	return a.getOne(ctx, ds, code)
}

// FindByID retrieves a row by internal id
func (a *entryAdapter[T]) FindByID(ctx context.Context, id int64) (T, error) {
	ds := dialect.From(a.t.name).Select(a.columns...).Where(goqu.C(a.t.id).Eq(id))
	return a.getOne(ctx, ds, fmt.Sprintf("#%d", id))
}

// GetByIDs retrieves rows by internal ids
func (a *entryAdapter[T]) GetByIDs(ctx context.Context, ids []int64) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	ds := dialect.From(a.t.name).Select(a.columns...).Where(goqu.C(a.t.id).In(ids))
	return a.getMany(ctx, ds)
}

// Create inserts a row, assigning the uuid when absent and the internal id
func (a *entryAdapter[T]) Create(ctx context.Context, entry T) error {
	base := entry.Base()
	if base.UUID == "" {
		base.UUID = uuid.NewString()
	}
	if base.Version == 0 {
		base.Version = 1
	}
	if base.ValidityFrom.IsZero() {
		base.ValidityFrom = time.Now().UTC()
	}

	query, args, err := dialect.Insert(a.t.name).
		Rows(a.record(entry)).
		Returning(goqu.C(a.t.id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return buildError(err)
	}

	if err := a.q.QueryRowContext(ctx, query, args...).Scan(&base.ID); err != nil {
		return writeError(fmt.Sprintf("failed to create %s %s", a.label, base.Code), err)
	}
	return nil
}

// Persist writes every column of an existing row
func (a *entryAdapter[T]) Persist(ctx context.Context, entry T) error {
	base := entry.Base()
	query, args, err := dialect.Update(a.t.name).
		Set(a.record(entry)).
		Where(goqu.C(a.t.id).Eq(base.ID)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return buildError(err)
	}

	res, err := a.q.ExecContext(ctx, query, args...)
	if err != nil {
		return writeError(fmt.Sprintf("failed to save %s %s", a.label, base.Code), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return a.notFound(base.UUID)
	}
	return nil
}

// List retrieves the rows matching filter and the total match count
func (a *entryAdapter[T]) List(ctx context.Context, filter entities.CatalogFilter) ([]T, int, error) {
	where := a.where(filter)

	countQuery, countArgs, err := dialect.From(a.t.name).
		Select(goqu.COUNT(goqu.Star())).
		Where(where...).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, buildError(err)
	}
	var total int
	if err := a.q.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, apperrors.NewPersistenceError(fmt.Sprintf("failed to count %ss", a.label), err)
	}

	ds := dialect.From(a.t.name).Select(a.columns...).Where(where...).Order(a.order(filter)...)
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	entries, err := a.getMany(ctx, ds)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (a *entryAdapter[T]) where(f entities.CatalogFilter) []exp.Expression {
	var exprs []exp.Expression

	if f.UUID != "" {
		exprs = append(exprs, goqu.C(a.t.uuid).Eq(f.UUID))
	}
	if f.Code != "" {
		exprs = append(exprs, goqu.C(a.t.code).Eq(f.Code))
	}
	if f.CodeContains != "" {
		exprs = append(exprs, goqu.C(a.t.code).ILike("%"+escapeLike(f.CodeContains)+"%"))
	}
	if f.CodeStartsWith != "" {
		exprs = append(exprs, goqu.C(a.t.code).ILike(escapeLike(f.CodeStartsWith)+"%"))
	}
	if f.NameContains != "" {
		exprs = append(exprs, goqu.C(a.t.title).ILike("%"+escapeLike(f.NameContains)+"%"))
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(f.Search) + "%"
		exprs = append(exprs, goqu.Or(
			goqu.C(a.t.code).ILike(pattern),
			goqu.C(a.t.title).ILike(pattern),
		))
	}
	if f.Type != "" {
		exprs = append(exprs, goqu.C(a.t.kindType).Eq(f.Type))
	}
	if f.CareType != "" {
		exprs = append(exprs, goqu.C(a.t.careType).Eq(f.CareType))
	}

	if !f.ShowHistory {
		if f.AsOf != nil {
			exprs = append(exprs,
				goqu.C("ValidityFrom").Lte(*f.AsOf),
				goqu.Or(goqu.C("ValidityTo").IsNull(), goqu.C("ValidityTo").Gt(*f.AsOf)),
			)
		} else {
			exprs = append(exprs, goqu.C("ValidityTo").IsNull())
		}
	}

	if f.PricelistUUID != "" {
		sub := dialect.From(goqu.T(a.t.pricelistDetail).As("d")).
			Join(goqu.T(a.t.pricelistTable).As("p"),
				goqu.On(goqu.T("d").Col(a.t.pricelistID).Eq(goqu.T("p").Col(a.t.pricelistID)))).
			Select(goqu.T("d").Col(a.t.id)).
			Where(
				goqu.T("p").Col(a.t.pricelistUUID).Eq(f.PricelistUUID),
				goqu.T("d").Col("ValidityTo").IsNull(),
			)
		exprs = append(exprs, goqu.C(a.t.id).In(sub))
	}

	if f.ClientMutationID != "" {
		sub := dialect.From(a.t.mutationTable).
			Select(goqu.C(a.t.mutationFK)).
			Where(goqu.C("client_mutation_id").Eq(f.ClientMutationID))
		exprs = append(exprs, goqu.C(a.t.id).In(sub))
	}

	if a.filter != nil {
		exprs = append(exprs, a.filter(f)...)
	}
	return exprs
}

func (a *entryAdapter[T]) order(f entities.CatalogFilter) []exp.OrderedExpression {
	columns := map[string]string{
		"code":          a.t.code,
		"name":          a.t.title,
		"type":          a.t.kindType,
		"price":         a.t.price,
		"validity_from": "ValidityFrom",
	}
	var order []exp.OrderedExpression
	for _, term := range f.OrderTerms() {
		col := goqu.C(columns[term.Field])
		if term.Desc {
			order = append(order, col.Desc())
		} else {
			order = append(order, col.Asc())
		}
	}
	return append(order, goqu.C(a.t.id).Asc())
}

func (a *entryAdapter[T]) getOne(ctx context.Context, ds *goqu.SelectDataset, what string) (T, error) {
	var zero T
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return zero, buildError(err)
	}

	entry, err := a.scan(a.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return zero, a.notFound(what)
	}
	if err != nil {
		return zero, apperrors.NewPersistenceError(fmt.Sprintf("failed to get %s", a.label), err)
	}
	return entry, nil
}

func (a *entryAdapter[T]) getMany(ctx context.Context, ds *goqu.SelectDataset) ([]T, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, buildError(err)
	}

	rows, err := a.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewPersistenceError(fmt.Sprintf("failed to list %ss", a.label), err)
	}
	defer rows.Close()

	entries := []T{}
	for rows.Next() {
		entry, err := a.scan(rows)
		if err != nil {
			return nil, apperrors.NewPersistenceError(fmt.Sprintf("failed to scan %s", a.label), err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistenceError(fmt.Sprintf("failed to list %ss", a.label), err)
	}
	return entries, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
