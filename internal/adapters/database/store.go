package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/clients/postgres"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/observability"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

var dialect = goqu.Dialect("postgres")

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// Store implements UnitOfWork on PostgreSQL
type Store struct {
	client  *postgres.Client
	metrics *observability.Metrics
	reads   *catalogStore
}

var _ repositories.UnitOfWork = (*Store)(nil)

// NewStore creates a new PostgreSQL catalog store
func NewStore(client *postgres.Client, metrics *observability.Metrics) *Store {
	return &Store{
		client:  client,
		metrics: metrics,
		reads:   newCatalogStore(client.DB()),
	}
}

// Store returns the non-transactional store
func (s *Store) Store() repositories.CatalogStore {
	return s.reads
}

// WithinTx runs fn in a transaction, committing on success
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, store repositories.CatalogStore) error) error {
	start := time.Now()
	defer func() {
		observability.RecordDBMetric(ctx, s.metrics, "transaction", time.Since(start))
	}()

	tx, err := s.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewPersistenceError("failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, newCatalogStore(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, apperrors.NewPersistenceError("failed to roll back transaction", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewPersistenceError("failed to commit transaction", err)
	}
	return nil
}

// catalogStore binds every repository to one execer
type catalogStore struct {
	items           *ItemAdapter
	services        *ServiceAdapter
	serviceItems    *ServiceItemAdapter
	serviceServices *ServiceServiceAdapter
	pricelists      *PricelistAdapter
	mutationLog     *MutationLogAdapter
	diagnoses       *DiagnosisAdapter
}

func newCatalogStore(q execer) *catalogStore {
	return &catalogStore{
		items:           newItemAdapter(q),
		services:        newServiceAdapter(q),
		serviceItems:    newServiceItemAdapter(q),
		serviceServices: newServiceServiceAdapter(q),
		pricelists:      &PricelistAdapter{q: q},
		mutationLog:     &MutationLogAdapter{q: q},
		diagnoses:       &DiagnosisAdapter{q: q},
	}
}

func (s *catalogStore) Items() repositories.ItemRepository { return s.items }
func (s *catalogStore) Services() repositories.ServiceRepository { return s.services }
func (s *catalogStore) ServiceItems() repositories.ServiceItemRepository {
	return s.serviceItems
}
func (s *catalogStore) ServiceServices() repositories.ServiceServiceRepository {
	return s.serviceServices
}
func (s *catalogStore) Pricelists() repositories.PricelistRepository { return s.pricelists }
func (s *catalogStore) MutationLog() repositories.MutationLogRepository { return s.mutationLog }
func (s *catalogStore) Diagnoses() repositories.DiagnosisRepository { return s.diagnoses }

const uniqueViolation = "23505"

// writeError classifies a failed write. A unique violation on the partial
// indexes means another current row already holds the code.
func writeError(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperrors.NewCodeAlreadyExistsError(fmt.Sprintf("%s: %s", msg, pqErr.Message))
	}
	return apperrors.NewPersistenceError(msg, err)
}

func buildError(err error) error {
	return apperrors.NewPersistenceError("failed to build query", err)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func intPtr(v sql.NullInt32) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int32)
	return &n
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
