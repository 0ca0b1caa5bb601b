package services

import (
	"context"
	"fmt"
	"time"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/observability"
)

// Versioned is a catalog entry that can be copied into history and
// overwritten with the business fields of another instance.
type Versioned[T any] interface {
	entities.CatalogEntry
	Clone() T
	AssignFrom(src T)
}

// Cascade closes what hangs off a deleted entry
type Cascade func(ctx context.Context, entryID int64, at time.Time) error

// VersioningEngine keeps at most one current row per lineage. The uuid and
// the internal id of the current row never change; every update leaves a
// closed copy behind that points back through LegacyID.
type VersioningEngine[T Versioned[T]] struct {
	now func() time.Time
}

// NewVersioningEngine creates an engine stamping rows with now
func NewVersioningEngine[T Versioned[T]](now func() time.Time) *VersioningEngine[T] {
	if now == nil {
		now = utcNow
	}
	return &VersioningEngine[T]{now: now}
}

// BeginUpdate clears every business field of entry. Fields the incoming
// payload omits stay cleared.
func (e *VersioningEngine[T]) BeginUpdate(entry T) {
	entry.ResetBusinessFields()
}

// ArchiveAndReplace stores a closed copy of current and rewrites current in
// place with the business fields of incoming, one version higher.
func (e *VersioningEngine[T]) ArchiveAndReplace(ctx context.Context, repo repositories.EntryRepository[T], current, incoming T) (T, error) {
	var zero T
	at := e.now()
	cur := current.Base()

	history := current.Clone()
	hist := history.Base()
	legacyID := cur.ID
	closed := at
	hist.ID = 0
	hist.LegacyID = &legacyID
	hist.ValidityTo = &closed
	if err := repo.Create(ctx, history); err != nil {
		return zero, err
	}

	e.BeginUpdate(current)
	current.AssignFrom(incoming)
	cur.Version++
	cur.ValidityFrom = at
	cur.ValidityTo = nil
	cur.AuditUserID = incoming.Base().AuditUserID
	if err := repo.Persist(ctx, current); err != nil {
		return zero, err
	}
	return current, nil
}

// SoftDelete closes entry and runs cascade. A failure comes back as a
// structured error keyed by the entry uuid.
func (e *VersioningEngine[T]) SoftDelete(ctx context.Context, repo repositories.EntryRepository[T], entry T, cascade Cascade) *entities.MutationError {
	at := e.now()
	b := entry.Base()
	closed := at
	b.ValidityTo = &closed

	err := repo.Persist(ctx, entry)
	if err == nil && cascade != nil {
		err = cascade(ctx, b.ID, at)
	}
	if err == nil {
		return nil
	}

	observability.LoggerFromContext(ctx).Warn().
		Err(err).
		Str("kind", string(entry.Kind())).
		Str("uuid", b.UUID).
		Msg("soft delete failed")
	return &entities.MutationError{
		Title: b.UUID,
		List: []entities.ErrorDetail{{
			Message: fmt.Sprintf("Failed to delete %s %s", entry.Kind(), b.UUID),
			Detail:  b.UUID,
		}},
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}
