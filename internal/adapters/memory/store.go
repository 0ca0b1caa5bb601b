// Package memory implements the catalog store in process memory. A unit of
// work runs against a private copy of the state which replaces the shared
// one only when the work succeeds.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
)

type pricelistDetail struct {
	ID            int64
	PricelistUUID string
	Kind          entities.EntryKind
	EntryID       int64
	ValidityTo    *time.Time
}

type mutationRecord struct {
	Kind             entities.EntryKind
	EntryID          int64
	ClientMutationID string
}

type state struct {
	nextID          int64
	items           map[int64]*entities.Item
	services        map[int64]*entities.Service
	serviceItems    map[int64]*entities.ServiceItem
	serviceServices map[int64]*entities.ServiceService
	details         map[int64]*pricelistDetail
	mutations       []mutationRecord
	diagnoses       map[int64]*entities.Diagnosis
}

func newState() *state {
	return &state{
		items:           map[int64]*entities.Item{},
		services:        map[int64]*entities.Service{},
		serviceItems:    map[int64]*entities.ServiceItem{},
		serviceServices: map[int64]*entities.ServiceService{},
		details:         map[int64]*pricelistDetail{},
		diagnoses:       map[int64]*entities.Diagnosis{},
	}
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *state) clone() *state {
	c := newState()
	c.nextID = s.nextID
	for id, v := range s.items {
		c.items[id] = v.Clone()
	}
	for id, v := range s.services {
		c.services[id] = v.Clone()
	}
	for id, v := range s.serviceItems {
		c.serviceItems[id] = v.Clone()
	}
	for id, v := range s.serviceServices {
		c.serviceServices[id] = v.Clone()
	}
	for id, v := range s.details {
		d := *v
		d.ValidityTo = cloneTime(v.ValidityTo)
		c.details[id] = &d
	}
	c.mutations = append([]mutationRecord(nil), s.mutations...)
	for id, v := range s.diagnoses {
		d := *v
		d.ValidityTo = cloneTime(v.ValidityTo)
		c.diagnoses[id] = &d
	}
	return c
}

// Store implements UnitOfWork in memory. Transactions are serialized.
type Store struct {
	mu    sync.RWMutex
	state *state
}

var _ repositories.UnitOfWork = (*Store)(nil)

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{state: newState()}
}

// Store returns a view that reads the committed state
func (s *Store) Store() repositories.CatalogStore {
	return &view{
		lock: &s.mu,
		st:   func() *state { return s.state },
	}
}

// WithinTx runs fn against a copy of the state and commits it when fn
// returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, store repositories.CatalogStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.state.clone()
	tx := &view{
		lock: nopLocker{},
		st:   func() *state { return working },
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = working
	return nil
}

// AddDiagnosis seeds an ICD code
func (s *Store) AddDiagnosis(d entities.Diagnosis) *entities.Diagnosis {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		d.ID = s.state.id()
	}
	s.state.diagnoses[d.ID] = &d
	out := d
	return &out
}

// AddPricelistDetail attaches an entry row to a pricelist and returns the
// detail id
func (s *Store) AddPricelistDetail(kind entities.EntryKind, pricelistUUID string, entryID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.state.id()
	s.state.details[id] = &pricelistDetail{ID: id, PricelistUUID: pricelistUUID, Kind: kind, EntryID: entryID}
	return id
}

// PricelistDetailOpen reports whether a pricelist detail is still valid
func (s *Store) PricelistDetailOpen(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.state.details[id]
	return ok && d.ValidityTo == nil
}

// MutationCount returns how many client mutation records exist
func (s *Store) MutationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.mutations)
}

type locker interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

type nopLocker struct{}

func (nopLocker) Lock()    {}
func (nopLocker) Unlock()  {}
func (nopLocker) RLock()   {}
func (nopLocker) RUnlock() {}

// view binds the repositories to one state. Reads of the committed state
// take the read lock per call.
type view struct {
	lock locker
	st   func() *state
}

func (v *view) read(fn func(*state) error) error {
	v.lock.RLock()
	defer v.lock.RUnlock()
	return fn(v.st())
}

func (v *view) write(fn func(*state) error) error {
	v.lock.Lock()
	defer v.lock.Unlock()
	return fn(v.st())
}

func (v *view) Items() repositories.ItemRepository {
	return &itemRepo{entryRepo[*entities.Item]{
		v:      v,
		label:  "item",
		rows:   func(s *state) map[int64]*entities.Item { return s.items },
		clone:  (*entities.Item).Clone,
		kind:   entities.KindItem,
		filter: itemMatches,
	}}
}

func (v *view) Services() repositories.ServiceRepository {
	return &serviceRepo{entryRepo[*entities.Service]{
		v:      v,
		label:  "service",
		rows:   func(s *state) map[int64]*entities.Service { return s.services },
		clone:  cloneServiceRow,
		kind:   entities.KindService,
		filter: serviceMatches,
	}}
}

func (v *view) ServiceItems() repositories.ServiceItemRepository {
	return &serviceItemRepo{linkRepo[*entities.ServiceItem]{
		v:     v,
		label: "item",
		rows:  func(s *state) map[int64]*entities.ServiceItem { return s.serviceItems },
		clone: (*entities.ServiceItem).Clone,
	}}
}

func (v *view) ServiceServices() repositories.ServiceServiceRepository {
	return &serviceServiceRepo{linkRepo[*entities.ServiceService]{
		v:     v,
		label: "service",
		rows:  func(s *state) map[int64]*entities.ServiceService { return s.serviceServices },
		clone: (*entities.ServiceService).Clone,
	}}
}

func (v *view) Pricelists() repositories.PricelistRepository    { return &pricelistRepo{v} }
func (v *view) MutationLog() repositories.MutationLogRepository { return &mutationLogRepo{v} }
func (v *view) Diagnoses() repositories.DiagnosisRepository     { return &diagnosisRepo{v} }

// Child links are stored in their own maps, never on the service row.
func cloneServiceRow(s *entities.Service) *entities.Service {
	c := s.Clone()
	c.Items = nil
	c.Services = nil
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
