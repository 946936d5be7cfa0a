// Package memory is the throwaway backend: the same collection semantics
// as the jsonfile store, with no persistence at all. Every process starts
// from the seed data and forgets everything on exit.
//
// It exists for tests and for running the API without touching the disk
// (STORAGE_BACKEND=memory). Because there is no snapshot write to fail,
// mutations publish immediately and PersistenceError never occurs here.
package memory

import (
	"strconv"
	"sync"

	"github.com/aanand-mishra/catalog-api/internal/storage"
	"github.com/aanand-mishra/catalog-api/internal/storage/collection"
	"github.com/aanand-mishra/catalog-api/internal/types"
)

// Store holds one kind's records in memory.
type Store struct {
	kind types.Kind

	writeMu sync.Mutex   // serializes mutations
	mu      sync.RWMutex // guards col
	col     *collection.Collection
}

var _ storage.Storage = (*Store)(nil)

// New builds a store seeded with defaults. A zero-value Store (one that
// skipped New) rejects every operation with ErrNotReady.
func New(kind types.Kind, defaults []types.Record) (*Store, error) {
	col, err := collection.New(kind, defaults)
	if err != nil {
		return nil, err
	}
	return &Store{kind: kind, col: col}, nil
}

// List returns the records matching the filter, in insertion order.
func (s *Store) List(filter *storage.Filter) ([]types.Record, error) {
	col, err := s.current()
	if err != nil {
		return nil, err
	}
	return col.List(filter), nil
}

// Get resolves a numeric idOrKey by id and anything else by natural key.
func (s *Store) Get(idOrKey string) (types.Record, error) {
	col, err := s.current()
	if err != nil {
		return nil, err
	}

	if id, err := strconv.ParseInt(idOrKey, 10, 64); err == nil {
		if rec, ok := col.FindByID(id); ok {
			return rec, nil
		}
	} else if rec, ok := col.FindByKey(idOrKey); ok {
		return rec, nil
	}
	return nil, &storage.NotFoundError{Kind: s.kind.Name, IDOrKey: idOrKey}
}

// Create validates fields, assigns the next id, and appends the record.
func (s *Store) Create(fields types.Record) (types.Record, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur, err := s.current()
	if err != nil {
		return nil, err
	}
	next, rec, err := cur.Insert(fields)
	if err != nil {
		return nil, err
	}
	s.publish(next)
	return rec, nil
}

// Update replaces the mutable fields of the record with the given id.
func (s *Store) Update(id int64, fields types.Record) (types.Record, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur, err := s.current()
	if err != nil {
		return nil, err
	}
	next, rec, err := cur.Replace(id, fields)
	if err != nil {
		return nil, err
	}
	s.publish(next)
	return rec, nil
}

// Delete removes the record with the given id.
func (s *Store) Delete(id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur, err := s.current()
	if err != nil {
		return err
	}
	next, err := cur.Remove(id)
	if err != nil {
		return err
	}
	s.publish(next)
	return nil
}

func (s *Store) current() (*collection.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.col == nil {
		return nil, storage.ErrNotReady
	}
	return s.col, nil
}

func (s *Store) publish(next *collection.Collection) {
	s.mu.Lock()
	s.col = next
	s.mu.Unlock()
}
