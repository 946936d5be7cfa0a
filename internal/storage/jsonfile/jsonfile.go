// Package jsonfile is the snapshot-file-backed record store — the default
// backend. It keeps a collection in memory and mirrors every successful
// mutation to a JSON snapshot on disk, so the durable state is always the
// last snapshot that was fully written.
//
// CONSISTENCY MODEL
// ─────────────────
// Two locks with two different jobs:
//
//   - writeMu serializes mutations end to end. A create, update, or delete
//     holds it from validation through the disk write, so at most one
//     mutation is ever in flight per collection, and each one sees the
//     committed result of the previous one.
//
//   - mu (an RWMutex) guards nothing but the collection pointer. Reads take
//     it briefly to grab the current collection; a mutation takes it
//     briefly to publish the new one.
//
// A mutation builds a NEW collection (the collection type is copy-on-write),
// persists it, and only then publishes it. The ordering is the whole
// guarantee:
//
//	validate → build next collection → write snapshot → publish
//
// If the snapshot write fails, the new collection is simply dropped — the
// published state was never touched, so memory still matches the last
// durable snapshot and the operation reports a PersistenceError. Readers
// meanwhile keep using whichever collection was published when they asked,
// which is always a fully committed state, never a partial one.
//
// The store starts Uninitialized and becomes Ready exactly once, inside
// New, after the startup load (or first-run seeding) succeeds. Operations
// on a store that never went through New fail with ErrNotReady.
package jsonfile

import (
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aanand-mishra/catalog-api/internal/storage"
	"github.com/aanand-mishra/catalog-api/internal/storage/collection"
	"github.com/aanand-mishra/catalog-api/internal/storage/snapshot"
	"github.com/aanand-mishra/catalog-api/internal/types"
)

// Params configures a Store. Only Kind is mandatory.
type Params struct {
	// Kind of record this store owns.
	Kind types.Kind

	// Path of the snapshot file. Defaults to data/<kind>.json.
	Path string

	// Defaults seed the collection when no snapshot exists yet.
	Defaults []types.Record

	// SaveTimeout bounds each snapshot write. Defaults to
	// snapshot.DefaultTimeout.
	SaveTimeout time.Duration

	// Logger receives the loud errors (persistence failures). Expected
	// errors — validation, conflicts, not-found — are never logged.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// Store is the file-backed implementation of storage.Storage.
type Store struct {
	kind        types.Kind
	path        string
	saveTimeout time.Duration
	log         *slog.Logger

	writeMu sync.Mutex   // serializes mutations, held across the disk write
	mu      sync.RWMutex // guards col
	col     *collection.Collection

	ready atomic.Bool
}

// Store implements the storage contract.
var _ storage.Storage = (*Store)(nil)

// New loads the snapshot at p.Path (seeding it with p.Defaults on first
// run), builds the in-memory collection, and returns a Ready store.
//
// A snapshot that cannot be parsed — or that parses but violates the
// collection invariants — comes back as a CorruptSnapshotError. The caller
// should abort startup: the file stays on disk, untouched, for the
// operator to inspect.
func New(p Params) (*Store, error) {
	if p.Path == "" {
		p.Path = filepath.Join("data", p.Kind.Name+".json")
	}
	if p.SaveTimeout <= 0 {
		p.SaveTimeout = snapshot.DefaultTimeout
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}

	records, err := snapshot.Load(p.Path, p.Defaults, p.SaveTimeout)
	if err != nil {
		return nil, err
	}

	col, err := collection.New(p.Kind, records)
	if err != nil {
		return nil, &storage.CorruptSnapshotError{Path: p.Path, Err: err}
	}

	s := &Store{
		kind:        p.Kind,
		path:        p.Path,
		saveTimeout: p.SaveTimeout,
		log:         p.Logger,
		col:         col,
	}
	s.ready.Store(true)
	return s, nil
}

// List returns the records matching the filter (all of them when filter is
// nil), in insertion order.
func (s *Store) List(filter *storage.Filter) ([]types.Record, error) {
	col, err := s.current()
	if err != nil {
		return nil, err
	}
	return col.List(filter), nil
}

// Get resolves idOrKey: a numeric string looks up by id, anything else by
// the kind's natural key.
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

// Create validates fields, assigns the next id, appends the record, and
// persists the collection before making the change visible.
func (s *Store) Create(fields types.Record) (types.Record, error) {
	if !s.ready.Load() {
		return nil, storage.ErrNotReady
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, rec, err := s.view().Insert(fields)
	if err != nil {
		return nil, err
	}
	if err := s.persist(next, "create"); err != nil {
		return nil, err
	}
	s.publish(next)
	return rec, nil
}

// Update replaces the mutable fields of the record with the given id. The
// id never changes and the record keeps its position in the collection.
func (s *Store) Update(id int64, fields types.Record) (types.Record, error) {
	if !s.ready.Load() {
		return nil, storage.ErrNotReady
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, rec, err := s.view().Replace(id, fields)
	if err != nil {
		return nil, err
	}
	if err := s.persist(next, "update"); err != nil {
		return nil, err
	}
	s.publish(next)
	return rec, nil
}

// Delete removes the record with the given id and persists the collection.
func (s *Store) Delete(id int64) error {
	if !s.ready.Load() {
		return storage.ErrNotReady
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, err := s.view().Remove(id)
	if err != nil {
		return err
	}
	if err := s.persist(next, "delete"); err != nil {
		return err
	}
	s.publish(next)
	return nil
}

// current is the read-path entry point: ready check plus collection fetch.
func (s *Store) current() (*collection.Collection, error) {
	if !s.ready.Load() {
		return nil, storage.ErrNotReady
	}
	return s.view(), nil
}

// view returns the currently published collection.
func (s *Store) view() *collection.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.col
}

// publish makes next the collection every subsequent operation sees.
// Callers must hold writeMu and must have persisted next already.
func (s *Store) publish(next *collection.Collection) {
	s.mu.Lock()
	s.col = next
	s.mu.Unlock()
}

// persist writes next to the snapshot file. A failure here is an
// environment problem, not a caller mistake, so it is logged with full
// context before being returned.
func (s *Store) persist(next *collection.Collection, op string) error {
	if err := snapshot.Save(s.path, next.Records(), s.saveTimeout); err != nil {
		s.log.Error("snapshot write failed, operation rolled back",
			slog.String("kind", s.kind.Name),
			slog.String("op", op),
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}
