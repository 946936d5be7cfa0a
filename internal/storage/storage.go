// Package storage defines the Storage interface — the contract that any
// record-store backend must satisfy to work with this application — along
// with the filter type and the error taxonomy shared by every backend.
//
// WHY AN INTERFACE?
// ─────────────────
// Handlers (HTTP layer) should not know or care which backend they are
// talking to. By depending only on this interface:
//
//   - Switching backends = change one line of wiring in main.go.
//     The same handler code serves the in-memory store, the snapshot-file
//     store, and the SQLite store.
//
//   - Writing tests = run handlers against the in-memory backend.
//     No filesystem or database needed for unit tests.
//
// Every operation works on one collection of one record kind: a store
// instance owns the products OR the students, never both.
package storage

import "github.com/aanand-mishra/catalog-api/internal/types"

// Storage is the record-store contract. All five operations are safe for
// concurrent use; mutations are serialized by the implementation so at most
// one is in flight per collection at a time.
type Storage interface {
	// List returns every record in the collection, in insertion order.
	// A non-nil filter restricts the result to records whose field equals
	// the filter value (case-insensitive for string fields). An empty
	// result is valid and comes back as an empty slice, not nil.
	List(filter *Filter) ([]types.Record, error)

	// Get looks a record up by its numeric id or, for kinds that define
	// one, by its natural key. Returns a NotFoundError when nothing
	// matches.
	Get(idOrKey string) (types.Record, error)

	// Create validates the given fields, assigns the next id, appends the
	// record, and persists the collection. Returns the stored record.
	// Fails with a ValidationError (missing required fields), a
	// ConflictError (duplicate natural key), or a PersistenceError (the
	// snapshot write failed and the append was rolled back).
	Create(fields types.Record) (types.Record, error)

	// Update replaces the mutable fields of the record with the given id;
	// the id itself never changes. Validation rules are the same as
	// Create's. Fails with a NotFoundError when the id does not exist,
	// and rolls back in memory if persistence fails.
	Update(id int64, fields types.Record) (types.Record, error)

	// Delete removes the record with the given id and persists the
	// collection. Success is signaled by a nil error. Fails with a
	// NotFoundError when the id does not exist, and reinserts the record
	// at its original position if persistence fails.
	Delete(id int64) error
}
