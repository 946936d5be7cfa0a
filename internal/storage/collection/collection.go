// Package collection implements the in-memory side of a record store: an
// ordered sequence of records of one kind, with the invariants the rest of
// the system relies on enforced in exactly one place.
//
// INVARIANTS (checked on construction and on every mutation):
//
//   - every record has a positive id, and all ids are distinct
//   - where the kind defines a natural key, all key values are distinct
//     (compared case-insensitively for strings)
//
// COPY-ON-WRITE:
// ──────────────
// A Collection is never mutated. Insert, Replace, and Remove return a NEW
// Collection and leave the receiver untouched. That one decision buys the
// store its two hardest guarantees almost for free:
//
//   - rollback: persist the new collection first, and only publish it if
//     the write succeeded — on failure the old collection was never touched
//   - consistent reads: a reader holding the old collection sees the full
//     pre-mutation state, never a half-applied one
//
// The old and new collections share the record maps they have in common;
// that is safe because stored maps are never written to, only replaced,
// and every accessor clones before handing a record out.
//
// Lookups, filters, and uniqueness checks are linear scans. Collections here
// hold tens of records, not thousands, so an index would be pure ceremony.
package collection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aanand-mishra/catalog-api/internal/storage"
	"github.com/aanand-mishra/catalog-api/internal/types"
	"github.com/go-playground/validator/v10"
)

// A single validator instance for the whole package; validator.Validate is
// safe for concurrent use and caches its parsed rules.
var validate = validator.New()

// Collection is an ordered set of records of one kind. The backing slice is
// unexported and only reachable through the methods below — no other
// component can read or mutate it directly.
type Collection struct {
	kind    types.Kind
	records []types.Record
}

// New builds a Collection from already-stored records (a decoded snapshot,
// a seed set). It clones every record, normalizes ids to int64, and checks
// the collection invariants. An error here means the input is not a usable
// collection state — callers loading from disk treat it as a corrupt
// snapshot.
func New(kind types.Kind, records []types.Record) (*Collection, error) {
	owned := make([]types.Record, 0, len(records))
	seenIDs := make(map[int64]struct{}, len(records))
	seenKeys := make(map[string]struct{}, len(records))

	for i, rec := range records {
		id := rec.ID()
		if id < 1 {
			return nil, fmt.Errorf("record %d: missing or non-positive id", i)
		}
		if _, dup := seenIDs[id]; dup {
			return nil, fmt.Errorf("duplicate id %d", id)
		}
		seenIDs[id] = struct{}{}

		if kind.Key != "" {
			key := keyValue(kind, rec)
			folded := strings.ToLower(key)
			if _, dup := seenKeys[folded]; dup {
				return nil, fmt.Errorf("duplicate %s %q", kind.Key, key)
			}
			seenKeys[folded] = struct{}{}
		}

		owned = append(owned, normalize(rec, id))
	}

	return &Collection{kind: kind, records: owned}, nil
}

// Kind returns the record kind this collection holds.
func (c *Collection) Kind() types.Kind { return c.kind }

// Len returns the number of records.
func (c *Collection) Len() int { return len(c.records) }

// Records returns a copy of every record in insertion order. The result is
// an empty (non-nil) slice when the collection is empty — callers encode it
// straight to JSON and [] is better API behaviour than null.
func (c *Collection) Records() []types.Record {
	return c.List(nil)
}

// List returns copies of the records matching the filter, in insertion
// order. A nil filter matches everything.
func (c *Collection) List(f *storage.Filter) []types.Record {
	out := make([]types.Record, 0, len(c.records))
	for _, rec := range c.records {
		if f.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// FindByID returns a copy of the record with the given id.
func (c *Collection) FindByID(id int64) (types.Record, bool) {
	if idx := c.indexOf(id); idx != -1 {
		return c.records[idx].Clone(), true
	}
	return nil, false
}

// FindByKey returns a copy of the record whose natural key equals value,
// compared case-insensitively. Always misses for kinds without a key.
func (c *Collection) FindByKey(value string) (types.Record, bool) {
	if c.kind.Key == "" {
		return nil, false
	}
	for _, rec := range c.records {
		if strings.EqualFold(keyValue(c.kind, rec), value) {
			return rec.Clone(), true
		}
	}
	return nil, false
}

// NextID returns max(existing ids) + 1, or 1 for an empty collection.
//
// Ids are unique among live records, not across the collection's history:
// ids freed by deletions are not reused while larger ids remain, but a
// collection emptied by deletions starts over at 1, so a client holding an
// old id may see it reissued. Callers that need referential stability
// across deletions must track their own counter.
func (c *Collection) NextID() int64 {
	var max int64
	for _, rec := range c.records {
		if id := rec.ID(); id > max {
			max = id
		}
	}
	return max + 1
}

// Insert validates fields, checks natural-key uniqueness, assigns the next
// id, and returns a new Collection with the record appended, plus a copy of
// the stored record. Any client-supplied id in fields is ignored — the
// store owns id assignment.
func (c *Collection) Insert(fields types.Record) (*Collection, types.Record, error) {
	if err := Validate(c.kind, fields); err != nil {
		return nil, nil, err
	}
	if c.kind.Key != "" {
		key := keyValue(c.kind, fields)
		if _, exists := c.FindByKey(key); exists {
			return nil, nil, &storage.ConflictError{Key: c.kind.Key, Value: key}
		}
	}

	rec := fields.Clone()
	rec.SetID(c.NextID())

	records := make([]types.Record, len(c.records), len(c.records)+1)
	copy(records, c.records)
	records = append(records, rec)

	return &Collection{kind: c.kind, records: records}, rec.Clone(), nil
}

// Replace returns a new Collection in which the record with the given id
// has its mutable fields replaced; the record keeps its id and its position.
// Fails with a NotFoundError for unknown ids — existence is checked before
// the fields are validated, so a request against a missing record reports
// the miss rather than the field problems. Validates fields exactly like
// Insert, and fails with a ConflictError when the new values would duplicate
// another record's natural key ("distinct at all times" beats PUT
// convenience).
func (c *Collection) Replace(id int64, fields types.Record) (*Collection, types.Record, error) {
	idx := c.indexOf(id)
	if idx == -1 {
		return nil, nil, &storage.NotFoundError{Kind: c.kind.Name, IDOrKey: fmt.Sprint(id)}
	}
	if err := Validate(c.kind, fields); err != nil {
		return nil, nil, err
	}
	if c.kind.Key != "" {
		key := keyValue(c.kind, fields)
		for j, other := range c.records {
			if j != idx && strings.EqualFold(keyValue(c.kind, other), key) {
				return nil, nil, &storage.ConflictError{Key: c.kind.Key, Value: key}
			}
		}
	}

	rec := fields.Clone()
	rec.SetID(id)

	records := make([]types.Record, len(c.records))
	copy(records, c.records)
	records[idx] = rec

	return &Collection{kind: c.kind, records: records}, rec.Clone(), nil
}

// Remove returns a new Collection without the record with the given id,
// preserving the order of the rest. Fails with a NotFoundError for unknown
// ids.
func (c *Collection) Remove(id int64) (*Collection, error) {
	idx := c.indexOf(id)
	if idx == -1 {
		return nil, &storage.NotFoundError{Kind: c.kind.Name, IDOrKey: fmt.Sprint(id)}
	}

	records := make([]types.Record, 0, len(c.records)-1)
	records = append(records, c.records[:idx]...)
	records = append(records, c.records[idx+1:]...)

	return &Collection{kind: c.kind, records: records}, nil
}

// indexOf returns the position of the record with the given id, or -1.
func (c *Collection) indexOf(id int64) int {
	for idx, rec := range c.records {
		if rec.ID() == id {
			return idx
		}
	}
	return -1
}

// Validate checks that every required field of the kind is present and
// non-empty in fields. The rule set is built from the kind descriptor, so
// one function covers every kind.
//
// "required" treats zero values as missing: empty string, 0, and false all
// fail the check, not just absent fields.
func Validate(kind types.Kind, fields types.Record) error {
	if len(kind.Required) == 0 {
		return nil
	}
	rules := make(map[string]any, len(kind.Required))
	for _, f := range kind.Required {
		rules[f] = "required"
	}

	failed := validate.ValidateMap(fields, rules)
	if len(failed) == 0 {
		return nil
	}

	missing := make([]string, 0, len(failed))
	for field := range failed {
		missing = append(missing, field)
	}
	sort.Strings(missing)
	return &storage.ValidationError{Missing: missing}
}

// keyValue extracts the natural-key value of rec as a string. Keys are
// strings in practice; anything else is formatted so comparisons stay
// total.
func keyValue(kind types.Kind, rec types.Record) string {
	v, ok := rec[kind.Key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// normalize clones rec and pins its id field to the int64 form.
func normalize(rec types.Record, id int64) types.Record {
	out := rec.Clone()
	out.SetID(id)
	return out
}
