// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles —
// handlers, storage backends, and utils can all import types without
// depending on each other.
package types

import (
	"encoding/json"
)

// FieldID is the record field that holds the store-assigned numeric id.
// It is reserved: clients cannot set it, and update never changes it.
const FieldID = "id"

// Record represents one entity instance (a product, a student, ...) as a
// mapping from field name to value.
//
// Values are the JSON scalar types: string, number (float64 after decoding),
// or boolean. That is the snapshot file contract — a snapshot is a JSON
// array of these mappings, pretty-printed for human inspection.
//
// The one special field is "id" (FieldID), which the store assigns and which
// is normalized to int64 everywhere in memory, regardless of how it was
// decoded.
type Record map[string]any

// ID returns the record's numeric id, converting from whichever numeric
// type the decode boundary produced (encoding/json gives float64, the
// store itself assigns int64). Returns 0 when the record has no id yet —
// assigned ids always start at 1, so 0 is never a real id.
func (r Record) ID() int64 {
	switch v := r[FieldID].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		id, err := v.Int64()
		if err != nil {
			return 0
		}
		return id
	default:
		return 0
	}
}

// SetID stores id under the reserved id field as an int64.
// Maps are reference types, so this mutates the record in place.
func (r Record) SetID(id int64) {
	r[FieldID] = id
}

// Clone returns a deep copy of the record: mutating the clone, or anything
// nested inside it, never shows through to the original. Values are scalars
// by contract, but nothing stops an HTTP client from sending nested JSON and
// the presence checks accept it, so the copy walks nested objects and arrays
// too instead of trusting the contract.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the JSON value shapes that alias memory — objects and
// arrays. Scalars are immutable and pass through unchanged.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			out[k] = cloneValue(nested)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, nested := range val {
			out[i] = cloneValue(nested)
		}
		return out
	default:
		return v
	}
}

// Kind describes one record kind: which fields a record must carry and
// which field, if any, is its natural key.
//
// A Kind is pure data. The collection and storage packages interpret it;
// nothing here behaves.
type Kind struct {
	// Name is the singular kind name, e.g. "student". It doubles as the
	// snapshot file stem: the student collection persists to
	// <data_dir>/student.json.
	Name string

	// Required lists the fields that must be present and non-empty on
	// every create and update.
	Required []string

	// Key names the natural-key field — a kind-specific identifier (e.g.
	// studentID) that must be unique within the collection, on top of the
	// numeric id. Empty when the kind has no natural key.
	Key string
}

// The two record kinds this application serves. Both are plain Kind values
// fed to the same store implementation — adding a kind means adding a value
// here and mounting its routes in main, nothing else.
var (
	Product = Kind{
		Name:     "product",
		Required: []string{"name", "price", "description"},
	}

	Student = Kind{
		Name:     "student",
		Required: []string{"name", "grade", "studentID"},
		Key:      "studentID",
	}
)

// DefaultProducts returns the built-in product seed set, used when a store
// starts with no snapshot on disk. Each call returns fresh copies so no two
// stores (or tests) ever share backing maps.
func DefaultProducts() []Record {
	return []Record{
		{FieldID: int64(1), "name": "Laptop", "price": 74999.00, "description": "14-inch ultrabook, 16 GB RAM"},
		{FieldID: int64(2), "name": "Keyboard", "price": 2499.00, "description": "Mechanical keyboard, blue switches"},
		{FieldID: int64(3), "name": "Monitor", "price": 12999.00, "description": "27-inch 1440p IPS display"},
	}
}

// DefaultStudents returns the built-in student seed set. Fresh copies on
// every call, same as DefaultProducts.
func DefaultStudents() []Record {
	return []Record{
		{FieldID: int64(1), "name": "Rakesh Kumar", "grade": "A", "studentID": "S001"},
		{FieldID: int64(2), "name": "Priya Sharma", "grade": "A+", "studentID": "S002"},
		{FieldID: int64(3), "name": "Aarav Patel", "grade": "B", "studentID": "S003"},
	}
}
