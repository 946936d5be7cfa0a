// Package records contains the HTTP handlers for a record resource. The
// same five handlers serve every kind — main mounts one set under
// /api/products and another under /api/students, each closed over its own
// store.
//
// HANDLER PATTERN USED HERE — THE CLOSURE / FACTORY PATTERN:
// ────────────────────────────────────────────────────────────
// Go's router expects handler functions with the signature:
//
//	func(http.ResponseWriter, *http.Request)
//
// That signature has no room for extra parameters like a store.
// To inject dependencies we use a factory function that:
//  1. Accepts dependencies (kind name, storage)
//  2. Returns a function with the exact signature the router needs
//
// Because the inner function "closes over" the outer parameters, it can
// access `store` even after the factory call has returned.
// This is called a closure. Example:
//
//	router.HandleFunc("POST /api/products", records.New("product", store))
//	//                                              ^^^^^^^^^^^^^^^^^^^^
//	//                         New(...) is called ONCE at startup.
//	//                         It returns a handler func which is called
//	//                         on EVERY incoming request.
package records

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aanand-mishra/catalog-api/internal/storage"
	"github.com/aanand-mishra/catalog-api/internal/types"
	"github.com/aanand-mishra/catalog-api/internal/utils/response"
)

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /api/<kind>s
// Creates a new record from the JSON request body.
//
// Request body (JSON) — the kind's required fields:
//
//	{ "name": "Laptop", "price": 1200, "description": "A powerful laptop" }
//
// Success response (201 Created) — the stored record with its new id:
//
//	{ "id": 4, "name": "Laptop", "price": 1200, "description": "..." }
//
// Error responses:
//
//	400 Bad Request — empty body, malformed JSON, or missing required fields
//	409 Conflict    — another record already holds the natural key
//	500 Internal    — persistence failure (the change was rolled back)
//
// ─────────────────────────────────────────────────────────────────────────────
func New(kind string, store storage.Storage) http.HandlerFunc {
	// This is the factory function. It runs ONCE when the route is registered.
	// It captures `kind` and `store` in the closure below.

	return func(w http.ResponseWriter, r *http.Request) {
		// Structured log: every request gets an Info log so we can trace
		// activity in production logs.
		slog.Info("creating a record", slog.String("kind", kind))

		fields, ok := decodeBody(w, r)
		if !ok {
			return
		}

		// The store owns validation, key uniqueness, and id assignment —
		// the handler only translates errors into status codes.
		rec, err := store.Create(fields)
		if err != nil {
			writeError(w, err)
			return
		}

		slog.Info("record created",
			slog.String("kind", kind), slog.Int64("id", rec.ID()))

		response.WriteJSON(w, http.StatusCreated, rec)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Get handles GET /api/<kind>s/{id}
// Fetches a single record. A numeric {id} looks up by id; anything else is
// treated as the kind's natural key (students can be fetched by studentID).
//
// Success response (200 OK):
//
//	{ "id": 1, "name": "Rakesh Kumar", "grade": "10th", "studentID": "S001" }
//
// Error responses:
//
//	404 Not Found — no record with that id or key
//
// ─────────────────────────────────────────────────────────────────────────────
func Get(kind string, store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.PathValue("id") extracts the {id} segment from the URL.
		// This works because Go 1.22+ supports named path parameters in
		// the ServeMux pattern: "GET /api/products/{id}"
		idOrKey := r.PathValue("id")
		slog.Info("getting a record",
			slog.String("kind", kind), slog.String("id", idOrKey))

		rec, err := store.Get(idOrKey)
		if err != nil {
			writeError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, rec)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET /api/<kind>s
// Returns a JSON array of all records, optionally filtered by one field:
//
//	GET /api/students?grade=A
//
// Success response (200 OK):
//
//	[
//	  { "id": 1, "name": "Laptop",   ... },
//	  { "id": 2, "name": "Keyboard", ... }
//	]
//
// Returns an empty array [] (not null) when nothing matches.
// ─────────────────────────────────────────────────────────────────────────────
func GetList(kind string, store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("getting all records", slog.String("kind", kind))

		filter, err := parseFilter(r)
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		list, err := store.List(filter)
		if err != nil {
			writeError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, list)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles PUT /api/<kind>s/{id}
// Replaces ALL mutable fields of an existing record. The id in the URL is
// authoritative; an id inside the body is ignored.
//
// Request body (JSON) — all required fields, like a create:
//
//	{ "name": "Laptop Pro", "price": 1500, "description": "Updated" }
//
// Success response (200 OK) — the updated record:
//
//	{ "id": 1, "name": "Laptop Pro", "price": 1500, "description": "Updated" }
//
// Error responses:
//
//	400 Bad Request — invalid id, empty body, or missing required fields
//	404 Not Found   — no record with that id
//	409 Conflict    — the new key value belongs to another record
//	500 Internal    — persistence failure (the change was rolled back)
//
// ─────────────────────────────────────────────────────────────────────────────
func Update(kind string, store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("updating a record",
			slog.String("kind", kind), slog.String("id", id))

		// Updates address records by id only — the natural key can itself
		// be the thing being changed, so it cannot double as an address.
		//
		// strconv.ParseInt(s, base, bitSize) converts string → int64.
		// base 10 = decimal, bitSize 64 = int64.
		intID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest,
				response.GeneralError(errors.New("invalid id: must be an integer")))
			return
		}

		fields, ok := decodeBody(w, r)
		if !ok {
			return
		}

		updated, err := store.Update(intID, fields)
		if err != nil {
			writeError(w, err)
			return
		}

		slog.Info("record updated",
			slog.String("kind", kind), slog.String("id", id))
		response.WriteJSON(w, http.StatusOK, updated)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete handles DELETE /api/<kind>s/{id}
// Permanently removes a record.
//
// Success response (200 OK):
//
//	{ "status": "deleted" }
//
// Error responses:
//
//	400 Bad Request — invalid id
//	404 Not Found   — no record with that id
//	500 Internal    — persistence failure (the record is still there)
//
// ─────────────────────────────────────────────────────────────────────────────
func Delete(kind string, store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("deleting a record",
			slog.String("kind", kind), slog.String("id", id))

		intID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest,
				response.GeneralError(errors.New("invalid id: must be an integer")))
			return
		}

		if err := store.Delete(intID); err != nil {
			writeError(w, err)
			return
		}

		slog.Info("record deleted",
			slog.String("kind", kind), slog.String("id", id))
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// decodeBody reads the JSON request body into a field mapping. On failure
// it writes the 400 response itself and reports ok=false so the handler
// can simply return.
func decodeBody(w http.ResponseWriter, r *http.Request) (types.Record, bool) {
	var fields types.Record

	// json.NewDecoder reads from r.Body (the raw bytes sent by the client).
	// Decoding into a map keeps the handler kind-agnostic: the store knows
	// which fields the kind requires, the handler does not.
	err := json.NewDecoder(r.Body).Decode(&fields)

	if errors.Is(err, io.EOF) {
		// io.EOF means the body was completely empty — nothing to decode.
		response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(errors.New("request body is empty")))
		return nil, false
	}
	if err != nil {
		// Any other decode error: malformed JSON, wrong top-level type, etc.
		response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
		return nil, false
	}
	return fields, true
}

// parseFilter turns the query string into at most one field filter.
// No query parameters means no filter; more than one is rejected rather
// than silently picking a winner.
func parseFilter(r *http.Request) (*storage.Filter, error) {
	query := r.URL.Query()
	if len(query) == 0 {
		return nil, nil
	}
	if len(query) > 1 {
		return nil, errors.New("filtering supports exactly one field")
	}

	for field, values := range query {
		if len(values) != 1 {
			return nil, errors.New("filtering supports exactly one value per field")
		}
		return &storage.Filter{Field: field, Value: values[0]}, nil
	}
	return nil, nil // unreachable, the map has exactly one entry
}

// writeError translates a store error into the matching HTTP status.
// Expected errors (validation, conflict, not-found) map to 4xx; anything
// else — persistence failures, an uninitialized store — is a 500.
func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *storage.ValidationError
		conflictErr   *storage.ConflictError
		notFoundErr   *storage.NotFoundError
	)

	switch {
	case errors.As(err, &validationErr):
		response.WriteJSON(w, http.StatusBadRequest,
			response.ValidationError(validationErr.Missing))
	case errors.As(err, &conflictErr):
		response.WriteJSON(w, http.StatusConflict, response.GeneralError(err))
	case errors.As(err, &notFoundErr):
		response.WriteJSON(w, http.StatusNotFound, response.GeneralError(err))
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		response.WriteJSON(w, http.StatusInternalServerError,
			response.GeneralError(err))
	}
}
