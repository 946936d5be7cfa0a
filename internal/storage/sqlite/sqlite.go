// Package sqlite is the database-backed implementation of the
// storage.Storage interface, built on Go's standard database/sql package.
//
// WHY SQLite?
// ───────────
// SQLite stores everything in a single file on disk. There is no
// network, no separate server process, and no installation beyond the
// driver. It is fast enough for most projects and trivial to set up.
//
// Each kind gets its own database file (data/product.db, data/student.db)
// holding one table:
//
//	records(id INTEGER PRIMARY KEY, fields TEXT NOT NULL)
//
// The id column is assigned by us, not by AUTOINCREMENT, so ids behave
// exactly like the other backends: highest existing id plus one. The
// fields column holds the record's mutable fields as a JSON object; the
// id never appears inside it.
//
// Mutations run through the same collection logic as the file-backed
// store — load the rows, apply the change in memory, then write the one
// row that changed inside a transaction. That keeps validation, key
// conflicts, and id assignment identical across backends instead of
// re-implementing them in SQL.
//
// The blank import below registers the sqlite3 driver with database/sql.
// The driver's init() function does this automatically when the package
// is loaded — we never call anything from it directly.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/aanand-mishra/catalog-api/internal/storage"
	"github.com/aanand-mishra/catalog-api/internal/storage/collection"
	"github.com/aanand-mishra/catalog-api/internal/types"

	// Blank import: side-effect only (registers the "sqlite3" driver).
	// Without this the sql.Open("sqlite3", ...) call would fail with
	// "unknown driver".
	_ "github.com/mattn/go-sqlite3"
)

// Params configures a Store. Only Kind is mandatory.
type Params struct {
	// Kind of record this store owns.
	Kind types.Kind

	// Path of the database file. Defaults to data/<kind>.db.
	Path string

	// Defaults seed the table when it is empty.
	Defaults []types.Record
}

// Store is the concrete implementation of storage.Storage.
// It holds a *sql.DB which is a connection pool managed by database/sql.
// A single *sql.DB is safe for concurrent use by multiple goroutines.
type Store struct {
	kind types.Kind
	path string
	db   *sql.DB

	// writeMu serializes mutations end to end, the same discipline as
	// the file-backed store. database/sql would allow concurrent writes,
	// but our check-then-write sequences (key conflict, next id) must
	// not interleave.
	writeMu sync.Mutex
}

var _ storage.Storage = (*Store)(nil)

// New opens the database at p.Path, creates the records table if it does
// not already exist, and seeds it with p.Defaults when it is empty.
//
// Naming convention: New() acts as a constructor. Go has no constructors,
// so the community convention is a package-level New() function that
// returns an initialised instance (and an error as the second value).
func New(p Params) (*Store, error) {
	if p.Path == "" {
		p.Path = filepath.Join("data", p.Kind.Name+".db")
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite.New: create data dir: %w", err)
	}

	// sql.Open does NOT open a real connection yet — it just validates
	// the driver name and data source name (DSN).
	// The first actual connection happens on the first query.
	db, err := sql.Open("sqlite3", p.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// CREATE TABLE IF NOT EXISTS is idempotent — safe to run on every
	// startup. If the table already exists nothing happens.
	//
	// Schema:
	//   id     — integer primary key, assigned by the store (max + 1)
	//   fields — the record's mutable fields as one JSON object
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id     INTEGER PRIMARY KEY,
			fields TEXT    NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	s := &Store{kind: p.Kind, path: p.Path, db: db}

	if err := s.seed(p.Defaults); err != nil {
		return nil, err
	}
	return s, nil
}

// seed inserts the default records, but only into an empty table — an
// existing dataset is never touched.
func (s *Store) seed(defaults []types.Record) error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&count); err != nil {
		return fmt.Errorf("sqlite.seed: count rows: %w", err)
	}
	if count > 0 || len(defaults) == 0 {
		return nil
	}

	// Run the defaults through the collection constructor first: it
	// normalizes ids and rejects duplicates, so a bad seed set fails
	// here instead of producing a broken table.
	col, err := collection.New(s.kind, defaults)
	if err != nil {
		return fmt.Errorf("sqlite.seed: %w", err)
	}

	// All inserts in one transaction: either the whole seed set lands
	// or none of it does.
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite.seed: begin tx: %w", err)
	}
	defer tx.Rollback() // no-op once Commit succeeds

	for _, rec := range col.Records() {
		if err := insertRecord(tx, rec); err != nil {
			return fmt.Errorf("sqlite.seed: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite.seed: commit: %w", err)
	}
	return nil
}

// Close releases the connection pool. Safe to call on a store whose New
// failed partway — db is only set once Open succeeds.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// List returns the records matching the filter, oldest first. Filtering
// happens in Go rather than SQL so the matching rules (case-insensitive
// strings, numeric and boolean equality) stay identical across backends.
// ─────────────────────────────────────────────────────────────────────────────
func (s *Store) List(filter *storage.Filter) ([]types.Record, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	records, err := s.loadAll(s.db)
	if err != nil {
		return nil, err
	}

	// Pre-allocate an empty (non-nil) slice.
	// Returning [] instead of null in JSON is better API behaviour.
	out := make([]types.Record, 0, len(records))
	for _, rec := range records {
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Get resolves a numeric idOrKey by primary key and anything else by the
// kind's natural key.
//
// HOW QueryRow + Scan WORK:
// ──────────────────────────
// QueryRow executes the query and returns a *Row — a single-row result.
// Scan reads the columns from that row into Go variables IN ORDER.
// If the query finds no match the error surfaces only when you call Scan,
// as the sentinel sql.ErrNoRows.
// ─────────────────────────────────────────────────────────────────────────────
func (s *Store) Get(idOrKey string) (types.Record, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	if id, err := strconv.ParseInt(idOrKey, 10, 64); err == nil {
		return s.getByID(id, idOrKey)
	}
	return s.getByKey(idOrKey)
}

func (s *Store) getByID(id int64, idOrKey string) (types.Record, error) {
	stmt, err := s.db.Prepare(
		"SELECT id, fields FROM records WHERE id = ? LIMIT 1",
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Get: prepare: %w", err)
	}
	defer stmt.Close()

	var (
		rowID     int64
		rowFields string
	)
	err = stmt.QueryRow(id).Scan(&rowID, &rowFields)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &storage.NotFoundError{Kind: s.kind.Name, IDOrKey: idOrKey}
		}
		return nil, fmt.Errorf("sqlite.Get: scan: %w", err)
	}

	return decodeRecord(rowID, rowFields)
}

// getByKey scans the table in Go. The key lives inside the JSON fields
// column and must compare case-insensitively, so doing the match here
// keeps it byte-for-byte consistent with the other backends.
func (s *Store) getByKey(key string) (types.Record, error) {
	records, err := s.loadAll(s.db)
	if err != nil {
		return nil, err
	}

	col, err := collection.New(s.kind, records)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Get: %w", err)
	}
	if rec, ok := col.FindByKey(key); ok {
		return rec, nil
	}
	return nil, &storage.NotFoundError{Kind: s.kind.Name, IDOrKey: key}
}

// ─────────────────────────────────────────────────────────────────────────────
// Create inserts a new record.
//
// The whole operation happens inside one transaction: read the current
// rows, let the collection logic validate the fields, check the natural
// key, and pick the next id, then insert exactly one row. If anything
// fails the transaction rolls back and the table is untouched.
//
// HOW PREPARED STATEMENTS PREVENT SQL INJECTION:
// ────────────────────────────────────────────────
// Prepared statements use placeholders (?). The database driver sends
// the query and the values separately. The database engine treats the
// values as pure data, never as SQL syntax — user input can never smuggle
// in a DROP TABLE.
// ─────────────────────────────────────────────────────────────────────────────
func (s *Store) Create(fields types.Record) (types.Record, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("sqlite.Create: begin tx: %w", err)
	}
	defer tx.Rollback()

	col, err := s.loadCollection(tx)
	if err != nil {
		return nil, err
	}
	_, rec, err := col.Insert(fields)
	if err != nil {
		return nil, err
	}

	if err := insertRecord(tx, rec); err != nil {
		return nil, fmt.Errorf("sqlite.Create: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite.Create: commit: %w", err)
	}
	return rec, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Update replaces the mutable fields of the record with the given id.
// Returns the updated record so the caller can echo it back to the client.
// ─────────────────────────────────────────────────────────────────────────────
func (s *Store) Update(id int64, fields types.Record) (types.Record, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("sqlite.Update: begin tx: %w", err)
	}
	defer tx.Rollback()

	col, err := s.loadCollection(tx)
	if err != nil {
		return nil, err
	}
	// Replace re-validates the fields and re-checks the natural key
	// against every other record, exactly like the other backends.
	_, rec, err := col.Replace(id, fields)
	if err != nil {
		return nil, err
	}

	encoded, err := encodeFields(rec)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Update: %w", err)
	}

	stmt, err := tx.Prepare("UPDATE records SET fields = ? WHERE id = ?")
	if err != nil {
		return nil, fmt.Errorf("sqlite.Update: prepare: %w", err)
	}
	defer stmt.Close()

	// Note the argument order matches the ? order in the SQL:
	//   fields, id
	if _, err := stmt.Exec(encoded, id); err != nil {
		return nil, fmt.Errorf("sqlite.Update: exec: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite.Update: commit: %w", err)
	}
	return rec, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete removes the record with the given id.
// ─────────────────────────────────────────────────────────────────────────────
func (s *Store) Delete(id int64) error {
	if err := s.guard(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	stmt, err := s.db.Prepare("DELETE FROM records WHERE id = ?")
	if err != nil {
		return fmt.Errorf("sqlite.Delete: prepare: %w", err)
	}
	defer stmt.Close()

	result, err := stmt.Exec(id)
	if err != nil {
		return fmt.Errorf("sqlite.Delete: exec: %w", err)
	}

	// RowsAffected tells us whether the id actually existed — DELETE on
	// a missing row is not an SQL error.
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite.Delete: rows affected: %w", err)
	}
	if affected == 0 {
		return &storage.NotFoundError{
			Kind:    s.kind.Name,
			IDOrKey: strconv.FormatInt(id, 10),
		}
	}
	return nil
}

// guard rejects operations on a zero-value Store that skipped New.
func (s *Store) guard() error {
	if s.db == nil {
		return storage.ErrNotReady
	}
	return nil
}

// querier is the slice of database/sql shared by *sql.DB and *sql.Tx that
// loadAll needs, so reads work both standalone and inside a transaction.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// loadAll reads every row back into records.
//
// HOW Query + rows.Next() WORK:
// ──────────────────────────────
// Query (unlike QueryRow) returns *sql.Rows — a cursor over multiple rows.
// We iterate with rows.Next() which advances the cursor and returns false
// when there are no more rows. We Scan each row inside the loop.
// Always defer rows.Close() to release the database connection.
// ─────────────────────────────────────────────────────────────────────────────
func (s *Store) loadAll(q querier) ([]types.Record, error) {
	// Explicitly list columns — never use SELECT * in production code.
	// If a column is added later, SELECT * would break Scan's ordering.
	//
	// Ids only grow while the table is non-empty, so ordering by id is
	// ordering by insertion.
	rows, err := q.Query("SELECT id, fields FROM records ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("sqlite.loadAll: query: %w", err)
	}
	defer rows.Close() // must close rows to free the DB connection

	records := make([]types.Record, 0)

	for rows.Next() { // advances cursor; returns false when exhausted
		var (
			id     int64
			fields string
		)
		if err := rows.Scan(&id, &fields); err != nil {
			return nil, fmt.Errorf("sqlite.loadAll: scan row: %w", err)
		}

		rec, err := decodeRecord(id, fields)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	// rows.Err() captures any error that occurred during iteration.
	// This is separate from Scan errors.
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite.loadAll: rows iteration: %w", err)
	}

	return records, nil
}

// loadCollection wraps the current rows in collection logic so mutations
// get validation, conflict checks, and id assignment for free.
func (s *Store) loadCollection(q querier) (*collection.Collection, error) {
	records, err := s.loadAll(q)
	if err != nil {
		return nil, err
	}
	col, err := collection.New(s.kind, records)
	if err != nil {
		return nil, fmt.Errorf("sqlite: rebuild collection: %w", err)
	}
	return col, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertRecord(e execer, rec types.Record) error {
	encoded, err := encodeFields(rec)
	if err != nil {
		return err
	}
	if _, err := e.Exec(
		"INSERT INTO records (id, fields) VALUES (?, ?)",
		rec.ID(), encoded,
	); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// encodeFields serializes a record's mutable fields — everything except
// the id, which lives in its own column.
func encodeFields(rec types.Record) (string, error) {
	fields := rec.Clone()
	delete(fields, types.FieldID)

	encoded, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(encoded), nil
}

// decodeRecord rebuilds a record from its row.
func decodeRecord(id int64, fields string) (types.Record, error) {
	var rec types.Record
	if err := json.Unmarshal([]byte(fields), &rec); err != nil {
		return nil, fmt.Errorf("decode record %d: %w", id, err)
	}
	if rec == nil {
		rec = types.Record{}
	}
	rec.SetID(id)
	return rec, nil
}
