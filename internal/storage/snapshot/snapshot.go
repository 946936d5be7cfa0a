// Package snapshot translates between an in-memory record collection and
// its on-disk form: one pretty-printed JSON array per collection, readable
// and editable by a human.
//
// WHY WRITE-TEMP-THEN-RENAME?
// ───────────────────────────
// Rewriting the snapshot in place would leave a half-written file if the
// process died mid-write. Instead, Save writes the whole array to a
// temporary file in the same directory, syncs it, and renames it over the
// target. Rename within one directory is atomic on POSIX filesystems, so a
// reader (or the next startup) sees either the old snapshot or the new one,
// never a torn one.
//
// Writes are also bounded in time. The data write runs in its own goroutine
// and Save gives up after the timeout — the stuck writer keeps writing into
// a file that has been unlinked, so a late completion can never replace the
// snapshot behind the caller's back.
package snapshot

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/aanand-mishra/catalog-api/internal/storage"
	"github.com/aanand-mishra/catalog-api/internal/types"
)

// DefaultTimeout bounds a single snapshot write when the caller does not
// configure one.
const DefaultTimeout = 5 * time.Second

// Load reads the snapshot at path.
//
//   - File exists and parses: its records are returned as-is.
//   - File does not exist: defaults are written to path (creating parent
//     directories as needed) and returned — this is the first-run seeding.
//   - File exists but does not parse: a CorruptSnapshotError. The caller
//     decides what to do; this application aborts startup and leaves the
//     file in place for diagnosis rather than overwriting data.
//
// Load also clears out temp files a crashed Save may have left next to the
// snapshot.
func Load(path string, defaults []types.Record, timeout time.Duration) ([]types.Record, error) {
	removeStaleTemp(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := Save(path, defaults, timeout); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	if err != nil {
		return nil, &storage.PersistenceError{Path: path, Op: "read", Err: err}
	}

	var records []types.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &storage.CorruptSnapshotError{Path: path, Err: err}
	}
	return records, nil
}

// Save serializes the full collection and atomically replaces the snapshot
// at path with it. The write phase is bounded by timeout (DefaultTimeout
// when timeout is zero or negative); on timeout or any write failure the
// snapshot on disk is left exactly as it was and a PersistenceError is
// returned.
func Save(path string, records []types.Record, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if records == nil {
		records = []types.Record{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return &storage.PersistenceError{Path: path, Op: "encode", Err: err}
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &storage.PersistenceError{Path: path, Op: "mkdir", Err: err}
	}

	// The temp file must live in the same directory as the target:
	// os.Rename cannot cross filesystems.
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &storage.PersistenceError{Path: path, Op: "create temp", Err: err}
	}
	tmpName := tmp.Name()

	done := make(chan error, 1)
	go func() {
		done <- writeAndClose(tmp, data)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			os.Remove(tmpName)
			return &storage.PersistenceError{Path: path, Op: "write", Err: err}
		}
	case <-timer.C:
		// Unlink the temp path out from under the stuck writer. Its
		// remaining writes go to an orphaned inode; the rename below
		// never happens.
		os.Remove(tmpName)
		return &storage.PersistenceError{Path: path, Op: "write", Err: os.ErrDeadlineExceeded}
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &storage.PersistenceError{Path: path, Op: "rename", Err: err}
	}
	return nil
}

// writeAndClose flushes data all the way to disk: write, fsync, close.
// Without the fsync a rename could land before the data does and a power
// loss would produce exactly the torn snapshot the rename is meant to
// prevent.
func writeAndClose(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// removeStaleTemp deletes leftover temp files from earlier interrupted
// saves of this snapshot. Best effort: failures here are harmless.
func removeStaleTemp(path string) {
	stale, err := filepath.Glob(path + ".tmp-*")
	if err != nil {
		return
	}
	for _, p := range stale {
		os.Remove(p)
	}
}
