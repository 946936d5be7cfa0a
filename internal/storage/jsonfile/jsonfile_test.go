package jsonfile

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/catalog-api/internal/storage"
	"github.com/aanand-mishra/catalog-api/internal/types"
)

func newProductStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "product.json")
	s, err := New(Params{
		Kind:     types.Product,
		Path:     path,
		Defaults: types.DefaultProducts(),
	})
	require.NoError(t, err)
	return s, path
}

func newStudentStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Params{
		Kind:     types.Student,
		Path:     filepath.Join(t.TempDir(), "student.json"),
		Defaults: types.DefaultStudents(),
	})
	require.NoError(t, err)
	return s
}

func reopen(t *testing.T, kind types.Kind, path string) *Store {
	t.Helper()
	s, err := New(Params{Kind: kind, Path: path})
	require.NoError(t, err)
	return s
}

func TestNew_SeedsOnFirstRun(t *testing.T) {
	s, path := newProductStore(t)

	list, err := s.List(nil)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, err = os.Stat(path)
	require.NoError(t, err, "seeding must write the snapshot file")
}

func TestNew_DoesNotReseedExistingSnapshot(t *testing.T) {
	s, path := newProductStore(t)

	require.NoError(t, s.Delete(3))

	// Reopening with defaults must respect the existing snapshot, not
	// re-add the deleted record.
	again, err := New(Params{
		Kind:     types.Product,
		Path:     path,
		Defaults: types.DefaultProducts(),
	})
	require.NoError(t, err)

	list, err := again.List(nil)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCreate_SurvivesRestart(t *testing.T) {
	s, path := newProductStore(t)

	rec, err := s.Create(types.Record{
		"name": "Webcam", "price": 150.0, "description": "1080p USB webcam",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.ID())

	again := reopen(t, types.Product, path)
	got, err := again.Get("4")
	require.NoError(t, err)
	assert.Equal(t, "Webcam", got["name"])
	assert.Equal(t, int64(4), got.ID())
}

func TestCreate_ValidationLeavesStoreUntouched(t *testing.T) {
	s, _ := newProductStore(t)

	_, err := s.Create(types.Record{"name": "Webcam"})

	var vErr *storage.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"description", "price"}, vErr.Missing)

	list, err := s.List(nil)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestCreate_KeyConflictIgnoresCase(t *testing.T) {
	s := newStudentStore(t)

	_, err := s.Create(types.Record{
		"name": "Imposter", "grade": "C", "studentID": "s002",
	})

	var cErr *storage.ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "studentID", cErr.Key)
}

func TestGet_ByIDAndByNaturalKey(t *testing.T) {
	s := newStudentStore(t)

	byID, err := s.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "Rakesh Kumar", byID["name"])

	byKey, err := s.Get("S003")
	require.NoError(t, err)
	assert.Equal(t, "Aarav Patel", byKey["name"])

	// Key lookup is case-insensitive.
	byFoldedKey, err := s.Get("s003")
	require.NoError(t, err)
	assert.Equal(t, byKey.ID(), byFoldedKey.ID())
}

func TestGet_Misses(t *testing.T) {
	products, _ := newProductStore(t)
	students := newStudentStore(t)

	tests := []struct {
		name    string
		store   *Store
		idOrKey string
	}{
		{"unknown id", products, "999"},
		{"non-numeric lookup on keyless kind", products, "Laptop"},
		{"unknown key", students, "S999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.store.Get(tt.idOrKey)

			var nfErr *storage.NotFoundError
			require.ErrorAs(t, err, &nfErr)
			assert.Equal(t, tt.idOrKey, nfErr.IDOrKey)
		})
	}
}

func TestUpdate_ReplacesFieldsAndSurvivesRestart(t *testing.T) {
	s, path := newProductStore(t)

	rec, err := s.Update(1, types.Record{
		"name": "Laptop Pro", "price": 89999.0, "description": "upgraded",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID())
	assert.Equal(t, "Laptop Pro", rec["name"])

	again := reopen(t, types.Product, path)
	list, err := again.List(nil)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(1), list[0].ID(), "updated record keeps its position")
	assert.Equal(t, "Laptop Pro", list[0]["name"])
}

func TestUpdate_UnknownID(t *testing.T) {
	s, _ := newProductStore(t)

	_, err := s.Update(42, types.Record{
		"name": "X", "price": 1.0, "description": "x",
	})

	var nfErr *storage.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestUpdate_CannotStealAnotherKey(t *testing.T) {
	s := newStudentStore(t)

	_, err := s.Update(1, types.Record{
		"name": "Rakesh Kumar", "grade": "A", "studentID": "S002",
	})

	var cErr *storage.ConflictError
	require.ErrorAs(t, err, &cErr)

	// Keeping your own key while changing other fields is fine.
	rec, err := s.Update(1, types.Record{
		"name": "Rakesh Kumar", "grade": "A+", "studentID": "S001",
	})
	require.NoError(t, err)
	assert.Equal(t, "A+", rec["grade"])
}

func TestDelete_RemovesAndSurvivesRestart(t *testing.T) {
	s, path := newProductStore(t)

	require.NoError(t, s.Delete(2))

	list, err := s.List(nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID())
	assert.Equal(t, int64(3), list[1].ID())

	err = s.Delete(2)
	var nfErr *storage.NotFoundError
	require.ErrorAs(t, err, &nfErr, "second delete of the same id misses")

	again := reopen(t, types.Product, path)
	_, err = again.Get("2")
	require.ErrorAs(t, err, &nfErr)
}

func TestIDReuse_AfterEmptyingTheCollection(t *testing.T) {
	s, _ := newProductStore(t)

	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, s.Delete(id))
	}

	rec, err := s.Create(types.Record{
		"name": "Fresh", "price": 1.0, "description": "first again",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID(), "an emptied collection starts ids over")
}

func TestMutation_RollsBackWhenPersistFails(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	path := filepath.Join(dataDir, "product.json")

	s, err := New(Params{
		Kind:     types.Product,
		Path:     path,
		Defaults: types.DefaultProducts(),
	})
	require.NoError(t, err)

	before, err := s.List(nil)
	require.NoError(t, err)

	// Break the environment out from under the store: the data directory
	// becomes a regular file, so the next snapshot write cannot happen.
	require.NoError(t, os.RemoveAll(dataDir))
	require.NoError(t, os.WriteFile(dataDir, []byte("in the way"), 0o644))

	_, err = s.Create(types.Record{
		"name": "Webcam", "price": 150.0, "description": "x",
	})
	var pErr *storage.PersistenceError
	require.ErrorAs(t, err, &pErr)

	// The failed create must not be visible: memory still matches the
	// last successfully written snapshot.
	after, err := s.List(nil)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// Reads keep working off the in-memory state.
	rec, err := s.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "Laptop", rec["name"])

	// Updates and deletes roll back the same way.
	_, err = s.Update(1, types.Record{"name": "X", "price": 1.0, "description": "x"})
	require.ErrorAs(t, err, &pErr)
	err = s.Delete(1)
	require.ErrorAs(t, err, &pErr)

	after, err = s.List(nil)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMutation_RollsBackWhenTheWriteTimesOut(t *testing.T) {
	// Seed the snapshot with the normal timeout, then reopen with a
	// nanosecond SaveTimeout: startup reads the existing file without
	// writing, so New succeeds, but every snapshot write from here on is
	// doomed.
	_, path := newProductStore(t)

	s, err := New(Params{
		Kind:        types.Product,
		Path:        path,
		SaveTimeout: time.Nanosecond,
	})
	require.NoError(t, err)

	before, err := s.List(nil)
	require.NoError(t, err)

	// Big enough that the write cannot possibly finish before the timer.
	_, err = s.Create(types.Record{
		"name": "Gadget", "price": 1.0,
		"description": strings.Repeat("x", 8<<20),
	})

	var pErr *storage.PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)

	after, err := s.List(nil)
	require.NoError(t, err)
	assert.Equal(t, before, after, "a timed-out create must not become visible")
}

func TestZeroValueStore_IsNotReady(t *testing.T) {
	var s Store

	_, err := s.List(nil)
	assert.ErrorIs(t, err, storage.ErrNotReady)
	_, err = s.Get("1")
	assert.ErrorIs(t, err, storage.ErrNotReady)
	_, err = s.Create(types.Record{"name": "X", "price": 1.0, "description": "x"})
	assert.ErrorIs(t, err, storage.ErrNotReady)
	_, err = s.Update(1, types.Record{"name": "X", "price": 1.0, "description": "x"})
	assert.ErrorIs(t, err, storage.ErrNotReady)
	assert.ErrorIs(t, s.Delete(1), storage.ErrNotReady)
}

func TestNew_RejectsCorruptSnapshots(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unparseable", "{broken"},
		{
			// Parses fine but violates the duplicate-id invariant.
			"invariant violation",
			`[{"id":1,"name":"A","price":1,"description":"a"},
			  {"id":1,"name":"B","price":2,"description":"b"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "product.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := New(Params{Kind: types.Product, Path: path})

			var cErr *storage.CorruptSnapshotError
			require.ErrorAs(t, err, &cErr)
			assert.Equal(t, path, cErr.Path)
		})
	}
}

func TestNew_CleansStaleTempFiles(t *testing.T) {
	_, path := newProductStore(t)

	stale := path + ".tmp-42"
	require.NoError(t, os.WriteFile(stale, []byte("leftover"), 0o644))

	reopen(t, types.Product, path)

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	s, _ := newProductStore(t)

	const (
		readers   = 8
		readsEach = 50
		writes    = 20
		seeded    = 3
	)

	var wg sync.WaitGroup

	// Readers hammer List and Get while the writer appends. Every read
	// must see a complete, consistent collection — never a partial one.
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < readsEach; j++ {
				list, err := s.List(nil)
				assert.NoError(t, err)
				assert.GreaterOrEqual(t, len(list), seeded)

				_, err = s.Get("1")
				assert.NoError(t, err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < writes; j++ {
			_, err := s.Create(types.Record{
				"name": "Gadget", "price": float64(j + 1), "description": "bulk",
			})
			assert.NoError(t, err)
		}
	}()

	wg.Wait()

	list, err := s.List(nil)
	require.NoError(t, err)
	assert.Len(t, list, seeded+writes)
}
