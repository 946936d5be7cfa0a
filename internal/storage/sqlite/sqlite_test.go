package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/catalog-api/internal/storage"
	"github.com/aanand-mishra/catalog-api/internal/types"
)

func newTestStore(t *testing.T, kind types.Kind, defaults []types.Record) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), kind.Name+".db")
	s, err := New(Params{Kind: kind, Path: path, Defaults: defaults})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestNew_SeedsEmptyTableOnly(t *testing.T) {
	s, path := newTestStore(t, types.Product, types.DefaultProducts())

	list, err := s.List(nil)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	require.NoError(t, s.Delete(3))
	require.NoError(t, s.Close())

	// Reopening with defaults must not re-add the deleted record.
	again, err := New(Params{
		Kind:     types.Product,
		Path:     path,
		Defaults: types.DefaultProducts(),
	})
	require.NoError(t, err)
	defer again.Close()

	list, err = again.List(nil)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCreate_AssignsMaxPlusOne(t *testing.T) {
	s, _ := newTestStore(t, types.Product, types.DefaultProducts())

	rec, err := s.Create(types.Record{
		"name": "Webcam", "price": 150.0, "description": "1080p USB webcam",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.ID())

	// Emptying the table lets ids start over, same as the file backend.
	for _, id := range []int64{1, 2, 3, 4} {
		require.NoError(t, s.Delete(id))
	}
	rec, err = s.Create(types.Record{
		"name": "Fresh", "price": 1.0, "description": "first again",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID())
}

func TestGet_ByIDAndByNaturalKey(t *testing.T) {
	s, _ := newTestStore(t, types.Student, types.DefaultStudents())

	byID, err := s.Get("2")
	require.NoError(t, err)
	assert.Equal(t, "Priya Sharma", byID["name"])

	byKey, err := s.Get("s002")
	require.NoError(t, err)
	assert.Equal(t, byID.ID(), byKey.ID())

	_, err = s.Get("999")
	var nfErr *storage.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestUpdate_ReplacesFieldsAndKeepsID(t *testing.T) {
	s, _ := newTestStore(t, types.Product, types.DefaultProducts())

	rec, err := s.Update(1, types.Record{
		"name": "Laptop Pro", "price": 89999.0, "description": "upgraded",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID())

	got, err := s.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "Laptop Pro", got["name"])

	_, err = s.Update(42, types.Record{
		"name": "X", "price": 1.0, "description": "x",
	})
	var nfErr *storage.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestMutations_EnforceValidationAndConflicts(t *testing.T) {
	s, _ := newTestStore(t, types.Student, types.DefaultStudents())

	_, err := s.Create(types.Record{"name": "Only a name"})
	var vErr *storage.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"grade", "studentID"}, vErr.Missing)

	_, err = s.Create(types.Record{
		"name": "Imposter", "grade": "C", "studentID": "s001",
	})
	var cErr *storage.ConflictError
	require.ErrorAs(t, err, &cErr)

	// Nothing landed in the table.
	list, err := s.List(nil)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestDelete_MissingRowIsNotFound(t *testing.T) {
	s, _ := newTestStore(t, types.Product, types.DefaultProducts())

	require.NoError(t, s.Delete(2))

	err := s.Delete(2)
	var nfErr *storage.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestListFilter(t *testing.T) {
	s, _ := newTestStore(t, types.Product, types.DefaultProducts())

	got, err := s.List(&storage.Filter{Field: "name", Value: "keyboard"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID())
}

func TestZeroValueStore_IsNotReady(t *testing.T) {
	var s Store

	_, err := s.List(nil)
	assert.ErrorIs(t, err, storage.ErrNotReady)
	_, err = s.Create(types.Record{"name": "X", "price": 1.0, "description": "x"})
	assert.ErrorIs(t, err, storage.ErrNotReady)
}
