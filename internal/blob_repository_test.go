package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcodebn/zoun"
)

func TestBlobKey(t *testing.T) {
	assert.Equal(t, "Employee/1/profilePicture", blobKey("", "Employee", "1", "profilePicture"))
	assert.Equal(t, "admin/blobs/Employee/1/profilePicture", blobKey("/admin/blobs/", "Employee", "1", "profilePicture"))
}

func TestMemoryBlobStore(t *testing.T) {
	store := NewMemoryBlobStore()
	ctx := context.Background()

	payload := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", payload))
	payload[0] = 'z'

	data, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), data, "stored payloads are copies")

	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func newBlobEmployees(t *testing.T) (zoun.Repository, *MemoryRepository, *MemoryBlobStore) {
	t.Helper()
	inner := newMemoryStore(t, employeeType)
	store := NewMemoryBlobStore()
	repo, err := NewBlobRepository("Employee", "blobs", inner, store, employeeType, nil)
	require.NoError(t, err)
	return repo, inner, store
}

func TestBlobRepository_OffloadsPayloads(t *testing.T) {
	repo, inner, store := newBlobEmployees(t)
	ctx := context.Background()

	input := &employee{FirstName: "John", ProfilePicture: []byte{1, 2, 3}}
	saved, err := repo.Save(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, saved.(*employee).ProfilePicture)
	assert.Equal(t, []byte{1, 2, 3}, input.ProfilePicture, "caller's record keeps its payload")

	raw, _, err := inner.FindByID(ctx, int64(1))
	require.NoError(t, err)
	assert.Empty(t, raw.(*employee).ProfilePicture, "document is stored without the payload")

	data, ok, err := store.Get(ctx, "blobs/Employee/1/profilePicture")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, data)

	loaded, found, err := repo.FindByID(ctx, int64(1))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte{1, 2, 3}, loaded.(*employee).ProfilePicture)

	listed, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Empty(t, listed[0].(*employee).ProfilePicture, "list reads are not hydrated")
}

func TestBlobRepository_ClearAndDelete(t *testing.T) {
	repo, _, store := newBlobEmployees(t)
	ctx := context.Background()

	saved, err := repo.Save(ctx, &employee{FirstName: "John", ProfilePicture: []byte("img")})
	require.NoError(t, err)
	e := saved.(*employee)

	e.ProfilePicture = nil
	_, err = repo.Save(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())

	_, err = repo.Save(ctx, &employee{ID: e.ID, FirstName: "John", ProfilePicture: []byte("again")})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, repo.DeleteByID(ctx, e.ID))
	assert.Equal(t, 0, store.Len())
	_, found, err := repo.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBlobRepository_PassThroughWithoutBinaryFields(t *testing.T) {
	inner := newMemoryStore(t, departmentType)
	repo, err := NewBlobRepository("Department", "", inner, NewMemoryBlobStore(), departmentType, nil)
	require.NoError(t, err)
	assert.Same(t, inner, repo)
}

func TestBlobRepository_LobUUIDRecords(t *testing.T) {
	inner := newMemoryStore(t, documentType)
	store := NewMemoryBlobStore()
	repo, err := NewBlobRepository("Document", "", inner, store, documentType, nil)
	require.NoError(t, err)
	ctx := context.Background()

	saved, err := repo.Save(ctx, &document{Title: "Manual", Body: []byte("chapter one")})
	require.NoError(t, err)
	id := saved.(*document).ID

	_, ok, err := store.Get(ctx, "Document/"+id.String()+"/body")
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, found, err := repo.FindByID(ctx, id.String())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("chapter one"), loaded.(*document).Body)
}

type brokenBlobStore struct{ err error }

func (b brokenBlobStore) Put(ctx context.Context, key string, data []byte) error { return b.err }
func (b brokenBlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, b.err
}
func (b brokenBlobStore) Delete(ctx context.Context, key string) error { return b.err }

func TestBlobRepository_StoreFailures(t *testing.T) {
	inner := newMemoryStore(t, employeeType)
	boom := errors.New("bucket gone")
	repo, err := NewBlobRepository("Employee", "", inner, brokenBlobStore{err: boom}, employeeType, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = repo.Save(ctx, &employee{FirstName: "John", ProfilePicture: []byte("x")})
	assert.ErrorIs(t, err, boom)

	_, _, err = repo.FindByID(ctx, int64(1))
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, repo.DeleteByID(ctx, int64(1)), "payload cleanup failures are only logged")
}
