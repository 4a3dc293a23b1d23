package internal

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcodebn/zoun"
)

func TestMemoryRepository_SaveAssignsSequence(t *testing.T) {
	repo := newMemoryStore(t, departmentType)
	ctx := context.Background()

	first, err := repo.Save(ctx, &department{Name: "Engineering"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.(*department).ID)

	explicit, err := repo.Save(ctx, department{ID: 10, Name: "Research"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), explicit.(*department).ID)

	next, err := repo.Save(ctx, &department{Name: "Sales"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), next.(*department).ID, "sequence continues past explicit identifiers")
	assert.Equal(t, 3, repo.Count())
}

func TestMemoryRepository_SaveReturnsCopy(t *testing.T) {
	repo := newMemoryStore(t, departmentType)
	ctx := context.Background()

	input := &department{Name: "Engineering"}
	saved, err := repo.Save(ctx, input)
	require.NoError(t, err)

	saved.(*department).Name = "mutated"
	loaded, found, err := repo.FindByID(ctx, int64(1))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Engineering", loaded.(*department).Name)
}

func TestMemoryRepository_UpdateKeepsOrder(t *testing.T) {
	repo := newMemoryStore(t, departmentType)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		_, err := repo.Save(ctx, &department{Name: name})
		require.NoError(t, err)
	}

	_, err := repo.Save(ctx, &department{ID: 1, Name: "a2"})
	require.NoError(t, err)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(all))
	for _, r := range all {
		names = append(names, r.(*department).Name)
	}
	assert.Equal(t, []string{"a2", "b", "c"}, names)
}

func TestMemoryRepository_StringAndUUIDIdentifiers(t *testing.T) {
	ctx := context.Background()

	skills := newMemoryStore(t, skillType)
	saved, err := skills.Save(ctx, &skill{Label: "Go"})
	require.NoError(t, err)
	code := saved.(*skill).Code
	_, err = uuid.Parse(code)
	assert.NoError(t, err, "blank string identifiers receive a UUID")

	docs := newMemoryStore(t, documentType)
	saved, err = docs.Save(ctx, &document{Title: "Handbook", Body: []byte("text")})
	require.NoError(t, err)
	id := saved.(*document).ID
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, uuid.Version(7), id.Version())

	for _, key := range []any{id, id.String(), &id} {
		loaded, found, err := docs.FindByID(ctx, key)
		require.NoError(t, err)
		require.True(t, found, "lookup by %T", key)
		assert.Equal(t, []byte("text"), loaded.(*document).Body)
	}

	_, _, err = docs.FindByID(ctx, "not-a-uuid")
	assert.Error(t, err)
}

func TestMemoryRepository_FindAllPaginated(t *testing.T) {
	_, _, employees := seededRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		page      zoun.PageRequest
		wantIDs   []int64
		wantTotal int64
	}{
		{
			name:      "first page ascending",
			page:      zoun.PageRequest{Index: 0, Size: 2, SortField: "id", Ascending: true},
			wantIDs:   []int64{1, 2},
			wantTotal: 3,
		},
		{
			name:      "last page",
			page:      zoun.PageRequest{Index: 1, Size: 2, SortField: "id", Ascending: true},
			wantIDs:   []int64{3},
			wantTotal: 3,
		},
		{
			name:      "past the end",
			page:      zoun.PageRequest{Index: 5, Size: 2, SortField: "id", Ascending: true},
			wantIDs:   []int64{},
			wantTotal: 3,
		},
		{
			name:      "sorted by name descending",
			page:      zoun.PageRequest{Size: 10, SortField: "firstName"},
			wantIDs:   []int64{1, 2, 3},
			wantTotal: 3,
		},
		{
			name:      "search on enum values",
			page:      zoun.PageRequest{Size: 10, Search: "part_time"},
			wantIDs:   []int64{2},
			wantTotal: 1,
		},
		{
			name:      "search without matches",
			page:      zoun.PageRequest{Size: 10, Search: "nobody"},
			wantIDs:   []int64{},
			wantTotal: 0,
		},
		{
			name:      "unbounded page",
			page:      zoun.PageRequest{SortField: "salary", Ascending: true},
			wantIDs:   []int64{3, 1, 2},
			wantTotal: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, total, err := employees.FindAllPaginated(ctx, tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.wantIDs, recordIDs(t, records))
		})
	}

	_, _, err := employees.FindAllPaginated(ctx, zoun.PageRequest{Size: 2, SortField: "nickname"})
	assert.True(t, zoun.HasCode(err, zoun.ErrCodeFieldNotFound))
}

func TestMemoryRepository_Delete(t *testing.T) {
	_, _, employees := seededRegistry(t)
	ctx := context.Background()

	require.NoError(t, employees.DeleteByID(ctx, int64(2)))
	require.NoError(t, employees.DeleteByID(ctx, int64(2)))
	assert.Equal(t, 2, employees.Count())

	_, found, err := employees.FindByID(ctx, int64(2))
	require.NoError(t, err)
	assert.False(t, found)

	assert.Error(t, employees.DeleteByID(ctx, nil))
}

func TestMemoryRepository_EmbeddedRelationshipSnapshot(t *testing.T) {
	_, departments, employees := seededRegistry(t)
	ctx := context.Background()

	_, err := departments.Save(ctx, &department{ID: 1, Name: "Platform"})
	require.NoError(t, err)

	loaded, _, err := employees.FindByID(ctx, int64(1))
	require.NoError(t, err)
	require.NotNil(t, loaded.(*employee).Department)
	assert.Equal(t, "Engineering", loaded.(*employee).Department.Name)
}

func TestMemoryRepository_RejectsForeignRecords(t *testing.T) {
	repo := newMemoryStore(t, departmentType)

	_, err := repo.Save(context.Background(), &skill{Code: "go"})
	assert.Error(t, err)
	_, err = repo.Save(context.Background(), nil)
	assert.Error(t, err)
	_, err = repo.Save(context.Background(), (*department)(nil))
	assert.Error(t, err)

	_, err = NewMemoryRepository(reflect.TypeFor[struct{ Name string }](), nil)
	assert.Error(t, err)
}

func TestMemoryRepository_ConcurrentSaves(t *testing.T) {
	repo := newMemoryStore(t, departmentType)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Save(ctx, &department{Name: fmt.Sprintf("dept-%d", i)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, repo.Count())
	last, found, err := repo.FindByID(ctx, int64(50))
	require.NoError(t, err)
	assert.True(t, found)
	assert.NotEmpty(t, last.(*department).Name)
}
