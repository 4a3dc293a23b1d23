package internal

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcodebn/zoun"
)

// countingRepository counts FindAll calls reaching the wrapped handle.
type countingRepository struct {
	zoun.Repository
	findAll int
}

func (c *countingRepository) FindAll(ctx context.Context) ([]any, error) {
	c.findAll++
	return c.Repository.FindAll(ctx)
}

func setupCachedDepartments(t *testing.T) (zoun.Repository, *countingRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingRepository{Repository: newMemoryStore(t, departmentType)}
	ctx := context.Background()
	for _, name := range []string{"Engineering", "Sales"} {
		_, err := inner.Save(ctx, &department{Name: name})
		require.NoError(t, err)
	}

	repo, err := NewCachedRepository("Department", inner, client, "zoun", time.Minute, departmentType, nil)
	require.NoError(t, err)
	return repo, inner, mr
}

func TestCachedRepository_FindAllUsesCache(t *testing.T) {
	metrics := captureTelemetry(t)
	repo, inner, mr := setupCachedDepartments(t)
	ctx := context.Background()

	first, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.True(t, mr.Exists("zoun:Department:all"))
	assert.Equal(t, time.Minute, mr.TTL("zoun:Department:all"))

	second, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.findAll)

	require.Len(t, *metrics, 2)
	assert.Equal(t, MetricCacheLookup, (*metrics)[0].name)
	assert.Equal(t, "miss", (*metrics)[0].labels["result"])
	assert.Equal(t, "hit", (*metrics)[1].labels["result"])
	assert.Equal(t, "Department", (*metrics)[1].labels["model"])
}

func TestCachedRepository_WritesInvalidate(t *testing.T) {
	repo, inner, mr := setupCachedDepartments(t)
	ctx := context.Background()

	_, err := repo.FindAll(ctx)
	require.NoError(t, err)

	_, err = repo.Save(ctx, &department{Name: "Marketing"})
	require.NoError(t, err)
	assert.False(t, mr.Exists("zoun:Department:all"))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, repo.DeleteByID(ctx, int64(3)))
	assert.False(t, mr.Exists("zoun:Department:all"))
	all, err = repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 3, inner.findAll)
}

func TestCachedRepository_ExpiresWithTTL(t *testing.T) {
	repo, inner, mr := setupCachedDepartments(t)
	ctx := context.Background()

	_, err := repo.FindAll(ctx)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, err = repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.findAll)
}

func TestCachedRepository_CorruptEntryIsIgnored(t *testing.T) {
	repo, inner, mr := setupCachedDepartments(t)
	require.NoError(t, mr.Set("zoun:Department:all", "{not json"))

	all, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 1, inner.findAll)
}

func TestCachedRepository_RedisDownFallsThrough(t *testing.T) {
	repo, inner, mr := setupCachedDepartments(t)
	ctx := context.Background()
	mr.SetError("ERR simulated outage")

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.Save(ctx, &department{Name: "Ops"})
	require.NoError(t, err, "cache failures never fail writes")
	assert.Equal(t, 1, inner.findAll)
}

func TestCachedRepository_PassThroughReads(t *testing.T) {
	repo, _, mr := setupCachedDepartments(t)
	ctx := context.Background()

	record, found, err := repo.FindByID(ctx, int64(2))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Sales", record.(*department).Name)

	records, total, err := repo.FindAllPaginated(ctx, zoun.PageRequest{Size: 1, SortField: "id", Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, records, 1)
	assert.False(t, mr.Exists("zoun:Department:all"), "paginated reads are not cached")
}

func TestNewCachedRepository_KeyWithoutPrefix(t *testing.T) {
	repo, err := NewCachedRepository("Department", newMemoryStore(t, departmentType), nil, "", time.Minute, departmentType, nil)
	require.NoError(t, err)
	assert.Equal(t, "Department:all", repo.(*cachedRepository).key)
}
