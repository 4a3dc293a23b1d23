package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcodebn/zoun"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestBreaker(threshold int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(threshold, time.Minute, 30*time.Second)
	cb.now = clock.now
	return cb, clock
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb, clock := newTestBreaker(3)

	cb.RecordFailure()
	cb.RecordFailure()
	assert.False(t, cb.IsOpen())

	cb.RecordFailure()
	assert.True(t, cb.IsOpen())

	clock.advance(29 * time.Second)
	assert.True(t, cb.IsOpen())
	clock.advance(time.Second)
	assert.False(t, cb.IsOpen(), "breaker closes after the open duration")
}

func TestCircuitBreaker_FailuresOutsideWindowExpire(t *testing.T) {
	cb, clock := newTestBreaker(3)

	cb.RecordFailure()
	cb.RecordFailure()
	clock.advance(2 * time.Minute)
	cb.RecordFailure()
	assert.False(t, cb.IsOpen())

	cb.RecordFailure()
	cb.RecordFailure()
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb, _ := newTestBreaker(2)

	cb.RecordFailure()
	cb.RecordFailure()
	require.True(t, cb.IsOpen())

	cb.RecordSuccess()
	assert.False(t, cb.IsOpen())
	cb.RecordFailure()
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_NilIsClosed(t *testing.T) {
	var cb *CircuitBreaker
	cb.RecordFailure()
	cb.RecordSuccess()
	assert.False(t, cb.IsOpen())
}

func TestGuardedRepository_RejectsWhileOpen(t *testing.T) {
	metrics := captureTelemetry(t)
	cb, clock := newTestBreaker(2)
	failing := &failingRepository{err: errStorageDown}
	repo := NewGuardedRepository("Employee", failing, cb)
	ctx := context.Background()

	_, err := repo.FindAll(ctx)
	assert.ErrorIs(t, err, errStorageDown)
	_, _, err = repo.FindByID(ctx, int64(1))
	assert.ErrorIs(t, err, errStorageDown)
	assert.Equal(t, 2, failing.calls)

	_, err = repo.Save(ctx, &employee{})
	require.Error(t, err)
	assert.True(t, zoun.HasCode(err, zoun.ErrCodeStorageUnavailable))
	assert.Equal(t, 503, zoun.HTTPStatus(err))
	assert.Equal(t, zoun.GenericErrorMessage, zoun.PublicMessage(err))

	err = repo.DeleteByID(ctx, int64(1))
	assert.True(t, zoun.HasCode(err, zoun.ErrCodeStorageUnavailable))
	_, _, err = repo.FindAllPaginated(ctx, zoun.PageRequest{})
	assert.True(t, zoun.HasCode(err, zoun.ErrCodeStorageUnavailable))
	assert.Equal(t, 2, failing.calls, "open breaker does not reach storage")

	require.Len(t, *metrics, 3)
	for _, m := range *metrics {
		assert.Equal(t, MetricBreakerRejected, m.name)
		assert.Equal(t, "Employee", m.labels["model"])
	}

	clock.advance(31 * time.Second)
	_, err = repo.FindAll(ctx)
	assert.ErrorIs(t, err, errStorageDown, "calls are admitted again once the breaker closes")
	assert.Equal(t, 3, failing.calls)
}

func TestGuardedRepository_ClientErrorsAreNotFailures(t *testing.T) {
	cb, _ := newTestBreaker(1)
	repo := NewGuardedRepository("Employee", &failingRepository{err: zoun.NewRecordNotFoundError("Employee", 1)}, cb)

	for range 3 {
		_, _, err := repo.FindByID(context.Background(), int64(1))
		assert.True(t, zoun.IsNotFound(err))
	}
	assert.False(t, cb.IsOpen())
}

func TestGuardedRepository_SuccessKeepsBreakerClosed(t *testing.T) {
	cb, _ := newTestBreaker(2)
	_, _, employees := seededRegistry(t)
	repo := NewGuardedRepository("Employee", employees, cb)
	ctx := context.Background()

	cb.RecordFailure()
	records, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	cb.RecordFailure()
	assert.False(t, cb.IsOpen(), "the success cleared earlier failures")

	saved, err := repo.Save(ctx, &employee{FirstName: "Eve"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), saved.(*employee).ID)
}
