package internal

import (
	"context"
	"sync"
	"time"

	"github.com/xcodebn/zoun"
	"go.uber.org/zap"
)

// CircuitBreaker is a lightweight in-memory circuit breaker.
type CircuitBreaker struct {
	mu           sync.Mutex
	failures     []time.Time
	threshold    int
	window       time.Duration
	openUntil    time.Time
	openDuration time.Duration
	now          func() time.Time
}

// NewCircuitBreaker creates a configured circuit breaker.
func NewCircuitBreaker(threshold int, window, openDuration time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:    threshold,
		window:       window,
		openDuration: openDuration,
		failures:     make([]time.Time, 0, threshold),
		now:          time.Now,
	}
}

// RecordFailure records a failure occurrence and opens the breaker once threshold failures
// fall inside the window.
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cutoff := now.Add(-cb.window)
	i := 0
	for ; i < len(cb.failures); i++ {
		if cb.failures[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		cb.failures = append([]time.Time{}, cb.failures[i:]...)
	}
	cb.failures = append(cb.failures, now)

	if len(cb.failures) >= cb.threshold {
		cb.openUntil = now.Add(cb.openDuration)
	}
}

// RecordSuccess resets failure history when operations succeed.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = cb.failures[:0]
	cb.openUntil = time.Time{}
}

// IsOpen returns true if the breaker is currently open.
func (cb *CircuitBreaker) IsOpen() bool {
	if cb == nil {
		return false
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.now().Before(cb.openUntil)
}

// guardedRepository refuses storage calls while its breaker is open. Lookups that find
// nothing are not failures; only errors returned by the wrapped handle count.
type guardedRepository struct {
	model   string
	inner   zoun.Repository
	breaker *CircuitBreaker
}

// NewGuardedRepository wraps a storage handle with a circuit breaker.
func NewGuardedRepository(model string, inner zoun.Repository, breaker *CircuitBreaker) zoun.Repository {
	return &guardedRepository{model: model, inner: inner, breaker: breaker}
}

func (g *guardedRepository) FindByID(ctx context.Context, id any) (any, bool, error) {
	if err := g.admit(ctx); err != nil {
		return nil, false, err
	}
	record, ok, err := g.inner.FindByID(ctx, id)
	g.record(err)
	return record, ok, err
}

func (g *guardedRepository) FindAllPaginated(ctx context.Context, page zoun.PageRequest) ([]any, int64, error) {
	if err := g.admit(ctx); err != nil {
		return nil, 0, err
	}
	records, total, err := g.inner.FindAllPaginated(ctx, page)
	g.record(err)
	return records, total, err
}

func (g *guardedRepository) FindAll(ctx context.Context) ([]any, error) {
	if err := g.admit(ctx); err != nil {
		return nil, err
	}
	records, err := g.inner.FindAll(ctx)
	g.record(err)
	return records, err
}

func (g *guardedRepository) Save(ctx context.Context, record any) (any, error) {
	if err := g.admit(ctx); err != nil {
		return nil, err
	}
	saved, err := g.inner.Save(ctx, record)
	g.record(err)
	return saved, err
}

func (g *guardedRepository) DeleteByID(ctx context.Context, id any) error {
	if err := g.admit(ctx); err != nil {
		return err
	}
	err := g.inner.DeleteByID(ctx, id)
	g.record(err)
	return err
}

func (g *guardedRepository) admit(ctx context.Context) error {
	if !g.breaker.IsOpen() {
		return nil
	}
	zap.S().Warnw("storage call rejected by open circuit breaker", "model", g.model)
	EmitBreakerRejected(ctx, g.model)
	return zoun.NewStorageUnavailableError(g.model)
}

func (g *guardedRepository) record(err error) {
	if err == nil || !zoun.IsInternalError(err) {
		g.breaker.RecordSuccess()
		return
	}
	g.breaker.RecordFailure()
}
