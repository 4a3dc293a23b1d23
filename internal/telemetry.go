package internal

import (
	"context"
	"sync"
	"time"

	"github.com/xcodebn/zoun"
)

// Telemetry hook layer used by the admin controller and the storage decorators.
// By default the emitter is a no-op; service wiring registers a metrics-backed emitter
// (or a test stub) via RegisterTelemetryEmitter.

// Metric names passed to the emitter.
const (
	MetricOperation       = "admin_operation"
	MetricCacheLookup     = "admin_cache_lookup"
	MetricBreakerRejected = "admin_breaker_rejected"
)

// Operation outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// TelemetryEmitter receives one measurement. value is a time.Duration for operations
// and an int64 count otherwise.
type TelemetryEmitter func(ctx context.Context, name string, labels map[string]string, value any)

var (
	teleMu   sync.Mutex
	teleImpl TelemetryEmitter = func(ctx context.Context, name string, labels map[string]string, value any) {}
)

// RegisterTelemetryEmitter registers a custom emitter function. A nil function restores the no-op.
func RegisterTelemetryEmitter(fn TelemetryEmitter) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(ctx context.Context, name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

func emitter() TelemetryEmitter {
	teleMu.Lock()
	defer teleMu.Unlock()
	return teleImpl
}

// EmitOperation records the outcome and latency of one controller operation.
// name: "admin_operation" with labels {"operation", "model", "outcome"}
func EmitOperation(ctx context.Context, operation, model, outcome string, elapsed time.Duration) {
	labels := map[string]string{"operation": operation, "model": model, "outcome": outcome}
	emitter()(ctx, MetricOperation, labels, elapsed)
}

// EmitCacheLookup records a relationship option cache hit or miss.
// name: "admin_cache_lookup" with labels {"model", "result": "hit"|"miss"}
func EmitCacheLookup(ctx context.Context, model string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	emitter()(ctx, MetricCacheLookup, map[string]string{"model": model, "result": result}, int64(1))
}

// EmitBreakerRejected records a storage call refused by an open circuit breaker.
// name: "admin_breaker_rejected" with label {"model"}
func EmitBreakerRejected(ctx context.Context, model string) {
	emitter()(ctx, MetricBreakerRejected, map[string]string{"model": model}, int64(1))
}

// outcomeOf classifies an operation error for telemetry labels.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case zoun.IsNotFound(err):
		return OutcomeNotFound
	case zoun.IsBadRequest(err):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}
