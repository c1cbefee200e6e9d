package automa

import (
	"time"

	"github.com/automa-run/automa-go/automa/emit"
	"github.com/automa-run/automa-go/automa/store"
)

// Option configures a GraphAutoma at construction time (spec.md §6
// "configuration"), following the teacher's functional-options shape.
type Option func(*options) error

type options struct {
	pool                 *WorkerPool
	defaultWorkerTimeout time.Duration
	emitter              emit.Emitter
	metrics              *PrometheusMetrics
	costTracker          *CostTracker
	snapshotStore        store.Store
	maxSteps             int
}

func defaultOptions() options {
	return options{
		emitter:              emit.NewNullEmitter(),
		defaultWorkerTimeout: 0, // no timeout
		maxSteps:             10000,
	}
}

// WithWorkerPool attaches the executor used to run workers dispatched off
// the scheduler's own goroutine. Without one, each worker still runs on its
// own launch goroutine, concurrently with the rest of its step, but without
// an admission limit and without the background-executor mark that
// RequestFeedback checks for.
func WithWorkerPool(pool *WorkerPool) Option {
	return func(o *options) error { o.pool = pool; return nil }
}

// WithDefaultWorkerTimeout bounds how long a worker's Run may take before
// its context is canceled. Zero means no default timeout.
func WithDefaultWorkerTimeout(d time.Duration) Option {
	return func(o *options) error { o.defaultWorkerTimeout = d; return nil }
}

// WithEmitter sets the observability sink. Defaults to emit.NewNullEmitter().
func WithEmitter(e emit.Emitter) Option {
	return func(o *options) error { o.emitter = e; return nil }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(o *options) error { o.metrics = m; return nil }
}

// WithCostTracker attaches LLM usage cost accounting, fed via the
// "llm_usage" event (cost.go).
func WithCostTracker(c *CostTracker) Option {
	return func(o *options) error { o.costTracker = c; return nil }
}

// WithSnapshotStore attaches durable storage for suspended runs: the
// snapshot taken at each suspension is saved as the automa's latest record.
// Completed runs are not saved.
func WithSnapshotStore(s store.Store) Option {
	return func(o *options) error { o.snapshotStore = s; return nil }
}

// WithMaxSteps bounds the number of scheduler steps a single Run call may
// take, guarding against a runaway ferry/dynamic-trigger loop that never
// converges. Defaults to 10000.
func WithMaxSteps(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return &DeclarationError{Code: "bad_max_steps", Message: "WithMaxSteps requires a positive value"}
		}
		o.maxSteps = n
		return nil
	}
}
