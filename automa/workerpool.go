package automa

import (
	"context"

	"golang.org/x/time/rate"
)

// WorkerPool bounds how many blocking workers (I/O, LLM calls) run
// concurrently across an GraphAutoma and its nested automata, and stamps
// their context as running on the background executor so RequestFeedback
// is legal from inside them (spec.md §5, §7). Grounded on the teacher's
// Frontier worker-goroutine-pool, simplified: no OrderKey/priority, since
// wavefront ordering is decided by the scheduler itself (topology.go,
// automa.go), not by the pool.
type WorkerPool struct {
	sem     chan struct{}
	limiter *rate.Limiter
}

// NewWorkerPool returns a pool admitting at most concurrency callers at
// once. A concurrency of 0 means unbounded (callers are still stamped with
// the background-executor marker, just without an admission gate).
func NewWorkerPool(concurrency int) *WorkerPool {
	var sem chan struct{}
	if concurrency > 0 {
		sem = make(chan struct{}, concurrency)
	}
	return &WorkerPool{sem: sem}
}

// WithRateLimit caps the pool at rps sustained calls per second with the
// given burst, using golang.org/x/time/rate. Returns the pool for chaining.
func (p *WorkerPool) WithRateLimit(rps float64, burst int) *WorkerPool {
	p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return p
}

// Run admits fn, blocking until a slot is free and any rate limit allows,
// then executes fn with ctx marked as background-executor. Run itself
// blocks the calling goroutine until fn returns; callers dispatch it from
// their own goroutine (automa.go's launch phase) to get concurrency.
func (p *WorkerPool) Run(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	if p.sem != nil {
		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return fn(withBackgroundExecutor(ctx))
}
