package emit

import "context"

// Emitter receives observability events from a running GraphAutoma.
//
// Implementations must be non-blocking (don't slow down a run), safe for
// concurrent use (a nested automa and its parent may emit from different
// goroutines during background-executor work), and resilient to backend
// failure (never panic; swallow or log delivery errors internally).
type Emitter interface {
	// Emit sends a single event. Must not block the caller on a slow
	// backend; buffer or drop instead.
	Emit(event Event)

	// EmitBatch sends multiple events, preserving order. Returns an error
	// only for configuration-level failures, not per-event delivery issues.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until buffered events are delivered or ctx is done.
	// Safe to call multiple times.
	Flush(ctx context.Context) error
}
