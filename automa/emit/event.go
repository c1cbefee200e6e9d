// Package emit provides pluggable observability for an Automa run: the same
// Emitter interface backs a plain-text logger, a null sink, a buffered
// in-memory sink for tests, and an OpenTelemetry exporter.
package emit

// Event is an observability event emitted as a GraphAutoma steps through a
// run. Unlike a typed-state engine, an Automa run has no sequential step
// counter that means the same thing across nested automata, so Event
// anchors on the worker key and automa ID instead.
type Event struct {
	// AutomaID identifies which GraphAutoma instance emitted this event,
	// distinguishing a nested automa's events from its parent's.
	AutomaID string

	// WorkerKey identifies which worker emitted this event. Empty for
	// automa-level events (run_start, run_complete, run_suspended,
	// snapshot_save_failed, event_handler_error).
	WorkerKey string

	// Msg is a human-readable event name, e.g. "worker_start", "worker_end",
	// "worker_error", "worker_suspended", "run_suspended".
	Msg string

	// Meta carries event-specific structured data. Common keys:
	//   - "duration_ms": worker execution duration
	//   - "error": error detail when Msg is a failure
	//   - "interactions": number of pending interactions (run_suspended)
	//   - "interaction_id": the Interaction.ID involved
	Meta map[string]any
}
