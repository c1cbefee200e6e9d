package automa

import "errors"

// Sentinel errors for use with errors.Is against the concrete taxonomy
// types below.
var (
	// ErrCycleDetected indicates a dependency mutation would close a cycle
	// in the worker graph (I4).
	ErrCycleDetected = errors.New("automa: dependency graph contains a cycle")
	// ErrUnknownWorker indicates a reference to a worker key that does not
	// exist in the graph.
	ErrUnknownWorker = errors.New("automa: unknown worker key")
	// ErrDuplicateWorker indicates an add_worker call reused an existing key.
	ErrDuplicateWorker = errors.New("automa: duplicate worker key")
	// ErrReentrantRun indicates a second concurrent Run call on the same
	// GraphAutoma instance (§5).
	ErrReentrantRun = errors.New("automa: run is not reentrant for this instance")
	// ErrNoOutputWorker indicates Run completed without an output worker
	// configured; the return value is undefined in that case per spec.md §4.4.
	ErrNoOutputWorker = errors.New("automa: no output worker configured")
	// ErrFeedbackMismatch indicates a resumed interaction's feedback event
	// type does not match the worker's current wait (§4.7).
	ErrFeedbackMismatch = errors.New("automa: feedback event type does not match pending interaction")
	// ErrMainThreadBlock indicates request_feedback was called from the
	// main loop goroutine, which would deadlock.
	ErrMainThreadBlock = errors.New("automa: request_feedback called from the main loop would deadlock")
)

// DeclarationError reports an invalid declaration: an unknown
// ArgsMappingRule value on a worker, or an invalid construction Option.
// A duplicate key is a RuntimeError and a cycle is a CompilationError.
type DeclarationError struct {
	Code    string
	Message string
	Cause   error
}

func (e *DeclarationError) Error() string {
	if e.Code != "" {
		return "declaration error [" + e.Code + "]: " + e.Message
	}
	return "declaration error: " + e.Message
}
func (e *DeclarationError) Unwrap() error { return e.Cause }

// CompilationError reports a validation failure: an empty graph or a
// dangling dependency at first run, or a cycle found at first run or after
// dynamic mutation (spec.md §4.4, phase 1). A run that completes without an
// output worker is reported as a RuntimeError wrapping ErrNoOutputWorker.
type CompilationError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CompilationError) Error() string {
	if e.Code != "" {
		return "compilation error [" + e.Code + "]: " + e.Message
	}
	return "compilation error: " + e.Message
}
func (e *CompilationError) Unwrap() error { return e.Cause }

// RuntimeError reports a logical error discovered during a run: duplicate
// add, remove-unknown, add-dependency with unknown endpoints or an
// already-present edge, a re-entrant run, or a main-thread
// request_feedback call.
type RuntimeError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RuntimeError) Error() string {
	if e.Code != "" {
		return "runtime error [" + e.Code + "]: " + e.Message
	}
	return "runtime error: " + e.Message
}
func (e *RuntimeError) Unwrap() error { return e.Cause }

// ArgsMappingError reports an UNPACK/MERGE/AS_IS shape incompatibility
// (spec.md §4.3).
type ArgsMappingError struct {
	WorkerKey string
	Rule      ArgsMappingRule
	Message   string
	Cause     error
}

func (e *ArgsMappingError) Error() string {
	return "args mapping error for worker " + e.WorkerKey + " (" + e.Rule.String() + "): " + e.Message
}
func (e *ArgsMappingError) Unwrap() error { return e.Cause }

// SignatureError reports an is_start worker carrying declared dependencies.
type SignatureError struct {
	Message string
	Cause   error
}

func (e *SignatureError) Error() string { return "signature error: " + e.Message }
func (e *SignatureError) Unwrap() error { return e.Cause }

// InteractionException is not an error in the usual sense: it is the
// suspension the root GraphAutoma raises when one or more workers call
// interact_with_human during a step (spec.md §4.4 S8, §6). It satisfies
// the error interface so it can be returned from Run, but callers should
// check for it with errors.As rather than treating it as a failure.
type InteractionException struct {
	Interactions []Interaction
	Snapshot     Snapshot
}

func (e *InteractionException) Error() string {
	return "automa: suspended awaiting human interaction(s)"
}
