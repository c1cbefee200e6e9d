package automa

import "context"

// ArgsMappingRule selects how a worker's predecessor outputs are translated
// into its next args/kwargs (spec.md §4.3).
type ArgsMappingRule int

const (
	// AsIs passes predecessor outputs as positional args in dependency
	// declaration order.
	AsIs ArgsMappingRule = iota
	// Unpack requires exactly one dependency; a sequence result is
	// spread as positional args, a map result is spread as kwargs.
	Unpack
	// Merge bundles all predecessor outputs into a single positional list
	// argument.
	Merge
	// Suppressed passes no arguments; the worker fetches predecessor
	// output itself via the parent's output buffer.
	Suppressed
)

// String renders the rule name, used in error messages.
func (r ArgsMappingRule) String() string {
	switch r {
	case AsIs:
		return "AS_IS"
	case Unpack:
		return "UNPACK"
	case Merge:
		return "MERGE"
	case Suppressed:
		return "SUPPRESSED"
	default:
		return "UNKNOWN"
	}
}

func validArgsMappingRule(r ArgsMappingRule) bool {
	switch r {
	case AsIs, Unpack, Merge, Suppressed:
		return true
	default:
		return false
	}
}

// LifecycleCallback is invoked around a worker's execution. Hooks are
// invoked in registration order; hooks return nothing, so a hook cannot
// abort the remaining hooks or the worker's own Run.
type LifecycleCallback interface {
	// BeforeRun is invoked just before the worker is launched.
	BeforeRun(ctx context.Context, key string, args []any, kwargs map[string]any)
	// AfterRun is invoked after the worker returns, successfully or not.
	AfterRun(ctx context.Context, key string, result any, err error)
}

// GraphWorker is the scheduler-facing record held by a GraphAutoma for each
// registered worker (spec.md §3). It binds scheduling metadata to a Worker
// without modifying the wrapped Worker itself.
type GraphWorker struct {
	Key          string
	Worker       Worker
	Dependencies []string
	IsStart      bool
	IsOutput     bool
	Rule         ArgsMappingRule
	Callbacks    []LifecycleCallback

	// localSpace is the worker's private scratch mapping (spec.md §4.8).
	localSpace map[string]any
}

// isAutoma reports whether the wrapped worker is itself a nested
// GraphAutoma or ConcurrentGraph. The scheduler does not consult it: a
// nested automa is launched, and its errors (including an
// *InteractionException) are handled, like those of any other worker.
func (gw *GraphWorker) isAutoma() bool {
	switch gw.Worker.(type) {
	case *GraphAutoma, *ConcurrentGraph:
		return true
	default:
		return false
	}
}

// localSpaceMap lazily initializes and returns the worker's local space.
func (gw *GraphWorker) localSpaceMap() map[string]any {
	if gw.localSpace == nil {
		gw.localSpace = make(map[string]any)
	}
	return gw.localSpace
}
