package automa

import "context"

// LocalSpaceResetter lets a Worker opt out of the default local-space reset
// policy (spec.md §4.8). By default a worker's local space is cleared once
// the owning GraphAutoma's run completes successfully (a run that fails or
// suspends leaves local spaces as they are); a worker
// implementing this interface controls its own reset instead.
type LocalSpaceResetter interface {
	ShouldResetLocalSpace() bool
}

// GetLocalSpace returns the mutable scratch map private to the calling
// worker, persisted across kickoffs within a single run and, unless the
// worker opts out via LocalSpaceResetter, cleared at run completion
// (spec.md §4.8).
func GetLocalSpace(ctx context.Context) (map[string]any, error) {
	g, key, ok := automaFromContext(ctx)
	if !ok {
		return nil, &RuntimeError{Code: "no_automa_context", Message: "GetLocalSpace called outside a worker invocation"}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	gw, ok := g.workers[key]
	if !ok {
		return nil, &RuntimeError{Code: "unknown_worker", Message: "unknown worker key: " + key, Cause: ErrUnknownWorker}
	}
	return gw.localSpaceMap(), nil
}

// clearAllLocalSpaces resets every worker's local space that did not opt
// out via LocalSpaceResetter, called once a top-level run completes.
func (g *GraphAutoma) clearAllLocalSpaces() {
	for _, gw := range g.workers {
		if resetter, ok := gw.Worker.(LocalSpaceResetter); ok && !resetter.ShouldResetLocalSpace() {
			continue
		}
		gw.localSpace = nil
	}
}
