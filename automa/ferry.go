package automa

import "context"

// ferryOp is a deferred imperative control transfer: the current worker
// asked to kick off targetKey directly, bypassing dependency-based
// triggering (spec.md §4.5). Applied at the next step boundary alongside
// topology mutations, never mid-step.
type ferryOp struct {
	targetKey string
	args      []any
	kwargs    map[string]any
}

// FerryTo requests that targetKey be kicked off at the start of the next
// step, regardless of its declared dependencies being satisfied. ctx must
// be a worker context stamped by the scheduler (see context.go); it is used
// only to find the owning GraphAutoma. The ferry kickoff is recorded with
// LastKickoff AutomaSentinel: the calling worker's key is not recorded.
func FerryTo(ctx context.Context, targetKey string, args []any, kwargs map[string]any) error {
	g, _, ok := automaFromContext(ctx)
	if !ok {
		return &RuntimeError{Code: "no_automa_context", Message: "FerryTo called outside a worker invocation"}
	}
	return g.ferryTo(targetKey, args, kwargs)
}

func (g *GraphAutoma) ferryTo(targetKey string, args []any, kwargs map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.workers[targetKey]; !ok {
		return &RuntimeError{Code: "unknown_ferry_target", Message: "ferry_to target worker not found: " + targetKey, Cause: ErrUnknownWorker}
	}
	g.ferryDeferred = append(g.ferryDeferred, ferryOp{targetKey: targetKey, args: args, kwargs: kwargs})
	return nil
}
