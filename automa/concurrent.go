package automa

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// InOrder wraps a value so ConcurrentGraph can tell "pass this same value
// to every branch" apart from "this slice is per-branch input"; without it
// a []any input would be ambiguous between the two.
type InOrder struct {
	Value any
}

// ConcurrentGraph runs a fixed set of independent workers against the same
// input in parallel and collects their results in registration order
// (spec.md's "concurrent subgraph with no inter-dependencies"). Unlike
// GraphAutoma it has no dependency edges, no ferries, and no interaction
// suspension bubbling of its own: if a branch suspends, ConcurrentGraph
// propagates the interaction signal up to its own caller the same way a
// GraphWorker wrapping a nested GraphAutoma does.
type ConcurrentGraph struct {
	baseWorker
	branches []namedBranch
	pool     *WorkerPool
}

type namedBranch struct {
	key    string
	worker Worker
}

// NewConcurrentGraph builds a ConcurrentGraph with no branches; add them
// with AddBranch. An optional WorkerPool bounds how many branches run at
// once; nil means unbounded (errgroup fans out every branch immediately).
func NewConcurrentGraph(pool *WorkerPool) *ConcurrentGraph {
	return &ConcurrentGraph{pool: pool}
}

// AddBranch registers worker under key. Branches run concurrently; their
// results appear in Run's result slice in registration order, regardless of
// completion order.
func (c *ConcurrentGraph) AddBranch(key string, worker Worker) *ConcurrentGraph {
	if c.parent != nil {
		worker.SetParent(c.parent)
	}
	c.branches = append(c.branches, namedBranch{key: key, worker: worker})
	return c
}

// SetParent overrides baseWorker's to also propagate parent to branches
// already added, since AddBranch may run before or after registration.
func (c *ConcurrentGraph) SetParent(parent *GraphAutoma) {
	c.baseWorker.SetParent(parent)
	for _, b := range c.branches {
		b.worker.SetParent(parent)
	}
}

// ParameterKinds implements Worker: ConcurrentGraph accepts anything and
// forwards it to every branch (broadcast) or, if args[0] is a []any whose
// length matches the branch count, distributes element i to branch i.
func (c *ConcurrentGraph) ParameterKinds() ParameterKinds { return AnyParameterKinds() }

// Run implements Worker. The result is a []any in branch-registration
// order; any branch error is reported via ArgsMappingError-free BranchError
// wrapping. Interactions raised by branches through InteractWithHuman are
// collected from every branch and returned together as one
// *InteractionException.
func (c *ConcurrentGraph) Run(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	results := make([]any, len(c.branches))
	var interactionsMu sync.Mutex
	var interactions []Interaction

	grp, grpCtx := errgroup.WithContext(ctx)
	for i, branch := range c.branches {
		i, branch := i, branch
		branchArgs, branchKwargs := distributeBranchInput(i, len(c.branches), args, kwargs)
		invoke := func(ctx context.Context) (any, error) {
			return branch.worker.Run(withWorkerContext(ctx, c.parent, branch.key), branchArgs, branchKwargs)
		}
		grp.Go(func() error {
			var res any
			var err error
			if c.pool != nil {
				res, err = c.pool.Run(grpCtx, invoke)
			} else {
				res, err = invoke(grpCtx)
			}
			if err != nil {
				var sig *interactionSignal
				if errors.As(err, &sig) {
					interactionsMu.Lock()
					interactions = append(interactions, sig.interaction)
					interactionsMu.Unlock()
					return nil
				}
				return &BranchError{BranchKey: branch.key, Cause: err}
			}
			results[i] = res
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	if len(interactions) > 0 {
		snap, _ := c.parent.Snapshot()
		return nil, &InteractionException{Interactions: interactions, Snapshot: snap}
	}
	return results, nil
}

// distributeBranchInput implements the broadcast-vs-distribute rule: an
// InOrder-wrapped value (or anything that isn't a same-length []any) goes
// to every branch unchanged; a same-length []any is distributed index-wise.
func distributeBranchInput(i, n int, args []any, kwargs map[string]any) ([]any, map[string]any) {
	if len(args) == 1 {
		if wrapped, ok := args[0].(InOrder); ok {
			return []any{wrapped.Value}, kwargs
		}
		if seq, ok := args[0].([]any); ok && len(seq) == n {
			return []any{seq[i]}, kwargs
		}
	}
	return args, kwargs
}

// BranchError reports which ConcurrentGraph branch failed, preserving the
// original error via Unwrap.
type BranchError struct {
	BranchKey string
	Cause     error
}

func (e *BranchError) Error() string { return "branch " + e.BranchKey + " failed: " + e.Cause.Error() }
func (e *BranchError) Unwrap() error  { return e.Cause }
