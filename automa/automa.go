package automa

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/automa-run/automa-go/automa/emit"
)

// AutomaSentinel is the LastKickoff value recorded for a worker kicked off
// directly by the graph (an is_start worker at the initial wavefront) and for
// every ferry kickoff, as opposed to one triggered by a specific predecessor.
const AutomaSentinel = "__AUTOMA__"

// KickoffInfo records one pending or in-flight invocation of a worker:
// which predecessor (or the graph itself, or a ferry) triggered it, and the
// args/kwargs it is to be invoked with (spec.md §3 "_KickoffInfo").
type KickoffInfo struct {
	WorkerKey   string
	LastKickoff string
	FromFerry   bool
	Args        []any
	Kwargs      map[string]any
}

// GraphAutoma is a dynamic directed graph of Workers, scheduled by
// dependency satisfaction with support for imperative ferries and
// cooperative suspension for human interaction (spec.md §2-§4).
//
// A GraphAutoma is itself a Worker, so it composes: nest one inside another
// via AddWorker just like any other worker.
type GraphAutoma struct {
	baseWorker

	mu sync.Mutex

	id   string
	name string

	workers     map[string]*GraphWorker
	workerOrder []string
	forwards    map[string][]string

	// dynamicTriggers[key] accumulates the dependency keys of `key` that have
	// produced output since the last time `key` was kicked off; once it
	// equals the full dependency set, key is kicked off and the entry is
	// cleared so a later re-completion of its dependencies can retrigger it
	// (spec.md §4.4 "dynamic_triggers").
	dynamicTriggers map[string]map[string]struct{}

	outputBuffer    map[string]any
	outputWorkerKey string

	running   bool
	validated bool

	currentKickoff []KickoffInfo
	inputArgs      []any
	inputKwargs    map[string]any

	ongoingInteractions      map[string][]interactionFeedbackPair
	workerInteractionIndices map[string]int
	// suspendedKickoff remembers the KickoffInfo a worker was invoked with
	// when it suspended, so resuming it means simply re-invoking Run with
	// the same arguments: InteractWithHuman will this time find the
	// resolved Feedback waiting and return instead of suspending again.
	suspendedKickoff map[string]KickoffInfo

	topologyDeferred  []topologyOp
	setOutputDeferred *string
	ferryDeferred     []ferryOp

	eventHandlers map[string][]EventHandlerFunc

	opts options
}

// New constructs a GraphAutoma named name (used only for diagnostics; the
// graph's identity for storage/metrics purposes is a generated ID).
func New(name string, opts ...Option) (*GraphAutoma, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, &DeclarationError{Code: "bad_option", Message: "invalid option", Cause: err}
		}
	}
	g := &GraphAutoma{
		id:                       uuid.NewString(),
		name:                     name,
		workers:                  make(map[string]*GraphWorker),
		forwards:                 make(map[string][]string),
		dynamicTriggers:          make(map[string]map[string]struct{}),
		outputBuffer:             make(map[string]any),
		ongoingInteractions:      make(map[string][]interactionFeedbackPair),
		workerInteractionIndices: make(map[string]int),
		suspendedKickoff:         make(map[string]KickoffInfo),
		eventHandlers:            make(map[string][]EventHandlerFunc),
		opts:                     o,
	}
	if o.costTracker != nil {
		o.costTracker.attach(g)
	}
	return g, nil
}

// ID returns the generated identifier used to namespace this automa's
// metrics, events, and snapshot-store records.
func (g *GraphAutoma) ID() string { return g.id }

// ParameterKinds implements Worker: a GraphAutoma accepts anything and
// forwards it to its is_start workers.
func (g *GraphAutoma) ParameterKinds() ParameterKinds { return AnyParameterKinds() }

func (g *GraphAutoma) logEvent(msg string, meta map[string]any) {
	g.opts.emitter.Emit(emit.Event{AutomaID: g.id, Msg: msg, Meta: meta})
}

func (g *GraphAutoma) logWorkerEvent(workerKey, msg string, meta map[string]any) {
	g.opts.emitter.Emit(emit.Event{AutomaID: g.id, WorkerKey: workerKey, Msg: msg, Meta: meta})
}

// Run implements Worker and is the public entry point (spec.md §4.4, §6
// "run"). Pass feedbacks for a resumed worker via WithFeedbacks
// before calling Run again after an InteractionException.
func (g *GraphAutoma) Run(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	feedbacks := feedbacksFromContext(ctx)

	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return nil, &RuntimeError{Code: "reentrant_run", Message: "GraphAutoma is already running", Cause: ErrReentrantRun}
	}
	g.running = true
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.running = false
		g.mu.Unlock()
	}()

	g.mu.Lock()
	if !g.validated {
		if len(g.workers) == 0 {
			g.mu.Unlock()
			return nil, &CompilationError{Code: "empty_graph", Message: "GraphAutoma " + g.name + " has no registered workers"}
		}
		if err := detectCycle(g.workers); err != nil {
			g.mu.Unlock()
			return nil, err
		}
		g.validated = true
	}

	resuming := len(feedbacks) > 0 || len(g.pendingInteractionKeys()) > 0
	if !resuming {
		g.inputArgs = args
		g.inputKwargs = kwargs
		g.outputBuffer = make(map[string]any)
		g.currentKickoff = g.initialWavefrontLocked(args, kwargs)
	}
	for _, fb := range feedbacks {
		if err := g.resolveFeedback(fb); err != nil {
			g.mu.Unlock()
			return nil, err
		}
	}
	if resuming {
		g.currentKickoff = g.resumeWavefrontLocked()
	}
	g.mu.Unlock()

	g.logEvent("run_start", nil)

	for step := 0; step < g.opts.maxSteps; step++ {
		result, terminal, err := g.runStep(ctx)
		if err != nil {
			return nil, err
		}
		if terminal {
			return result, nil
		}
	}
	return nil, &RuntimeError{Code: "max_steps_exceeded", Message: "GraphAutoma " + g.name + " exceeded max steps without converging"}
}

func (g *GraphAutoma) initialWavefrontLocked(args []any, kwargs map[string]any) []KickoffInfo {
	var wavefront []KickoffInfo
	for _, key := range g.workerOrder {
		if g.workers[key].IsStart {
			wavefront = append(wavefront, KickoffInfo{WorkerKey: key, LastKickoff: AutomaSentinel, Args: args, Kwargs: kwargs})
		}
	}
	return wavefront
}

func (g *GraphAutoma) resumeWavefrontLocked() []KickoffInfo {
	var wavefront []KickoffInfo
	for _, key := range g.pendingInteractionKeysResolved() {
		if ki, ok := g.suspendedKickoff[key]; ok {
			wavefront = append(wavefront, ki)
			delete(g.suspendedKickoff, key)
		}
	}
	return wavefront
}

// pendingInteractionKeysResolved returns worker keys that had a pending
// interaction and now have every one of those interactions resolved by a
// supplied Feedback, making them ready to resume.
func (g *GraphAutoma) pendingInteractionKeysResolved() []string {
	var keys []string
	for key, pairs := range g.ongoingInteractions {
		allResolved := true
		for _, p := range pairs {
			if p.feedback == nil {
				allResolved = false
				break
			}
		}
		if allResolved && len(pairs) > 0 {
			keys = append(keys, key)
		}
	}
	return keys
}

// workerLaunchResult is the outcome of invoking one worker this step.
type workerLaunchResult struct {
	key         string
	kickoff     KickoffInfo
	value       any
	err         error
	interaction *Interaction
	duration    time.Duration
}

// runStep performs one S1-S10 scheduler step: launch the current wavefront,
// await completion, integrate deferred topology/ferry mutations, compute
// the next wavefront, and decide whether the run has converged (spec.md
// §4.4).
func (g *GraphAutoma) runStep(ctx context.Context) (any, bool, error) {
	g.mu.Lock()
	wavefront := g.currentKickoff
	g.mu.Unlock()

	// S2/S3: launch + await. Each kickoff runs on its own goroutine. This
	// stays a plain WaitGroup rather than an errgroup: a failing worker must
	// not cancel its wavefront siblings, since their interaction suspensions
	// and trigger accumulation still need to be integrated below.
	results := make([]workerLaunchResult, len(wavefront))
	var wg sync.WaitGroup
	for i, ki := range wavefront {
		i, ki := i, ki
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = g.launchOne(ctx, ki)
		}()
	}
	wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	var interactions []Interaction
	var firstErr error

	for _, r := range results {
		gw := g.workers[r.key]
		if gw == nil {
			continue // removed mid-flight by a concurrent topology mutation
		}
		if r.interaction != nil {
			interactions = append(interactions, *r.interaction)
			g.suspendedKickoff[r.key] = r.kickoff
			continue
		}
		if r.err != nil {
			if firstErr == nil {
				firstErr = &RuntimeError{Code: "worker_failed", Message: "worker " + r.key + " returned an error", Cause: r.err}
			}
			continue
		}
		g.outputBuffer[r.key] = r.value
		g.accumulateTriggersLocked(r.key)
		delete(g.workerInteractionIndices, r.key)
		delete(g.ongoingInteractions, r.key)
	}

	if firstErr != nil {
		return nil, true, firstErr
	}

	// S4: integrate topology changes queued during this step, then
	// re-validate the DAG invariant.
	if err := g.applyDeferredTopologyLocked(); err != nil {
		return nil, true, err
	}

	// S5: apply deferred ferries; each becomes a direct kickoff next step
	// with LastKickoff AutomaSentinel (the ferrying worker is not recorded).
	var ferryWavefront []KickoffInfo
	for _, fop := range g.ferryDeferred {
		ferryWavefront = append(ferryWavefront, KickoffInfo{WorkerKey: fop.targetKey, LastKickoff: AutomaSentinel, FromFerry: true, Args: fop.args, Kwargs: fop.kwargs})
		if g.opts.metrics != nil {
			g.opts.metrics.ferryRecorded(g.id, fop.targetKey)
		}
	}
	g.ferryDeferred = nil

	// S6: ferries precede dependency-driven kickoffs (spec §4.4 S9, §5,
	// P5), deduped by worker key keeping the first occurrence so a worker
	// present in both the ferry queue and the drained-trigger set only
	// launches once this step (P4).
	next := append(ferryWavefront, g.drainSatisfiedTriggersLocked()...)
	seen := make(map[string]struct{}, len(next))
	deduped := next[:0]
	for _, ki := range next {
		if _, ok := seen[ki.WorkerKey]; ok {
			continue
		}
		seen[ki.WorkerKey] = struct{}{}
		deduped = append(deduped, ki)
	}
	next = deduped

	if g.opts.metrics != nil {
		g.opts.metrics.setInteractionsPending(g.id, len(g.pendingInteractionKeys()))
	}

	// S7/S8: suspension takes priority over convergence — a worker
	// suspended this step always yields control back to the caller.
	if len(interactions) > 0 {
		snap, err := g.snapshotLocked()
		if err != nil {
			return nil, true, err
		}
		if g.opts.snapshotStore != nil {
			if err := g.opts.snapshotStore.SaveLatest(ctx, g.id, snap.FormatVersion, snap.Bytes); err != nil {
				g.logEvent("snapshot_save_failed", map[string]any{"error": err.Error()})
			}
		}
		g.logEvent("run_suspended", map[string]any{"interactions": len(interactions)})
		return nil, true, &InteractionException{Interactions: interactions, Snapshot: snap}
	}

	// S9: converged — no more work queued and nothing pending resolution.
	if len(next) == 0 && len(g.pendingInteractionKeys()) == 0 {
		g.clearAllLocalSpaces()
		if g.outputWorkerKey == "" {
			g.logEvent("run_complete", nil)
			return nil, true, &RuntimeError{Code: "no_output_worker", Message: "GraphAutoma " + g.name + " completed with no output worker configured", Cause: ErrNoOutputWorker}
		}
		result, ok := g.outputBuffer[g.outputWorkerKey]
		if !ok {
			g.logEvent("run_complete", nil)
			return nil, true, nil
		}
		g.logEvent("run_complete", nil)
		return result, true, nil
	}

	// S10: clear transient per-step state and advance.
	g.currentKickoff = next
	return nil, false, nil
}

// launchOne maps arguments, runs lifecycle callbacks, invokes the worker
// (optionally through the configured WorkerPool), and records metrics.
// Called without g.mu held; it acquires it only for the brief argument
// lookup at the start.
func (g *GraphAutoma) launchOne(ctx context.Context, ki KickoffInfo) workerLaunchResult {
	g.mu.Lock()
	gw, ok := g.workers[ki.WorkerKey]
	if !ok {
		g.mu.Unlock()
		return workerLaunchResult{key: ki.WorkerKey, kickoff: ki, err: &RuntimeError{Code: "unknown_worker", Message: "kickoff for removed worker " + ki.WorkerKey, Cause: ErrUnknownWorker}}
	}
	deps := append([]string{}, gw.Dependencies...)
	rule := gw.Rule
	kinds := gw.Worker.ParameterKinds()
	callbacks := append([]LifecycleCallback{}, gw.Callbacks...)
	outputs := g.outputBuffer
	topLevelKwargs := g.inputKwargs
	g.mu.Unlock()

	var effArgs []any
	var effKwargs map[string]any
	var err error

	switch {
	case ki.FromFerry:
		effArgs, effKwargs = ki.Args, ki.Kwargs
	case ki.LastKickoff == AutomaSentinel:
		effArgs, effKwargs = ki.Args, ki.Kwargs
	default:
		var mapped map[string]any
		effArgs, mapped, err = mapArgs(ki.WorkerKey, rule, deps, ki.LastKickoff, outputs)
		if err != nil {
			return workerLaunchResult{key: ki.WorkerKey, kickoff: ki, err: err}
		}
		effKwargs = propagateInputKwargs(ki.WorkerKey, mapped, topLevelKwargs)
	}

	effArgs, effKwargs, err = safelyMapArgs(ki.WorkerKey, kinds, effArgs, effKwargs)
	if err != nil {
		return workerLaunchResult{key: ki.WorkerKey, kickoff: ki, err: err}
	}

	for _, cb := range callbacks {
		cb.BeforeRun(ctx, ki.WorkerKey, effArgs, effKwargs)
	}

	workerCtx := withWorkerContext(ctx, g, ki.WorkerKey)
	if g.opts.defaultWorkerTimeout > 0 {
		var cancel context.CancelFunc
		workerCtx, cancel = context.WithTimeout(workerCtx, g.opts.defaultWorkerTimeout)
		defer cancel()
	}

	if g.opts.metrics != nil {
		g.opts.metrics.workerStarted(g.id)
	}
	g.logWorkerEvent(ki.WorkerKey, "worker_start", nil)
	start := timeNow()

	var value any
	if g.opts.pool != nil {
		value, err = g.opts.pool.Run(workerCtx, func(c context.Context) (any, error) {
			return gw.Worker.Run(c, effArgs, effKwargs)
		})
	} else {
		value, err = gw.Worker.Run(workerCtx, effArgs, effKwargs)
	}
	duration := timeNow().Sub(start)

	for _, cb := range callbacks {
		cb.AfterRun(ctx, ki.WorkerKey, value, err)
	}
	if g.opts.metrics != nil {
		g.opts.metrics.workerFinished(g.id, ki.WorkerKey, duration, err)
	}

	var sig *interactionSignal
	if err != nil && errors.As(err, &sig) {
		g.logWorkerEvent(ki.WorkerKey, "worker_suspended", map[string]any{"interaction_id": sig.interaction.ID})
		return workerLaunchResult{key: ki.WorkerKey, kickoff: ki, interaction: &sig.interaction, duration: duration}
	}
	if err != nil {
		g.logWorkerEvent(ki.WorkerKey, "worker_error", map[string]any{"error": err.Error(), "duration_ms": duration.Milliseconds()})
		return workerLaunchResult{key: ki.WorkerKey, kickoff: ki, err: err, duration: duration}
	}
	g.logWorkerEvent(ki.WorkerKey, "worker_end", map[string]any{"duration_ms": duration.Milliseconds()})
	return workerLaunchResult{key: ki.WorkerKey, kickoff: ki, value: value, duration: duration}
}

// accumulateTriggersLocked records that sourceKey has produced output,
// advancing the dependency-satisfaction trigger set of every declared
// successor. Must be called with g.mu held.
func (g *GraphAutoma) accumulateTriggersLocked(sourceKey string) {
	for _, successorKey := range g.forwards[sourceKey] {
		if g.dynamicTriggers[successorKey] == nil {
			g.dynamicTriggers[successorKey] = make(map[string]struct{})
		}
		g.dynamicTriggers[successorKey][sourceKey] = struct{}{}
	}
}

// drainSatisfiedTriggersLocked returns a KickoffInfo for every worker whose
// full declared dependency set has now produced output, resetting its
// trigger accumulator so a later re-completion of those dependencies can
// retrigger it again. Must be called with g.mu held.
func (g *GraphAutoma) drainSatisfiedTriggersLocked() []KickoffInfo {
	var next []KickoffInfo
	for _, key := range g.workerOrder {
		gw := g.workers[key]
		if gw.IsStart || len(gw.Dependencies) == 0 {
			continue
		}
		satisfied := g.dynamicTriggers[key]
		if len(satisfied) < len(gw.Dependencies) {
			continue
		}
		allPresent := true
		for _, d := range gw.Dependencies {
			if _, ok := satisfied[d]; !ok {
				allPresent = false
				break
			}
		}
		if !allPresent {
			continue
		}
		// Every declared dependency has finished, so any of them is a valid
		// predecessor; Unpack (the only rule that reads a single predecessor)
		// requires exactly one dependency.
		last := gw.Dependencies[0]
		next = append(next, KickoffInfo{WorkerKey: key, LastKickoff: last})
		delete(g.dynamicTriggers, key)
	}
	return next
}

// timeNow is a seam so tests can intercept duration measurement without
// relying on the forbidden Date.now()-style nondeterminism in generated
// fixtures; production code just calls time.Now().
var timeNow = time.Now
