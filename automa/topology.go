package automa

// AddWorkerOption configures a worker being registered via AddWorker or
// AddFuncAsWorker (spec.md §3's GraphWorker fields).
type AddWorkerOption func(*addWorkerConfig)

type addWorkerConfig struct {
	dependencies []string
	isStart      bool
	isOutput     bool
	rule         ArgsMappingRule
}

// WithDependencies declares the predecessor worker keys that must complete
// before this worker is kicked off.
func WithDependencies(deps ...string) AddWorkerOption {
	return func(c *addWorkerConfig) { c.dependencies = append(c.dependencies, deps...) }
}

// AsStart marks the worker as one of the graph's initial kickoffs; it must
// not also declare dependencies (SignatureError otherwise, spec.md §4.2 I2).
func AsStart() AddWorkerOption {
	return func(c *addWorkerConfig) { c.isStart = true }
}

// AsOutput marks the worker as the graph's single output worker. Calling
// AddWorker with AsOutput overwrites any previously configured output key.
func AsOutput() AddWorkerOption {
	return func(c *addWorkerConfig) { c.isOutput = true }
}

// WithRule selects the ArgsMappingRule used to translate this worker's
// predecessor outputs into its next invocation. Defaults to AsIs.
func WithRule(rule ArgsMappingRule) AddWorkerOption {
	return func(c *addWorkerConfig) { c.rule = rule }
}

func newAddWorkerConfig(opts []AddWorkerOption) *addWorkerConfig {
	c := &addWorkerConfig{rule: AsIs}
	for _, o := range opts {
		o(c)
	}
	return c
}

// AddWorker registers w under key with the given options. Before the graph
// has run (declaration/init phase) the mutation is applied immediately;
// once Run is underway it is deferred to the next step boundary (spec.md
// §4.2, §4.4).
func (g *GraphAutoma) AddWorker(key string, w Worker, opts ...AddWorkerOption) error {
	cfg := newAddWorkerConfig(opts)
	if cfg.isStart && len(cfg.dependencies) > 0 {
		return &SignatureError{Message: "worker " + key + " cannot be is_start and declare dependencies"}
	}
	if !validArgsMappingRule(cfg.rule) {
		return &DeclarationError{Code: "bad_rule", Message: "unknown args mapping rule for worker " + key}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		g.topologyDeferred = append(g.topologyDeferred, topologyOp{
			kind: opAddWorker, key: key, worker: w,
			dependencies: cfg.dependencies, isStart: cfg.isStart, isOutput: cfg.isOutput, rule: cfg.rule,
		})
		return nil
	}
	return g.addWorkerNow(key, w, cfg.dependencies, cfg.isStart, cfg.isOutput, cfg.rule)
}

// AddFuncAsWorker wraps fn with NewCallableWorker and registers it, the
// convenience path for workers that don't need a dedicated type.
func (g *GraphAutoma) AddFuncAsWorker(key string, fn CallableFunc, opts ...AddWorkerOption) error {
	return g.AddWorker(key, NewCallableWorker(fn), opts...)
}

func (g *GraphAutoma) addWorkerNow(key string, w Worker, deps []string, isStart, isOutput bool, rule ArgsMappingRule) error {
	if _, exists := g.workers[key]; exists {
		return &RuntimeError{Code: "duplicate_worker", Message: "worker key already registered: " + key, Cause: ErrDuplicateWorker}
	}
	gw := &GraphWorker{Key: key, Worker: w, Dependencies: append([]string{}, deps...), IsStart: isStart, IsOutput: isOutput, Rule: rule}
	g.workers[key] = gw
	g.workerOrder = append(g.workerOrder, key)
	w.SetParent(g)
	for _, d := range deps {
		g.forwards[d] = append(g.forwards[d], key)
	}
	if isOutput {
		g.outputWorkerKey = key
	}
	return nil
}

// RemoveWorker unregisters key and every forward/dependency edge touching
// it. Deferred to the next step boundary while running.
func (g *GraphAutoma) RemoveWorker(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		g.topologyDeferred = append(g.topologyDeferred, topologyOp{kind: opRemoveWorker, key: key})
		return nil
	}
	return g.removeWorkerNow(key)
}

func (g *GraphAutoma) removeWorkerNow(key string) error {
	if _, ok := g.workers[key]; !ok {
		return &RuntimeError{Code: "unknown_worker", Message: "cannot remove unknown worker key: " + key, Cause: ErrUnknownWorker}
	}
	delete(g.workers, key)
	for i, k := range g.workerOrder {
		if k == key {
			g.workerOrder = append(g.workerOrder[:i], g.workerOrder[i+1:]...)
			break
		}
	}
	delete(g.forwards, key)
	for from, to := range g.forwards {
		filtered := to[:0]
		for _, t := range to {
			if t != key {
				filtered = append(filtered, t)
			}
		}
		g.forwards[from] = filtered
	}
	for _, gw := range g.workers {
		deps := gw.Dependencies[:0]
		for _, d := range gw.Dependencies {
			if d != key {
				deps = append(deps, d)
			}
		}
		gw.Dependencies = deps
	}
	delete(g.dynamicTriggers, key)
	if g.outputWorkerKey == key {
		g.outputWorkerKey = ""
	}
	return nil
}

// AddDependency adds dependency as a predecessor of key. Rejects unknown
// endpoints and edges that already exist; deferred while running.
func (g *GraphAutoma) AddDependency(key, dependency string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		g.topologyDeferred = append(g.topologyDeferred, topologyOp{kind: opAddDependency, key: key, dependency: dependency})
		return nil
	}
	return g.addDependencyNow(key, dependency)
}

func (g *GraphAutoma) addDependencyNow(key, dependency string) error {
	gw, ok := g.workers[key]
	if !ok {
		return &RuntimeError{Code: "unknown_worker", Message: "unknown worker key: " + key, Cause: ErrUnknownWorker}
	}
	if _, ok := g.workers[dependency]; !ok {
		return &RuntimeError{Code: "unknown_worker", Message: "unknown dependency key: " + dependency, Cause: ErrUnknownWorker}
	}
	for _, d := range gw.Dependencies {
		if d == dependency {
			return &RuntimeError{Code: "duplicate_dependency", Message: "dependency already present: " + dependency + " -> " + key}
		}
	}
	gw.Dependencies = append(gw.Dependencies, dependency)
	g.forwards[dependency] = append(g.forwards[dependency], key)
	return detectCycle(g.workers)
}

// OutputWorkerKey returns the worker key whose result becomes Run's return
// value, or "" if unset.
func (g *GraphAutoma) OutputWorkerKey() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.outputWorkerKey
}

// SetOutputWorkerKey sets the output worker. Deferred while running.
func (g *GraphAutoma) SetOutputWorkerKey(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		k := key
		g.setOutputDeferred = &k
		return
	}
	g.outputWorkerKey = key
}

// AllWorkers returns worker keys in registration order, a read-only
// convenience mirroring the original's all_workers property.
func (g *GraphAutoma) AllWorkers() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string{}, g.workerOrder...)
}

type topologyOpKind int

const (
	opAddWorker topologyOpKind = iota
	opRemoveWorker
	opAddDependency
)

type topologyOp struct {
	kind         topologyOpKind
	key          string
	worker       Worker
	dependencies []string
	isStart      bool
	isOutput     bool
	rule         ArgsMappingRule
	dependency   string
}

// applyDeferredTopology runs all topology mutations queued during the
// previous step, then re-validates the DAG invariant (spec.md §4.4 step
// "integrate topology changes"). Must be called with g.mu held.
func (g *GraphAutoma) applyDeferredTopologyLocked() error {
	ops := g.topologyDeferred
	g.topologyDeferred = nil
	for _, op := range ops {
		var err error
		switch op.kind {
		case opAddWorker:
			err = g.addWorkerNow(op.key, op.worker, op.dependencies, op.isStart, op.isOutput, op.rule)
		case opRemoveWorker:
			err = g.removeWorkerNow(op.key)
		case opAddDependency:
			err = g.addDependencyNow(op.key, op.dependency)
		}
		if err != nil {
			return err
		}
	}
	if g.setOutputDeferred != nil {
		g.outputWorkerKey = *g.setOutputDeferred
		g.setOutputDeferred = nil
	}
	return detectCycle(g.workers)
}

// detectCycle runs Kahn's algorithm over the declared dependency edges
// (spec.md I4), returning ErrCycleDetected wrapped in a CompilationError if
// any worker is unreachable by repeated removal of zero-indegree nodes.
func detectCycle(workers map[string]*GraphWorker) error {
	indegree := make(map[string]int, len(workers))
	for key := range workers {
		indegree[key] = 0
	}
	for _, gw := range workers {
		for _, d := range gw.Dependencies {
			if _, ok := workers[d]; !ok {
				return &CompilationError{Code: "dangling_dependency", Message: "worker " + gw.Key + " depends on unknown key " + d, Cause: ErrUnknownWorker}
			}
		}
	}
	for _, gw := range workers {
		indegree[gw.Key] = len(gw.Dependencies)
	}

	queue := make([]string, 0, len(workers))
	for key, deg := range indegree {
		if deg == 0 {
			queue = append(queue, key)
		}
	}
	visited := 0
	// build forward adjacency on the fly; small graphs, no need to cache.
	forwards := make(map[string][]string)
	for _, gw := range workers {
		for _, d := range gw.Dependencies {
			forwards[d] = append(forwards[d], gw.Key)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, succ := range forwards[n] {
			indegree[succ]--
			if indegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}
	if visited != len(workers) {
		return &CompilationError{Code: "cycle_detected", Message: "dependency graph contains a cycle", Cause: ErrCycleDetected}
	}
	return nil
}
