package automa

import (
	"context"
	"errors"
	"testing"
)

func TestDetectCycle_DanglingDependency(t *testing.T) {
	g, err := New("dangling")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := g.AddWorker("a", echoWorker(t), WithDependencies("missing")); err != nil {
		t.Fatalf("add a: %v", err)
	}
	err = detectCycle(g.workers)
	var compErr *CompilationError
	if !errors.As(err, &compErr) || compErr.Code != "dangling_dependency" {
		t.Fatalf("expected dangling_dependency CompilationError, got %v", err)
	}
}

func TestAddDependency_RejectsDuplicateEdge(t *testing.T) {
	g, err := New("dup-edge")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := g.AddWorker("a", echoWorker(t), AsStart()); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := g.AddWorker("b", echoWorker(t), WithDependencies("a")); err != nil {
		t.Fatalf("add b: %v", err)
	}
	err = g.AddDependency("b", "a")
	if err == nil {
		t.Fatal("expected an error re-adding an existing dependency edge")
	}
}

func TestAddDependency_RejectsUnknownEndpoints(t *testing.T) {
	g, err := New("unknown-edge")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := g.AddWorker("a", echoWorker(t), AsStart()); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := g.AddDependency("a", "ghost"); !errors.Is(err, ErrUnknownWorker) {
		t.Fatalf("expected ErrUnknownWorker for unknown dependency, got %v", err)
	}
	if err := g.AddDependency("ghost", "a"); !errors.Is(err, ErrUnknownWorker) {
		t.Fatalf("expected ErrUnknownWorker for unknown key, got %v", err)
	}
}

func TestAddDependency_RejectsCycleIntroduction(t *testing.T) {
	g, err := New("would-cycle")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := g.AddWorker("a", echoWorker(t), AsStart()); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := g.AddWorker("b", echoWorker(t), WithDependencies("a")); err != nil {
		t.Fatalf("add b: %v", err)
	}
	err = g.AddDependency("a", "b")
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

func TestRemoveWorker_CleansUpEdges(t *testing.T) {
	g, err := New("remove")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := g.AddWorker("a", echoWorker(t), AsStart()); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := g.AddWorker("b", echoWorker(t), WithDependencies("a"), AsOutput()); err != nil {
		t.Fatalf("add b: %v", err)
	}
	if err := g.RemoveWorker("a"); err != nil {
		t.Fatalf("remove a: %v", err)
	}
	if len(g.workers["b"].Dependencies) != 0 {
		t.Fatalf("expected b's dependency on a to be cleared, got %v", g.workers["b"].Dependencies)
	}
	if _, ok := g.forwards["a"]; ok {
		t.Fatalf("expected forwards entry for removed key a to be gone")
	}
}

func TestRemoveWorker_UnknownKey(t *testing.T) {
	g, err := New("remove-unknown")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := g.RemoveWorker("ghost"); !errors.Is(err, ErrUnknownWorker) {
		t.Fatalf("expected ErrUnknownWorker, got %v", err)
	}
}

// TestTopologyMutation_DeferredWhileRunning verifies that a worker can
// register a brand-new output worker mid-run without error: the deferred
// AddWorker is integrated at the next step boundary (spec.md's
// dynamic-topology model), and since nothing kicks the new worker off, the
// run converges with no output value.
func TestTopologyMutation_DeferredWhileRunning(t *testing.T) {
	g, err := New("dynamic-topology")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	grow := NewCallableWorker(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		extra := NewCallableWorker(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
			return "grown", nil
		})
		if err := g.AddWorker("extra", extra, AsOutput()); err != nil {
			return nil, err
		}
		return "grow-done", nil
	})
	if err := g.AddWorker("grow", grow, AsStart()); err != nil {
		t.Fatalf("add grow: %v", err)
	}

	out, err := g.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != nil {
		t.Fatalf("expected a nil result: convergence happens before extra is kicked off, got %v", out)
	}
	if _, ok := g.workers["extra"]; !ok {
		t.Fatal("expected extra to have been registered by the deferred AddWorker mutation")
	}
}

func TestAllWorkers_PreservesRegistrationOrder(t *testing.T) {
	g, err := New("order")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := g.AddWorker("b", echoWorker(t), AsStart()); err != nil {
		t.Fatalf("add b: %v", err)
	}
	if err := g.AddWorker("a", echoWorker(t), WithDependencies("b")); err != nil {
		t.Fatalf("add a: %v", err)
	}
	order := g.AllWorkers()
	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Fatalf("expected registration order [b a], got %v", order)
	}
}
