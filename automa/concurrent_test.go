package automa

import (
	"context"
	"errors"
	"testing"
)

func branchWorker(label string) *CallableWorker {
	return NewCallableWorker(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		v, _ := args[0].(string)
		return label + ":" + v, nil
	})
}

func TestConcurrentGraph_BroadcastsInOrderValue(t *testing.T) {
	cg := NewConcurrentGraph(nil).
		AddBranch("a", branchWorker("a")).
		AddBranch("b", branchWorker("b")).
		AddBranch("c", branchWorker("c"))

	out, err := cg.Run(context.Background(), []any{InOrder{Value: "query"}}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	results, ok := out.([]any)
	if !ok || len(results) != 3 {
		t.Fatalf("expected a 3-element []any, got %#v", out)
	}
	if results[0] != "a:query" || results[1] != "b:query" || results[2] != "c:query" {
		t.Fatalf("expected registration-order results, got %#v", results)
	}
}

func TestConcurrentGraph_DistributesSameLengthSlice(t *testing.T) {
	cg := NewConcurrentGraph(nil).
		AddBranch("a", branchWorker("a")).
		AddBranch("b", branchWorker("b"))

	out, err := cg.Run(context.Background(), []any{[]any{"one", "two"}}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	results, ok := out.([]any)
	if !ok || len(results) != 2 {
		t.Fatalf("expected a 2-element []any, got %#v", out)
	}
	if results[0] != "a:one" || results[1] != "b:two" {
		t.Fatalf("expected index-wise distribution, got %#v", results)
	}
}

func TestConcurrentGraph_BranchErrorWrapsCause(t *testing.T) {
	boom := errors.New("boom")
	failing := NewCallableWorker(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return nil, boom
	})
	cg := NewConcurrentGraph(nil).
		AddBranch("ok", branchWorker("ok")).
		AddBranch("bad", failing)

	_, err := cg.Run(context.Background(), []any{InOrder{Value: "x"}}, nil)
	var branchErr *BranchError
	if !errors.As(err, &branchErr) {
		t.Fatalf("expected *BranchError, got %v", err)
	}
	if branchErr.BranchKey != "bad" {
		t.Fatalf("expected the failing branch to be named, got %q", branchErr.BranchKey)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected the original cause to be reachable via errors.Is, got %v", err)
	}
}

func TestConcurrentGraph_BoundedByWorkerPool(t *testing.T) {
	pool := NewWorkerPool(1)
	var maxConcurrent, current int32
	track := func(label string) *CallableWorker {
		return NewCallableWorker(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
			n := incrAndRead(&current, 1)
			if n > maxConcurrent {
				maxConcurrent = n
			}
			defer incrAndRead(&current, -1)
			return label, nil
		})
	}
	cg := NewConcurrentGraph(pool).
		AddBranch("a", track("a")).
		AddBranch("b", track("b")).
		AddBranch("c", track("c"))

	if _, err := cg.Run(context.Background(), []any{InOrder{Value: "x"}}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if maxConcurrent > 1 {
		t.Fatalf("expected the pool to admit at most one branch at a time, saw %d", maxConcurrent)
	}
}

// incrAndRead is not safe against true data races across separate int32
// values, but the WorkerPool's semaphore already serializes every call to
// track's closure, so a plain read-modify-write here is sufficient.
func incrAndRead(n *int32, delta int32) int32 {
	*n += delta
	return *n
}

func TestConcurrentGraph_AsNestedWorkerInsideGraphAutoma(t *testing.T) {
	g, err := New("nested-fanout")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cg := NewConcurrentGraph(nil).
		AddBranch("a", branchWorker("a")).
		AddBranch("b", branchWorker("b"))
	if err := g.AddWorker("fanout", cg, AsStart(), AsOutput()); err != nil {
		t.Fatalf("add fanout: %v", err)
	}
	out, err := g.Run(context.Background(), []any{InOrder{Value: "q"}}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	results, ok := out.([]any)
	if !ok || len(results) != 2 {
		t.Fatalf("expected a 2-element []any, got %#v", out)
	}
}
