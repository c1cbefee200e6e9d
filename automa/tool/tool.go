// Package tool defines the interface external tool implementations satisfy
// to be callable from a worker, plus an HTTP tool and a test double. Like
// model, the core automa package never imports this one — AsWorker in
// worker.go is the only bridge.
package tool

import "context"

// Tool is something an LLM-driven worker can invoke: a web search, a
// database query, a calculation. Implementations should validate their
// input, respect ctx cancellation, and return structured output.
type Tool interface {
	// Name is the identifier matched against a model.ToolSpec's Name.
	Name() string

	// Call executes the tool. input may be nil for parameterless tools;
	// its shape should match the corresponding ToolSpec's Schema.
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}
