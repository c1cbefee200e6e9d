package model

import (
	"context"
	"fmt"

	"github.com/automa-run/automa-go/automa"
)

// modelWorker adapts a ChatModel into an automa.Worker: args[0] must be
// []Message, an optional args[1] a []ToolSpec. Keeping this adapter here
// rather than in the core package is what lets automa never import model
// (or any provider SDK) directly.
type modelWorker struct {
	name  string
	model ChatModel
}

// AsWorker wraps model as an automa.Worker named name (used only to label
// the "llm_usage" event this worker posts after each call).
func AsWorker(name string, model ChatModel) automa.Worker {
	return automa.NewCallableWorker(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		w := &modelWorker{name: name, model: model}
		return w.run(ctx, args, kwargs)
	})
}

func (w *modelWorker) run(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("model worker %s: expected []model.Message as first argument", w.name)
	}
	messages, ok := args[0].([]Message)
	if !ok {
		return nil, fmt.Errorf("model worker %s: first argument must be []model.Message, got %T", w.name, args[0])
	}
	var tools []ToolSpec
	if len(args) > 1 {
		tools, _ = args[1].([]ToolSpec)
	} else if raw, ok := kwargs["tools"]; ok {
		tools, _ = raw.([]ToolSpec)
	}

	out, err := w.model.Chat(ctx, messages, tools)
	if err != nil {
		return nil, fmt.Errorf("model worker %s: %w", w.name, err)
	}

	automa.PostEvent(ctx, automa.Event{
		Type: "llm_usage",
		Data: automa.UsageRecord{
			WorkerKey:    w.name,
			Model:        w.name,
			InputTokens:  out.Usage.InputTokens,
			OutputTokens: out.Usage.OutputTokens,
		},
	})

	return out, nil
}
