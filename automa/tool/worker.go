package tool

import (
	"context"
	"fmt"

	"github.com/automa-run/automa-go/automa"
)

// AsWorker wraps t as an automa.Worker: args[0] or kwargs["input"] is the
// map[string]interface{} passed to Call. Mirrors model.AsWorker so the
// core automa package stays free of any import of this package.
func AsWorker(t Tool) automa.Worker {
	return automa.NewCallableWorker(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		input, err := toolInput(t.Name(), args, kwargs)
		if err != nil {
			return nil, err
		}
		return t.Call(ctx, input)
	})
}

func toolInput(name string, args []any, kwargs map[string]any) (map[string]interface{}, error) {
	if len(args) > 0 {
		input, ok := args[0].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("tool worker %s: first argument must be map[string]interface{}, got %T", name, args[0])
		}
		return input, nil
	}
	if raw, ok := kwargs["input"]; ok {
		input, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("tool worker %s: kwarg \"input\" must be map[string]interface{}, got %T", name, raw)
		}
		return input, nil
	}
	return nil, nil
}
