package automa

import "context"

// contextKey is a private type for context value keys, mirroring the
// teacher's graph/engine.go convention of avoiding collisions with other
// packages' context keys.
type contextKey string

const (
	automaCtxKey     contextKey = "automa.current_automa"
	workerKeyCtxKey  contextKey = "automa.current_worker_key"
	feedbacksCtxKey  contextKey = "automa.pending_feedbacks"
	backgroundCtxKey contextKey = "automa.in_background_executor"
)

// withWorkerContext stamps ctx with the automa instance and worker key
// that are about to run, so package-level helpers (FerryTo, PostEvent,
// RequestFeedback, InteractWithHuman) can find their way back to the
// scheduler without threading an explicit parameter through every Worker
// implementation.
func withWorkerContext(ctx context.Context, g *GraphAutoma, workerKey string) context.Context {
	ctx = context.WithValue(ctx, automaCtxKey, g)
	ctx = context.WithValue(ctx, workerKeyCtxKey, workerKey)
	return ctx
}

func automaFromContext(ctx context.Context) (*GraphAutoma, string, bool) {
	g, ok := ctx.Value(automaCtxKey).(*GraphAutoma)
	if !ok || g == nil {
		return nil, "", false
	}
	key, _ := ctx.Value(workerKeyCtxKey).(string)
	return g, key, true
}

// WithFeedbacks stamps ctx with feedbacks to be delivered on the next Run.
// Used by top-level callers resuming from an InteractionException. The
// scheduler never calls it itself; a nested GraphAutoma sees only the
// feedbacks already present on the ctx its parent's Run received.
func WithFeedbacks(ctx context.Context, feedbacks ...Feedback) context.Context {
	return context.WithValue(ctx, feedbacksCtxKey, feedbacks)
}

func feedbacksFromContext(ctx context.Context) []Feedback {
	fb, _ := ctx.Value(feedbacksCtxKey).([]Feedback)
	return fb
}

// withBackgroundExecutor marks ctx as running on the background executor
// (a goroutine dispatched by WorkerPool), the Go analogue of "not the main
// event loop thread" used to decide whether a blocking RequestFeedback
// call is legal (§5, §7 "request_feedback called from the main thread").
func withBackgroundExecutor(ctx context.Context) context.Context {
	return context.WithValue(ctx, backgroundCtxKey, true)
}

func isBackgroundExecutor(ctx context.Context) bool {
	v, _ := ctx.Value(backgroundCtxKey).(bool)
	return v
}
