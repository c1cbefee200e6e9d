package automa

import (
	"context"
	"time"
)

// EventHandlerFunc observes or answers events posted on the bus. For
// PostEvent the returned Feedback is discarded; for RequestFeedback it is
// the reply delivered back to the caller.
type EventHandlerFunc func(ctx context.Context, event Event) (Feedback, error)

// RegisterEventHandler attaches handler for events of the given type on the
// root GraphAutoma (events always bubble to the root, spec.md §4.6). Pass
// an empty eventType to register a catch-all default handler.
func (g *GraphAutoma) RegisterEventHandler(eventType string, handler EventHandlerFunc) {
	root := g.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	if root.eventHandlers == nil {
		root.eventHandlers = make(map[string][]EventHandlerFunc)
	}
	root.eventHandlers[eventType] = append(root.eventHandlers[eventType], handler)
}

// UnregisterEventHandler removes all handlers registered for eventType.
func (g *GraphAutoma) UnregisterEventHandler(eventType string) {
	root := g.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	delete(root.eventHandlers, eventType)
}

// UnregisterAllEventHandlers clears every handler on the root.
func (g *GraphAutoma) UnregisterAllEventHandlers() {
	root := g.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	root.eventHandlers = make(map[string][]EventHandlerFunc)
}

func (g *GraphAutoma) root() *GraphAutoma {
	cur := g
	for {
		parent := cur.Parent()
		if parent == nil {
			return cur
		}
		cur = parent
	}
}

func (g *GraphAutoma) handlersFor(eventType string) []EventHandlerFunc {
	root := g.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	handlers := append([]EventHandlerFunc{}, root.eventHandlers[eventType]...)
	if len(handlers) == 0 {
		handlers = append(handlers, root.eventHandlers[""]...)
	}
	return handlers
}

// PostEvent delivers event to every handler registered (on the root) for
// its type, best-effort: handler errors are swallowed after being reported
// to the configured Emitter, matching the fire-and-forget contract of
// spec.md §4.6.
func PostEvent(ctx context.Context, event Event) {
	g, _, ok := automaFromContext(ctx)
	if !ok {
		return
	}
	for _, h := range g.handlersFor(event.Type) {
		if _, err := h(ctx, event); err != nil {
			g.logEvent("event_handler_error", map[string]any{"event_type": event.Type, "error": err.Error()})
		}
	}
}

// RequestFeedback blocks the calling goroutine until a handler registered
// for event.Type answers, or timeout elapses. It must not be called from
// the scheduler's own step goroutine (it would deadlock a strictly
// single-threaded scheduler); callers should invoke it only from workers
// dispatched through WorkerPool, which stamps ctx accordingly. Calling it
// directly from the synchronous launch phase returns ErrMainThreadBlock.
func RequestFeedback(ctx context.Context, event Event, timeout time.Duration) (Feedback, error) {
	g, _, ok := automaFromContext(ctx)
	if !ok {
		return Feedback{}, &RuntimeError{Code: "no_automa_context", Message: "RequestFeedback called outside a worker invocation"}
	}
	if !isBackgroundExecutor(ctx) {
		return Feedback{}, &RuntimeError{Code: "main_thread_block", Message: "request_feedback called from the main loop would deadlock", Cause: ErrMainThreadBlock}
	}
	return g.requestFeedbackSync(ctx, event, timeout)
}

// RequestFeedbackAsync is the non-blocking counterpart: it posts event to
// handlers on a separate goroutine and returns a channel that yields the
// first result (or the context/timeout error). Safe to call from any
// context, including the scheduler's own step goroutine.
func RequestFeedbackAsync(ctx context.Context, event Event, timeout time.Duration) <-chan FeedbackResult {
	out := make(chan FeedbackResult, 1)
	g, _, ok := automaFromContext(ctx)
	if !ok {
		out <- FeedbackResult{Err: &RuntimeError{Code: "no_automa_context", Message: "RequestFeedbackAsync called outside a worker invocation"}}
		close(out)
		return out
	}
	go func() {
		fb, err := g.requestFeedbackSync(ctx, event, timeout)
		out <- FeedbackResult{Feedback: fb, Err: err}
		close(out)
	}()
	return out
}

// FeedbackResult is the payload delivered by RequestFeedbackAsync's channel.
type FeedbackResult struct {
	Feedback Feedback
	Err      error
}

func (g *GraphAutoma) requestFeedbackSync(ctx context.Context, event Event, timeout time.Duration) (Feedback, error) {
	handlers := g.handlersFor(event.Type)
	if len(handlers) == 0 {
		return Feedback{}, &RuntimeError{Code: "no_handler", Message: "no event handler registered for type " + event.Type}
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		fb  Feedback
		err error
	}
	done := make(chan result, 1)
	go func() {
		fb, err := handlers[0](callCtx, event)
		done <- result{fb: fb, err: err}
	}()

	select {
	case r := <-done:
		return r.fb, r.err
	case <-callCtx.Done():
		return Feedback{}, &RuntimeError{Code: "feedback_timeout", Message: "request_feedback timed out waiting for a handler reply", Cause: callCtx.Err()}
	}
}
