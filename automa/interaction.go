package automa

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

// Event is a named payload posted onto the event bus, either fire-and-forget
// (PostEvent) or awaiting a Feedback (RequestFeedback, InteractWithHuman).
type Event struct {
	Type string
	Data any
}

// Feedback answers a pending Interaction. InteractionID must match the
// Interaction it resolves; Event.Type mismatches are reported as
// ErrFeedbackMismatch rather than silently accepted (spec.md §4.7).
type Feedback struct {
	InteractionID string
	Event         Event
}

// Interaction is a suspended request for human input, surfaced to the
// caller via InteractionException and resumed by passing a matching
// Feedback back into Run.
type Interaction struct {
	ID         string
	WorkerKey  string
	Event      Event
	// Index is this worker's monotonically increasing interaction ordinal,
	// used to keep repeated interact_with_human calls from the same worker
	// distinguishable across snapshot/resume cycles.
	Index int
}

// interactionFeedbackPair tracks one outstanding interaction and, once
// supplied, the feedback that resolves it.
type interactionFeedbackPair struct {
	interaction Interaction
	feedback    *Feedback
}

// interactionSignal is returned by a worker's Run (wrapped as an error) to
// tell the scheduler it is suspended awaiting human input. It is never
// surfaced directly to callers of GraphAutoma.Run; the root collects one
// per interacting worker per step and raises a single InteractionException.
type interactionSignal struct {
	interaction Interaction
}

func (s *interactionSignal) Error() string { return "automa: worker requested human interaction" }

// InteractWithHuman suspends the calling worker until a Feedback matching
// event.Type is supplied for it. On first call (no matching feedback queued
// for this worker) it returns an error wrapping interactionSignal, which the
// calling Worker.Run MUST propagate unchanged (return nil, err) so the
// scheduler can recognize the suspension (spec.md §4.6, §9 "the 'raise'
// becomes a returned Interact").
//
// On resume — a subsequent Run call supplying a Feedback for this worker's
// pending interaction — InteractWithHuman instead returns the feedback Event
// directly.
func InteractWithHuman(ctx context.Context, event Event) (Event, error) {
	g, key, ok := automaFromContext(ctx)
	if !ok {
		return Event{}, &RuntimeError{Code: "no_automa_context", Message: "InteractWithHuman called outside a worker invocation"}
	}
	return g.interactWithHumanFromWorkerKey(key, event)
}

func (g *GraphAutoma) interactWithHumanFromWorkerKey(workerKey string, event Event) (Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if pending, ok := g.ongoingInteractions[workerKey]; ok {
		for i, pair := range pending {
			if pair.feedback != nil {
				if pair.feedback.Event.Type != event.Type {
					return Event{}, &RuntimeError{
						Code:    "feedback_mismatch",
						Message: "feedback event type " + pair.feedback.Event.Type + " does not match requested type " + event.Type,
						Cause:   ErrFeedbackMismatch,
					}
				}
				resolved := pair.feedback.Event
				pending = append(pending[:i], pending[i+1:]...)
				if len(pending) == 0 {
					delete(g.ongoingInteractions, workerKey)
				} else {
					g.ongoingInteractions[workerKey] = pending
				}
				return resolved, nil
			}
		}
	}

	idx := g.workerInteractionIndices[workerKey]
	g.workerInteractionIndices[workerKey] = idx + 1

	interaction := Interaction{
		ID:        uuid.NewString(),
		WorkerKey: workerKey,
		Event:     event,
		Index:     idx,
	}
	g.ongoingInteractions[workerKey] = append(g.ongoingInteractions[workerKey], interactionFeedbackPair{interaction: interaction})
	return Event{}, &interactionSignal{interaction: interaction}
}

// resolveFeedback stores an incoming Feedback against its matching pending
// interaction (by ID), to be picked up the next time the owning worker calls
// InteractWithHuman. Returns ErrUnknownWorker-wrapping error if no pending
// interaction anywhere carries that ID.
func (g *GraphAutoma) resolveFeedback(fb Feedback) error {
	for workerKey, pending := range g.ongoingInteractions {
		for i, pair := range pending {
			if pair.interaction.ID == fb.InteractionID {
				pair.feedback = &fb
				pending[i] = pair
				g.ongoingInteractions[workerKey] = pending
				return nil
			}
		}
	}
	return &RuntimeError{Code: "unknown_interaction", Message: "no pending interaction with id " + fb.InteractionID, Cause: ErrUnknownWorker}
}

// pendingInteractionKeys returns the worker keys currently holding at least
// one unresolved interaction, in a stable order for deterministic wavefronts.
func (g *GraphAutoma) pendingInteractionKeys() []string {
	keys := make([]string, 0, len(g.ongoingInteractions))
	for k, pending := range g.ongoingInteractions {
		for _, p := range pending {
			if p.feedback == nil {
				keys = append(keys, k)
				break
			}
		}
	}
	sort.Strings(keys)
	return keys
}
