package emit

import "context"

// NullEmitter discards every event. Useful as the default when the host
// application hasn't wired an observability backend yet.
type NullEmitter struct{}

// NewNullEmitter returns an Emitter that discards everything.
func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

func (n *NullEmitter) Emit(Event) {}

func (n *NullEmitter) EmitBatch(context.Context, []Event) error { return nil }

func (n *NullEmitter) Flush(context.Context) error { return nil }
