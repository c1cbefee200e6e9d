package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns events into OpenTelemetry spans, one per event, started
// and ended immediately since an Automa Event is a point in time rather
// than a duration; a "duration_ms" Meta entry is recorded as an attribute
// like any other key and does not change the span's timing.
//
//	tracer := otel.Tracer("automa")
//	emitter := emit.NewOTelEmitter(tracer)
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter wraps tracer as an Emitter.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	o.annotate(span, event)
	span.End()
}

func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, event.Msg)
		o.annotate(span, event)
		span.End()
	}
	return nil
}

func (o *OTelEmitter) Flush(context.Context) error { return nil }

func (o *OTelEmitter) annotate(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("automa.id", event.AutomaID),
		attribute.String("automa.worker_key", event.WorkerKey),
	)
	for k, v := range event.Meta {
		switch val := v.(type) {
		case string:
			span.SetAttributes(attribute.String("automa.meta."+k, val))
		case int:
			span.SetAttributes(attribute.Int("automa.meta."+k, val))
		case int64:
			span.SetAttributes(attribute.Int64("automa.meta."+k, val))
		case float64:
			span.SetAttributes(attribute.Float64("automa.meta."+k, val))
		case bool:
			span.SetAttributes(attribute.Bool("automa.meta."+k, val))
		default:
			span.SetAttributes(attribute.String("automa.meta."+k, fmt.Sprintf("%v", val)))
		}
	}
	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}
