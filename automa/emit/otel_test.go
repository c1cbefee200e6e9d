package emit

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func attributeMap(attrs []attribute.KeyValue) map[string]any {
	m := make(map[string]any, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value.AsInterface()
	}
	return m
}

func TestOTelEmitter_EmitCreatesSpanWithAttributes(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	emitter := NewOTelEmitter(tp.Tracer("test"))
	emitter.Emit(Event{
		AutomaID:  "run-1",
		WorkerKey: "worker-a",
		Msg:       "worker_start",
		Meta: map[string]any{
			"attempt": 2,
			"model":   "gpt-4o",
		},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "worker_start" {
		t.Fatalf("span name = %q, want %q", span.Name, "worker_start")
	}

	attrs := attributeMap(span.Attributes)
	if attrs["automa.id"] != "run-1" {
		t.Errorf("automa.id = %v, want run-1", attrs["automa.id"])
	}
	if attrs["automa.worker_key"] != "worker-a" {
		t.Errorf("automa.worker_key = %v, want worker-a", attrs["automa.worker_key"])
	}
	if attrs["automa.meta.attempt"] != int64(2) {
		t.Errorf("automa.meta.attempt = %v, want 2", attrs["automa.meta.attempt"])
	}
	if attrs["automa.meta.model"] != "gpt-4o" {
		t.Errorf("automa.meta.model = %v, want gpt-4o", attrs["automa.meta.model"])
	}
}

func TestOTelEmitter_EmitRecordsErrorFromMeta(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	emitter := NewOTelEmitter(tp.Tracer("test"))
	emitter.Emit(Event{
		Msg:  "worker_error",
		Meta: map[string]any{"error": "boom"},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	status := spans[0].Status
	if status.Code != codes.Error {
		t.Fatalf("expected status code Error, got %v", status.Code)
	}
	if status.Description != "boom" {
		t.Fatalf("status description = %q, want boom", status.Description)
	}
	if len(spans[0].Events) != 1 {
		t.Fatalf("expected RecordError to add a span event, got %d", len(spans[0].Events))
	}
}

func TestOTelEmitter_EmitBatchCreatesOneSpanPerEvent(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	emitter := NewOTelEmitter(tp.Tracer("test"))
	events := []Event{
		{Msg: "first"},
		{Msg: "second"},
	}
	if err := emitter.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name != "first" || spans[1].Name != "second" {
		t.Fatalf("unexpected span names: %q, %q", spans[0].Name, spans[1].Name)
	}
}

func TestOTelEmitter_FlushIsNoop(t *testing.T) {
	emitter := NewOTelEmitter(sdktrace.NewTracerProvider().Tracer("test"))
	if err := emitter.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}
