package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitter_TextMode(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, false)
	emitter.Emit(Event{AutomaID: "a1", WorkerKey: "w1", Msg: "worker_start"})

	out := buf.String()
	if !strings.Contains(out, "worker_start") || !strings.Contains(out, "a1") || !strings.Contains(out, "w1") {
		t.Fatalf("expected text output to contain msg/automaID/workerKey, got %q", out)
	}
}

func TestLogEmitter_TextModeIncludesMeta(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, false)
	emitter.Emit(Event{Msg: "worker_end", Meta: map[string]any{"duration_ms": 12}})
	if !strings.Contains(buf.String(), "duration_ms") {
		t.Fatalf("expected meta to be rendered, got %q", buf.String())
	}
}

func TestLogEmitter_JSONMode(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)
	emitter.Emit(Event{AutomaID: "a1", WorkerKey: "w1", Msg: "worker_start"})

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid JSON output, got error %v on %q", err, buf.String())
	}
	if decoded["automaID"] != "a1" || decoded["workerKey"] != "w1" || decoded["msg"] != "worker_start" {
		t.Fatalf("unexpected decoded fields: %#v", decoded)
	}
}

func TestLogEmitter_NilWriterDefaultsToStdout(t *testing.T) {
	emitter := NewLogEmitter(nil, false)
	if emitter.writer == nil {
		t.Fatal("expected NewLogEmitter(nil, ...) to default to os.Stdout rather than leaving writer nil")
	}
}

func TestLogEmitter_EmitBatchPreservesOrder(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)
	events := []Event{
		{WorkerKey: "first", Msg: "worker_start"},
		{WorkerKey: "second", Msg: "worker_end"},
	}
	if err := emitter.EmitBatch(nil, events); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "first") || !strings.Contains(lines[1], "second") {
		t.Fatalf("expected events in emission order, got %q", buf.String())
	}
}
