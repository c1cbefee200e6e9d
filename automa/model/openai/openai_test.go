package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/automa-run/automa-go/automa/model"
)

type fakeOpenAIClient struct {
	calls int
	errs  []error
	out   model.ChatOut
}

func (f *fakeOpenAIClient) createChatCompletion(_ context.Context, _ []model.Message, _ []model.ToolSpec) (model.ChatOut, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) {
		return model.ChatOut{}, f.errs[idx]
	}
	return f.out, nil
}

func newTestChatModel(client openaiClient) *ChatModel {
	return &ChatModel{
		apiKey:     "test-key",
		modelName:  "gpt-4o",
		client:     client,
		maxRetries: 3,
		retryDelay: time.Millisecond,
	}
}

func TestChatModel_SucceedsOnFirstAttempt(t *testing.T) {
	fake := &fakeOpenAIClient{out: model.ChatOut{Text: "hi"}}
	m := newTestChatModel(fake)

	out, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hello"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out.Text != "hi" {
		t.Fatalf("expected text %q, got %q", "hi", out.Text)
	}
	if fake.calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", fake.calls)
	}
}

func TestChatModel_RetriesTransientErrors(t *testing.T) {
	fake := &fakeOpenAIClient{
		errs: []error{errors.New("connection reset"), errors.New("503 service unavailable")},
		out:  model.ChatOut{Text: "recovered"},
	}
	m := newTestChatModel(fake)

	out, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hello"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out.Text != "recovered" {
		t.Fatalf("expected recovery after retries, got %q", out.Text)
	}
	if fake.calls != 3 {
		t.Fatalf("expected 3 calls (2 failures + 1 success), got %d", fake.calls)
	}
}

func TestChatModel_DoesNotRetryNonTransientErrors(t *testing.T) {
	fake := &fakeOpenAIClient{errs: []error{errors.New("invalid api key")}}
	m := newTestChatModel(fake)

	_, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hello"}}, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if fake.calls != 1 {
		t.Fatalf("expected no retry for a non-transient error, got %d calls", fake.calls)
	}
}

func TestChatModel_GivesUpAfterMaxRetries(t *testing.T) {
	fake := &fakeOpenAIClient{errs: []error{
		errors.New("timeout"), errors.New("timeout"), errors.New("timeout"), errors.New("timeout"),
	}}
	m := newTestChatModel(fake)

	_, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hello"}}, nil)
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if fake.calls != m.maxRetries+1 {
		t.Fatalf("expected %d calls, got %d", m.maxRetries+1, fake.calls)
	}
}

func TestChatModel_RespectsContextCancellationDuringBackoff(t *testing.T) {
	fake := &fakeOpenAIClient{errs: []error{errors.New("timeout"), errors.New("timeout")}}
	m := newTestChatModel(fake)
	m.retryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := m.Chat(ctx, []model.Message{{Role: model.RoleUser, Content: "hello"}}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewChatModel_DefaultsModelName(t *testing.T) {
	m := NewChatModel("key", "")
	if m.modelName != "gpt-4o" {
		t.Fatalf("expected default model gpt-4o, got %q", m.modelName)
	}
}

func TestConvertMessages_MapsKnownRoles(t *testing.T) {
	msgs := []model.Message{
		{Role: model.RoleSystem, Content: "system prompt"},
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant, Content: "hello"},
		{Role: "unknown", Content: "fallback"},
	}
	converted := convertMessages(msgs)
	if len(converted) != 4 {
		t.Fatalf("expected 4 converted messages, got %d", len(converted))
	}
}

func TestConvertTools_CarriesNameDescriptionSchema(t *testing.T) {
	tools := []model.ToolSpec{{Name: "lookup", Description: "looks things up", Schema: map[string]any{"type": "object"}}}
	converted := convertTools(tools)
	if len(converted) != 1 {
		t.Fatalf("expected 1 converted tool, got %d", len(converted))
	}
	if converted[0].Function.Name != "lookup" {
		t.Fatalf("expected function name to round-trip, got %q", converted[0].Function.Name)
	}
}

func TestParseToolInput_ValidJSON(t *testing.T) {
	got := parseToolInput(`{"city":"nyc"}`)
	if got["city"] != "nyc" {
		t.Fatalf("expected parsed field, got %+v", got)
	}
}

func TestParseToolInput_EmptyStringReturnsNil(t *testing.T) {
	if got := parseToolInput(""); got != nil {
		t.Fatalf("expected nil for empty input, got %+v", got)
	}
}

func TestParseToolInput_MalformedJSONPreservedUnderRaw(t *testing.T) {
	got := parseToolInput("not json")
	if got["_raw"] != "not json" {
		t.Fatalf("expected malformed input preserved under _raw, got %+v", got)
	}
}
