// Package model provides LLM chat adapters. The core automa package never
// imports this package directly — model adapters implement automa.Worker
// via AsWorker, so a graph depends on the Worker interface, not on any
// particular provider SDK (spec.md's "external collaborators" boundary).
package model

import "context"

// ChatModel abstracts a provider's chat completion API (OpenAI, Anthropic,
// Google, or a local model) behind one interface.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn of a conversation.
type Message struct {
	Role    string
	Content string
}

// Standard roles shared across providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may call, in JSON-Schema form.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ChatOut is a completion's result: free text, tool calls, or both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall

	// Usage is populated when the provider reports token counts, and feeds
	// automa's CostTracker via the "llm_usage" event (see worker.go).
	Usage Usage
}

// Usage reports token counts for cost accounting.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ToolCall is one invocation the model is requesting.
type ToolCall struct {
	Name  string
	Input map[string]any
}
