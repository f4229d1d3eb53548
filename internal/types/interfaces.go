package types

import "context"

// LLMClient defines the interface for the language-understanding service.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// CompleteCapped is CompleteWithSystem with an explicit output-token
	// budget, used by the cheap extraction and end-detection passes.
	CompleteCapped(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
	// CompleteWithTools sends the conversation with tool definitions and
	// returns the response together with any tool calls the model requested.
	CompleteWithTools(ctx context.Context, systemPrompt string, messages []ChatMessage, tools []ToolDefinition) (*LLMToolResponse, error)
}

// ChatMessage is one message in the wire-level conversation sent to the
// understanding service. ToolCalls is set on assistant messages that
// requested tools; ToolCallID is set on role="tool" result messages.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolDefinition describes a tool that the LLM can invoke.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"` // JSON Schema for parameters
}

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall struct {
	ID    string         `json:"id"`    // Unique ID for this tool use
	Name  string         `json:"name"`  // Tool name to invoke
	Input map[string]any `json:"input"` // Tool arguments
}

// ToolResult is the outcome of executing one requested tool call.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"` // Matches ToolCall.ID
	Content   string `json:"content"`
	IsError   bool   `json:"is_error"`
}

// UsageMetadata captures token usage metrics from the LLM.
type UsageMetadata struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// LLMToolResponse contains both text response and tool calls from the LLM.
type LLMToolResponse struct {
	Text       string        `json:"text"`        // May be empty if only tool calls
	ToolCalls  []ToolCall    `json:"tool_calls"`  // Tool invocations requested by LLM
	StopReason string        `json:"stop_reason"` // "end_turn", "tool_use", etc.
	Usage      UsageMetadata `json:"usage"`
}

// BugStore defines the storage collaborator consumed by the dialogue
// core. Implementations must keep per-developer bug ordering stable and
// serialize writes at bug-record granularity.
type BugStore interface {
	FindDeveloperByID(id int) (*Developer, error)
	ListDevelopers() ([]Developer, error)
	GetBugsForDeveloper(devID int) ([]Bug, error)
	GetBug(bugID int) (*Bug, error)
	// AppendProgress appends a note and updates status/solved in one
	// write. Returns false when the bug does not exist.
	AppendProgress(bugID int, note string, status BugStatus, solved bool) (bool, error)
}
