package llm

import (
	"time"

	"bugbot/internal/types"
)

// LLMClient is an alias to types.LLMClient for package compatibility.
type LLMClient = types.LLMClient

// ToolDefinition is an alias to types.ToolDefinition.
type ToolDefinition = types.ToolDefinition

// ToolCall is an alias to types.ToolCall.
type ToolCall = types.ToolCall

// LLMToolResponse is an alias to types.LLMToolResponse.
type LLMToolResponse = types.LLMToolResponse

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	MaxTokens int    // Default output budget per completion
	SiteURL   string // Optional: sent as HTTP-Referer
	SiteName  string // Optional: sent as X-Title
}

// openAIMessage is a message on the OpenAI-compatible wire. Content stays
// a plain string; tool invocations ride on tool_calls / tool_call_id.
type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

// openAIToolCall is a tool invocation on the wire; arguments are an
// encoded JSON string, not an object.
type openAIToolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// openAITool declares a callable function to the model.
type openAITool struct {
	Type     string        `json:"type"`
	Function openAIFuncDef `json:"function"`
}

type openAIFuncDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// openAIRequest represents the OpenAI-compatible API request.
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	Tools       []openAITool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
}

// openAIResponse represents the API response.
type openAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role      string           `json:"role"`
			Content   string           `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}
