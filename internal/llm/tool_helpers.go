package llm

import (
	"encoding/json"
	"fmt"

	"bugbot/internal/types"
)

// mapToolDefinitionsToOpenAI converts generic tool definitions to the
// OpenAI-compatible format.
func mapToolDefinitionsToOpenAI(tools []types.ToolDefinition) []openAITool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]openAITool, len(tools))
	for i, t := range tools {
		result[i] = openAITool{
			Type: "function",
			Function: openAIFuncDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		}
	}
	return result
}

// mapChatMessagesToOpenAI converts the conversation history to wire
// messages, encoding assistant tool calls and tool results in the
// shapes the OpenAI protocol expects.
func mapChatMessagesToOpenAI(messages []types.ChatMessage) []openAIMessage {
	result := make([]openAIMessage, len(messages))
	for i, m := range messages {
		wire := openAIMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Input)
			if err != nil {
				args = []byte("{}")
			}
			wire.ToolCalls = append(wire.ToolCalls, openAIToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: openAIFunction{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		result[i] = wire
	}
	return result
}

// mapOpenAIToolCallsToInternal converts wire tool calls to generic tool
// calls, decoding the JSON-string arguments.
func mapOpenAIToolCallsToInternal(calls []openAIToolCall) ([]types.ToolCall, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	result := make([]types.ToolCall, 0, len(calls))
	for _, c := range calls {
		if c.Type != "" && c.Type != "function" {
			continue // Skip non-function tool calls (if any)
		}

		args := map[string]any{}
		if c.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(c.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("failed to unmarshal arguments for tool %s: %w", c.Function.Name, err)
			}
		}

		result = append(result, types.ToolCall{
			ID:    c.ID,
			Name:  c.Function.Name,
			Input: args,
		})
	}
	return result, nil
}
