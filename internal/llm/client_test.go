package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugbot/internal/types"
)

func newTestClient(serverURL string) *OpenRouterClient {
	return NewOpenRouterClientWithConfig(OpenRouterConfig{
		APIKey:   "test-key",
		BaseURL:  serverURL,
		Model:    "test/model",
		Timeout:  5 * time.Second,
		SiteName: "bugbot-test",
	})
}

func TestCompleteWithSystemRoundTrip(t *testing.T) {
	var captured openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "  hello there  "}, "finish_reason": "stop"}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	text, err := client.CompleteWithSystem(context.Background(), "be brief", "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello there", text, "response should be trimmed")

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "be brief", captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "test/model", captured.Model)
}

func TestCompleteCappedSendsBudget(t *testing.T) {
	var captured openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{"choices": [{"message": {"content": "{}"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.CompleteCapped(context.Background(), "", "extract", 200)
	require.NoError(t, err)
	assert.Equal(t, 200, captured.MaxTokens)
}

func TestCompleteWithToolsMapsCalls(t *testing.T) {
	var captured openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call-abc",
						"type": "function",
						"function": {"name": "verify_developer", "arguments": "{\"name\": \"Alice Smith\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	tools := []types.ToolDefinition{{
		Name:        "verify_developer",
		Description: "Verify a developer by name",
		InputSchema: map[string]any{"type": "object"},
	}}
	messages := []types.ChatMessage{{Role: "user", Content: "I'm Alice Smith"}}

	resp, err := client.CompleteWithTools(context.Background(), "system", messages, tools)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call-abc", resp.ToolCalls[0].ID)
	assert.Equal(t, "verify_developer", resp.ToolCalls[0].Name)
	assert.Equal(t, "Alice Smith", resp.ToolCalls[0].Input["name"])
	assert.Equal(t, "tool_use", resp.StopReason)

	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "function", captured.Tools[0].Type)
	assert.Equal(t, "auto", captured.ToolChoice)
}

func TestMissingAPIKey(t *testing.T) {
	client := NewOpenRouterClientWithConfig(OpenRouterConfig{Model: "test/model"})
	_, err := client.Complete(context.Background(), "hello")
	require.Error(t, err)
}

func TestRetriesOnRateLimit(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"message": "rate limited"}}`))
			return
		}
		w.Write([]byte(`{"choices": [{"message": {"content": "recovered"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	text, err := client.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 2, attempts)
}

func TestAPIErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "model not found", "code": 400}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}
