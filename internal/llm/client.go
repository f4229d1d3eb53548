// Package llm implements the understanding-service client for bugbot.
// OpenRouter exposes many providers behind one OpenAI-compatible API, so
// the client speaks that wire format directly.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"bugbot/internal/logging"
	"bugbot/internal/types"
)

// OpenRouterClient implements types.LLMClient against the OpenRouter API.
type OpenRouterClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
	siteURL     string
	siteName    string
}

// DefaultOpenRouterConfig returns sensible defaults.
func DefaultOpenRouterConfig(apiKey string) OpenRouterConfig {
	return OpenRouterConfig{
		APIKey:    apiKey,
		BaseURL:   "https://openrouter.ai/api/v1",
		Model:     "anthropic/claude-3.5-haiku",
		Timeout:   2 * time.Minute,
		MaxTokens: 500,
		SiteName:  "bugbot",
	}
}

// NewOpenRouterClient creates a client with default config.
func NewOpenRouterClient(apiKey string) *OpenRouterClient {
	return NewOpenRouterClientWithConfig(DefaultOpenRouterConfig(apiKey))
}

// NewOpenRouterClientWithConfig creates a client with custom config.
func NewOpenRouterClientWithConfig(config OpenRouterConfig) *OpenRouterClient {
	if config.MaxTokens <= 0 {
		config.MaxTokens = 500
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}
	return &OpenRouterClient{
		apiKey:    config.APIKey,
		baseURL:   config.BaseURL,
		model:     config.Model,
		maxTokens: config.MaxTokens,
		siteURL:   config.SiteURL,
		siteName:  config.SiteName,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Complete sends a prompt and returns the completion.
func (c *OpenRouterClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message.
func (c *OpenRouterClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.CompleteCapped(ctx, systemPrompt, userPrompt, c.maxTokens)
}

// CompleteCapped sends a prompt with an explicit output-token budget.
func (c *OpenRouterClient) CompleteCapped(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	messages := make([]openAIMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: userPrompt})

	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	reqBody := openAIRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: 0.1, // Low temperature for structured output
	}

	startTime := time.Now()
	logging.APIDebug("[OpenRouter] CompleteCapped: model=%s system_len=%d user_len=%d max_tokens=%d",
		c.model, len(systemPrompt), len(userPrompt), maxTokens)

	resp, err := c.execute(ctx, reqBody)
	if err != nil {
		logging.APIError("[OpenRouter] CompleteCapped failed after %v: %v", time.Since(startTime), err)
		return "", err
	}

	if len(resp.Choices) == 0 {
		logging.APIError("[OpenRouter] CompleteCapped: no completion returned")
		return "", fmt.Errorf("no completion returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	logging.API("[OpenRouter] CompleteCapped: completed in %v response_len=%d", time.Since(startTime), len(text))
	return text, nil
}

// CompleteWithTools sends the full conversation with tool definitions and
// returns both the text response and any requested tool calls.
func (c *OpenRouterClient) CompleteWithTools(ctx context.Context, systemPrompt string, messages []types.ChatMessage, tools []types.ToolDefinition) (*types.LLMToolResponse, error) {
	wire := make([]openAIMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		wire = append(wire, openAIMessage{Role: "system", Content: systemPrompt})
	}
	wire = append(wire, mapChatMessagesToOpenAI(messages)...)

	reqBody := openAIRequest{
		Model:       c.model,
		Messages:    wire,
		MaxTokens:   c.maxTokens,
		Temperature: 0.1,
		Tools:       mapToolDefinitionsToOpenAI(tools),
		ToolChoice:  "auto",
	}

	startTime := time.Now()
	logging.APIDebug("[OpenRouter] CompleteWithTools: model=%s messages=%d tools=%d", c.model, len(wire), len(tools))

	resp, err := c.execute(ctx, reqBody)
	if err != nil {
		logging.APIError("[OpenRouter] CompleteWithTools failed after %v: %v", time.Since(startTime), err)
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	toolCalls, err := mapOpenAIToolCallsToInternal(choice.Message.ToolCalls)
	if err != nil {
		return nil, err
	}

	stopReason := choice.FinishReason
	if stopReason == "tool_calls" {
		stopReason = "tool_use"
	}

	logging.API("[OpenRouter] CompleteWithTools: completed in %v tool_calls=%d stop=%s",
		time.Since(startTime), len(toolCalls), stopReason)

	return &types.LLMToolResponse{
		Text:       strings.TrimSpace(choice.Message.Content),
		ToolCalls:  toolCalls,
		StopReason: stopReason,
		Usage: types.UsageMetadata{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// execute performs one OpenAI-compatible request with rate spacing and a
// 429 retry loop. Other HTTP failures are returned to the caller, which
// applies the call-site-appropriate safe default.
func (c *OpenRouterClient) execute(ctx context.Context, reqBody openAIRequest) (*openAIResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}

	// Auto-apply timeout if context has no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	// Rate limiting
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	maxRetries := 3
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		// OpenRouter-specific headers
		req.Header.Set("HTTP-Referer", c.siteURL)
		req.Header.Set("X-Title", c.siteName)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429): %s", strings.TrimSpace(string(body)))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var orResp openAIResponse
		if err := json.Unmarshal(body, &orResp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}

		if orResp.Error != nil {
			return nil, fmt.Errorf("API error: %s", orResp.Error.Message)
		}

		return &orResp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// SetModel changes the model used for completions.
func (c *OpenRouterClient) SetModel(model string) {
	c.model = model
}

// GetModel returns the current model.
func (c *OpenRouterClient) GetModel() string {
	return c.model
}
