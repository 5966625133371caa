package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/salestroopz/outreach-engine/internal/pkg/httpretry"
)

const anthropicEndpoint = "https://api.anthropic.com/v1/messages"

// AnthropicClient calls the Anthropic messages API.
type AnthropicClient struct {
	apiKey   string
	model    string
	endpoint string
	client   httpretry.HTTPDoer
}

// NewAnthropicClient creates an Anthropic-backed client with retrying transport.
func NewAnthropicClient(apiKey, model string, timeout time.Duration, maxRetries int) *AnthropicClient {
	return &AnthropicClient{
		apiKey:   apiKey,
		model:    model,
		endpoint: anthropicEndpoint,
		client:   httpretry.NewRetryClient(&http.Client{Timeout: timeout}, maxRetries),
	}
}

// Complete executes one message call. Anthropic has no JSON response
// mode; the system prompt is expected to demand JSON when needed.
func (c *AnthropicClient) Complete(ctx context.Context, r Request) (string, error) {
	maxTokens := r.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	reqBody := map[string]interface{}{
		"model":       c.model,
		"max_tokens":  maxTokens,
		"temperature": r.Temperature,
		"messages": []map[string]string{
			{"role": "user", "content": r.Prompt},
		},
	}
	if r.System != "" {
		reqBody["system"] = r.System
	}

	body, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("Anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != 200 {
		return "", &APIError{Provider: "Anthropic", StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var anthropicResp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &anthropicResp); err != nil {
		return "", fmt.Errorf("failed to parse Anthropic response: %w", err)
	}
	if len(anthropicResp.Content) == 0 {
		return "", fmt.Errorf("no content in Anthropic response")
	}
	return anthropicResp.Content[0].Text, nil
}
