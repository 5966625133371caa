// Package llm provides a provider-agnostic client for the generative text
// services used by sequence generation and reply classification. All
// providers go through the shared retry policy in pkg/httpretry, so
// transient failures (429, 5xx, connection drops) are retried with
// exponential backoff and jitter while auth and malformed-request errors
// surface immediately.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/salestroopz/outreach-engine/internal/config"
)

// Request is one completion call. JSONResponse asks the provider for a
// JSON-object response mode where supported; for providers without a
// native mode the prompt is expected to enforce it.
type Request struct {
	System       string
	Prompt       string
	Temperature  float64
	MaxTokens    int
	JSONResponse bool
}

// Client executes completion requests against one provider.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrNotConfigured is returned by New when no provider credentials exist.
// Callers translate it into ai_status=failed_config rather than retrying.
var ErrNotConfigured = errors.New("llm: no provider configured")

// APIError is a non-transport failure from a provider. Retries for
// retryable statuses happen inside the HTTP client; an APIError reaching
// the caller is final for that attempt chain.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Permanent reports whether the failure must not be retried by callers
// (auth failures, malformed requests).
func (e *APIError) Permanent() bool {
	return e.StatusCode == 400 || e.StatusCode == 401 || e.StatusCode == 403 || e.StatusCode == 404
}

// New builds the configured provider client.
func New(cfg config.LLMConfig) (Client, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg.OpenAIKey, cfg.Model, cfg.Timeout(), cfg.MaxRetries), nil
	case "anthropic":
		return NewAnthropicClient(cfg.AnthropicKey, cfg.Model, cfg.Timeout(), cfg.MaxRetries), nil
	case "bedrock":
		return NewBedrockClient(context.Background(), cfg.BedrockRegion, cfg.Model)
	}
	return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
}
