// Package llm talks to chat-completion providers. A Client sends one prompt
// and returns the first completion's text, with no retry and no streaming.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/psyprofile/internal/config"
)

// Client completes a single user prompt.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Provider names accepted in configuration.
const (
	ProviderMistral = "mistral"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
)

// New builds the client for cfg.Provider, bounded by cfg.Timeout per call.
//
//nolint:ireturn // callers only depend on Complete
func New(ctx context.Context, cfg config.LLMConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Provider)
	}
	logger := log.With("component", "llm", "provider", cfg.Provider, "model", cfg.Model)

	var (
		backend Client
		err     error
	)
	switch cfg.Provider {
	case ProviderMistral, ProviderOpenAI:
		backend = newOpenAIClient(cfg, logger)
	case ProviderGemini:
		backend, err = newGeminiClient(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}

	logger.Info("LLM client initialized", "timeout", cfg.Timeout)
	return WithTimeout(backend, cfg.Provider, cfg.Timeout), nil
}

type timeoutClient struct {
	next     Client
	provider string
	timeout  time.Duration
}

// WithTimeout bounds every Complete call of next. A deadline hit by the
// bound surfaces as a TransportError.
//
//nolint:ireturn
func WithTimeout(next Client, provider string, timeout time.Duration) Client {
	if timeout <= 0 {
		return next
	}
	return &timeoutClient{next: next, provider: provider, timeout: timeout}
}

func (c *timeoutClient) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.next.Complete(callCtx, prompt)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		var transportErr *TransportError
		if !errors.As(err, &transportErr) {
			err = &TransportError{Provider: c.provider, Err: fmt.Errorf("timed out after %s: %w", c.timeout, err)}
		}
	}
	return text, err
}
