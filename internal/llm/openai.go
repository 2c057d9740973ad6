package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/edgard/psyprofile/internal/config"
)

const maxErrorBody = 4 << 10

// openAIClient serves any OpenAI-compatible chat completions endpoint,
// Mistral's included.
type openAIClient struct {
	client      *gopenai.Client
	provider    string
	model       string
	temperature float32
	maxTokens   int
	log         *slog.Logger
}

func newOpenAIClient(cfg config.LLMConfig, log *slog.Logger) *openAIClient {
	clientCfg := gopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{
		Transport: &statusTransport{provider: cfg.Provider, next: http.DefaultTransport},
	}

	return &openAIClient{
		client:      gopenai.NewClientWithConfig(clientCfg),
		provider:    cfg.Provider,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		log:         log,
	}
}

func (c *openAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	req := gopenai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []gopenai.ChatCompletionMessage{
			{Role: gopenai.ChatMessageRoleUser, Content: prompt},
		},
	}

	c.log.DebugContext(ctx, "Sending chat completion", "prompt_length", len(prompt))
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", c.mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &MalformedResponseError{Provider: c.provider, Reason: "response has no choices"}
	}

	c.log.DebugContext(ctx, "Chat completion received",
		"finish_reason", resp.Choices[0].FinishReason,
		"completion_tokens", resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, nil
}

func (c *openAIClient) mapError(err error) error {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr
	}
	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) {
		return &TransportError{Provider: c.provider, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *gopenai.RequestError
	if errors.As(err, &reqErr) {
		return &TransportError{Provider: c.provider, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &TransportError{Provider: c.provider, Err: err}
}

// statusTransport turns non-2xx answers into a TransportError carrying the
// raw body, which go-openai would otherwise drop for non-OpenAI error shapes.
type statusTransport struct {
	provider string
	next     http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		body = []byte(fmt.Sprintf("<unreadable body: %v>", readErr))
	}
	return nil, &TransportError{
		Provider:   t.provider,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		Err:        fmt.Errorf("unexpected status %s", resp.Status),
	}
}
