package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/edgard/psyprofile/internal/config"
)

type geminiClient struct {
	genai         *genai.Client
	model         string
	contentConfig *genai.GenerateContentConfig
	log           *slog.Logger
}

func newGeminiClient(ctx context.Context, cfg config.LLMConfig, log *slog.Logger) (*geminiClient, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	gi, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &geminiClient{
		genai: gi,
		model: cfg.Model,
		contentConfig: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(cfg.Temperature),
			MaxOutputTokens: int32(cfg.MaxTokens), //nolint:gosec // bounded by config validation
		},
		log: log,
	}, nil
}

func (c *geminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, c.contentConfig)
	if err != nil {
		return "", geminiError(err)
	}
	return geminiText(resp)
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &TransportError{Provider: ProviderGemini, StatusCode: apiErr.Code, Body: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &TransportError{Provider: ProviderGemini, StatusCode: apiErrPtr.Code, Body: apiErrPtr.Message, Err: err}
	}
	return &TransportError{Provider: ProviderGemini, Err: err}
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", &MalformedResponseError{Provider: ProviderGemini, Reason: "empty response"}
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := string(resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		return "", &MalformedResponseError{Provider: ProviderGemini, Reason: "prompt blocked: " + reason}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		reason := "response has no candidates"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			reason = fmt.Sprintf("candidate has no content, finish reason %s", resp.Candidates[0].FinishReason)
		}
		return "", &MalformedResponseError{Provider: ProviderGemini, Reason: reason}
	}
	return resp.Text(), nil
}
