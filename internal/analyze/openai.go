// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyze

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pdiddy/paper-intake/pkg/types"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIBackend calls an OpenAI-compatible chat completions endpoint in
// JSON mode.
type OpenAIBackend struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIBackend builds a backend for model. baseURL may point at any
// OpenAI-compatible server; empty means api.openai.com. A nil client gets
// the package default, which has a timeout.
func NewOpenAIBackend(apiKey, model, baseURL string, maxTokens int, client *http.Client) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if client == nil {
		client = defaultClient
	}
	cfg.HTTPClient = client
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &OpenAIBackend{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Source implements Backend.
func (o *OpenAIBackend) Source() types.AnalysisSource { return types.SourceOpenAI }

// Complete sends prompt and returns the first choice's content.
func (o *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You assess research papers and reply with a single JSON object."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: o.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: calling OpenAI API: %v", ErrAnalysisUnavailable, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.Join(ErrAnalysisUnavailable, errors.New("OpenAI API returned no content"))
	}
	return resp.Choices[0].Message.Content, nil
}
