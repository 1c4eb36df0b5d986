// Package devai answers free-form coding questions with a Gemini model.
package devai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// ErrEmptyPrompt is returned by Ask for a blank prompt.
var ErrEmptyPrompt = errors.New("prompt required")

// Model is the subset of *genai.Models used by the assistant.
type Model interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Assistant sends prompts to a generative model.
type Assistant struct {
	models Model
	model  string
}

// New creates an assistant backed by the Gemini API.
func New(ctx context.Context, apiKey, model string) (*Assistant, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return NewWithModel(client.Models, model), nil
}

// NewWithModel creates an assistant over an existing model client.
func NewWithModel(m Model, model string) *Assistant {
	if model == "" {
		model = DefaultModel
	}
	return &Assistant{models: m, model: model}
}

// ModelName returns the configured model id.
func (a *Assistant) ModelName() string {
	return a.model
}

// Ask sends prompt to the model and returns its trimmed text answer.
func (a *Assistant) Ask(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	resp, err := a.models.GenerateContent(ctx, a.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return "", errors.New("generate content: empty response")
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("generate content: no text in response")
	}
	return text, nil
}
