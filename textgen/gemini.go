package textgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini generates text with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Gemini, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, logger: logger}, nil
}

// Name returns "gemini".
func (*Gemini) Name() string { return "gemini" }

// Generate sends prompt as a single user turn.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](Temperature),
	}

	var text string
	err := retry.Do(func() error {
		result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
		if err != nil {
			return err
		}
		if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
			return retry.Unrecoverable(errors.New("no candidates in response"))
		}
		var b strings.Builder
		for _, part := range result.Candidates[0].Content.Parts {
			b.WriteString(part.Text)
		}
		text = strings.TrimSpace(b.String())
		return nil
	}, retryOptions(ctx, g.logger, g.Name())...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return text, nil
}
