// Package textgen wraps the generative text providers used to write post copy.
package textgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// Provider generates text for a prompt.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Temperature is the sampling temperature for post copy.
const Temperature = 0.9

// Config selects and configures a provider.
type Config struct {
	Provider    string // openai, gemini or mock
	OpenAIKey   string
	OpenAIModel string
	GeminiKey   string
	GeminiModel string
	OpenAIBase  string // Optional API base URL
}

// New returns the configured provider.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		if cfg.OpenAIKey == "" {
			return nil, errors.New("openai provider requires OPENAI_API_KEY")
		}
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBase, logger), nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, errors.New("gemini provider requires GEMINI_API_KEY")
		}
		return NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel, logger)
	case "mock":
		return NewMock(logger), nil
	default:
		return nil, fmt.Errorf("unknown text provider %q", cfg.Provider)
	}
}

func retryOptions(ctx context.Context, logger *slog.Logger, provider string) []retry.Option {
	return []retry.Option{
		retry.Attempts(2),
		retry.Delay(time.Second),
		retry.MaxDelay(5 * time.Second),
		retry.MaxJitter(500 * time.Millisecond),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("Retrying text generation", "provider", provider, "attempt", n+1, "error", err)
		}),
	}
}
