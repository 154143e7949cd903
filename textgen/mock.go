package textgen

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
)

// Mock returns canned post copy. It is used for local development.
type Mock struct {
	logger *slog.Logger
}

// NewMock creates a mock provider.
func NewMock(logger *slog.Logger) *Mock {
	return &Mock{logger: logger}
}

// Name returns "mock".
func (*Mock) Name() string { return "mock" }

var (
	locationRegex = regexp.MustCompile(`(?m)^Location: (.+)$`)
	closingRegex  = regexp.MustCompile(`End with this sentence verbatim: "(.+)"`)
)

// Generate echoes the prompt's location and closing sentence in a JSON reply.
func (m *Mock) Generate(_ context.Context, prompt string) (string, error) {
	where := "your area"
	if s := locationRegex.FindStringSubmatch(prompt); s != nil {
		where = s[1]
	}
	summary := "Serving " + where + " with care."
	if s := closingRegex.FindStringSubmatch(prompt); s != nil {
		summary += " " + s[1]
	}
	out, err := json.Marshal(map[string]any{
		"summary":  summary,
		"hashtags": []string{"#LocalBusiness", "#ShopLocal"},
	})
	if err != nil {
		return "", err
	}
	m.logger.Info("Generated mock post text", "chars", len(out))
	return string(out), nil
}
