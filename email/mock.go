package email

import (
	"context"
	"log/slog"
)

// MockProvider logs alerts instead of delivering them.
type MockProvider struct {
	logger *slog.Logger
}

// NewMockProvider creates the provider used when no mail credentials exist.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	return &MockProvider{logger: logger}
}

// Send logs the alert envelope.
func (m *MockProvider) Send(_ context.Context, to, subject, htmlBody string) error {
	m.logger.Info("Mock alert email", "recipient", to, "subject", subject, "body_bytes", len(htmlBody))
	return nil
}
