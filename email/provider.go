// Package email sends failure alert digests through a pluggable provider.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"gbp-autoposter/pkg/autopost"
)

// Provider sends one HTML message.
type Provider interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// sendOptions is the retry policy shared by the remote providers.
func sendOptions(ctx context.Context, logger *slog.Logger, provider string) []retry.Option {
	return []retry.Option{
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30 * time.Second),
		retry.MaxJitter(2 * time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Info("Retrying alert send", "provider", provider, "attempt", n, "error", err)
		}),
	}
}

// Sender formats alerts and hands them to a provider.
type Sender struct {
	provider Provider
	logger   *slog.Logger
	baseURL  string // For links in emails
}

// New creates an alert sender.
func New(provider Provider, logger *slog.Logger, baseURL string) *Sender {
	return &Sender{
		provider: provider,
		logger:   logger,
		baseURL:  baseURL,
	}
}

// SendFailureAlert emails a digest of failed tick work. An empty list sends nothing.
func (s *Sender) SendFailureAlert(ctx context.Context, to string, failures []autopost.Failure) error {
	if len(failures) == 0 {
		return nil
	}
	subject := "Autoposter: 1 failure"
	if len(failures) > 1 {
		subject = fmt.Sprintf("Autoposter: %d failures", len(failures))
	}

	s.logger.Info("Sending failure alert", "to", to, "failure_count", len(failures))
	if err := s.provider.Send(ctx, to, subject, s.formatAlertBody(failures)); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	return nil
}
