package email

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/gmail/v1"
)

// GmailProvider sends alerts as the account behind the Gmail credentials.
type GmailProvider struct {
	service *gmail.Service
	logger  *slog.Logger
}

// NewGmailProvider wraps an authenticated Gmail service.
func NewGmailProvider(service *gmail.Service, logger *slog.Logger) *GmailProvider {
	return &GmailProvider{service: service, logger: logger}
}

// headerValue keeps only printable runes so a value cannot open a new header line.
func headerValue(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}

// buildMessage renders an HTML message and base64url encodes it for messages.send.
func buildMessage(to, subject, htmlBody string) string {
	headers := [][2]string{
		{"MIME-Version", "1.0"},
		{"To", headerValue(to)},
		{"Subject", headerValue(subject)},
		{"Content-Type", "text/html; charset=utf-8"},
	}
	var b strings.Builder
	for _, h := range headers {
		b.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

// Send delivers one alert, retrying transient API failures.
func (g *GmailProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := &gmail.Message{Raw: buildMessage(to, subject, htmlBody)}
	return retry.Do(func() error {
		start := time.Now()
		if _, err := g.service.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
			g.logger.Warn("Gmail alert send failed", "recipient", to, "error", err)
			return err
		}
		g.logger.Info("Gmail alert sent", "recipient", to, "duration_ms", time.Since(start).Milliseconds())
		return nil
	}, sendOptions(ctx, g.logger, "gmail")...)
}
