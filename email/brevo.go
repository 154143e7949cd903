package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// DefaultBrevoEndpoint is the Brevo transactional email API.
const DefaultBrevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// BrevoProvider sends alerts through Brevo's transactional API.
type BrevoProvider struct {
	apiKey   string
	from     brevoContact
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewBrevoProvider creates a Brevo provider. An empty endpoint uses DefaultBrevoEndpoint.
func NewBrevoProvider(apiKey, fromAddr, fromName, endpoint string, logger *slog.Logger) *BrevoProvider {
	if endpoint == "" {
		endpoint = DefaultBrevoEndpoint
	}
	return &BrevoProvider{
		apiKey:   apiKey,
		from:     brevoContact{Email: fromAddr, Name: fromName},
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

type brevoSendRequest struct {
	Sender  brevoContact   `json:"sender"`
	To      []brevoContact `json:"to"`
	Subject string         `json:"subject"`
	HTML    string         `json:"htmlContent"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// brevoError is a non-2xx answer from the API.
type brevoError struct {
	status int
}

func (e *brevoError) Error() string { return fmt.Sprintf("brevo: HTTP %d", e.status) }

func (e *brevoError) temporary() bool {
	return e.status >= 500 || e.status == http.StatusTooManyRequests
}

// Send posts one alert. Rate limiting and server errors are retried.
func (b *BrevoProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload, err := json.Marshal(brevoSendRequest{
		Sender:  b.from,
		To:      []brevoContact{{Email: to}},
		Subject: subject,
		HTML:    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("marshal brevo request: %w", err)
	}

	var last error
	err = retry.Do(func() error {
		last = b.post(ctx, payload)
		var be *brevoError
		if errors.As(last, &be) && !be.temporary() {
			return retry.Unrecoverable(last)
		}
		return last
	}, sendOptions(ctx, b.logger, "brevo")...)
	if err != nil && last != nil {
		b.logger.Warn("Brevo alert send failed", "recipient", to, "error", last)
		return last
	}
	if err == nil {
		b.logger.Info("Brevo alert sent", "recipient", to)
	}
	return err
}

func (b *BrevoProvider) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("create brevo request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("brevo request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // body is not read
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &brevoError{status: resp.StatusCode}
	}
	return nil
}
