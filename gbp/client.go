// Package gbp talks to the Google Business Profile APIs.
package gbp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/mybusinessaccountmanagement/v1"
	"google.golang.org/api/mybusinessbusinessinformation/v1"
	"google.golang.org/api/option"
)

// DefaultV4BaseURL is the endpoint for local posts and media.
const DefaultV4BaseURL = "https://mybusiness.googleapis.com/v4/"

// Options override endpoints, for tests.
type Options struct {
	V4BaseURL        string
	InfoEndpoint     string
	AccountsEndpoint string
}

// Client is an authenticated Business Profile client.
type Client struct {
	http     *http.Client
	v4       string
	info     *mybusinessbusinessinformation.Service
	accounts *mybusinessaccountmanagement.Service
	logger   *slog.Logger
}

// New creates a client that authenticates every request through httpClient.
func New(ctx context.Context, httpClient *http.Client, logger *slog.Logger, opts Options) (*Client, error) {
	v4 := opts.V4BaseURL
	if v4 == "" {
		v4 = DefaultV4BaseURL
	}
	if !strings.HasSuffix(v4, "/") {
		v4 += "/"
	}

	infoOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.InfoEndpoint != "" {
		infoOpts = append(infoOpts, option.WithEndpoint(opts.InfoEndpoint))
	}
	info, err := mybusinessbusinessinformation.NewService(ctx, infoOpts...)
	if err != nil {
		return nil, fmt.Errorf("create business information service: %w", err)
	}

	acctOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.AccountsEndpoint != "" {
		acctOpts = append(acctOpts, option.WithEndpoint(opts.AccountsEndpoint))
	}
	accounts, err := mybusinessaccountmanagement.NewService(ctx, acctOpts...)
	if err != nil {
		return nil, fmt.Errorf("create account management service: %w", err)
	}

	return &Client{
		http:     httpClient,
		v4:       v4,
		info:     info,
		accounts: accounts,
		logger:   logger,
	}, nil
}

func (c *Client) retryOptions(ctx context.Context, op string) []retry.Option {
	return []retry.Option{
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30 * time.Second),
		retry.MaxJitter(2 * time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("Retrying Business Profile request", "op", op, "attempt", n+1, "error", err)
		}),
	}
}

// get performs a GET with retries on transient failures.
// The last attempt's error is returned unwrapped so callers can inspect it.
func (c *Client) get(ctx context.Context, path string, out any) error {
	var last error
	err := retry.Do(func() error {
		last = c.do(ctx, http.MethodGet, path, nil, out)
		if last != nil && !retryable(last) {
			return retry.Unrecoverable(last)
		}
		return last
	}, c.retryOptions(ctx, "GET "+path)...)
	if err != nil && last != nil {
		return last
	}
	return err
}

// post performs a single POST. Creating content is never repeated automatically.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.v4+strings.TrimPrefix(path, "/"), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("Failed to close response body", "error", cerr)
		}
	}()

	c.logger.Debug("Business Profile request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
