package gbp

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"gbp-autoposter/pkg/autopost"
)

// HTTPClientSource yields an authenticated HTTP client.
type HTTPClientSource interface {
	HTTPClient(ctx context.Context) (*http.Client, error)
}

// Session builds a Client on first use, once a token is available.
// Reset drops the cached client after the token is replaced.
type Session struct {
	src    HTTPClientSource
	logger *slog.Logger
	opts   Options

	mu     sync.Mutex
	client *Client
}

// NewSession creates a session that authenticates through src.
func NewSession(src HTTPClientSource, logger *slog.Logger, opts Options) *Session {
	return &Session{src: src, logger: logger, opts: opts}
}

// Client returns the cached client, creating it if needed.
func (s *Session) Client(ctx context.Context) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	hc, err := s.src.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	c, err := New(ctx, hc, s.logger, s.opts)
	if err != nil {
		return nil, err
	}
	s.client = c
	return c, nil
}

// Reset forgets the cached client.
func (s *Session) Reset() {
	s.mu.Lock()
	s.client = nil
	s.mu.Unlock()
}

func (s *Session) CreateLocalPost(ctx context.Context, loc Location, post *LocalPost) (*LocalPost, error) {
	c, err := s.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.CreateLocalPost(ctx, loc, post)
}

func (s *Session) UploadMedia(ctx context.Context, loc Location, item MediaItem) (*MediaItem, error) {
	c, err := s.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.UploadMedia(ctx, loc, item)
}

func (s *Session) ListMedia(ctx context.Context, loc Location, pageSize, pages int) ([]MediaItem, error) {
	c, err := s.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.ListMedia(ctx, loc, pageSize, pages)
}

func (s *Session) Basics(ctx context.Context, locationID string) (autopost.Basics, error) {
	c, err := s.Client(ctx)
	if err != nil {
		return autopost.Basics{}, err
	}
	return c.Basics(ctx, locationID)
}

func (s *Session) ListLocations(ctx context.Context) ([]RemoteLocation, error) {
	c, err := s.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.ListLocations(ctx)
}
