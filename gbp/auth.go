package gbp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scope grants management of Business Profile listings.
const Scope = "https://www.googleapis.com/auth/business.manage"

// TokenKey is the document key of the persisted OAuth token.
const TokenKey = "oauthToken"

// ErrNoToken is returned when no account has been connected yet.
var ErrNoToken = errors.New("no oauth token stored; visit /auth to connect an account")

// TokenStore persists the OAuth token.
type TokenStore interface {
	Get(ctx context.Context, key string, v any) (bool, error)
	Put(ctx context.Context, key string, v any) error
}

// Auth handles the consent flow and hands out authenticated HTTP clients.
type Auth struct {
	config *oauth2.Config
	store  TokenStore
	logger *slog.Logger
}

// NewAuth creates the OAuth helper. redirectURL is the public /oauth2callback URL.
func NewAuth(clientID, clientSecret, redirectURL string, store TokenStore, logger *slog.Logger) *Auth {
	return &Auth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{Scope},
			Endpoint:     google.Endpoint,
		},
		store:  store,
		logger: logger,
	}
}

// AuthCodeURL returns the consent page URL. Offline access is requested so a refresh token is issued.
func (a *Auth) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it.
func (a *Auth) Exchange(ctx context.Context, code string) error {
	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	if err := a.store.Put(ctx, TokenKey, tok); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	a.logger.Info("Stored OAuth token", "has_refresh_token", tok.RefreshToken != "")
	return nil
}

// HTTPClient returns a client that refreshes the stored token and persists refreshed tokens.
func (a *Auth) HTTPClient(ctx context.Context) (*http.Client, error) {
	var tok oauth2.Token
	found, err := a.store.Get(ctx, TokenKey, &tok)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	if !found || (tok.AccessToken == "" && tok.RefreshToken == "") {
		return nil, ErrNoToken
	}
	src := &persistingSource{
		base:   a.config.TokenSource(context.WithoutCancel(ctx), &tok),
		store:  a.store,
		last:   tok.AccessToken,
		logger: a.logger,
	}
	return oauth2.NewClient(context.WithoutCancel(ctx), oauth2.ReuseTokenSource(&tok, src)), nil
}

// persistingSource saves every newly refreshed token.
type persistingSource struct {
	base   oauth2.TokenSource
	store  TokenStore
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.store.Put(context.Background(), TokenKey, tok); err != nil {
			s.logger.Warn("Failed to persist refreshed token", "error", err)
		} else {
			s.logger.Info("Persisted refreshed OAuth token", "expiry", tok.Expiry)
		}
	}
	return tok, nil
}
