package gbp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"gbp-autoposter/pkg/autopost"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), srv.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		V4BaseURL:        srv.URL + "/v4/",
		InfoEndpoint:     srv.URL + "/",
		AccountsEndpoint: srv.URL + "/",
	})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCreateLocalPost(t *testing.T) {
	var got LocalPost
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v4/accounts/a1/locations/l1/localPosts", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]string{
			"name":      "accounts/a1/locations/l1/localPosts/p9",
			"searchUrl": "https://local.google.com/place?post=p9",
		})
	})
	c := newTestClient(t, mux)

	post := &LocalPost{
		LanguageCode: "en",
		TopicType:    TopicStandard,
		Summary:      "Hello",
		CallToAction: &CallToAction{ActionType: "CALL"},
		Media:        []MediaItem{Photo("https://img.example/a.jpg")},
	}
	created, err := c.CreateLocalPost(context.Background(), Location{AccountID: "a1", LocationID: "l1"}, post)
	require.NoError(t, err)
	assert.Equal(t, "https://local.google.com/place?post=p9", created.PostedURL())
	assert.Equal(t, "Hello", got.Summary)
	assert.Equal(t, "CALL", got.CallToAction.ActionType)
	assert.Empty(t, got.CallToAction.URL)
	assert.Equal(t, "PHOTO", got.Media[0].MediaFormat)

	_, err = c.CreateLocalPost(context.Background(), Location{LocationID: "l1"}, post)
	assert.Error(t, err)
}

func TestCreateLocalPostErrors(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v4/accounts/a1/locations/bad/localPosts", func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{"code": 400, "message": "Request contains an invalid argument.", "status": "INVALID_ARGUMENT"},
		})
	})
	mux.HandleFunc("POST /v4/accounts/a1/locations/down/localPosts", func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	})
	c := newTestClient(t, mux)

	_, err := c.CreateLocalPost(context.Background(), Location{AccountID: "a1", LocationID: "bad"}, &LocalPost{TopicType: TopicStandard})
	require.Error(t, err)
	assert.True(t, IsInvalidArgument(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)

	_, err = c.CreateLocalPost(context.Background(), Location{AccountID: "a1", LocationID: "down"}, &LocalPost{TopicType: TopicStandard})
	require.Error(t, err)
	assert.False(t, IsInvalidArgument(err))
	assert.Equal(t, 2, calls, "posts are never retried")
}

func TestIsInvalidArgument(t *testing.T) {
	assert.True(t, IsInvalidArgument(&APIError{HTTPStatus: 400}))
	assert.False(t, IsInvalidArgument(&APIError{HTTPStatus: 400, Status: "FAILED_PRECONDITION"}))
	assert.True(t, IsInvalidArgument(errors.New("rpc error: INVALID_ARGUMENT")))
	assert.False(t, IsInvalidArgument(nil))
}

func TestUploadMediaFallsBackToAccountPath(t *testing.T) {
	var got MediaItem
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v4/locations/l1/media", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": 404, "message": "not found", "status": "NOT_FOUND"}})
	})
	mux.HandleFunc("POST /v4/accounts/a1/locations/l1/media", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]string{"name": "media/1"})
	})
	c := newTestClient(t, mux)

	item := Photo("https://img.example/a.jpg")
	item.LocationAssociation = &LocationAssociation{Category: "ADDITIONAL"}
	created, err := c.UploadMedia(context.Background(), Location{AccountID: "a1", LocationID: "l1"}, item)
	require.NoError(t, err)
	assert.Equal(t, "media/1", created.Name)
	assert.Equal(t, "ADDITIONAL", got.LocationAssociation.Category)

	_, err = c.UploadMedia(context.Background(), Location{LocationID: "l1"}, item)
	assert.True(t, IsNotFound(err))
}

func TestListMediaPaging(t *testing.T) {
	var mu sync.Mutex
	pages := 0
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v4/locations/l1/media", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		pages++
		n := pages
		mu.Unlock()
		assert.Equal(t, "5", r.URL.Query().Get("pageSize"))
		if n > 1 {
			assert.NotEmpty(t, r.URL.Query().Get("pageToken"))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"mediaItems":    []map[string]string{{"name": "m"}},
			"nextPageToken": "more",
		})
	})
	c := newTestClient(t, mux)

	items, err := c.ListMedia(context.Background(), Location{LocationID: "l1"}, 5, 50)
	require.NoError(t, err)
	assert.Len(t, items, MaxMediaPages)
	assert.Equal(t, MaxMediaPages, pages)

	pages = 0
	items, err = c.ListMedia(context.Background(), Location{LocationID: "l1"}, 5, 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestBasicsAndLocations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/locations/l1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, basicsReadMask, r.URL.Query().Get("readMask"))
		writeJSON(w, http.StatusOK, map[string]any{
			"name":         "locations/l1",
			"websiteUri":   "https://acme.example",
			"phoneNumbers": map[string]string{"primaryPhone": "+1 555 123 4567"},
			"metadata":     map[string]string{"mapsUri": "https://maps.example", "newReviewUri": "https://review.example"},
		})
	})
	mux.HandleFunc("GET /v1/accounts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"accounts": []map[string]string{{"name": "accounts/a1"}}})
	})
	mux.HandleFunc("GET /v1/accounts/a1/locations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"locations": []map[string]any{
			{
				"name":              "locations/l1",
				"title":             "Acme Roofing",
				"storeCode":         "S1",
				"storefrontAddress": map[string]string{"locality": "Calgary", "administrativeArea": "AB"},
			},
			{"name": "locations/l2", "title": "Acme North"},
		}})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	b, err := c.Basics(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, autopost.Basics{
		WebsiteURI:   "https://acme.example",
		PrimaryPhone: "+1 555 123 4567",
		MapsURI:      "https://maps.example",
		ReviewURI:    "https://review.example",
	}, b)

	_, err = c.Basics(ctx, "missing")
	assert.True(t, IsNotFound(err))

	locs, err := c.ListLocations(ctx)
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, RemoteLocation{AccountID: "a1", LocationID: "l1", StoreCode: "S1", Title: "Acme Roofing", City: "Calgary", Region: "AB"}, locs[0])

	profiles := Profiles(locs)
	assert.Equal(t, "profile-S1", profiles[0].ProfileID)
	assert.Equal(t, "profile-a1-l2", profiles[1].ProfileID)
}

type memTokens struct {
	mu   sync.Mutex
	puts int
	tok  *oauth2.Token
}

func (m *memTokens) Get(_ context.Context, _ string, v any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tok == nil {
		return false, nil
	}
	*(v.(*oauth2.Token)) = *m.tok
	return true, nil
}

func (m *memTokens) Put(_ context.Context, _ string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.tok = v.(*oauth2.Token)
	return nil
}

type staticSource struct{ tok *oauth2.Token }

func (s staticSource) Token() (*oauth2.Token, error) { return s.tok, nil }

func TestPersistingSource(t *testing.T) {
	store := &memTokens{}
	fresh := &oauth2.Token{AccessToken: "new", Expiry: time.Now().Add(time.Hour)}
	src := &persistingSource{
		base:   staticSource{tok: fresh},
		store:  store,
		last:   "old",
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for range 3 {
		tok, err := src.Token()
		require.NoError(t, err)
		assert.Equal(t, "new", tok.AccessToken)
	}
	assert.Equal(t, 1, store.puts, "a token is persisted once per refresh")
}

func TestHTTPClientRequiresToken(t *testing.T) {
	a := NewAuth("id", "secret", "https://app.example/oauth2callback", &memTokens{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := a.HTTPClient(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Contains(t, a.AuthCodeURL("state-1"), "access_type=offline")
}

type countingSource struct {
	calls int
	err   error
}

func (s *countingSource) HTTPClient(context.Context) (*http.Client, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return http.DefaultClient, nil
}

func TestSessionCachesClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	missing := NewSession(&countingSource{err: ErrNoToken}, logger, Options{})
	_, err := missing.Basics(context.Background(), "l1")
	assert.ErrorIs(t, err, ErrNoToken)

	src := &countingSource{}
	s := NewSession(src, logger, Options{V4BaseURL: "http://127.0.0.1:1/v4"})
	c1, err := s.Client(context.Background())
	require.NoError(t, err)
	c2, err := s.Client(context.Background())
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, "http://127.0.0.1:1/v4/", c1.v4)

	s.Reset()
	_, err = s.Client(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}
