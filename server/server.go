// Package server exposes the autoposter over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"gbp-autoposter/compose"
	"gbp-autoposter/gbp"
	"gbp-autoposter/pkg/autopost"
	"gbp-autoposter/publish"
	"gbp-autoposter/queue"
	"gbp-autoposter/scraper"
	"gbp-autoposter/tick"
)

// Store holds profiles, scheduler documents and history.
type Store interface {
	Profiles(ctx context.Context) ([]autopost.Profile, error)
	SaveProfiles(ctx context.Context, list []autopost.Profile) error
	SchedulerConfig(ctx context.Context) (autopost.SchedulerConfig, error)
	SaveSchedulerConfig(ctx context.Context, cfg autopost.SchedulerConfig) error
	LastRun(ctx context.Context) (autopost.LastRunMap, error)
	CycleState(ctx context.Context) (autopost.CycleState, error)
	History(ctx context.Context) ([]autopost.HistoryEntry, error)
	LoadState(ctx context.Context) (*autopost.State, error)
	SaveState(ctx context.Context, st *autopost.State) error
}

// Queue is a scheduled-item queue.
type Queue interface {
	Enqueue(ctx context.Context, it autopost.ScheduledItem) (autopost.ScheduledItem, error)
	EnqueueMany(ctx context.Context, items []autopost.ScheduledItem) ([]autopost.ScheduledItem, error)
	List(ctx context.Context, all bool) ([]autopost.ScheduledItem, error)
	Update(ctx context.Context, id string, p queue.Patch) (autopost.ScheduledItem, error)
	Delete(ctx context.Context, id string) error
	CountQueued(ctx context.Context) (map[string]int, error)
}

// Publisher publishes posts and photos.
type Publisher interface {
	Publish(ctx context.Context, st *autopost.State, body autopost.PostBody) (*publish.Result, error)
	UploadPhoto(ctx context.Context, prof *autopost.Profile, mediaURL, caption string) (*gbp.MediaItem, error)
	Draft(ctx context.Context, st *autopost.State, req queue.BulkRequest, autoSummary bool) ([]autopost.ScheduledItem, error)
	Basics(ctx context.Context, prof *autopost.Profile) autopost.Basics
}

// Composer previews post content.
type Composer interface {
	Compose(ctx context.Context, prof *autopost.Profile, entry autopost.CycleEntry, ov autopost.PostBody, basics autopost.Basics) compose.Post
	Captions(ctx context.Context, prof *autopost.Profile, count int) ([]compose.Caption, error)
}

// Runner executes ticks and immediate runs.
type Runner interface {
	Tick(ctx context.Context) (*tick.Report, error)
	RunNow(ctx context.Context, profileID string) (*publish.Result, error)
	RunAll(ctx context.Context) ([]publish.AllResult, error)
	PublishAll(ctx context.Context, body autopost.PostBody) ([]publish.AllResult, error)
}

// Remote reads from the Business Profile API.
type Remote interface {
	ListMedia(ctx context.Context, loc gbp.Location, pageSize, pages int) ([]gbp.MediaItem, error)
	ListLocations(ctx context.Context) ([]gbp.RemoteLocation, error)
	Reset()
}

// Authorizer runs the OAuth consent flow.
type Authorizer interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) error
}

// Harvester collects images from a landing page.
type Harvester interface {
	Harvest(ctx context.Context, pageURL string) (*scraper.Page, error)
}

// Config holds server dependencies.
type Config struct {
	Store     Store
	Posts     Queue
	Photos    Queue
	Publisher Publisher
	Composer  Composer
	Runner    Runner
	Remote    Remote
	Auth      Authorizer
	Harvester Harvester
	Logger    *slog.Logger
	MediaBase string
	Location  *time.Location // Scheduler wall clock; nil means UTC
}

// Server handles HTTP requests.
type Server struct {
	store     Store
	posts     Queue
	photos    Queue
	publisher Publisher
	composer  Composer
	runner    Runner
	remote    Remote
	auth      Authorizer
	harvester Harvester
	logger    *slog.Logger
	mediaBase string
	location  *time.Location
	captions  *rateLimiter
	now       func() time.Time

	// mu serializes read-modify-write of stored documents within this process.
	mu sync.Mutex
}

// New creates a server.
func New(cfg *Config) *Server {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Server{
		store:     cfg.Store,
		posts:     cfg.Posts,
		photos:    cfg.Photos,
		publisher: cfg.Publisher,
		composer:  cfg.Composer,
		runner:    cfg.Runner,
		remote:    cfg.Remote,
		auth:      cfg.Auth,
		harvester: cfg.Harvester,
		logger:    cfg.Logger,
		mediaBase: cfg.MediaBase,
		location:  loc,
		captions:  newRateLimiter(captionsPerHour, time.Hour),
		now:       time.Now,
	}
}

// Routes returns the request router.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /tickz", s.handleTick)

	mux.HandleFunc("GET /profiles", s.handleListProfiles)
	mux.HandleFunc("PUT /profiles", s.handleReplaceProfiles)
	mux.HandleFunc("PATCH /profiles/{id}/defaults", s.handlePatchDefaults)
	mux.HandleFunc("POST /profiles/{id}/bulk-access", s.handleBulkAccess)
	mux.HandleFunc("POST /profiles/{id}/photos", s.handleAddPhotos)
	mux.HandleFunc("POST /profiles/{id}/photos/harvest", s.handleHarvestPhotos)
	mux.HandleFunc("POST /profiles/sync-from-google", s.handleSyncProfiles)

	mux.HandleFunc("POST /ai/captions", s.handleCaptions)
	mux.HandleFunc("GET /generate-post-by-profile", s.handleGeneratePost)
	mux.HandleFunc("POST /post-now", s.handlePostNow)
	mux.HandleFunc("POST /post-now-all", s.handlePostNowAll)
	mux.HandleFunc("GET /posts/history", s.handleHistory)
	mux.HandleFunc("GET /cycle-state", s.handleCycleState)

	mux.HandleFunc("GET /scheduled-posts", s.listItems(s.posts))
	mux.HandleFunc("POST /scheduled-posts", s.enqueueItem(s.posts))
	mux.HandleFunc("POST /scheduled-posts/bulk", s.handleBulkPosts)
	mux.HandleFunc("POST /scheduled-posts/draft", s.handleDraftPosts)
	mux.HandleFunc("POST /scheduled-posts/commit", s.handleCommitPosts)
	mux.HandleFunc("PUT /scheduled-posts/{id}", s.updateItem(s.posts))
	mux.HandleFunc("DELETE /scheduled-posts/{id}", s.deleteItem(s.posts))

	mux.HandleFunc("GET /photo-scheduled", s.listItems(s.photos))
	mux.HandleFunc("POST /photo-scheduled", s.enqueueItem(s.photos))
	mux.HandleFunc("POST /photo-scheduled/bulk", s.handleBulkPhotos)
	mux.HandleFunc("DELETE /photo-scheduled/{id}", s.deleteItem(s.photos))
	mux.HandleFunc("POST /photo-now", s.handlePhotoNow)
	mux.HandleFunc("GET /photo-latest", s.handlePhotoLatest)

	mux.HandleFunc("GET /scheduler/config", s.handleGetSchedulerConfig)
	mux.HandleFunc("PUT /scheduler/config", s.handlePutSchedulerConfig)
	mux.HandleFunc("GET /scheduler/status", s.handleSchedulerStatus)
	mux.HandleFunc("POST /scheduler/run-once", s.handleRunOnce)
	mux.HandleFunc("POST /scheduler/run-now/{id}", s.handleRunNow)

	mux.HandleFunc("GET /auth", s.handleAuth)
	mux.HandleFunc("GET /oauth2callback", s.handleOAuthCallback)

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Routes(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Minute, // A tick or bulk publish can take a while
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "port", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// batchTimeout bounds work that keeps running after the caller disconnects.
const batchTimeout = 10 * time.Minute

// detached returns a context that is not cancelled with the request, so a
// timer client hitting its deadline cannot stop a run halfway.
func detached(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), batchTimeout)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Tick endpoint triggered")
	ctx, cancel := detached(r)
	defer cancel()

	s.mu.Lock()
	report, err := s.runner.Tick(ctx)
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("Tick failed", "error", err)
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "completed", "report": report})
}
