package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"gorm.io/gorm"

	"gbp-autoposter/compose"
	"gbp-autoposter/email"
	"gbp-autoposter/gbp"
	"gbp-autoposter/locale"
	"gbp-autoposter/publish"
	"gbp-autoposter/queue"
	"gbp-autoposter/scraper"
	"gbp-autoposter/server"
	"gbp-autoposter/storage"
	"gbp-autoposter/textgen"
	"gbp-autoposter/tick"
)

// app holds the wired components shared by every command.
type app struct {
	cfg       *Config
	logger    *slog.Logger
	location  *time.Location
	store     *storage.Store
	db        *gorm.DB
	posts     *queue.Queue
	photos    *queue.Queue
	auth      *gbp.Auth
	session   *gbp.Session
	composer  *compose.Composer
	publisher *publish.Publisher
	runner    *tick.Runner
	scraper   *scraper.Scraper

	closers []func()
}

func newApp(ctx context.Context, cfg *Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	loc, err := time.LoadLocation(cfg.SchedulerTimezone)
	if err != nil {
		return nil, fmt.Errorf("load scheduler timezone %q: %w", cfg.SchedulerTimezone, err)
	}
	a.location = loc
	policy, err := tick.ParsePolicy(cfg.PostFailurePolicy)
	if err != nil {
		return nil, err
	}

	backend, err := a.openBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = storage.New(backend, logger)

	if err := a.openQueue(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		logger.Warn("GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set; publishing will fail until configured")
	}
	a.auth = gbp.NewAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.BaseURL+"/oauth2callback", a.store, logger)
	a.session = gbp.NewSession(a.auth, logger, gbp.Options{})

	var gen compose.Generator
	provider, err := textgen.New(ctx, textgen.Config{
		Provider:    cfg.TextgenProvider,
		OpenAIKey:   cfg.OpenAIKey,
		OpenAIModel: cfg.OpenAIModel,
		OpenAIBase:  cfg.OpenAIBaseURL,
		GeminiKey:   cfg.GeminiKey,
		GeminiModel: cfg.GeminiModel,
	}, logger)
	if err != nil {
		logger.Warn("Text generation disabled, posts will use template text only", "error", err)
	} else {
		logger.Info("Text generation enabled", "provider", provider.Name())
		gen = provider
	}
	a.composer = compose.New(gen, locale.New(nil), nil, logger)
	a.publisher = publish.New(a.session, a.composer, cfg.MediaBaseURL, logger)
	a.scraper = scraper.New(&http.Client{Timeout: 30 * time.Second}, logger)

	var alerter tick.Alerter
	if cfg.AlertEmail != "" {
		sender, err := a.newAlertSender(ctx)
		if err != nil {
			logger.Warn("Failure alerts disabled", "error", err)
		} else {
			alerter = sender
		}
	}
	a.runner = tick.New(a.store, a.posts, a.photos, a.publisher, alerter, logger, tick.Options{
		Location:      loc,
		FailurePolicy: policy,
		AlertTo:       cfg.AlertEmail,
	})
	return a, nil
}

func (a *app) openBackend(ctx context.Context) (storage.Backend, error) {
	switch {
	case a.cfg.StorageBucket != "":
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				a.logger.Warn("Failed to close storage client", "error", err)
			}
		})
		a.logger.Info("Using Cloud Storage", "bucket", a.cfg.StorageBucket)
		return storage.NewGCS(client, a.cfg.StorageBucket, a.logger), nil
	case a.cfg.ValkeyAddr != "":
		v, err := storage.NewValkey(ctx, storage.ValkeyConfig{
			Address:  a.cfg.ValkeyAddr,
			Password: a.cfg.ValkeyPassword,
			DB:       a.cfg.ValkeyDB,
			Prefix:   a.cfg.ValkeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, v.Close)
		a.logger.Info("Using Valkey storage", "addr", a.cfg.ValkeyAddr, "prefix", a.cfg.ValkeyPrefix)
		return v, nil
	default:
		a.logger.Info("Running in local development mode", "storage_path", a.cfg.LocalStorage)
		return storage.NewLocal(a.cfg.LocalStorage)
	}
}

func (a *app) openQueue(ctx context.Context) error {
	if a.cfg.DBDriver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(a.cfg.DBDSN), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := queue.Open(a.cfg.DBDriver, a.cfg.DBDSN)
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, func() {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.logger.Warn("Failed to close database", "error", err)
			}
		}
	})
	if err := queue.Migrate(ctx, db); err != nil {
		return err
	}
	a.posts = queue.NewPosts(db, a.logger)
	a.photos = queue.NewPhotos(db, a.logger)
	return nil
}

func (a *app) newAlertSender(ctx context.Context) (*email.Sender, error) {
	var provider email.Provider
	switch a.cfg.EmailProvider {
	case "brevo":
		name := a.cfg.MailFromName
		provider = email.NewBrevoProvider(a.cfg.BrevoAPIKey, a.cfg.MailFrom, name, email.DefaultBrevoEndpoint, a.logger)
	case "mock":
		provider = email.NewMockProvider(a.logger)
	default:
		svc, err := initGmailService(ctx, a.cfg.GoogleCredentialsJSON)
		if err != nil {
			if a.cfg.EmailProvider == "gmail" {
				return nil, fmt.Errorf("init gmail: %w", err)
			}
			a.logger.Info("Mock email mode enabled", "reason", err.Error())
			provider = email.NewMockProvider(a.logger)
			break
		}
		provider = email.NewGmailProvider(svc, a.logger)
	}
	return email.New(provider, a.logger, a.cfg.BaseURL), nil
}

func (a *app) server() *server.Server {
	return server.New(&server.Config{
		Store:     a.store,
		Posts:     a.posts,
		Photos:    a.photos,
		Publisher: a.publisher,
		Composer:  a.composer,
		Runner:    a.runner,
		Remote:    a.session,
		Auth:      a.auth,
		Harvester: a.scraper,
		Logger:    a.logger,
		MediaBase: a.cfg.MediaBaseURL,
		Location:  a.location,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// isCloudRun checks if we're running in a GCP environment by querying the metadata server.
func isCloudRun(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://metadata.google.internal/computeMetadata/v1/project/project-id", http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := (&http.Client{Timeout: 2 * time.Second}).Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // best effort
	}()
	return resp.StatusCode == http.StatusOK
}

func initGmailService(ctx context.Context, credsJSON string) (*gmail.Service, error) {
	if credsJSON != "" {
		return gmail.NewService(ctx, option.WithCredentialsJSON([]byte(credsJSON)))
	}
	// On Cloud Run the service account supplies Application Default Credentials
	if isCloudRun(ctx) {
		return gmail.NewService(ctx)
	}
	return nil, errors.New("GOOGLE_CREDENTIALS_JSON required when not running in Cloud Run")
}
