// Package storage handles persistence of JSON documents by key.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"gbp-autoposter/pkg/autopost"
)

// Document keys.
const (
	KeyProfiles        = "profiles"
	KeySchedulerConfig = "schedulerConfig"
	KeyLastRun         = "schedulerLastRun"
	KeyHistory         = "posts-history"
	KeyCycleState      = "cycleState"
	KeyOAuthToken      = "oauthToken"
)

// ErrNotFound is returned by backends when a key has no document.
var ErrNotFound = errors.New("storage: object doesn't exist")

var keyRegex = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// Backend reads and writes raw documents.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Store reads and writes typed documents through a backend.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

// New creates a new document store.
func New(backend Backend, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		logger:  logger,
	}
}

// IsNotFound checks if an error is a not found error.
// Retry wrappers may flatten the chain, so the message is matched as well.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNotFound) || strings.Contains(err.Error(), ErrNotFound.Error())
}

// validKey guards backends that map keys onto file names or object names.
func validKey(key string) error {
	if !keyRegex.MatchString(key) || key == "." || key == ".." {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

// Get loads the document at key into v. It reports false when no document exists.
func (s *Store) Get(ctx context.Context, key string, v any) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	data, err := s.backend.Read(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			s.logger.Debug("Document not found", "key", key)
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Put stores v as the document at key.
func (s *Store) Put(ctx context.Context, key string, v any) error {
	if err := validKey(key); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.backend.Write(ctx, key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	s.logger.Debug("Document saved", "key", key, "bytes", len(data))
	return nil
}

// Delete removes the document at key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, key); err != nil && !IsNotFound(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Profiles loads all profiles.
func (s *Store) Profiles(ctx context.Context) ([]autopost.Profile, error) {
	var list []autopost.Profile
	if _, err := s.Get(ctx, KeyProfiles, &list); err != nil {
		return nil, err
	}
	return autopost.NormalizeProfiles(list), nil
}

// SaveProfiles replaces all profiles.
func (s *Store) SaveProfiles(ctx context.Context, list []autopost.Profile) error {
	list = autopost.NormalizeProfiles(list)
	if err := s.Put(ctx, KeyProfiles, list); err != nil {
		return err
	}
	s.logger.Info("Profiles saved", "count", len(list))
	return nil
}

// SchedulerConfig loads the scheduler configuration, falling back to defaults.
func (s *Store) SchedulerConfig(ctx context.Context) (autopost.SchedulerConfig, error) {
	cfg := autopost.DefaultSchedulerConfig()
	if _, err := s.Get(ctx, KeySchedulerConfig, &cfg); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	return cfg, nil
}

// SaveSchedulerConfig stores the scheduler configuration.
func (s *Store) SaveSchedulerConfig(ctx context.Context, cfg autopost.SchedulerConfig) error {
	return s.Put(ctx, KeySchedulerConfig, cfg)
}

// LastRun loads the last-run map.
func (s *Store) LastRun(ctx context.Context) (autopost.LastRunMap, error) {
	m := autopost.LastRunMap{}
	if _, err := s.Get(ctx, KeyLastRun, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = autopost.LastRunMap{}
	}
	return m, nil
}

// SaveLastRun stores the last-run map.
func (s *Store) SaveLastRun(ctx context.Context, m autopost.LastRunMap) error {
	return s.Put(ctx, KeyLastRun, m)
}

// CycleState loads the template rotation state of every profile.
func (s *Store) CycleState(ctx context.Context) (autopost.CycleState, error) {
	st := autopost.CycleState{}
	if _, err := s.Get(ctx, KeyCycleState, &st); err != nil {
		return nil, err
	}
	if st == nil {
		st = autopost.CycleState{}
	}
	return st, nil
}

// SaveCycleState stores the template rotation state.
func (s *Store) SaveCycleState(ctx context.Context, st autopost.CycleState) error {
	return s.Put(ctx, KeyCycleState, st)
}

// History loads the publish history, oldest first.
func (s *Store) History(ctx context.Context) ([]autopost.HistoryEntry, error) {
	var h []autopost.HistoryEntry
	if _, err := s.Get(ctx, KeyHistory, &h); err != nil {
		return nil, err
	}
	return h, nil
}

// SaveHistory stores the publish history.
func (s *Store) SaveHistory(ctx context.Context, h []autopost.HistoryEntry) error {
	if over := len(h) - autopost.MaxHistory; over > 0 {
		h = h[over:]
	}
	return s.Put(ctx, KeyHistory, h)
}

// LoadState reads every document a tick works on.
func (s *Store) LoadState(ctx context.Context) (*autopost.State, error) {
	profiles, err := s.Profiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	cfg, err := s.SchedulerConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load scheduler config: %w", err)
	}
	lastRun, err := s.LastRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("load last run: %w", err)
	}
	cycle, err := s.CycleState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cycle state: %w", err)
	}
	history, err := s.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return &autopost.State{
		Profiles: profiles,
		Config:   cfg,
		LastRun:  lastRun,
		Cycle:    cycle,
		History:  history,
	}, nil
}

// SaveState writes back the mutable documents of a tick.
// The scheduler config is not written; it only changes through explicit updates.
func (s *Store) SaveState(ctx context.Context, st *autopost.State) error {
	if err := s.SaveProfiles(ctx, st.Profiles); err != nil {
		return fmt.Errorf("save profiles: %w", err)
	}
	if err := s.SaveLastRun(ctx, st.LastRun); err != nil {
		return fmt.Errorf("save last run: %w", err)
	}
	if err := s.SaveCycleState(ctx, st.Cycle); err != nil {
		return fmt.Errorf("save cycle state: %w", err)
	}
	if err := s.SaveHistory(ctx, st.History); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
