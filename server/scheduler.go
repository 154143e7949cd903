package server

import (
	"fmt"
	"net/http"

	"gbp-autoposter/cadence"
	"gbp-autoposter/pkg/autopost"
)

func (s *Server) handleGetSchedulerConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.SchedulerConfig(r.Context())
	if err != nil {
		s.writeError(w, fmt.Errorf("load scheduler config: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePutSchedulerConfig(w http.ResponseWriter, r *http.Request) {
	var patch autopost.SchedulerConfigPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.store.SchedulerConfig(r.Context())
	if err != nil {
		s.writeError(w, fmt.Errorf("load scheduler config: %w", err))
		return
	}
	if err := cfg.Apply(patch); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.SaveSchedulerConfig(r.Context(), cfg); err != nil {
		s.writeError(w, fmt.Errorf("save scheduler config: %w", err))
		return
	}
	s.logger.Info("Scheduler config updated", "enabled", cfg.Enabled, "default_time", cfg.DefaultTime, "default_cadence", cfg.DefaultCadence)
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profiles, err := s.store.Profiles(ctx)
	if err != nil {
		s.writeError(w, fmt.Errorf("load profiles: %w", err))
		return
	}
	cfg, err := s.store.SchedulerConfig(ctx)
	if err != nil {
		s.writeError(w, fmt.Errorf("load scheduler config: %w", err))
		return
	}
	lastRun, err := s.store.LastRun(ctx)
	if err != nil {
		s.writeError(w, fmt.Errorf("load last run: %w", err))
		return
	}
	photoQueue, err := s.photos.CountQueued(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}

	now := s.now().In(s.location)
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":  cfg.Enabled,
		"timezone": s.location.String(),
		"now":      now.Format("2006-01-02 15:04"),
		"profiles": cadence.Status(profiles, cfg, lastRun, photoQueue, now),
	})
}

func (s *Server) handleRunOnce(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := detached(r)
	defer cancel()

	s.mu.Lock()
	results, err := s.runner.RunAll(ctx)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleRunNow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := detached(r)
	defer cancel()

	s.mu.Lock()
	res, err := s.runner.RunNow(ctx, r.PathValue("id"))
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}
