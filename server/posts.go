package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gbp-autoposter/pkg/autopost"
)

func (s *Server) handleCaptions(w http.ResponseWriter, r *http.Request) {
	ip := getClientIP(r)
	if !s.captions.allow(ip) {
		s.logger.Warn("Caption rate limit exceeded", "ip", ip)
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many caption requests, try again later"})
		return
	}

	var req captionsRequest
	if err := decodeValid(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Count == 0 {
		req.Count = defaultCaptionCount
	}
	prof, err := s.findProfile(r.Context(), req.ProfileID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	captions, err := s.composer.Captions(r.Context(), &prof, req.Count)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"captions": captions})
}

func (s *Server) handleGeneratePost(w http.ResponseWriter, r *http.Request) {
	prof, err := s.findProfile(r.Context(), r.URL.Query().Get("profileId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	cycle, err := s.store.CycleState(r.Context())
	if err != nil {
		s.writeError(w, fmt.Errorf("load cycle state: %w", err))
		return
	}
	basics := s.publisher.Basics(r.Context(), &prof)
	post := s.composer.Compose(r.Context(), &prof, cycle[prof.ProfileID], autopost.PostBody{}, basics)
	writeJSON(w, http.StatusOK, map[string]any{"post": post})
}

func (s *Server) handlePostNow(w http.ResponseWriter, r *http.Request) {
	var body autopost.PostBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	body.ProfileID = strings.TrimSpace(body.ProfileID)
	ctx, cancel := detached(r)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.store.LoadState(ctx)
	if err != nil {
		s.writeError(w, fmt.Errorf("load state: %w", err))
		return
	}
	res, pubErr := s.publisher.Publish(ctx, st, body)
	if pubErr != nil && statusFor(pubErr) != http.StatusInternalServerError {
		s.writeError(w, pubErr)
		return
	}
	// Failed remote attempts still record history and advance the cycle.
	if err := s.store.SaveState(ctx, st); err != nil {
		s.writeError(w, fmt.Errorf("save state: %w", err))
		return
	}
	if pubErr != nil {
		s.writeError(w, pubErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

func (s *Server) handlePostNowAll(w http.ResponseWriter, r *http.Request) {
	var body autopost.PostBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	body.ProfileID = ""
	ctx, cancel := detached(r)
	defer cancel()

	s.mu.Lock()
	results, err := s.runner.PublishAll(ctx, body)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", autopost.DefaultHistoryLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	history, err := s.store.History(r.Context())
	if err != nil {
		s.writeError(w, fmt.Errorf("load history: %w", err))
		return
	}
	items := autopost.RecentHistory(history, r.URL.Query().Get("profileId"), limit)
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleCycleState(w http.ResponseWriter, r *http.Request) {
	cycle, err := s.store.CycleState(r.Context())
	if err != nil {
		s.writeError(w, fmt.Errorf("load cycle state: %w", err))
		return
	}
	if id := r.URL.Query().Get("profileId"); id != "" {
		writeJSON(w, http.StatusOK, map[string]any{"profileId": id, "state": cycle[id]})
		return
	}
	if cycle == nil {
		cycle = autopost.CycleState{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": cycle})
}

func (s *Server) handlePhotoNow(w http.ResponseWriter, r *http.Request) {
	var req photoNowRequest
	if err := decodeValid(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	prof, err := s.findProfile(r.Context(), req.ProfileID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	media, err := s.publisher.UploadPhoto(r.Context(), &prof, req.MediaURL, req.Caption)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "media": media})
}

func (s *Server) handlePhotoLatest(w http.ResponseWriter, r *http.Request) {
	pages, err := queryInt(r, "pages", 1)
	if err != nil {
		s.writeError(w, err)
		return
	}
	prof, err := s.findProfile(r.Context(), r.URL.Query().Get("profileId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if prof.LocationID == "" {
		s.writeError(w, badRequest(errors.New("profile missing locationId")))
		return
	}
	items, err := s.remote.ListMedia(r.Context(), gbpLocation(&prof), 0, pages)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
