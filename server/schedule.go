package server

import (
	"errors"
	"fmt"
	"net/http"

	"gbp-autoposter/gbp"
	"gbp-autoposter/pkg/autopost"
	"gbp-autoposter/queue"
)

func gbpLocation(p *autopost.Profile) gbp.Location {
	return gbp.Location{AccountID: p.AccountID, LocationID: p.LocationID}
}

func (s *Server) listItems(q Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := r.URL.Query().Get("all")
		items, err := q.List(r.Context(), all == "1" || all == "true")
		if err != nil {
			s.writeError(w, err)
			return
		}
		if items == nil {
			items = []autopost.ScheduledItem{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

func (s *Server) enqueueItem(q Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduleRequest
		if err := decodeValid(w, r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		if _, err := s.findProfile(r.Context(), req.ProfileID); err != nil {
			s.writeError(w, err)
			return
		}
		it, err := q.Enqueue(r.Context(), req.item())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"item": it})
	}
}

func (s *Server) updateItem(q Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateRequest
		if err := decodeValid(w, r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		it, err := q.Update(r.Context(), r.PathValue("id"), req.patch())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": it})
	}
}

func (s *Server) deleteItem(q Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := q.Delete(r.Context(), r.PathValue("id")); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

// draft expands a bulk request with composed text. Nothing is stored.
func (s *Server) draft(w http.ResponseWriter, r *http.Request, autoSummary bool) ([]autopost.ScheduledItem, error) {
	var req bulkRequest
	if err := decodeValid(w, r, &req); err != nil {
		return nil, err
	}
	st, err := s.store.LoadState(r.Context())
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	items, err := s.publisher.Draft(r.Context(), st, req.bulk(), autoSummary)
	if err != nil {
		if errors.Is(err, autopost.ErrProfileNotFound) {
			return nil, err
		}
		return nil, badRequest(err)
	}
	return items, nil
}

func (s *Server) handleBulkPosts(w http.ResponseWriter, r *http.Request) {
	items, err := s.draft(w, r, false)
	if err != nil {
		s.writeError(w, err)
		return
	}
	stored, err := s.posts.EnqueueMany(r.Context(), items)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"items": stored, "count": len(stored)})
}

func (s *Server) handleDraftPosts(w http.ResponseWriter, r *http.Request) {
	items, err := s.draft(w, r, true)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleCommitPosts(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, err)
		return
	}
	stored, err := s.posts.EnqueueMany(r.Context(), req.Items)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"items": stored, "count": len(stored)})
}

func (s *Server) handleBulkPhotos(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeValid(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.findProfile(r.Context(), req.ProfileID); err != nil {
		s.writeError(w, err)
		return
	}
	items, err := queue.BuildBulk(req.bulk(), s.mediaBase, s.now())
	if err != nil {
		s.writeError(w, badRequest(err))
		return
	}
	stored, err := s.photos.EnqueueMany(r.Context(), items)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"items": stored, "count": len(stored)})
}
