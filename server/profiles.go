package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gbp-autoposter/gbp"
	"gbp-autoposter/pkg/autopost"
)

// updateProfile applies fn to one stored profile and saves the list.
func (s *Server) updateProfile(ctx context.Context, id string, fn func(*autopost.Profile) error) (autopost.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.store.Profiles(ctx)
	if err != nil {
		return autopost.Profile{}, fmt.Errorf("load profiles: %w", err)
	}
	i := autopost.FindProfile(list, id)
	if i < 0 {
		return autopost.Profile{}, fmt.Errorf("%w: %s", autopost.ErrProfileNotFound, id)
	}
	if err := fn(&list[i]); err != nil {
		return autopost.Profile{}, err
	}
	if err := s.store.SaveProfiles(ctx, list); err != nil {
		return autopost.Profile{}, fmt.Errorf("save profiles: %w", err)
	}
	return list[i], nil
}

func (s *Server) findProfile(ctx context.Context, id string) (autopost.Profile, error) {
	if strings.TrimSpace(id) == "" {
		return autopost.Profile{}, badRequest(errors.New("missing profileId"))
	}
	list, err := s.store.Profiles(ctx)
	if err != nil {
		return autopost.Profile{}, fmt.Errorf("load profiles: %w", err)
	}
	i := autopost.FindProfile(list, id)
	if i < 0 {
		return autopost.Profile{}, fmt.Errorf("%w: %s", autopost.ErrProfileNotFound, id)
	}
	return list[i], nil
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Profiles(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []autopost.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": list})
}

func (s *Server) handleReplaceProfiles(w http.ResponseWriter, r *http.Request) {
	var req profilesRequest
	if err := decodeValid(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	list := autopost.NormalizeProfiles(req.Profiles)

	s.mu.Lock()
	err := s.store.SaveProfiles(r.Context(), list)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, fmt.Errorf("save profiles: %w", err))
		return
	}
	s.logger.Info("Profiles replaced", "count", len(list))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": len(list)})
}

func (s *Server) handlePatchDefaults(w http.ResponseWriter, r *http.Request) {
	var patch autopost.DefaultsPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")
	prof, err := s.updateProfile(r.Context(), id, func(p *autopost.Profile) error {
		if err := autopost.ApplyDefaults(p, patch); err != nil {
			return badRequest(err)
		}
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("Profile defaults updated", "profile_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"profile": prof})
}

func (s *Server) handleBulkAccess(w http.ResponseWriter, r *http.Request) {
	var req bulkAccessRequest
	if err := decodeValid(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")
	prof, err := s.updateProfile(r.Context(), id, func(p *autopost.Profile) error {
		p.Disabled = !*req.Enabled
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("Profile access toggled", "profile_id", id, "disabled", prof.Disabled)
	writeJSON(w, http.StatusOK, map[string]any{"profile": prof})
}

func (s *Server) handleAddPhotos(w http.ResponseWriter, r *http.Request) {
	var req photosRequest
	if err := decodeValid(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	added := 0
	prof, err := s.updateProfile(r.Context(), r.PathValue("id"), func(p *autopost.Profile) error {
		n, err := autopost.AppendPhotos(p, req.Photos, s.mediaBase, s.now())
		if err != nil {
			return badRequest(err)
		}
		added = n
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"added": added, "poolSize": len(prof.PhotoPool)})
}

func (s *Server) handleHarvestPhotos(w http.ResponseWriter, r *http.Request) {
	var req harvestRequest
	if err := decodeValid(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")
	prof, err := s.findProfile(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	pageURL := strings.TrimSpace(req.URL)
	if pageURL == "" {
		pageURL = prof.LandingURL
	}
	if pageURL == "" {
		s.writeError(w, badRequest(errors.New("profile has no landingUrl; pass url")))
		return
	}

	page, err := s.harvester.Harvest(r.Context(), pageURL)
	if err != nil {
		s.writeError(w, err)
		return
	}

	added := 0
	prof, err = s.updateProfile(r.Context(), id, func(p *autopost.Profile) error {
		inPool := make(map[string]bool, len(p.PhotoPool))
		for _, ph := range p.PhotoPool {
			inPool[ph.URL] = true
		}
		var fresh []autopost.PhotoInput
		for _, img := range page.Images {
			if !inPool[img] {
				fresh = append(fresh, autopost.PhotoInput{URL: img})
			}
		}
		if len(fresh) == 0 {
			return nil
		}
		n, err := autopost.AppendPhotos(p, fresh, s.mediaBase, s.now())
		if err != nil {
			return err
		}
		added = n
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("Landing page harvested", "profile_id", id, "url", pageURL, "found", len(page.Images), "added", added)
	writeJSON(w, http.StatusOK, map[string]any{"found": len(page.Images), "added": added, "poolSize": len(prof.PhotoPool)})
}

func (s *Server) handleSyncProfiles(w http.ResponseWriter, r *http.Request) {
	locs, err := s.remote.ListLocations(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.store.Profiles(r.Context())
	if err != nil {
		s.writeError(w, fmt.Errorf("load profiles: %w", err))
		return
	}
	merged, added := autopost.MergeLocations(existing, gbp.Profiles(locs))
	if err := s.store.SaveProfiles(r.Context(), merged); err != nil {
		s.writeError(w, fmt.Errorf("save profiles: %w", err))
		return
	}
	s.logger.Info("Profiles synced from remote", "locations", len(locs), "added", added, "total", len(merged))
	writeJSON(w, http.StatusOK, map[string]any{"added": added, "total": len(merged)})
}
