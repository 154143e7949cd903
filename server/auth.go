package server

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/google/uuid"
)

const stateCookie = "oauth_state"

func secureRequest(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   secureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.auth.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		s.logger.Warn("OAuth consent denied", "error", e)
		s.writeError(w, badRequest(errors.New("authorization denied: "+e)))
		return
	}
	code := q.Get("code")
	if code == "" {
		s.writeError(w, badRequest(errors.New("missing code")))
		return
	}
	c, err := r.Cookie(stateCookie)
	if err != nil || subtle.ConstantTimeCompare([]byte(c.Value), []byte(q.Get("state"))) != 1 {
		s.writeError(w, badRequest(errors.New("invalid oauth state")))
		return
	}

	if err := s.auth.Exchange(r.Context(), code); err != nil {
		s.writeError(w, err)
		return
	}
	s.remote.Reset()

	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	s.logger.Info("OAuth authorization completed")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Authorization complete"})
}
