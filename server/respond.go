package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"gbp-autoposter/gbp"
	"gbp-autoposter/pkg/autopost"
	"gbp-autoposter/publish"
	"gbp-autoposter/queue"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// requestError marks an error caused by the request itself.
type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{err: err}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var reqErr *requestError
	var valErrs validation.Errors
	switch {
	case errors.Is(err, autopost.ErrProfileNotFound), errors.Is(err, queue.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &reqErr), errors.As(err, &valErrs),
		errors.Is(err, publish.ErrMissingProfileID),
		errors.Is(err, publish.ErrMissingPhone),
		errors.Is(err, publish.ErrMissingLink),
		errors.Is(err, publish.ErrUnknownCTA),
		errors.Is(err, publish.ErrInvalidMedia),
		errors.Is(err, autopost.ErrInvalidConfig),
		errors.Is(err, queue.ErrNotQueued),
		errors.Is(err, gbp.ErrNoToken):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeJSON reads a JSON body into v. An empty body leaves v unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return badRequest(fmt.Errorf("invalid json body: %w", err))
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(fmt.Errorf("%s must be an integer", key))
	}
	return n, nil
}
