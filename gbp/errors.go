package gbp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// APIError is a non-2xx response from a Business Profile endpoint.
type APIError struct {
	HTTPStatus int    // HTTP status code
	Status     string // Canonical status such as INVALID_ARGUMENT
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("gbp api %d %s: %s", e.HTTPStatus, e.Status, e.Message)
	}
	return fmt.Sprintf("gbp api %d: %s", e.HTTPStatus, e.Message)
}

// parseAPIError reads a Google error body: {"error":{"code":400,"message":"...","status":"..."}}.
func parseAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{HTTPStatus: resp.StatusCode}

	var wrapped struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error.Message != "" {
		apiErr.Message = wrapped.Error.Message
		apiErr.Status = wrapped.Error.Status
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// IsInvalidArgument reports whether err is a payload-shape rejection.
func IsInvalidArgument(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == "INVALID_ARGUMENT" ||
			(apiErr.Status == "" && apiErr.HTTPStatus == http.StatusBadRequest)
	}
	return strings.Contains(strings.ToUpper(errString(err)), "INVALID_ARGUMENT")
}

// IsNotFound reports whether err is a 404 from either the REST or the client-library endpoints.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatus == http.StatusNotFound
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusNotFound
	}
	return false
}

// retryable reports whether a request may be repeated.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatus == http.StatusTooManyRequests || apiErr.HTTPStatus >= 500
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusTooManyRequests || gErr.Code >= 500
	}
	return true
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
