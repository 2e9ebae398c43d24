package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes surfaced to callers. Handlers map storage and pipeline errors
// onto these; the HTTP status carries the same information for clients that
// only look at the status line.
const (
	ErrNotFound        = "not_found"
	ErrForbidden       = "forbidden"
	ErrConflict        = "conflict"
	ErrInvalidState    = "invalid_state"
	ErrInvalidInput    = "invalid_input"
	ErrUpstreamFailure = "upstream_failure"
	ErrInternal        = "internal"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// WriteError writes a JSON error response with an internal error code.
func WriteError(w http.ResponseWriter, status int, detail string) {
	WriteErrorWithCode(w, status, ErrInternal, detail)
}

// WriteErrorWithCode writes a JSON error response with an explicit code.
func WriteErrorWithCode(w http.ResponseWriter, status int, code, detail string) {
	WriteJSON(w, status, ErrorResponse{Error: code, Detail: detail})
}

// DecodeJSON reads and decodes a JSON request body into v.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// QueryString extracts a non-empty string query parameter.
func QueryString(r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", false
	}
	return v, true
}
