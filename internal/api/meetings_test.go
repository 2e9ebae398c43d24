package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestValidRequestID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"short_opaque_id", "r1", true},
		{"uuid", "0b26f8f3-6d5c-4f28-9fd6-0a2f2f1f5f10", true},
		{"spaces_allowed", "my request", true},
		{"empty", "", false},
		{"dot", ".", false},
		{"dotdot", "..", false},
		{"slash", "a/b", false},
		{"backslash", `a\b`, false},
		{"parent_traversal", "../etc", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validRequestID(tt.id); got != tt.want {
				t.Errorf("validRequestID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestStart_RejectsUnsafeRequestID(t *testing.T) {
	// Validation runs before any storage access, so the handler needs no
	// backing services here.
	h := NewMeetingHandler(nil, nil, nil, zerolog.Nop())

	form := url.Values{}
	form.Set("requestId", "../escape")
	form.Set("username", "alice")
	form.Set("filename", "rec.wav")

	req := httptest.NewRequest("POST", "/start-bbh", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSON decode: %v", err)
	}
	if body.Error != ErrInvalidInput {
		t.Errorf("error = %q, want %q", body.Error, ErrInvalidInput)
	}
}
