package handler

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		want    int
		wantErr bool
	}{
		{"valid", "7", 7, false},
		{"not a number", "abc", 0, true},
		{"zero", "0", 0, true},
		{"negative", "-3", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/todos/x", nil)
			r.SetPathValue("id", tt.id)

			got, err := parseID(r)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseID(%q): got %d, want error", tt.id, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseID(%q) failed: %v", tt.id, err)
			}
			if got != tt.want {
				t.Errorf("parseID(%q): got %d, want %d", tt.id, got, tt.want)
			}
		})
	}
}

func TestSendError(t *testing.T) {
	h := New(nil, log.New(io.Discard), "Development")

	rec := httptest.NewRecorder()
	h.sendError(rec, 404, "todo not found")

	if rec.Code != 404 {
		t.Errorf("got status %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("got Content-Type %q", ct)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Message != "todo not found" {
		t.Errorf("got message %q, want %q", body.Message, "todo not found")
	}
}
