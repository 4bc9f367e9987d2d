package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"qroll/internal/middleware"
	"qroll/internal/models"
)

// ─── Sign-in Handler Tests ───

type stubSink struct {
	clientID    string
	autoSelOff  bool
	deliverErr  error
	credentials []string
}

func (s *stubSink) ClientID() string { return s.clientID }

func (s *stubSink) TakeAutoSelectDisabled() bool {
	off := s.autoSelOff
	s.autoSelOff = false
	return off
}

func (s *stubSink) Deliver(credential string) error {
	s.credentials = append(s.credentials, credential)
	return s.deliverErr
}

func TestSignInPage_RendersClientID(t *testing.T) {
	sink := &stubSink{clientID: `abc"123`, autoSelOff: true}
	h := NewSignInHandler(sink)

	rr := httptest.NewRecorder()
	h.Page(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rr.Body.String()
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if strings.Contains(body, `abc"123`) {
		t.Errorf("Expected client id to be escaped inside the script")
	}
	if !strings.Contains(body, "google.accounts.id.disableAutoSelect()") {
		t.Errorf("Expected disableAutoSelect when requested")
	}
}

func TestSignInCallback(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		deliverErr error
		wantStatus int
		wantCode   string
	}{
		{"valid credential", `{"credential":"tok"}`, nil, http.StatusOK, ""},
		{"invalid json", `{`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing credential", `{}`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"nobody waiting", `{"credential":"tok"}`, ErrNotWaiting, http.StatusConflict, "NOT_WAITING"},
		{"login rejected", `{"credential":"tok"}`, errors.New("Invalid Google token"), http.StatusBadGateway, "SIGN_IN_FAILED"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewSignInHandler(&stubSink{deliverErr: tc.deliverErr})

			req := httptest.NewRequest(http.MethodPost, "/callback", bytes.NewReader([]byte(tc.body)))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Request-ID", "req-1")
			rr := httptest.NewRecorder()
			h.Callback(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("Expected %d, got %d", tc.wantStatus, rr.Code)
			}
			if tc.wantCode == "" {
				return
			}
			var env models.ErrorEnvelope
			if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
				t.Fatalf("Failed to decode error body: %v", err)
			}
			if env.Error.Code != tc.wantCode {
				t.Errorf("Expected code %s, got %s", tc.wantCode, env.Error.Code)
			}
			if env.Error.RequestID != "req-1" {
				t.Errorf("Expected request id echoed, got %q", env.Error.RequestID)
			}
		})
	}
}

// ─── Projector Handler Tests ───

type stubSessions struct {
	session *models.LiveSession
}

func (s stubSessions) Current() *models.LiveSession { return s.session }

func projectorRequest(path, sessionID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	ctx := context.WithValue(req.Context(), middleware.SessionIDKey, sessionID)
	return req.WithContext(ctx)
}

func TestProjectorHandler_QR(t *testing.T) {
	h := NewProjectorHandler(stubSessions{session: &models.LiveSession{ID: "s1", JoinToken: "JOIN"}})

	rr := httptest.NewRecorder()
	h.QR(rr, projectorRequest("/qr.png", "s1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %s", ct)
	}

	rr = httptest.NewRecorder()
	h.QR(rr, projectorRequest("/qr.png", "other"))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a token of another session, got %d", rr.Code)
	}
}

func TestProjectorHandler_NoSession(t *testing.T) {
	h := NewProjectorHandler(stubSessions{})

	for _, handle := range []http.HandlerFunc{h.Page, h.QR, h.State} {
		rr := httptest.NewRecorder()
		handle(rr, projectorRequest("/", "s1"))
		if rr.Code != http.StatusNotFound {
			t.Errorf("Expected 404 without a live session, got %d", rr.Code)
		}
	}
}

func TestProjectorHandler_State(t *testing.T) {
	session := &models.LiveSession{
		ID:         "s1",
		JoinToken:  "JOIN",
		Attendance: []models.AttendanceRecord{{StudentID: "st1", Name: "Ada"}},
	}
	h := NewProjectorHandler(stubSessions{session: session})

	rr := httptest.NewRecorder()
	h.State(rr, projectorRequest("/state", "s1"))

	var snap models.SessionSnapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snap.JoinToken != "JOIN" || len(snap.Attendance) != 1 || snap.Attendance[0].Name != "Ada" {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
}

func TestProjectorHandler_PageEmbedsToken(t *testing.T) {
	h := NewProjectorHandler(stubSessions{session: &models.LiveSession{ID: "s1", JoinToken: "JOIN"}})

	rr := httptest.NewRecorder()
	h.Page(rr, projectorRequest("/?token=view-token", "s1"))
	if !strings.Contains(rr.Body.String(), `"view-token"`) {
		t.Errorf("Expected the view token in the page script")
	}
}
