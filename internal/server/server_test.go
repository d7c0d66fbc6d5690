package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tams/internal/api"
	"tams/internal/auth"
)

func TestWithAuth(t *testing.T) {
	secret := "test-secret"
	next := func(called *bool, subject *string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*called = true
			if p, ok := principalFromContext(r.Context()); ok {
				*subject = p.Subject
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}

	t.Run("denies missing auth", func(t *testing.T) {
		srv := &Server{requireAuth: true, gate: auth.NewGate(secret, "", "")}
		var called bool
		var subject string
		handler := srv.withAuth(next(&called, &subject))

		req := httptest.NewRequest(http.MethodGet, "/flows", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
		if w.Header().Get("WWW-Authenticate") == "" {
			t.Fatal("expected WWW-Authenticate header")
		}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
			t.Fatalf("decode error response: %v", err)
		}
		if errResp.ErrorCode != ErrCodeUnauthorized {
			t.Fatalf("expected error_code %d, got %d", ErrCodeUnauthorized, errResp.ErrorCode)
		}
		if called {
			t.Fatal("next handler should not be called")
		}
	})

	t.Run("allows valid bearer token", func(t *testing.T) {
		srv := &Server{requireAuth: true, gate: auth.NewGate(secret, "", "")}
		var called bool
		var subject string
		handler := srv.withAuth(next(&called, &subject))

		token, err := auth.GenerateToken("ingest", []byte(secret), time.Hour)
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/flows", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
		if !called || subject != "ingest" {
			t.Fatalf("expected next handler with subject ingest, got called=%v subject=%q", called, subject)
		}
	})

	t.Run("rejects token signed with another secret", func(t *testing.T) {
		srv := &Server{requireAuth: true, gate: auth.NewGate(secret, "", "")}
		var called bool
		var subject string
		handler := srv.withAuth(next(&called, &subject))

		token, err := auth.GenerateToken("ingest", []byte("other"), time.Hour)
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/flows", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("health bypasses auth", func(t *testing.T) {
		srv := &Server{requireAuth: true, gate: auth.NewGate(secret, "", "")}
		var called bool
		var subject string
		handler := srv.withAuth(next(&called, &subject))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusNoContent || !called {
			t.Fatalf("expected health to reach handler, got %d", w.Code)
		}
	})

	t.Run("unconfigured gate is an internal error", func(t *testing.T) {
		srv := &Server{requireAuth: true, gate: auth.NewGate("", "", "")}
		var called bool
		var subject string
		handler := srv.withAuth(next(&called, &subject))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/flows", nil))
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
	})

	t.Run("auth disabled passes through", func(t *testing.T) {
		srv := &Server{}
		var called bool
		var subject string
		handler := srv.withAuth(next(&called, &subject))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/flows", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
	})
}

func TestWithCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("answers allowed preflight", func(t *testing.T) {
		srv := &Server{allowedOrigins: []string{"https://editor.example"}}
		req := httptest.NewRequest(http.MethodOptions, "/flows", nil)
		req.Header.Set("Origin", "https://editor.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		srv.withCORS(ok).ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://editor.example" {
			t.Fatalf("unexpected allow origin %q", got)
		}
		if w.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Fatal("expected allow methods header")
		}
	})

	t.Run("rejects preflight from unknown origin", func(t *testing.T) {
		srv := &Server{allowedOrigins: []string{"https://editor.example"}}
		req := httptest.NewRequest(http.MethodOptions, "/flows", nil)
		req.Header.Set("Origin", "https://evil.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		srv.withCORS(ok).ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", w.Code)
		}
	})

	t.Run("wildcard origin", func(t *testing.T) {
		srv := &Server{allowedOrigins: []string{"*"}}
		req := httptest.NewRequest(http.MethodGet, "/flows", nil)
		req.Header.Set("Origin", "https://anything.example")
		w := httptest.NewRecorder()
		srv.withCORS(ok).ServeHTTP(w, req)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Fatalf("expected wildcard allow origin, got %q", got)
		}
	})

	t.Run("plain request without origin is untouched", func(t *testing.T) {
		srv := &Server{allowedOrigins: []string{"*"}}
		w := httptest.NewRecorder()
		srv.withCORS(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/flows", nil))
		if w.Code != http.StatusOK || w.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Fatalf("unexpected response: %d %v", w.Code, w.Header())
		}
	})
}

func TestRequestIDHeader(t *testing.T) {
	srv := &Server{}
	var seen string
	handler := srv.withRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("echoes client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/flows", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if got := w.Header().Get(requestIDHeader); got != "abc-123" {
			t.Fatalf("expected echoed request id, got %q", got)
		}
		if seen != "abc-123" {
			t.Fatalf("expected request id in context, got %q", seen)
		}
	})

	t.Run("generates id when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/flows", nil))
		if w.Header().Get(requestIDHeader) == "" {
			t.Fatal("expected generated request id")
		}
	})
}

func TestClassifyErrorMasksInternal(t *testing.T) {
	srv := &Server{}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/flows", nil)
	srv.writeServiceError(w, req, errors.New("disk unavailable"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var errResp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Error != "internal error" {
		t.Fatalf("expected masked message, got %q", errResp.Error)
	}
	if errResp.ErrorCode != ErrCodeInternal {
		t.Fatalf("expected error_code %d, got %d", ErrCodeInternal, errResp.ErrorCode)
	}
}
