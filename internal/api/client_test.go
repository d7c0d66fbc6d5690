package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"webhooks":[{"url":"http://hook.test","events":["*"]}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/").WithToken("tok")
	resp, err := client.ListWebhooks(context.Background())
	if err != nil {
		t.Fatalf("list webhooks: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if len(resp.Webhooks) != 1 || resp.Webhooks[0].URL != "http://hook.test" {
		t.Fatalf("unexpected webhooks %#v", resp.Webhooks)
	}
}

func TestClientDecodesStructuredErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"flow not found","code":"not_found","error_code":2002}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetFlow(context.Background(), "abc")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.ErrorCode != 2002 || apiErr.Code != "not_found" {
		t.Fatalf("unexpected api error %#v", apiErr)
	}
	if !IsNotFound(err) {
		t.Fatal("expected IsNotFound")
	}
	if err.Error() != "not_found: flow not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestClientUnstructuredError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Ping(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 api error, got %v", err)
	}
}

func TestAdminGCObjectsSendsConfirmAndDryRun(t *testing.T) {
	var gotConfirm, gotDryRun, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotConfirm = r.Header.Get("X-Confirm")
		gotDryRun = r.URL.Query().Get("dry_run")
		_, _ = w.Write([]byte(`{"scanned":3,"removed":2,"failed":0,"dry_run":false}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).AdminGCObjects(context.Background(), false, true)
	if err != nil {
		t.Fatalf("gc: %v", err)
	}
	if gotPath != "/admin/gc-objects" || gotConfirm != "true" || gotDryRun != "" {
		t.Fatalf("unexpected request path=%q confirm=%q dry_run=%q", gotPath, gotConfirm, gotDryRun)
	}
	if resp.Scanned != 3 || resp.Removed != 2 {
		t.Fatalf("unexpected response %#v", resp)
	}
}

func TestDeleteWebhookEncodesURL(t *testing.T) {
	var gotMethod, gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotURL = r.URL.Query().Get("url")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).DeleteWebhook(context.Background(), "http://hook.test/a?b=c"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gotMethod != http.MethodDelete || gotURL != "http://hook.test/a?b=c" {
		t.Fatalf("unexpected request %s %q", gotMethod, gotURL)
	}
}
