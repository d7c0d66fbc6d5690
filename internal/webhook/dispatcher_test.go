package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tams/internal/models"
)

type captured struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
}

func (c *captured) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.requests = append(c.requests, r)
		c.bodies = append(c.bodies, body)
		c.mu.Unlock()
		w.WriteHeader(status)
	}
}

func (c *captured) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchDeliversEnvelopeWithHeaders(t *testing.T) {
	var got captured
	srv := httptest.NewServer(got.handler(http.StatusNoContent))
	defer srv.Close()

	reg := NewRegistry()
	reg.Register(models.Webhook{URL: srv.URL, APIKeyName: "X-Api-Key", APIKeyValue: "s3cret", Events: []string{"flow.created"}})
	d := NewDispatcher(reg, Options{UserAgent: "tams/test", Logger: quietLogger()})

	d.Dispatch(models.NewEvent(models.EventFlowCreated, models.FlowDeletedEvent{FlowID: "flow-1"}))
	d.Wait()

	if got.count() != 1 {
		t.Fatalf("expected one delivery, got %d", got.count())
	}
	req := got.requests[0]
	if req.Method != http.MethodPost {
		t.Fatalf("expected POST, got %s", req.Method)
	}
	if req.Header.Get("Content-Type") != "application/json" || req.Header.Get("User-Agent") != "tams/test" {
		t.Fatalf("unexpected headers %v", req.Header)
	}
	if req.Header.Get("X-Api-Key") != "s3cret" {
		t.Fatalf("expected api key header, got %q", req.Header.Get("X-Api-Key"))
	}

	var envelope struct {
		Timestamp time.Time      `json:"event_timestamp"`
		Type      string         `json:"event_type"`
		Event     map[string]any `json:"event"`
	}
	if err := json.Unmarshal(got.bodies[0], &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Type != "flow.created" || envelope.Event["flow_id"] != "flow-1" || envelope.Timestamp.IsZero() {
		t.Fatalf("unexpected envelope %s", got.bodies[0])
	}
}

func TestDispatchSkipsNonSubscribers(t *testing.T) {
	var got captured
	srv := httptest.NewServer(got.handler(http.StatusOK))
	defer srv.Close()

	reg := NewRegistry()
	reg.Register(models.Webhook{URL: srv.URL + "/deleted-only", Events: []string{"flow.deleted"}})
	d := NewDispatcher(reg, Options{Logger: quietLogger()})

	d.Dispatch(models.NewEvent(models.EventFlowCreated, nil))
	d.Wait()

	if got.count() != 0 {
		t.Fatalf("expected no deliveries, got %d", got.count())
	}
}

func TestDispatchWildcardAndFailuresDoNotStopOthers(t *testing.T) {
	var ok captured
	good := httptest.NewServer(ok.handler(http.StatusOK))
	defer good.Close()
	var failing captured
	bad := httptest.NewServer(failing.handler(http.StatusInternalServerError))
	defer bad.Close()

	reg := NewRegistry()
	reg.Register(models.Webhook{URL: good.URL, Events: []string{"*"}})
	reg.Register(models.Webhook{URL: bad.URL, Events: []string{"source.created"}})
	d := NewDispatcher(reg, Options{Logger: quietLogger()})

	d.Dispatch(models.NewEvent(models.EventSourceCreated, nil))
	d.Dispatch(models.NewEvent(models.EventSourceCreated, nil))
	d.Wait()

	if ok.count() != 2 {
		t.Fatalf("expected 2 wildcard deliveries, got %d", ok.count())
	}
	if failing.count() != 2 {
		t.Fatalf("expected failing subscriber to be tried once per event, got %d", failing.count())
	}
}

func TestDispatchBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := NewRegistry()
	for _, path := range []string{"/a", "/b", "/c", "/d"} {
		reg.Register(models.Webhook{URL: srv.URL + path, Events: []string{"*"}})
	}
	d := NewDispatcher(reg, Options{MaxConcurrent: 2, Logger: quietLogger()})
	d.Dispatch(models.NewEvent(models.EventFlowUpdated, nil))

	deadline := time.Now().Add(2 * time.Second)
	for inFlight.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	d.Wait()

	if peak.Load() != 2 {
		t.Fatalf("expected peak concurrency 2, got %d", peak.Load())
	}
}

func TestDeliveryTimeoutIsLoggedNotBlocking(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	reg := NewRegistry()
	reg.Register(models.Webhook{URL: srv.URL, Events: []string{"*"}})
	d := NewDispatcher(reg, Options{Timeout: 50 * time.Millisecond, Logger: quietLogger()})

	start := time.Now()
	d.Dispatch(models.NewEvent(models.EventFlowDeleted, nil))
	if time.Since(start) > 40*time.Millisecond {
		t.Fatal("dispatch must not wait for delivery")
	}
	d.Wait()
	if time.Since(start) > 2*time.Second {
		t.Fatal("delivery should have timed out")
	}
}

func TestDispatchQueuesBeyondSlotsWithoutExtraWorkers(t *testing.T) {
	var inFlight, peak atomic.Int64
	var delivered atomic.Int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		delivered.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := NewRegistry()
	reg.Register(models.Webhook{URL: srv.URL, Events: []string{"*"}})
	d := NewDispatcher(reg, Options{MaxConcurrent: 2, MaxPending: 100, Logger: quietLogger()})

	start := time.Now()
	for i := 0; i < 40; i++ {
		d.Dispatch(models.NewEvent(models.EventFlowSegmentsAdded, nil))
	}
	if time.Since(start) > time.Second {
		t.Fatal("dispatch must not wait for free slots")
	}

	d.mu.Lock()
	queued := len(d.pending)
	d.mu.Unlock()
	if queued != 38 {
		t.Fatalf("expected 38 queued deliveries behind 2 workers, got %d", queued)
	}

	close(release)
	d.Wait()
	if delivered.Load() != 40 {
		t.Fatalf("expected every queued event delivered, got %d", delivered.Load())
	}
	if peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent deliveries, got %d", peak.Load())
	}
}

func TestDispatchDropsWhenQueueIsFull(t *testing.T) {
	var delivered atomic.Int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		delivered.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := NewRegistry()
	reg.Register(models.Webhook{URL: srv.URL, Events: []string{"*"}})
	d := NewDispatcher(reg, Options{MaxConcurrent: 1, MaxPending: 2, Logger: quietLogger()})

	for i := 0; i < 6; i++ {
		d.Dispatch(models.NewEvent(models.EventFlowUpdated, nil))
	}
	close(release)
	d.Wait()

	if delivered.Load() != 3 {
		t.Fatalf("expected one running plus two queued deliveries, got %d", delivered.Load())
	}
}
