package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"tams/internal/models"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultMaxConcurrent = 16
	DefaultMaxPending    = 1024
	maxDrainBytes        = 64 << 10
)

// Options configures a Dispatcher.
type Options struct {
	Timeout       time.Duration
	MaxConcurrent int64
	// MaxPending caps deliveries waiting for a free slot. Further events are
	// dropped with a warning.
	MaxPending    int
	UserAgent     string
	Client        *http.Client
	Logger        *slog.Logger
}

// Dispatcher posts events to matching subscribers. Delivery is best effort:
// one attempt per subscriber, failures are logged.
//
// At most MaxConcurrent goroutines deliver at once. Each holds a semaphore
// slot and drains the pending queue before giving the slot back.
type Dispatcher struct {
	registry   *Registry
	client     *http.Client
	sem        *semaphore.Weighted
	userAgent  string
	logger     *slog.Logger
	wg         sync.WaitGroup
	mu         sync.Mutex
	pending    []delivery
	maxPending int
}

type delivery struct {
	hook      models.Webhook
	eventType models.EventType
	body      []byte
}

func NewDispatcher(registry *Registry, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = DefaultMaxPending
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "tams"
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:   registry,
		client:     client,
		sem:        semaphore.NewWeighted(opts.MaxConcurrent),
		userAgent:  opts.UserAgent,
		logger:     logger,
		maxPending: opts.MaxPending,
	}
}

// Dispatch sends event to every current subscriber of its type and returns
// immediately.
func (d *Dispatcher) Dispatch(event models.Event) {
	targets := d.registry.Matching(event.Type)
	if len(targets) == 0 {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("webhook encode failed", "event_type", event.Type, "error", err)
		return
	}

	for _, hook := range targets {
		d.enqueue(delivery{hook: hook, eventType: event.Type, body: body})
	}
}

// Wait blocks until every started delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) enqueue(job delivery) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sem.TryAcquire(1) {
		d.wg.Add(1)
		go d.run(job)
		return
	}
	if len(d.pending) >= d.maxPending {
		d.logger.Warn("webhook queue full, dropping delivery", "url", job.hook.URL, "event_type", job.eventType)
		return
	}
	d.pending = append(d.pending, job)
}

// run delivers job and then whatever is queued. The slot is released under
// mu so enqueue never parks a job with no worker left to take it.
func (d *Dispatcher) run(job delivery) {
	defer d.wg.Done()
	for {
		d.deliver(job)

		d.mu.Lock()
		if len(d.pending) == 0 {
			d.sem.Release(1)
			d.mu.Unlock()
			return
		}
		job = d.pending[0]
		d.pending[0] = delivery{}
		d.pending = d.pending[1:]
		d.mu.Unlock()
	}
}

func (d *Dispatcher) deliver(job delivery) {
	if err := d.post(context.Background(), job.hook, job.body); err != nil {
		d.logger.Warn("webhook delivery failed", "url", job.hook.URL, "event_type", job.eventType, "error", err)
		return
	}
	d.logger.Debug("webhook delivered", "url", job.hook.URL, "event_type", job.eventType)
}

func (d *Dispatcher) post(ctx context.Context, hook models.Webhook, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.userAgent)
	if hook.APIKeyName != "" && hook.APIKeyValue != "" {
		req.Header.Set(hook.APIKeyName, hook.APIKeyValue)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("subscriber returned %s", resp.Status)
	}
	return nil
}
