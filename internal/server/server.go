// Package server exposes the media catalog over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"tams/internal/auth"
	"tams/internal/deletion"
	"tams/internal/models"
	"tams/internal/objectstore"
	"tams/internal/segindex"
	"tams/internal/store"
	"tams/internal/webhook"
)

const (
	readHeaderTimeout      = 5 * time.Second
	readTimeout            = 30 * time.Second
	writeTimeout           = 60 * time.Second
	idleTimeout            = 60 * time.Second
	shutdownTimeout        = 10 * time.Second
	uploadConcurrencyLimit = 8
	adminConcurrencyLimit  = 1

	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// EventPublisher receives lifecycle events after a mutation commits.
type EventPublisher interface {
	Dispatch(event models.Event)
}

// DeletionNotifier is woken when a flow delete request is queued.
type DeletionNotifier interface {
	Notify()
}

// ServiceInfo is the self-description served at / and /service.
type ServiceInfo struct {
	Name        string
	Description string
	Version     string
}

// Options wires a Server. Store, Objects and Webhooks are required.
type Options struct {
	Addr      string
	Store     store.CatalogStore
	Objects   objectstore.ObjectStore
	Index     *segindex.Index
	Webhooks  *webhook.Registry
	Publisher EventPublisher
	Reaper    *deletion.Reaper
	Deletions DeletionNotifier

	Gate           *auth.Gate
	RequireAuth    bool
	AllowedOrigins []string

	Info             ServiceInfo
	DefaultLimit     int
	MaxLimit         int
	StagingRetention time.Duration
	OrphanRetention  time.Duration

	Logger *slog.Logger
}

// Server wraps HTTP handlers for the catalog API.
type Server struct {
	addr           string
	store          store.CatalogStore
	objects        objectstore.ObjectStore
	info           ServiceInfo
	gate           *auth.Gate
	requireAuth    bool
	allowedOrigins []string
	defaultLimit   int
	maxLimit       int
	logger         *slog.Logger

	sources   *SourceService
	flows     *FlowService
	segments  *SegmentService
	media     *ObjectService
	webhooks  *WebhookService
	deletions *DeletionService
	admin     *AdminService

	uploadLimiter chan struct{}
	adminLimiter  chan struct{}
}

// New creates a new server instance.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if opts.Objects == nil {
		return nil, errors.New("server: object store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Webhooks
	if registry == nil {
		registry = webhook.NewRegistry()
	}
	index := opts.Index
	if index == nil {
		index = segindex.New(opts.Store)
	}
	reaper := opts.Reaper
	if reaper == nil {
		reaper = deletion.NewReaper(opts.Store, opts.Objects, index, logger)
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = discardPublisher{}
	}

	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = maxPageLimit
	}
	defaultLimit := opts.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = defaultPageLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}

	s := &Server{
		addr:           opts.Addr,
		store:          opts.Store,
		objects:        opts.Objects,
		info:           opts.Info,
		gate:           opts.Gate,
		requireAuth:    opts.RequireAuth,
		allowedOrigins: opts.AllowedOrigins,
		defaultLimit:   defaultLimit,
		maxLimit:       maxLimit,
		logger:         logger,
		uploadLimiter:  make(chan struct{}, uploadConcurrencyLimit),
		adminLimiter:   make(chan struct{}, adminConcurrencyLimit),
	}
	s.sources = NewSourceService(opts.Store, publisher)
	s.flows = NewFlowService(opts.Store, index, reaper, publisher, logger)
	s.segments = NewSegmentService(index, opts.Objects, reaper, publisher, logger)
	s.media = NewObjectService(opts.Store, opts.Objects, index)
	s.webhooks = NewWebhookService(opts.Store, registry)
	s.deletions = NewDeletionService(opts.Store, opts.Deletions)
	s.admin = NewAdminService(opts.Store, opts.Objects, reaper, opts.StagingRetention, opts.OrphanRetention)
	return s, nil
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.withCORS(s.withAuth(s.routes())))
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log().Info("starting server", "addr", ln.Addr().String())
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ErrorLog:          slog.NewLogLogger(s.log().Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}

type discardPublisher struct{}

func (discardPublisher) Dispatch(models.Event) {}
