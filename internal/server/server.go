// Package server runs the contact form preview: an HTML page backed by a
// single shared form.State, a small JSON API over the same state, and a
// websocket stream of every state change.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/contactform/internal/config"
	"github.com/conneroisu/contactform/internal/errors"
	"github.com/conneroisu/contactform/internal/form"
	"github.com/conneroisu/contactform/internal/logging"
	"github.com/conneroisu/contactform/internal/metrics"
	"github.com/conneroisu/contactform/internal/submit"
	"github.com/conneroisu/contactform/internal/watcher"
	"github.com/conneroisu/contactform/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	shutdownTimeout   = 5 * time.Second
	configDebounce    = 200 * time.Millisecond
	readHeaderTimeout = 10 * time.Second
)

// Server is the preview server.
type Server struct {
	cfg        *config.Config
	state      *form.State
	submitter  *submit.Controller
	ws         *websocket.Manager
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	logger     logging.Logger
	errHandler *errors.ErrorHandler
	router     chi.Router

	httpClient submit.Doer

	serverMu    sync.Mutex
	httpServer  *http.Server
	addr        string
	watcher     *watcher.FileWatcher
	unsubscribe func()

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithHTTPClient sets the client used to reach the endpoint.
func WithHTTPClient(client submit.Doer) Option {
	return func(s *Server) { s.httpClient = client }
}

// New wires a server for cfg. cfg.Endpoint must already be a valid URL.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "server requires a configuration", nil)
	}

	s := &Server{
		cfg:    cfg,
		state:  form.New(),
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("server")
	s.errHandler = errors.NewErrorHandler(s.logger)

	s.registry = metrics.NewRegistry()
	s.metrics = metrics.New(s.registry)

	submitOpts := []submit.Option{
		submit.WithLogger(s.logger),
		submit.WithMetrics(s.metrics),
	}
	if s.httpClient != nil {
		submitOpts = append(submitOpts, submit.WithHTTPClient(s.httpClient))
	}
	s.submitter = submit.New(s.state, submitOpts...)
	if err := s.submitter.SetEndpoint(cfg.Endpoint); err != nil {
		return nil, err
	}

	s.ws = websocket.NewManager(
		websocket.NewAllowList(cfg.Server.AllowedOrigins...),
		websocket.WithLogger(s.logger),
		websocket.WithMetrics(s.metrics),
		websocket.WithGreeting(s.snapshotMessage),
	)
	s.unsubscribe = s.state.Subscribe(s.forward)
	s.router = s.routes()

	return s, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// State returns the form shared by every visitor.
func (s *Server) State() *form.State {
	return s.state
}

// Submitter returns the controller behind the submit routes.
func (s *Server) Submitter() *submit.Controller {
	return s.submitter
}

// Addr returns the bound address once Serve has started.
func (s *Server) Addr() string {
	s.serverMu.Lock()
	defer s.serverMu.Unlock()
	return s.addr
}

func (s *Server) snapshotMessage() (websocket.UpdateMessage, bool) {
	content, err := json.Marshal(s.state.Snapshot())
	if err != nil {
		return websocket.UpdateMessage{}, false
	}
	return websocket.UpdateMessage{
		Type:      websocket.TypeSnapshot,
		Content:   string(content),
		Timestamp: time.Now(),
	}, true
}

func (s *Server) forward(ev form.Event) {
	content, err := json.Marshal(ev.Snapshot)
	if err != nil {
		s.logger.Error(context.Background(), err, "Failed to encode state event", "event", ev.Type)
		return
	}
	s.ws.Broadcast(websocket.UpdateMessage{
		Type:      websocket.TypeEvent,
		Target:    string(ev.Type),
		Content:   string(content),
		Timestamp: time.Now(),
	})
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.serverMu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr().String()
	s.serverMu.Unlock()

	s.logger.Info(ctx, "Preview server listening",
		"addr", "http://"+ln.Addr().String(),
		"endpoint", s.submitter.Endpoint())

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// WatchConfig reloads the configuration whenever path changes on disk and
// applies a changed endpoint to subsequent submits. Other settings need a
// restart.
func (s *Server) WatchConfig(ctx context.Context, path string, reload func() (*config.Config, error)) error {
	fw, err := watcher.NewFileWatcher(configDebounce, s.logger)
	if err != nil {
		return err
	}
	if err := fw.WatchFile(path); err != nil {
		_ = fw.Stop()
		return err
	}

	fw.AddHandler(func([]watcher.ChangeEvent) error {
		cfg, err := reload()
		if err != nil {
			return fmt.Errorf("reloading %s: %w", path, err)
		}
		return s.applyConfig(ctx, cfg)
	})

	s.serverMu.Lock()
	s.watcher = fw
	s.serverMu.Unlock()

	s.logger.Info(ctx, "Watching configuration", "path", path)
	return fw.Start(ctx)
}

func (s *Server) applyConfig(ctx context.Context, cfg *config.Config) error {
	previous := s.submitter.Endpoint()
	if cfg.Endpoint == previous {
		return nil
	}
	if err := s.submitter.SetEndpoint(cfg.Endpoint); err != nil {
		return err
	}
	s.logger.Info(ctx, "Endpoint updated", "from", previous, "to", cfg.Endpoint)
	return nil
}

// Shutdown stops accepting requests, disconnects websocket clients and stops
// the config watcher. Later calls return the first call's result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.unsubscribe()

		if err := s.ws.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, err, "WebSocket shutdown incomplete")
		}

		s.serverMu.Lock()
		srv, fw := s.httpServer, s.watcher
		s.serverMu.Unlock()

		if fw != nil {
			if err := fw.Stop(); err != nil {
				s.logger.Warn(ctx, err, "Stopping config watcher failed")
			}
		}
		if srv != nil {
			s.shutdownErr = srv.Shutdown(ctx)
		}
		s.logger.Info(ctx, "Preview server stopped")
	})

	return s.shutdownErr
}
