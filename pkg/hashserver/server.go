// Package hashserver runs a small HTTP/1.0 server that answers from a fixed
// table of pages. It is meant to be embedded in integration tests:
//
//	srv, err := hashserver.New(port, page.Pages{
//		"/":         "<h1>home</h1>",
//		"/old":      &page.Redirect{Target: "/"},
//		"/private":  &page.Content{Body: []byte("secret"), Auth: "user:pass"},
//	})
//	if err != nil {
//		return err
//	}
//	if err := srv.Start(); err != nil {
//		return err
//	}
//	defer srv.Stop()
//
// Each connection is served by its own worker goroutine. Stop kills every
// worker still handling a request, including callbacks that never return.
package hashserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/getmockd/hashserver/internal/netprobe"
	"github.com/getmockd/hashserver/pkg/dispatch"
	"github.com/getmockd/hashserver/pkg/logging"
	"github.com/getmockd/hashserver/pkg/metrics"
	"github.com/getmockd/hashserver/pkg/page"
	"github.com/getmockd/hashserver/pkg/registry"
)

// Server serves a page table on one TCP port.
type Server struct {
	host string
	port int

	table      *page.Table
	dispatcher *dispatch.Dispatcher
	registry   *registry.Registry
	metrics    *metrics.Metrics
	registerer prometheus.Registerer
	log        *slog.Logger

	startupRetries  int
	startupDelay    time.Duration
	shutdownRetries int
	shutdownDelay   time.Duration
	readTimeout     time.Duration

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// open connections, nil while stopped
	connMu sync.Mutex
	conns  map[net.Conn]struct{}

	nextWorker atomic.Int64
}

// New creates a server for pages on port. The server does not listen until
// Start is called.
func New(port int, pages page.Pages, opts ...Option) (*Server, error) {
	if port <= 0 {
		return nil, ErrPortNotSet
	}
	if port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrConfiguration, port)
	}

	s := &Server{
		host:            DefaultHost,
		port:            port,
		log:             logging.Nop(),
		startupRetries:  DefaultRetries,
		startupDelay:    DefaultRetryDelay,
		shutdownRetries: DefaultRetries,
		shutdownDelay:   DefaultRetryDelay,
		readTimeout:     DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if len(pages) == 0 {
		s.log.Warn("no pages configured", "port", port)
	}
	table, err := page.NewTable(pages)
	if err != nil {
		return nil, err
	}

	s.table = table
	s.registry = registry.New()
	s.metrics, err = metrics.New(s.registerer)
	if err != nil {
		return nil, err
	}
	s.dispatcher = dispatch.New(table,
		dispatch.WithAddress(s.host, s.port),
		dispatch.WithLogger(s.log),
		dispatch.WithMetrics(s.metrics),
	)
	return s, nil
}

// Start binds the port and begins accepting connections. It returns once the
// port accepts connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := netprobe.Address(s.host, s.port)
	if s.listener != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, addr)
	}
	if netprobe.IsOpen(s.host, s.port) {
		return fmt.Errorf("%w: %s is already in use", ErrAlreadyRunning, addr)
	}

	lc := net.ListenConfig{Control: reuseAddr}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.listener = ln
	s.cancel = cancel

	s.connMu.Lock()
	s.conns = make(map[net.Conn]struct{})
	s.connMu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(ctx, ln)

	if err := netprobe.WaitOpen(ctx, s.host, s.port, s.startupRetries, s.startupDelay); err != nil {
		_ = s.stopLocked()
		return fmt.Errorf("%w: %w", ErrStartupTimeout, err)
	}

	s.log.Info("server started", "host", s.host, "port", s.port, "pages", s.table.Len())
	return nil
}

// Stop kills every active worker, closes the listener and waits for the
// port to close. Stopping a server that is not running only logs a warning.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		s.log.Warn("server is not running", "port", s.port)
		return nil
	}
	return s.stopLocked()
}

// Close is Stop; it lets the server be used as an io.Closer.
func (s *Server) Close() error {
	return s.Stop()
}

func (s *Server) stopLocked() error {
	var errs []error

	killed := s.registry.Shutdown()
	if len(killed) > 0 {
		s.metrics.KilledWorkers.Add(float64(len(killed)))
		s.log.Debug("killed active workers", "workers", killed)
	}

	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, fmt.Errorf("closing listener: %w", err))
	}
	s.closeConns()
	s.cancel()
	s.wg.Wait()

	s.listener = nil
	s.cancel = nil
	s.registry.Open()

	if err := netprobe.WaitClosed(context.Background(), s.host, s.port, s.shutdownRetries, s.shutdownDelay); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrShutdownTimeout, err))
	}

	if err := errors.Join(errs...); err != nil {
		s.log.Error("server stopped with errors", "port", s.port, "error", err)
		return err
	}
	s.log.Info("server stopped", "host", s.host, "port", s.port)
	return nil
}

// PageURL returns the absolute URL of a configured page. A missing leading
// slash is added; the query string and fragment are dropped.
func (s *Server) PageURL(path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = page.StripPath(path)
	if !s.table.Has(path) {
		return "", fmt.Errorf("%w: %s", ErrUnknownPage, path)
	}
	return s.URL() + path, nil
}

// URL returns the server's base URL without a trailing slash.
func (s *Server) URL() string {
	return "http://" + netprobe.Address(s.host, s.port)
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Host returns the configured host.
func (s *Server) Host() string {
	return s.host
}

// IsRunning reports whether the server is listening.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}

// Registry returns the worker registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Gatherer returns the registry holding the server's metrics.
func (s *Server) Gatherer() prometheus.Gatherer {
	return s.metrics.Gatherer()
}
