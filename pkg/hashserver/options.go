package hashserver

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Defaults used when no option overrides them.
const (
	DefaultHost        = "127.0.0.1"
	DefaultRetries     = 20
	DefaultRetryDelay  = 100 * time.Millisecond
	DefaultReadTimeout = 10 * time.Second
)

// Option configures a Server.
type Option func(*Server)

// WithHost sets the address the server listens on and reports in URLs.
func WithHost(host string) Option {
	return func(s *Server) {
		if host != "" {
			s.host = host
		}
	}
}

// WithLogger sets the operational logger for the server.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRegisterer registers the server's collectors on reg instead of a
// private registry. Registering two servers on the same reg panics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Server) {
		s.registerer = reg
	}
}

// WithStartupRetries sets how many times Start probes the port, and the
// delay between probes, before giving up.
func WithStartupRetries(n int, delay time.Duration) Option {
	return func(s *Server) {
		s.startupRetries = n
		s.startupDelay = delay
	}
}

// WithShutdownRetries sets how many times Stop probes the port, and the
// delay between probes, before giving up.
func WithShutdownRetries(n int, delay time.Duration) Option {
	return func(s *Server) {
		s.shutdownRetries = n
		s.shutdownDelay = delay
	}
}

// WithReadTimeout bounds how long a worker waits for the request header.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}
