// Package hashtest runs a hashserver for the duration of a test.
//
//	func TestFetch(t *testing.T) {
//		srv := hashtest.New(t, page.Pages{"/feed": "<rss/>"})
//		resp, err := http.Get(srv.URLFor("/feed"))
//		...
//	}
//
// The server listens on a free port and is stopped by t.Cleanup.
package hashtest

import (
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/getmockd/hashserver/pkg/hashserver"
	"github.com/getmockd/hashserver/pkg/logging"
	"github.com/getmockd/hashserver/pkg/page"
)

// Server is a started hashserver bound to a test.
type Server struct {
	*hashserver.Server
	t testing.TB
}

// New starts a server for pages on a free port and registers its shutdown
// with t.Cleanup. Warnings and errors from the server go to the test log.
func New(t testing.TB, pages page.Pages, opts ...hashserver.Option) *Server {
	t.Helper()

	srv := NewUnstarted(t, pages, opts...)
	if err := srv.Start(); err != nil {
		t.Fatalf("hashtest: starting server: %v", err)
	}
	return srv
}

// NewUnstarted creates the server without starting it. t.Cleanup still
// stops it if the test starts it later.
func NewUnstarted(t testing.TB, pages page.Pages, opts ...hashserver.Option) *Server {
	t.Helper()

	log := logging.New(logging.Config{
		Level:  logging.LevelWarn,
		Format: logging.FormatText,
		Output: testWriter{t},
	})
	opts = append([]hashserver.Option{hashserver.WithLogger(log)}, opts...)

	hs, err := hashserver.New(FreePort(t), pages, opts...)
	if err != nil {
		t.Fatalf("hashtest: creating server: %v", err)
	}
	t.Cleanup(func() {
		if !hs.IsRunning() {
			return
		}
		if err := hs.Stop(); err != nil {
			t.Errorf("hashtest: stopping server: %v", err)
		}
	})
	return &Server{Server: hs, t: t}
}

// FreePort returns a TCP port that was free on 127.0.0.1 a moment ago.
func FreePort(t testing.TB) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("hashtest: finding a free port: %v", err)
	}
	defer func() { _ = ln.Close() }()
	return ln.Addr().(*net.TCPAddr).Port
}

// URLFor is PageURL that fails the test for unknown pages.
func (s *Server) URLFor(path string) string {
	s.t.Helper()

	u, err := s.PageURL(path)
	if err != nil {
		s.t.Fatalf("hashtest: %v", err)
	}
	return u
}

// Client returns an HTTP client that does not follow redirects or reuse
// connections, so tests see exactly what the server sent.
func (s *Server) Client() *http.Client {
	return &http.Client{
		Timeout:   10 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// AssertIdle fails t unless no worker is handling a request.
func (s *Server) AssertIdle(t testing.TB) {
	t.Helper()

	if active := s.Registry().SnapshotActive(); len(active) > 0 {
		t.Errorf("expected no active workers, got %v", active)
	}
}

// testWriter sends log lines to the test log.
type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
