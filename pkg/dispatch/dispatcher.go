// Package dispatch renders HTTP responses from a page table.
//
// The Dispatcher resolves the request path against a page.Table, enforces
// basic authentication, and renders one of four response kinds: static
// content, redirect, callback output, or 404. Responses are produced as
// complete Response values so the caller decides when and where the wire bytes
// are written.
package dispatch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/getmockd/hashserver/pkg/logging"
	"github.com/getmockd/hashserver/pkg/metrics"
	"github.com/getmockd/hashserver/pkg/page"
	"github.com/getmockd/hashserver/pkg/request"
)

// Errors returned by Dispatch.
var (
	// ErrMalformedCallbackResponse reports callback output that is not a
	// header block and a body separated by "\r\n\r\n".
	ErrMalformedCallbackResponse = fmt.Errorf("%w: malformed callback response", page.ErrConfiguration)

	// ErrUnknownVariant reports a descriptor that is none of the known kinds.
	ErrUnknownVariant = errors.New("unknown page descriptor variant")

	// ErrCallbackFailed wraps errors and panics raised by a page callback.
	ErrCallbackFailed = errors.New("page callback failed")
)

const (
	kindContent        = metrics.KindContent
	kindRedirect       = metrics.KindRedirect
	kindCallback       = metrics.KindCallback
	kindNotFound       = metrics.KindNotFound
	kindUnauthorized   = metrics.KindUnauthorized
	kindBadRequest     = metrics.KindBadRequest
	kindNotImplemented = metrics.KindNotImplemented
	kindError          = metrics.KindError
)

// Dispatcher turns requests into responses. It is safe for concurrent use.
type Dispatcher struct {
	table   *page.Table
	host    string
	port    int
	log     *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAddress sets the host and port reported by request.Request.URL.
func WithAddress(host string, port int) Option {
	return func(d *Dispatcher) {
		d.host = host
		d.port = port
	}
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// WithMetrics records every dispatched response on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// New creates a Dispatcher serving table.
func New(table *page.Table, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		table: table,
		host:  "localhost",
		log:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch renders the response for r. The returned error is non-nil only
// for configuration and callback failures; 401, 404 and 501 are responses.
// Only GET and POST are served.
//
// ctx bounds callback execution: when it is cancelled Dispatch returns
// ctx.Err() without waiting for the callback, and nothing is recorded.
func (d *Dispatcher) Dispatch(ctx context.Context, r *http.Request) (resp *Response, err error) {
	start := time.Now()
	reqID := uuid.NewString()
	target := requestTarget(r)
	log := d.log.With("request_id", reqID, "method", r.Method, "path", target)

	defer func() {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		if err != nil {
			d.metrics.ObserveResponse(kindError, http.StatusInternalServerError, time.Since(start))
			return
		}
		d.metrics.ObserveResponse(resp.Kind, resp.Status, time.Since(start))
	}()

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		log.Debug("unsupported method")
		return notImplementedResponse(r.Method), nil
	}

	p, ok := d.table.Lookup(target)
	if !ok {
		log.Debug("page not found")
		return notFoundResponse(), nil
	}

	if creds := p.Credentials(); creds != "" && !authorized(r, creds, log) {
		return unauthorizedResponse(), nil
	}

	switch p := p.(type) {
	case *page.Redirect:
		return &Response{
			Status: p.Status,
			Headers: []page.Header{
				{Name: "Content-Type", Value: page.DefaultContentType},
				{Name: "Location", Value: p.Target},
			},
			Body: []byte(RedirectingBody),
			Kind: kindRedirect,
		}, nil

	case *page.Callback:
		return d.callback(ctx, r, reqID, target, p, log)

	case *page.Content:
		return &Response{
			Status:  p.Status,
			Headers: p.Headers,
			Body:    p.Body,
			Kind:    kindContent,
		}, nil
	}

	log.Error("invalid page descriptor", "type", fmt.Sprintf("%T", p))
	return nil, fmt.Errorf("%w: %T at %s", ErrUnknownVariant, p, target)
}

func (d *Dispatcher) callback(ctx context.Context, r *http.Request, reqID, target string, cb *page.Callback, log *slog.Logger) (*Response, error) {
	var content *string
	if r.Method == http.MethodPost && r.Body != nil {
		// http.ReadRequest bounds the body by Content-Length.
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		s := string(data)
		content = &s
	}

	req := request.New(ctx, request.Params{
		ID:      reqID,
		Host:    d.host,
		Port:    d.port,
		Method:  r.Method,
		Path:    target,
		Headers: flattenHeaders(r),
		Content: content,
	})

	type result struct {
		raw []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("%w: panic: %v", ErrCallbackFailed, p)}
			}
		}()
		raw, err := cb.Handler(req)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrCallbackFailed, err)
		}
		done <- result{raw: raw, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		log.Debug("callback abandoned", "error", ctx.Err())
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, res.err
	}

	log.Debug("raw callback response", "bytes", len(res.raw))
	return ParseCallbackResponse(res.raw)
}

// authorized checks the Authorization header against "user:password".
func authorized(r *http.Request, want string, log *slog.Logger) bool {
	header := r.Header.Get("Authorization")
	if header == "" {
		return false
	}

	encoded, ok := strings.CutPrefix(header, "Basic ")
	if !ok {
		log.Warn("invalid authentication header", "header", header)
		return false
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		log.Warn("invalid authentication header", "header", header)
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		log.Warn("invalid authentication header", "header", header, "error", err)
		return false
	}
	if string(decoded) != want {
		log.Warn("invalid authentication", "expected", want, "actual", string(decoded))
		return false
	}
	return true
}

// requestTarget returns the raw request target, query string included.
func requestTarget(r *http.Request) string {
	if r.RequestURI != "" && !strings.HasPrefix(r.RequestURI, "http://") {
		return r.RequestURI
	}
	return r.URL.RequestURI()
}

// flattenHeaders returns the request headers in a stable order, keeping the
// last value of a repeated header. net/http moves Host out of the header map,
// so it is put back first.
func flattenHeaders(r *http.Request) [][2]string {
	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([][2]string, 0, len(names)+1)
	if r.Host != "" {
		out = append(out, [2]string{"Host", r.Host})
	}
	for _, name := range names {
		values := r.Header[name]
		if len(values) == 0 {
			continue
		}
		out = append(out, [2]string{name, values[len(values)-1]})
	}
	return out
}
