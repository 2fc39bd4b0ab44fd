// Package request provides the read-only request view handed to page callbacks.
package request

import (
	"context"
	"fmt"
	"net/textproto"
	"net/url"
	"strings"
)

// Request is an immutable view of one inbound HTTP request.
// Derived views (cookies, query parameters) are computed from the stored
// headers and path on every call.
type Request struct {
	ctx     context.Context
	id      string
	host    string
	port    int
	method  string
	path    string
	headers map[string]string
	content *string
}

// Params holds the values used to build a Request.
type Params struct {
	ID     string
	Host   string
	Port   int
	Method string
	// Path is the request target including the query string.
	Path string
	// Headers are applied in order; a later duplicate replaces an earlier one.
	Headers [][2]string
	// Content is the POST body, nil for other methods.
	Content *string
}

// New builds a Request. A nil ctx is replaced with context.Background().
func New(ctx context.Context, p Params) *Request {
	if ctx == nil {
		ctx = context.Background()
	}
	headers := make(map[string]string, len(p.Headers))
	for _, h := range p.Headers {
		headers[textproto.CanonicalMIMEHeaderKey(h[0])] = h[1]
	}
	var content *string
	if p.Content != nil {
		c := *p.Content
		content = &c
	}
	return &Request{
		ctx:     ctx,
		id:      p.ID,
		host:    p.Host,
		port:    p.Port,
		method:  p.Method,
		path:    p.Path,
		headers: headers,
		content: content,
	}
}

// Context is cancelled when the worker serving the request is killed.
func (r *Request) Context() context.Context { return r.ctx }

// ID returns the request id assigned by the server.
func (r *Request) ID() string { return r.id }

// Method returns the request method (GET, POST, ...).
func (r *Request) Method() string { return r.method }

// Path returns the request target, query string included.
func (r *Request) Path() string { return r.path }

// URL returns the absolute URL of the request.
func (r *Request) URL() string {
	host := r.host
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d%s", host, r.port, r.path)
}

// Headers returns a copy of all headers keyed by canonical name.
func (r *Request) Headers() map[string]string {
	out := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		out[k] = v
	}
	return out
}

// Header returns the named header, matched case-insensitively, or "".
func (r *Request) Header(name string) string {
	return r.headers[textproto.CanonicalMIMEHeaderKey(name)]
}

// ContentType returns the Content-Type header.
func (r *Request) ContentType() string {
	return r.Header("Content-Type")
}

// Content returns the POST body. ok is false for requests without one.
func (r *Request) Content() (body string, ok bool) {
	if r.content == nil {
		return "", false
	}
	return *r.content, true
}

// Cookies parses the Cookie header into a name to value map.
func (r *Request) Cookies() map[string]string {
	cookies := make(map[string]string)
	raw := r.Header("Cookie")
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok || name == "" {
			continue
		}
		cookies[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return cookies
}

// QueryParams parses the query string, keeping blank values.
func (r *Request) QueryParams() url.Values {
	_, query, _ := strings.Cut(r.path, "?")
	query, _, _ = strings.Cut(query, "#")
	// ParseQuery keeps the pairs it could decode when it reports an error.
	values, _ := url.ParseQuery(query)
	return values
}

// QueryParam returns the first value of the named query parameter.
func (r *Request) QueryParam(name string) string {
	return r.QueryParams().Get(name)
}
