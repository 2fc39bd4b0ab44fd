package page

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getmockd/hashserver/pkg/request"
)

// ErrConfiguration reports an invalid page table or page descriptor.
// It is fatal and never retried.
var ErrConfiguration = errors.New("invalid configuration")

// Default status codes.
const (
	DefaultContentStatus  = http.StatusOK
	DefaultRedirectStatus = http.StatusMovedPermanently
)

// DefaultContentType is sent when a page declares no headers of its own.
const DefaultContentType = "text/html; charset=UTF-8"

// Kind identifies a descriptor variant.
type Kind string

// Descriptor kinds.
const (
	KindContent  Kind = "content"
	KindRedirect Kind = "redirect"
	KindCallback Kind = "callback"
)

// Header is one response header. Headers are kept as an ordered list so a
// page is served with exactly the header sequence it was configured with.
type Header struct {
	Name  string
	Value string
}

// String renders the header in wire form without the line terminator.
func (h Header) String() string {
	return h.Name + ": " + h.Value
}

// ParseHeader parses a "Name: value" line. The value is trimmed on both sides.
func ParseHeader(line string) (Header, error) {
	name, value, ok := strings.Cut(line, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return Header{}, fmt.Errorf("%w: header %q is not in \"Name: value\" form", ErrConfiguration, line)
	}
	return Header{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)}, nil
}

// DefaultHeaders returns the headers used by pages that declare none.
func DefaultHeaders() []Header {
	return []Header{{Name: "Content-Type", Value: DefaultContentType}}
}

// CallbackFunc computes a raw HTTP response for one request. The returned
// bytes must hold a header block and a body separated by "\r\n\r\n"; a header
// line starting with "HTTP/" sets the status.
//
// The request context is cancelled when the server is stopped while the
// callback is still running.
type CallbackFunc func(req *request.Request) ([]byte, error)

// Page is a page descriptor: one of *Content, *Redirect or *Callback.
type Page interface {
	// Kind reports the descriptor variant.
	Kind() Kind
	// Credentials returns the required "user:password" pair, or "" when the
	// page is public.
	Credentials() string

	sealed()
}

// Content is a static page.
type Content struct {
	Body    []byte
	Headers []Header // nil means DefaultHeaders
	Status  int      // 0 means DefaultContentStatus
	Auth    string
}

// Kind implements Page.
func (c *Content) Kind() Kind { return KindContent }

// Credentials implements Page.
func (c *Content) Credentials() string { return c.Auth }

func (c *Content) sealed() {}

// Redirect answers with a Location header.
type Redirect struct {
	Target string
	Status int // 0 means DefaultRedirectStatus
	Auth   string
}

// Kind implements Page.
func (r *Redirect) Kind() Kind { return KindRedirect }

// Credentials implements Page.
func (r *Redirect) Credentials() string { return r.Auth }

func (r *Redirect) sealed() {}

// Callback computes its response per request.
type Callback struct {
	Handler CallbackFunc
	Auth    string
}

// Kind implements Page.
func (c *Callback) Kind() Kind { return KindCallback }

// Credentials implements Page.
func (c *Callback) Credentials() string { return c.Auth }

func (c *Callback) sealed() {}

// HTML is shorthand for a text/html content page.
func HTML(body string) *Content {
	return &Content{Body: []byte(body)}
}

// Text is shorthand for a text/plain content page.
func Text(body string) *Content {
	return &Content{
		Body:    []byte(body),
		Headers: []Header{{Name: "Content-Type", Value: "text/plain"}},
	}
}

// normalize resolves shorthand values into a descriptor with all defaults
// filled in. The returned descriptor is a copy; the caller's value is never
// modified.
func normalize(path string, v any) (Page, error) {
	switch p := v.(type) {
	case string:
		return normalize(path, &Content{Body: []byte(p)})
	case []byte:
		body := make([]byte, len(p))
		copy(body, p)
		return &Content{Body: body, Headers: DefaultHeaders(), Status: DefaultContentStatus}, nil
	case Content:
		return normalize(path, &p)
	case Redirect:
		return normalize(path, &p)
	case Callback:
		return normalize(path, &p)
	case *Content:
		if p == nil {
			break
		}
		c := *p
		if c.Headers == nil {
			c.Headers = DefaultHeaders()
		} else {
			c.Headers = append([]Header(nil), c.Headers...)
		}
		if c.Status == 0 {
			c.Status = DefaultContentStatus
		}
		if err := validateStatus(path, c.Status); err != nil {
			return nil, err
		}
		if err := validateAuth(path, c.Auth); err != nil {
			return nil, err
		}
		return &c, nil
	case *Redirect:
		if p == nil {
			break
		}
		r := *p
		if r.Target == "" {
			return nil, fmt.Errorf("%w: redirect page %s has no target", ErrConfiguration, path)
		}
		if r.Status == 0 {
			r.Status = DefaultRedirectStatus
		}
		if err := validateStatus(path, r.Status); err != nil {
			return nil, err
		}
		if err := validateAuth(path, r.Auth); err != nil {
			return nil, err
		}
		return &r, nil
	case *Callback:
		if p == nil {
			break
		}
		if p.Handler == nil {
			return nil, fmt.Errorf("%w: callback page %s has no handler", ErrConfiguration, path)
		}
		if err := validateAuth(path, p.Auth); err != nil {
			return nil, err
		}
		c := *p
		return &c, nil
	case CallbackFunc:
		return normalize(path, &Callback{Handler: p})
	case func(*request.Request) ([]byte, error):
		return normalize(path, &Callback{Handler: p})
	}
	return nil, fmt.Errorf("%w: page %s has unsupported descriptor type %T", ErrConfiguration, path, v)
}

func validateStatus(path string, status int) error {
	if status < 100 || status > 999 {
		return fmt.Errorf("%w: page %s has invalid status %d", ErrConfiguration, path, status)
	}
	return nil
}

func validateAuth(path, auth string) error {
	if auth != "" && !strings.Contains(auth, ":") {
		return fmt.Errorf("%w: page %s auth must be \"user:password\"", ErrConfiguration, path)
	}
	return nil
}
