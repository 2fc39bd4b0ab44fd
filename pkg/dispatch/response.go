package dispatch

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/getmockd/hashserver/pkg/page"
)

// Protocol is the version written on every status line.
const Protocol = "HTTP/1.0"

// Fixed bodies.
const (
	NotFoundBody    = "Not found :("
	RedirectingBody = "Redirecting."
)

// Realm is the basic authentication realm announced on 401 responses.
const Realm = "HashServer"

// Response is a fully rendered HTTP response. Headers are written in order.
type Response struct {
	Status  int
	Reason  string
	Headers []page.Header
	Body    []byte

	// Kind is the metrics kind of the page that produced the response.
	Kind string
}

// Header returns the value of the first header named name (case-insensitive).
func (r *Response) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// StatusLine returns the status line without its terminator.
func (r *Response) StatusLine() string {
	reason := r.Reason
	if reason == "" {
		reason = http.StatusText(r.Status)
	}
	if reason == "" {
		reason = "Unknown"
	}
	return fmt.Sprintf("%s %d %s", Protocol, r.Status, reason)
}

// Bytes encodes the response in wire form.
func (r *Response) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(64 + len(r.Body))
	buf.WriteString(r.StatusLine())
	buf.WriteString("\r\n")
	for _, h := range r.Headers {
		buf.WriteString(h.Name)
		buf.WriteString(": ")
		buf.WriteString(h.Value)
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	buf.Write(r.Body)
	return buf.Bytes()
}

// WriteTo writes the wire form of the response to w.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Bytes())
	return int64(n), err
}

func notFoundResponse() *Response {
	return &Response{
		Status:  http.StatusNotFound,
		Headers: []page.Header{{Name: "Content-Type", Value: "text/plain"}},
		Body:    []byte(NotFoundBody),
		Kind:    kindNotFound,
	}
}

func unauthorizedResponse() *Response {
	return &Response{
		Status:  http.StatusUnauthorized,
		Headers: []page.Header{{Name: "WWW-Authenticate", Value: `Basic realm="` + Realm + `"`}},
		Body:    []byte{},
		Kind:    kindUnauthorized,
	}
}

func notImplementedResponse(method string) *Response {
	return &Response{
		Status:  http.StatusNotImplemented,
		Headers: []page.Header{{Name: "Content-Type", Value: "text/plain"}},
		Body:    []byte(fmt.Sprintf("Unsupported method (%q)", method)),
		Kind:    kindNotImplemented,
	}
}

// BadRequestResponse renders a 400 for a request that could not be parsed.
func BadRequestResponse(err error) *Response {
	return &Response{
		Status:  http.StatusBadRequest,
		Headers: []page.Header{{Name: "Content-Type", Value: "text/plain"}},
		Body:    []byte("Bad request: " + err.Error()),
		Kind:    kindBadRequest,
	}
}

// ErrorResponse renders err as a 500 text/plain response. Workers send it
// when dispatching fails before anything was written.
func ErrorResponse(err error) *Response {
	return &Response{
		Status:  http.StatusInternalServerError,
		Headers: []page.Header{{Name: "Content-Type", Value: "text/plain"}},
		Body:    []byte(err.Error()),
		Kind:    kindError,
	}
}

// ParseCallbackResponse parses the raw output of a page callback: a header
// block, "\r\n\r\n", then the body. A header line starting with "HTTP/" is a
// status line; every other line is "name: value". Without a status line the
// response is 200 OK.
func ParseCallbackResponse(raw []byte) (*Response, error) {
	head, body, ok := bytes.Cut(raw, []byte("\r\n\r\n"))
	if !ok {
		return nil, fmt.Errorf("%w: headers and body must be separated by CRLF CRLF", ErrMalformedCallbackResponse)
	}

	resp := &Response{Status: http.StatusOK, Body: body, Kind: kindCallback}
	for _, line := range strings.Split(string(head), "\r\n") {
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "HTTP/") {
			parts := strings.SplitN(line, " ", 3)
			if len(parts) < 2 {
				return nil, fmt.Errorf("%w: bad status line %q", ErrMalformedCallbackResponse, line)
			}
			code, err := strconv.Atoi(parts[1])
			if err != nil || code < 100 || code > 999 {
				return nil, fmt.Errorf("%w: bad status code in %q", ErrMalformedCallbackResponse, line)
			}
			resp.Status = code
			resp.Reason = ""
			if len(parts) == 3 {
				resp.Reason = parts[2]
			}
			continue
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: bad header line %q", ErrMalformedCallbackResponse, line)
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			return nil, fmt.Errorf("%w: invalid header %q", ErrMalformedCallbackResponse, line)
		}
		resp.Headers = append(resp.Headers, page.Header{Name: name, Value: value})
	}
	return resp, nil
}
