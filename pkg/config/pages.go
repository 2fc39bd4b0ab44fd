package config

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/getmockd/hashserver/pkg/page"
)

// Expand replaces ${host} and ${port} in s.
func Expand(s, host string, port int) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return strings.NewReplacer(
		"${host}", host,
		"${port}", strconv.Itoa(port),
	).Replace(s)
}

// Pages converts every page in f into a descriptor for a server listening
// on host:port.
func (f *File) Pages(host string, port int) (page.Pages, error) {
	pages := make(page.Pages, len(f.Pages))
	for _, path := range f.Paths() {
		p, err := f.Pages[path].Page(host, port)
		if err != nil {
			if src := f.Sources[path]; src != "" {
				return nil, fmt.Errorf("%s: page %s: %w", src, path, err)
			}
			return nil, fmt.Errorf("page %s: %w", path, err)
		}
		pages[path] = p
	}
	return pages, nil
}

// Page builds the descriptor for s on a server at host:port.
func (s PageSpec) Page(host string, port int) (page.Page, error) {
	if s.Redirect != "" {
		switch {
		case s.Content != "":
			return nil, fmt.Errorf("%w: content and redirect are mutually exclusive", ErrInvalidPage)
		case len(s.Header) > 0:
			return nil, fmt.Errorf("%w: redirects take no header", ErrInvalidPage)
		case s.Charset != "":
			return nil, fmt.Errorf("%w: redirects take no charset", ErrInvalidPage)
		}
		return &page.Redirect{
			Target: Expand(s.Redirect, host, port),
			Status: s.Status,
			Auth:   s.Auth,
		}, nil
	}

	body := []byte(Expand(s.Content, host, port))
	var headers []page.Header

	if s.Charset != "" {
		enc, err := htmlindex.Get(s.Charset)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCharset, s.Charset)
		}
		body, err = enc.NewEncoder().Bytes(body)
		if err != nil {
			return nil, fmt.Errorf("%w: content cannot be encoded as %s: %w", ErrInvalidPage, s.Charset, err)
		}
		if len(s.Header) == 0 {
			name, _ := htmlindex.Name(enc)
			headers = []page.Header{{Name: "Content-Type", Value: "text/html; charset=" + name}}
		}
	}

	for _, line := range s.Header {
		h, err := page.ParseHeader(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPage, err)
		}
		headers = append(headers, h)
	}

	return &page.Content{
		Body:    body,
		Headers: headers,
		Status:  s.Status,
		Auth:    s.Auth,
	}, nil
}
