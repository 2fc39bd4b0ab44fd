package page

import (
	"fmt"
	"sort"
	"strings"
)

// Pages maps URL paths to descriptors. Values may be string, []byte, a Page,
// a Content, Redirect or Callback value, or a CallbackFunc.
type Pages map[string]any

// Table is an immutable, exact-match index of page descriptors.
type Table struct {
	pages map[string]Page
}

// NewTable validates and normalizes pages. Keys without a leading slash are
// prefixed with one; keys carrying a query string or fragment, and keys that
// collide after normalization, are rejected.
func NewTable(pages Pages) (*Table, error) {
	t := &Table{pages: make(map[string]Page, len(pages))}
	sources := make(map[string]string, len(pages))

	for key, v := range pages {
		path, err := normalizeKey(key)
		if err != nil {
			return nil, err
		}
		if prev, dup := sources[path]; dup {
			return nil, fmt.Errorf("%w: paths %q and %q both resolve to %s", ErrConfiguration, prev, key, path)
		}
		p, err := normalize(path, v)
		if err != nil {
			return nil, err
		}
		sources[path] = key
		t.pages[path] = p
	}
	return t, nil
}

func normalizeKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty page path", ErrConfiguration)
	}
	if strings.ContainsAny(key, "?#") {
		return "", fmt.Errorf("%w: page path %q must not contain a query string or fragment", ErrConfiguration, key)
	}
	if !strings.HasPrefix(key, "/") {
		key = "/" + key
	}
	return key, nil
}

// StripPath removes the query string and fragment from a request target.
func StripPath(target string) string {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		return target[:i]
	}
	return target
}

// Lookup returns the descriptor for path. The query string and fragment of
// path are ignored.
func (t *Table) Lookup(path string) (Page, bool) {
	p, ok := t.pages[StripPath(path)]
	return p, ok
}

// Has reports whether path (query and fragment ignored) is in the table.
func (t *Table) Has(path string) bool {
	_, ok := t.Lookup(path)
	return ok
}

// Paths returns all registered paths in sorted order.
func (t *Table) Paths() []string {
	paths := make([]string, 0, len(t.pages))
	for p := range t.pages {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of pages.
func (t *Table) Len() int {
	return len(t.pages)
}
