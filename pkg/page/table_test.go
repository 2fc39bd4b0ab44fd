package page

import (
	"testing"

	"github.com/getmockd/hashserver/pkg/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okCallback(*request.Request) ([]byte, error) {
	return []byte("HTTP/1.0 200 OK\r\n\r\n"), nil
}

func TestNewTable_Shorthand(t *testing.T) {
	table, err := NewTable(Pages{
		"/":    "home",
		"/foo": []byte("foo"),
	})
	require.NoError(t, err)

	for path, body := range map[string]string{"/": "home", "/foo": "foo"} {
		p, ok := table.Lookup(path)
		require.True(t, ok, path)
		c, ok := p.(*Content)
		require.True(t, ok, "%s should be content, got %T", path, p)
		assert.Equal(t, []byte(body), c.Body)
		assert.Equal(t, DefaultContentStatus, c.Status)
		assert.Equal(t, DefaultHeaders(), c.Headers)
		assert.Empty(t, c.Credentials())
	}
}

func TestNewTable_ShorthandEqualsExplicitContent(t *testing.T) {
	table, err := NewTable(Pages{
		"/a": "body",
		"/b": &Content{Body: []byte("body")},
		"/c": Content{Body: []byte("body"), Status: 200, Headers: DefaultHeaders()},
	})
	require.NoError(t, err)

	a, _ := table.Lookup("/a")
	b, _ := table.Lookup("/b")
	c, _ := table.Lookup("/c")
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}

func TestNewTable_Defaults(t *testing.T) {
	table, err := NewTable(Pages{
		"/redirect": &Redirect{Target: "/bar"},
		"/see":      Redirect{Target: "/bar", Status: 303},
		"/cb":       &Callback{Handler: okCallback, Auth: "user:password"},
		"/fn":       CallbackFunc(okCallback),
		"/plain":    okCallback,
	})
	require.NoError(t, err)

	p, _ := table.Lookup("/redirect")
	assert.Equal(t, DefaultRedirectStatus, p.(*Redirect).Status)
	assert.Equal(t, KindRedirect, p.Kind())

	p, _ = table.Lookup("/see")
	assert.Equal(t, 303, p.(*Redirect).Status)

	p, _ = table.Lookup("/cb")
	assert.Equal(t, KindCallback, p.Kind())
	assert.Equal(t, "user:password", p.Credentials())

	for _, path := range []string{"/fn", "/plain"} {
		p, ok := table.Lookup(path)
		require.True(t, ok)
		assert.Equal(t, KindCallback, p.Kind())
	}
}

func TestNewTable_DoesNotAliasInput(t *testing.T) {
	in := &Content{Body: []byte("x"), Headers: []Header{{"X-A", "1"}}}
	table, err := NewTable(Pages{"/x": in})
	require.NoError(t, err)

	in.Headers[0].Value = "2"
	in.Status = 500

	p, _ := table.Lookup("/x")
	assert.Equal(t, "1", p.(*Content).Headers[0].Value)
	assert.Equal(t, 200, p.(*Content).Status)
}

func TestNewTable_Errors(t *testing.T) {
	tests := []struct {
		name  string
		pages Pages
	}{
		{"empty path", Pages{"": "x"}},
		{"query in path", Pages{"/foo?x=1": "x"}},
		{"fragment in path", Pages{"/foo#top": "x"}},
		{"collision after prefixing", Pages{"foo": "a", "/foo": "b"}},
		{"unsupported type", Pages{"/x": 42}},
		{"nil content", Pages{"/x": (*Content)(nil)}},
		{"redirect without target", Pages{"/x": &Redirect{}}},
		{"callback without handler", Pages{"/x": &Callback{}}},
		{"invalid status", Pages{"/x": &Content{Status: 42}}},
		{"invalid auth", Pages{"/x": &Content{Auth: "nopassword"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewTable(tt.pages)
			assert.Nil(t, table)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestTable_Lookup(t *testing.T) {
	table, err := NewTable(Pages{
		"foo":   "no slash",
		"/bar":  "bar",
		"/bar/": "bar dir",
	})
	require.NoError(t, err)

	assert.True(t, table.Has("/foo"))
	assert.True(t, table.Has("/foo?x=1"))
	assert.True(t, table.Has("/foo#frag"))
	assert.True(t, table.Has("/foo?x=1#frag"))
	assert.False(t, table.Has("foo"))
	assert.False(t, table.Has("/missing"))

	bar, _ := table.Lookup("/bar")
	barDir, _ := table.Lookup("/bar/")
	assert.Equal(t, []byte("bar"), bar.(*Content).Body)
	assert.Equal(t, []byte("bar dir"), barDir.(*Content).Body)

	assert.Equal(t, []string{"/bar", "/bar/", "/foo"}, table.Paths())
	assert.Equal(t, 3, table.Len())
}

func TestNewTable_Empty(t *testing.T) {
	table, err := NewTable(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
	assert.Empty(t, table.Paths())
}

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader("Content-Type:  text/plain ")
	require.NoError(t, err)
	assert.Equal(t, Header{Name: "Content-Type", Value: "text/plain"}, h)
	assert.Equal(t, "Content-Type: text/plain", h.String())

	h, err = ParseHeader("X-Time: 12:30")
	require.NoError(t, err)
	assert.Equal(t, "12:30", h.Value)

	_, err = ParseHeader("no colon")
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = ParseHeader(": empty name")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestShorthandConstructors(t *testing.T) {
	assert.Equal(t, []byte("<b>hi</b>"), HTML("<b>hi</b>").Body)
	assert.Nil(t, HTML("x").Headers)

	text := Text("hi")
	assert.Equal(t, []Header{{"Content-Type", "text/plain"}}, text.Headers)
}
