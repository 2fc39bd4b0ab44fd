package dispatch

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/hashserver/pkg/metrics"
	"github.com/getmockd/hashserver/pkg/page"
	"github.com/getmockd/hashserver/pkg/request"
)

func newDispatcher(t *testing.T, pages page.Pages, opts ...Option) *Dispatcher {
	t.Helper()
	table, err := page.NewTable(pages)
	require.NoError(t, err)
	return New(table, opts...)
}

func basicAuth(creds string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

func TestDispatch_Static(t *testing.T) {
	d := newDispatcher(t, page.Pages{
		"/":     "home",
		"/foo":  []byte("foo"),
		"/bar":  &page.Content{Body: []byte("<html>bar</html>"), Headers: []page.Header{{Name: "Content-Type", Value: "text/html"}}},
		"/bar2": &page.Content{Body: []byte("bar2"), Headers: []page.Header{{Name: "Content-Type", Value: "text/html"}, {Name: "X-Media-Cloud", Value: "yes"}}},
		"/gone": &page.Content{Body: []byte("gone"), Status: 410},
	})

	tests := []struct {
		path    string
		status  int
		headers []page.Header
		body    string
	}{
		{"/", 200, page.DefaultHeaders(), "home"},
		{"/foo", 200, page.DefaultHeaders(), "foo"},
		{"/foo?x=1", 200, page.DefaultHeaders(), "foo"},
		{"/bar", 200, []page.Header{{Name: "Content-Type", Value: "text/html"}}, "<html>bar</html>"},
		{"/bar2", 200, []page.Header{{Name: "Content-Type", Value: "text/html"}, {Name: "X-Media-Cloud", Value: "yes"}}, "bar2"},
		{"/gone", 410, page.DefaultHeaders(), "gone"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := d.Dispatch(context.Background(), httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.headers, resp.Headers)
			assert.Equal(t, tt.body, string(resp.Body))
		})
	}
}

func TestDispatch_BinaryBodyVerbatim(t *testing.T) {
	body := []byte{0xcf, 0xf0, 0xe8, 0xe2, 0xe5, 0xf2, 0x00, 0xff}
	d := newDispatcher(t, page.Pages{
		"/cp1251": &page.Content{Body: body, Headers: []page.Header{{Name: "Content-Type", Value: "text/plain; charset=windows-1251"}}},
	})

	resp, err := d.Dispatch(context.Background(), httptest.NewRequest(http.MethodGet, "/cp1251", nil))
	require.NoError(t, err)
	assert.Equal(t, body, resp.Body)
	assert.True(t, strings.HasSuffix(string(resp.Bytes()), string(body)))
}

func TestDispatch_NotFound(t *testing.T) {
	d := newDispatcher(t, page.Pages{"/exists": "x"})

	for _, path := range []string{"/", "/missing", "/exists/", "/EXISTS"} {
		t.Run(path, func(t *testing.T) {
			resp, err := d.Dispatch(context.Background(), httptest.NewRequest(http.MethodGet, path, nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusNotFound, resp.Status)
			assert.Equal(t, []page.Header{{Name: "Content-Type", Value: "text/plain"}}, resp.Headers)
			assert.Equal(t, NotFoundBody, string(resp.Body))
		})
	}
}

func TestDispatch_Redirect(t *testing.T) {
	d := newDispatcher(t, page.Pages{
		"/foo-bar": &page.Redirect{Target: "/bar"},
		"/127-foo": &page.Redirect{Target: "http://127.0.0.1:8080/foo", Status: 303},
	})

	resp, err := d.Dispatch(context.Background(), httptest.NewRequest(http.MethodGet, "/foo-bar", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusMovedPermanently, resp.Status)
	loc, ok := resp.Header("Location")
	assert.True(t, ok)
	assert.Equal(t, "/bar", loc)
	ct, _ := resp.Header("content-type")
	assert.Equal(t, "text/html; charset=UTF-8", ct)
	assert.Equal(t, RedirectingBody, string(resp.Body))

	resp, err = d.Dispatch(context.Background(), httptest.NewRequest(http.MethodGet, "/127-foo", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, resp.Status)
	loc, _ = resp.Header("Location")
	assert.Equal(t, "http://127.0.0.1:8080/foo", loc)
}

func TestDispatch_Auth(t *testing.T) {
	d := newDispatcher(t, page.Pages{
		"/auth":     &page.Content{Body: []byte("secret"), Auth: "user:password"},
		"/auth-cb":  &page.Callback{Auth: "user:password", Handler: func(*request.Request) ([]byte, error) { return []byte("HTTP/1.0 200 OK\r\n\r\ncb"), nil }},
		"/auth-red": &page.Redirect{Target: "/x", Auth: "user:password"},
	})

	tests := []struct {
		name   string
		header string
		ok     bool
	}{
		{"missing", "", false},
		{"wrong password", basicAuth("user:wrong"), false},
		{"case differs", basicAuth("USER:password"), false},
		{"not basic", "Bearer abc", false},
		{"lowercase scheme", "basic " + base64.StdEncoding.EncodeToString([]byte("user:password")), false},
		{"empty credentials", "Basic ", false},
		{"bad base64", "Basic !!!", false},
		{"exact", basicAuth("user:password"), true},
	}

	for _, path := range []string{"/auth", "/auth-cb", "/auth-red"} {
		for _, tt := range tests {
			t.Run(path+"/"+tt.name, func(t *testing.T) {
				r := httptest.NewRequest(http.MethodGet, path, nil)
				if tt.header != "" {
					r.Header.Set("Authorization", tt.header)
				}
				resp, err := d.Dispatch(context.Background(), r)
				require.NoError(t, err)

				if !tt.ok {
					assert.Equal(t, http.StatusUnauthorized, resp.Status)
					assert.Equal(t, []page.Header{{Name: "WWW-Authenticate", Value: `Basic realm="HashServer"`}}, resp.Headers)
					assert.Empty(t, resp.Body)
					return
				}
				assert.NotEqual(t, http.StatusUnauthorized, resp.Status)
			})
		}
	}
}

func TestDispatch_Callback(t *testing.T) {
	d := newDispatcher(t, page.Pages{
		"/callback": func(*request.Request) ([]byte, error) {
			return []byte("HTTP/1.0 200 OK\r\nContent-Type: text/plain\r\n\r\nhello"), nil
		},
	})

	resp, err := d.Dispatch(context.Background(), httptest.NewRequest(http.MethodGet, "/callback", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "OK", resp.Reason)
	assert.Equal(t, []page.Header{{Name: "Content-Type", Value: "text/plain"}}, resp.Headers)
	assert.Equal(t, "hello", string(resp.Body))
	assert.Equal(t, "HTTP/1.0 200 OK\r\nContent-Type: text/plain\r\n\r\nhello", string(resp.Bytes()))
}

func TestDispatch_CallbackRequestView(t *testing.T) {
	var got *request.Request
	var gotContent string
	var hasContent bool

	d := newDispatcher(t, page.Pages{
		"/echo": func(req *request.Request) ([]byte, error) {
			got = req
			gotContent, hasContent = req.Content()
			return []byte("HTTP/1.0 201 Created\r\n\r\n"), nil
		},
	}, WithAddress("127.0.0.1", 9999))

	r := httptest.NewRequest(http.MethodPost, "/echo?a=1&b=2", strings.NewReader("payload"))
	r.Header.Set("Content-Type", "text/plain")
	r.Header.Set("Cookie", "session=abc")
	r.Header.Add("X-Dup", "first")
	r.Header.Add("X-Dup", "second")

	resp, err := d.Dispatch(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, "HTTP/1.0 201 Created\r\n\r\n", string(resp.Bytes()))

	require.NotNil(t, got)
	assert.Equal(t, "POST", got.Method())
	assert.Equal(t, "/echo?a=1&b=2", got.Path())
	assert.Equal(t, "http://127.0.0.1:9999/echo?a=1&b=2", got.URL())
	assert.Equal(t, "text/plain", got.ContentType())
	assert.Equal(t, "second", got.Header("x-dup"))
	assert.Equal(t, "example.com", got.Header("Host"))
	assert.Equal(t, map[string]string{"session": "abc"}, got.Cookies())
	assert.Equal(t, "2", got.QueryParam("b"))
	assert.NotEmpty(t, got.ID())
	assert.True(t, hasContent)
	assert.Equal(t, "payload", gotContent)
}

func TestDispatch_CallbackGetHasNoContent(t *testing.T) {
	var hasContent bool
	d := newDispatcher(t, page.Pages{
		"/cb": func(req *request.Request) ([]byte, error) {
			_, hasContent = req.Content()
			return []byte("\r\n\r\n"), nil
		},
	})

	resp, err := d.Dispatch(context.Background(), httptest.NewRequest(http.MethodGet, "/cb", nil))
	require.NoError(t, err)
	assert.False(t, hasContent)
	// no status line means 200 OK
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "HTTP/1.0 200 OK", resp.StatusLine())
}

func TestDispatch_CallbackErrors(t *testing.T) {
	boom := errors.New("boom")
	d := newDispatcher(t, page.Pages{
		"/no-separator": func(*request.Request) ([]byte, error) { return []byte("HTTP/1.0 200 OK\r\nhello"), nil },
		"/fails":        func(*request.Request) ([]byte, error) { return nil, boom },
		"/panics":       func(*request.Request) ([]byte, error) { panic("kaboom") },
	})

	_, err := d.Dispatch(context.Background(), httptest.NewRequest(http.MethodGet, "/no-separator", nil))
	assert.ErrorIs(t, err, ErrMalformedCallbackResponse)
	assert.ErrorIs(t, err, page.ErrConfiguration)

	_, err = d.Dispatch(context.Background(), httptest.NewRequest(http.MethodGet, "/fails", nil))
	assert.ErrorIs(t, err, ErrCallbackFailed)
	assert.ErrorIs(t, err, boom)

	_, err = d.Dispatch(context.Background(), httptest.NewRequest(http.MethodGet, "/panics", nil))
	assert.ErrorIs(t, err, ErrCallbackFailed)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestDispatch_CallbackCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	d := newDispatcher(t, page.Pages{
		"/slow": func(*request.Request) ([]byte, error) {
			<-release
			return []byte("HTTP/1.0 200 OK\r\n\r\n"), nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := d.Dispatch(ctx, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDispatch_Metrics(t *testing.T) {
	m, err := metrics.New(nil)
	require.NoError(t, err)
	d := newDispatcher(t, page.Pages{
		"/ok":  "ok",
		"/bad": func(*request.Request) ([]byte, error) { return []byte("no separator"), nil },
	}, WithMetrics(m))

	for _, path := range []string{"/ok", "/ok", "/missing", "/bad"} {
		_, _ = d.Dispatch(context.Background(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Responses.WithLabelValues(metrics.KindContent, "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Responses.WithLabelValues(metrics.KindNotFound, "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Responses.WithLabelValues(metrics.KindError, "500")))
}

func TestDispatch_UnsupportedMethod(t *testing.T) {
	d := newDispatcher(t, page.Pages{"/": "home"})

	for _, method := range []string{http.MethodDelete, http.MethodPut, http.MethodHead} {
		t.Run(method, func(t *testing.T) {
			resp, err := d.Dispatch(context.Background(), httptest.NewRequest(method, "/", nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusNotImplemented, resp.Status)
			assert.Equal(t, kindNotImplemented, resp.Kind)
			assert.Contains(t, string(resp.Body), method)
		})
	}

	resp, err := d.Dispatch(context.Background(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestDispatch_CancelledCallbackNotRecorded(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	m, err := metrics.New(nil)
	require.NoError(t, err)
	d := newDispatcher(t, page.Pages{
		"/slow": func(*request.Request) ([]byte, error) {
			<-release
			return []byte("HTTP/1.0 200 OK\r\n\r\n"), nil
		},
	}, WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = d.Dispatch(ctx, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.ErrorIs(t, err, context.Canceled)

	count, err := testutil.GatherAndCount(m.Gatherer(), "hashserver_responses_total")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
