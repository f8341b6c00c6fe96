package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html><html lang="en"><head><title>Notes</title></head>` +
	`<body><main><p>Hello world</p></main></body></html>`

func newTestFetcher(opts Options) *Fetcher {
	logger, _ := logrustest.NewNullLogger()
	opts.AllowPrivate = true
	if opts.CrawlDelay == 0 {
		opts.CrawlDelay = 10 * time.Millisecond
	}
	return New(opts, logger)
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		allowed bool
	}{
		{"https://example.com/post", true},
		{"http://example.com:8080/a?b=c", true},
		{"ftp://example.com/file", false},
		{"file:///etc/passwd", false},
		{"http://localhost/admin", false},
		{"http://api.localhost/", false},
		{"http://127.0.0.1:8080/", false},
		{"http://10.1.2.3/", false},
		{"http://192.168.0.10/", false},
		{"http://172.16.5.4/", false},
		{"http://169.254.169.254/latest/meta-data", false},
		{"http://[::1]/", false},
		{"http://0.0.0.0/", false},
		{"/relative/path", false},
	}
	for _, tt := range tests {
		_, err := ValidateURL(tt.url, false)
		if tt.allowed {
			assert.NoError(t, err, tt.url)
		} else {
			assert.ErrorIs(t, err, ErrBlockedURL, tt.url)
		}
	}
}

func TestValidateURL_AllowPrivate(t *testing.T) {
	_, err := ValidateURL("http://127.0.0.1:8080/", true)
	assert.NoError(t, err)

	_, err = ValidateURL("ftp://127.0.0.1/", true)
	assert.ErrorIs(t, err, ErrBlockedURL)
}

func TestFetch_ReturnsPageAndCaches(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, samplePage)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestFetcher(Options{})
	page, err := f.Fetch(context.Background(), srv.URL+"/post")
	require.NoError(t, err)
	assert.Equal(t, samplePage, page.HTML)
	assert.Equal(t, srv.URL+"/post", page.FinalURL)
	assert.Contains(t, page.ContentType, "text/html")

	again, err := f.Fetch(context.Background(), srv.URL+"/post")
	require.NoError(t, err)
	assert.Same(t, page, again)
	assert.EqualValues(t, 1, hits.Load())
}

func TestFetch_FollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, samplePage)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := newTestFetcher(Options{}).Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/old", page.URL)
	assert.Equal(t, srv.URL+"/new", page.FinalURL)
}

func TestFetch_RobotsDisallow(t *testing.T) {
	var pageHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pageHits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, samplePage)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestFetcher(Options{})
	_, err := f.Fetch(context.Background(), srv.URL+"/private/page")
	require.ErrorIs(t, err, ErrDisallowedByRobots)
	assert.Zero(t, pageHits.Load())

	_, err = f.Fetch(context.Background(), srv.URL+"/public")
	require.NoError(t, err)
	assert.EqualValues(t, 1, pageHits.Load())

	ignoring := newTestFetcher(Options{IgnoreRobots: true})
	_, err = ignoring.Fetch(context.Background(), srv.URL+"/private/page")
	require.NoError(t, err)
}

func TestFetch_RobotsServerErrorDisallows(t *testing.T) {
	var pageHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pageHits.Add(1)
		_, _ = io.WriteString(w, samplePage)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := newTestFetcher(Options{}).Fetch(context.Background(), srv.URL+"/post")
	assert.ErrorIs(t, err, ErrDisallowedByRobots)
	assert.Zero(t, pageHits.Load())
}

func TestRobotsChecker_CacheLifetime(t *testing.T) {
	logger, _ := logrustest.NewNullLogger()

	t.Run("missing robots.txt allows for a day", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()
		u, err := url.Parse(srv.URL + "/post")
		require.NoError(t, err)

		rc := NewRobotsChecker(srv.Client(), "pagetrans-test", time.Second, logger)
		allowed, _ := rc.CanFetch(context.Background(), u)
		assert.True(t, allowed)

		_, expires, found := rc.cache.GetWithExpiration(srv.URL)
		require.True(t, found)
		assert.True(t, expires.After(time.Now().Add(time.Hour)))
	})

	t.Run("unreachable host is retried soon", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		origin := dead.URL
		dead.Close()
		u, err := url.Parse(origin + "/post")
		require.NoError(t, err)

		rc := NewRobotsChecker(&http.Client{}, "pagetrans-test", time.Second, logger)
		allowed, _ := rc.CanFetch(context.Background(), u)
		assert.True(t, allowed)

		_, expires, found := rc.cache.GetWithExpiration(origin)
		require.True(t, found)
		assert.True(t, expires.Before(time.Now().Add(robotsFailureTTL+time.Second)))
	})

	t.Run("server error is retried soon", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		u, err := url.Parse(srv.URL + "/post")
		require.NoError(t, err)

		rc := NewRobotsChecker(srv.Client(), "pagetrans-test", time.Second, logger)
		allowed, _ := rc.CanFetch(context.Background(), u)
		assert.False(t, allowed)

		_, expires, found := rc.cache.GetWithExpiration(srv.URL)
		require.True(t, found)
		assert.True(t, expires.Before(time.Now().Add(robotsFailureTTL+time.Second)))
	})
}

func TestFetch_BodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html><body>"+strings.Repeat("x", 4096)+"</body></html>")
	}))
	defer srv.Close()

	_, err := newTestFetcher(Options{MaxBodySize: 1024}).Fetch(context.Background(), srv.URL+"/big")
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestFetch_RejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"a":1}`)
	}))
	defer srv.Close()

	_, err := newTestFetcher(Options{IgnoreRobots: true}).Fetch(context.Background(), srv.URL+"/data")
	assert.ErrorIs(t, err, ErrUnsupportedContent)
}

func TestFetch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestFetcher(Options{}).Fetch(context.Background(), srv.URL+"/missing")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestFetch_PrivateAddressBlockedByDefault(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	logger, _ := logrustest.NewNullLogger()
	_, err := New(Options{}, logger).Fetch(context.Background(), srv.URL+"/")
	assert.ErrorIs(t, err, ErrBlockedURL)
	assert.Zero(t, hits.Load())
}

func TestDomainLimiter_ReusesLimiterPerHost(t *testing.T) {
	dl := NewDomainLimiter()
	a := dl.limiter("example.com", time.Second)
	b := dl.limiter("example.com", 5*time.Second)
	c := dl.limiter("example.org", time.Second)
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.InDelta(t, 1.0, float64(a.Limit()), 1e-9)

	fast := dl.limiter("fast.example", time.Millisecond)
	assert.InDelta(t, maxDomainRate, float64(fast.Limit()), 1e-9)
	slow := dl.limiter("slow.example", time.Minute)
	assert.InDelta(t, minDomainRate, float64(slow.Limit()), 1e-9)
}
