package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-aspect-cache/aspect"
	"github.com/goliatone/go-aspect-cache/failure"
	"github.com/goliatone/go-aspect-cache/pkg/di"
)

type testHost struct {
	handler   http.Handler
	quotes    *quoteService
	container *di.Container
}

func newTestHost(t *testing.T) *testHost {
	t.Helper()

	container, err := di.NewContainerWithDefaults(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	quotes := newQuoteService(container, defaultCatalog(), time.Millisecond)
	handler := newRouter(routerDeps{
		Layer:       container.FailureLayer(),
		Quotes:      quotes,
		Interceptor: container.Interceptor(),
		Metrics:     promhttp.HandlerFor(container.Registry(), promhttp.HandlerOpts{}),
	})

	return &testHost{handler: handler, quotes: quotes, container: container}
}

func (h *testHost) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *testHost) get(path string) *httptest.ResponseRecorder {
	return h.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func TestQuote_CachedAfterFirstRequest(t *testing.T) {
	host := newTestHost(t)

	for i := 0; i < 3; i++ {
		rec := host.get("/quotes/2")
		require.Equal(t, http.StatusOK, rec.Code)

		var q Quote
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
		assert.Equal(t, "Grace Hopper", q.Author)
		assert.NotEmpty(t, rec.Header().Get(failure.RequestIDHeader))
	}

	assert.Equal(t, int64(1), host.quotes.Fetches())
}

func TestQuoteAsync_CachedAfterFirstRequest(t *testing.T) {
	host := newTestHost(t)

	for i := 0; i < 2; i++ {
		rec := host.get("/quotes/4/async")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Simplicity")
	}

	assert.Equal(t, int64(1), host.quotes.Fetches())
}

func TestQuote_InvalidIDRedirectsBack(t *testing.T) {
	host := newTestHost(t)

	rec := host.get("/quotes/abc")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/quotes/abc", rec.Header().Get("Location"))
	assert.Zero(t, host.quotes.Fetches())
}

func TestQuote_NotFoundRedirectsToErrorPage(t *testing.T) {
	host := newTestHost(t)

	rec := host.get("/quotes/999")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, failure.DefaultErrorPath, rec.Header().Get("Location"))

	// failures are not cached
	host.get("/quotes/999")
	assert.Equal(t, int64(2), host.quotes.Fetches())

	page := host.get(failure.DefaultErrorPath)
	assert.Equal(t, http.StatusNotFound, page.Code)
}

func TestQuote_CancelledRequest(t *testing.T) {
	host := newTestHost(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := host.do(httptest.NewRequest(http.MethodGet, "/quotes/1", nil).WithContext(ctx))

	assert.Equal(t, failure.StatusClientClosedRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))

	// nothing was stored for the cancelled call
	ok := host.get("/quotes/1")
	require.Equal(t, http.StatusOK, ok.Code)
}

func TestQuotesByAuthor(t *testing.T) {
	host := newTestHost(t)

	rec := host.get("/quotes?author=grace+hopper")
	require.Equal(t, http.StatusOK, rec.Code)

	var quotes []Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quotes))
	require.Len(t, quotes, 2)
	assert.Equal(t, 2, quotes[0].ID)
	assert.Equal(t, 3, quotes[1].ID)

	// author matching is case insensitive, so both spellings share one entry
	host.get("/quotes?author=Grace+Hopper")
	assert.Equal(t, int64(1), host.quotes.Fetches())

	// without an author the search form is served, never a redirect back to itself
	for _, path := range []string{"/quotes", "/quotes/", "/quotes/?author=+"} {
		form := host.get(path)
		assert.Equal(t, http.StatusOK, form.Code, path)
		assert.Empty(t, form.Header().Get("Location"), path)
		assert.Contains(t, form.Body.String(), `name="author"`, path)
	}
	assert.Equal(t, int64(1), host.quotes.Fetches())
}

func TestSignup(t *testing.T) {
	host := newTestHost(t)

	tests := []struct {
		name         string
		form         url.Values
		wantStatus   int
		wantLocation string
	}{
		{
			name:       "valid",
			form:       url.Values{"name": {"Ada"}, "email": {"ada@example.com"}},
			wantStatus: http.StatusCreated,
		},
		{
			name:         "missing email",
			form:         url.Values{"name": {"Ada"}},
			wantStatus:   http.StatusFound,
			wantLocation: "/signup",
		},
		{
			name:         "malformed email",
			form:         url.Values{"name": {"Ada"}, "email": {"not-an-email"}},
			wantStatus:   http.StatusFound,
			wantLocation: "/signup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			rec := host.do(req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
		})
	}

	form := host.get("/signup")
	assert.Equal(t, http.StatusOK, form.Code)
	assert.Contains(t, form.Body.String(), `name="email"`)
}

func TestStatsAndMetrics(t *testing.T) {
	host := newTestHost(t)

	host.get("/quotes/1")
	host.get("/quotes/1")

	rec := host.get("/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]aspect.MethodStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))

	var found bool
	for method, st := range stats {
		if strings.HasSuffix(method, ".Get") {
			found = true
			assert.Equal(t, int64(1), st.Hits)
			assert.Equal(t, int64(1), st.Misses)
		}
	}
	assert.True(t, found, "stats should include the Get method: %v", stats)

	metrics := host.get("/metrics")
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "aspect_cache_hits_total")

	health := host.get("/healthz")
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestServe_StopsWhenContextIsDone(t *testing.T) {
	cfg := testServeConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, cfg, discardLogger())
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}

func TestConfigCommand_PrintsEffectiveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aspect.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":9090\"\n"), 0o644))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "--config", path, "--env-file", filepath.Join(t.TempDir(), "missing.env")})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), ":9090")
	assert.Contains(t, out.String(), "error_path: /ErrorPage/Error404")
}

func TestConfigCommand_MissingFile(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"config", "--config", filepath.Join(t.TempDir(), "absent.yaml")})

	assert.Error(t, root.Execute())
}
