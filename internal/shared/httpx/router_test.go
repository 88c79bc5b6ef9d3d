package httpx_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/k1networth/servicedesk-lite/internal/shared/httpx"
)

func testLogger() *slog.Logger {
	h := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(h).With(
		slog.String("app", "test"),
		slog.String("env", "test"),
	)
}

// echoRoutes exposes one open and one protected route.
type echoRoutes struct{}

func (echoRoutes) Register(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.Handle("GET /open/{id}", httpx.WithRoute("/open/{id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"id": r.PathValue("id")})
	})))
	mux.Handle("GET /closed", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))
}

func denyAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, r, http.StatusUnauthorized, httpx.CodeUnauthorized, "Not authorized")
	})
}

func newRouterForTest(cfg httpx.RouterConfig) http.Handler {
	return httpx.NewRouter(testLogger(), cfg, echoRoutes{})
}

func TestHealthzReturns200AndBodyOK(t *testing.T) {
	srv := httptest.NewServer(newRouterForTest(httpx.RouterConfig{}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	require.Equal(t, "ok", string(b))
}

func TestReadyzReportsFailure(t *testing.T) {
	srv := httptest.NewServer(newRouterForTest(httpx.RouterConfig{
		Ready: func(*http.Request) error { return errors.New("db down") },
	}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRequestIDGeneratedIfMissing(t *testing.T) {
	srv := httptest.NewServer(newRouterForTest(httpx.RouterConfig{}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	got := resp.Header.Get("X-Request-Id")
	require.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), got)
}

func TestRequestIDPreservedIfProvided(t *testing.T) {
	srv := httptest.NewServer(newRouterForTest(httpx.RouterConfig{}))
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "test123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, "test123", resp.Header.Get("X-Request-Id"))
}

func TestRequestIDReplacedIfTooLong(t *testing.T) {
	srv := httptest.NewServer(newRouterForTest(httpx.RouterConfig{}))
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", strings.Repeat("x", 200))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Len(t, resp.Header.Get("X-Request-Id"), 32)
}

func TestProtectWrapsProtectedRoutesOnly(t *testing.T) {
	srv := httptest.NewServer(newRouterForTest(httpx.RouterConfig{Protect: denyAll}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/closed")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var er httpx.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&er))
	require.Equal(t, httpx.CodeUnauthorized, er.Error.Code)
	require.Equal(t, "Not authorized", er.Error.Message)
	require.Equal(t, resp.Header.Get("X-Request-Id"), er.Error.RequestID)

	open, err := http.Get(srv.URL + "/open/42")
	require.NoError(t, err)
	defer func() { _ = open.Body.Close() }()
	require.Equal(t, http.StatusOK, open.StatusCode)
}

func TestMetricsUseRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := httpx.NewMetrics(reg)
	srv := httptest.NewServer(newRouterForTest(httpx.RouterConfig{Metrics: m, Gatherer: reg}))
	t.Cleanup(srv.Close)

	for _, id := range []string{"1", "2", "3"} {
		resp, err := http.Get(srv.URL + "/open/" + id)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	expected := `
# HELP http_requests_total Total number of HTTP requests.
# TYPE http_requests_total counter
http_requests_total{method="GET",route="/open/{id}",status="200"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "http_requests_total"))
}
