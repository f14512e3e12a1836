package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveQuery_CountsByOutcome(t *testing.T) {
	m := NewMetrics("test")
	m.ObserveQuery("list", "ok", 5*time.Millisecond)
	m.ObserveQuery("list", "ok", 7*time.Millisecond)
	m.ObserveQuery("count", "execution_error", time.Millisecond)

	if got := testutil.ToFloat64(m.queries.WithLabelValues("list", "ok")); got != 2 {
		t.Errorf("expected 2 ok list queries, got %v", got)
	}
	if got := testutil.ToFloat64(m.queries.WithLabelValues("count", "execution_error")); got != 1 {
		t.Errorf("expected 1 failed count query, got %v", got)
	}
}

func TestObserveQuery_NilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveQuery("list", "ok", time.Millisecond)
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := NewMetrics("test")
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/search/:id", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/fail", func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound, "nope") })
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })

	for _, path := range []string{"/search/a", "/search/b", "/fail", "/boom"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/search/:id", "200")); got != 2 {
		t.Errorf("expected 2 requests on the route pattern, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/fail", "404")); got != 1 {
		t.Errorf("expected 1 not found request, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Errorf("expected 1 internal error request, got %v", got)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := NewMetrics("test")
	m.ObserveQuery("fetch", "ok", time.Millisecond)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := m.Handler()(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `test_queries_total{operation="fetch",outcome="ok"} 1`) {
		t.Errorf("expected query counter in exposition, got:\n%s", rec.Body.String())
	}
}
