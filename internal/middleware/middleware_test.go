package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	if generated == "" || w.Body.String() != generated {
		t.Fatalf("header %q body %q", generated, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	if got := serve(r, req).Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("incoming id not propagated: %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 100))
	if got := serve(r, req).Header().Get(RequestIDHeader); len(got) > 64 {
		t.Errorf("oversized id should be replaced, got %d chars", len(got))
	}
}

func TestRateLimit(t *testing.T) {
	m := metrics.NewCollector("test")
	r := gin.New()
	r.Use(RateLimit("auth", PerMinute(2), 2, m))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":1234"
		return serve(r, req)
	}

	for i := range 2 {
		if w := send("10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, w.Code)
		}
	}
	w := send("10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if w := send("10.0.0.2"); w.Code != http.StatusOK {
		t.Errorf("other clients have their own bucket: %d", w.Code)
	}
}

func TestLimiterStore_EvictsIdle(t *testing.T) {
	s := newLimiterStore(rate.Inf, 1)
	start := s.lastSweep
	s.get("a", start)
	s.get("b", start.Add(limiterIdleTTL))
	s.get("b", start.Add(limiterIdleTTL+2*limiterIdleTTL/3))
	s.get("c", start.Add(2*limiterIdleTTL+time.Second))

	if _, ok := s.entries["a"]; ok {
		t.Error("idle entry survived the sweep")
	}
	if _, ok := s.entries["b"]; !ok {
		t.Error("recently used entry was evicted")
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "kaboom") {
		t.Error("panic value leaked to the client")
	}
}

func TestMetricsAndAccessLog(t *testing.T) {
	m := metrics.NewCollector("test")
	r := gin.New()
	r.Use(RequestID(), AccessLog(zap.NewNop()), Metrics(m))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	serve(r, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), `test_http_requests_total{method="GET",path="/items/:id",status="204"} 1`) {
		t.Errorf("route template not used as label:\n%s", body)
	}
}
