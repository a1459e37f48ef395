package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/synaptica-ai/capacity-planner/pkg/common/logger"
	"github.com/synaptica-ai/capacity-planner/pkg/observability/metrics"
)

func newRouter(t *testing.T) (*mux.Router, *metrics.Collector) {
	t.Helper()
	logger.Silence()
	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	r := mux.NewRouter()
	r.Use(Logging(collector))
	r.Use(Recovery)
	r.HandleFunc("/plans/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)
	r.HandleFunc("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}).Methods(http.MethodGet)
	return r, collector
}

func TestLoggingAssignsRequestID(t *testing.T) {
	r, collector := newRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/plans/abc", nil))
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected a generated request id")
	}
	if got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("/plans/{id}", "GET", "404")); got != 1 {
		t.Fatalf("request counter = %v, want 1", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/plans/abc", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Header().Get(RequestIDHeader) != "req-42" {
		t.Fatalf("request id = %q, want req-42", rr.Header().Get(RequestIDHeader))
	}
}

func TestRecoveryReturns500(t *testing.T) {
	r, collector := newRouter(t)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("/panic", "GET", "500")); got != 1 {
		t.Fatalf("request counter = %v, want 1", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/projections", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Headers"), "X-Planner-Session") {
		t.Fatalf("session header not allowed: %q", rr.Header().Get("Access-Control-Allow-Headers"))
	}
}

func TestBodyLimit(t *testing.T) {
	var readErr error
	h := BodyLimit(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 16)
		_, readErr = r.Body.Read(buf)
		for readErr == nil {
			_, readErr = r.Body.Read(buf)
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/plans", strings.NewReader("0123456789")))
	if readErr == nil || readErr.Error() != "http: request body too large" {
		t.Fatalf("expected body limit error, got %v", readErr)
	}
}
