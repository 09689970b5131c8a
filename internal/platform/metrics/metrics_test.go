package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveStore(t *testing.T) {
	m := New()
	m.ObserveStore("insert", time.Now(), nil)
	m.ObserveStore("insert", time.Now(), errors.New("boom"))
	m.ObserveStore("insert", time.Now(), nil)

	if got := testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("insert", "ok")); got != 2 {
		t.Fatalf("expected 2 ok inserts, got %v", got)
	}
	if got := testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("insert", "error")); got != 1 {
		t.Fatalf("expected 1 failed insert, got %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveStore("query", time.Now(), nil)
	m.CacheLookup(true)
}

func TestHandler(t *testing.T) {
	m := New()
	m.CacheLookup(false)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "comments_cache_lookups_total") {
		t.Fatal("expected cache metric in output")
	}
}

func TestMiddleware(t *testing.T) {
	m := New()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "200")); got != 1 {
		t.Fatalf("expected 1 GET 200, got %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "201")); got != 1 {
		t.Fatalf("expected 1 POST 201, got %v", got)
	}
}
