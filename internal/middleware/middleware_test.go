package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRequestIDReusesHeader(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-Id", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "abc" || rec.Header().Get("X-Request-Id") != "abc" {
		t.Fatalf("expected request id abc, got %q / %q", seen, rec.Header().Get("X-Request-Id"))
	}
}

func TestRequestIDGenerated(t *testing.T) {
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(rec.Header().Get("X-Request-Id")) != 36 {
		t.Fatalf("expected generated uuid, got %q", rec.Header().Get("X-Request-Id"))
	}
}

func TestTelemetryGroupsByRoutePattern(t *testing.T) {
	tel := NewTelemetry(nil)
	r := chi.NewRouter()
	r.Use(tel.Middleware)
	r.Get("/api/cart/lines/{lineId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/cart/lines/"+id, nil))
	}

	routes := tel.Routes()
	if len(routes) != 1 {
		t.Fatalf("expected one route, got %v", routes)
	}
	if routes[0].Route != "GET /api/cart/lines/{lineId}" || routes[0].Count != 3 {
		t.Fatalf("unexpected summary %+v", routes[0])
	}
}

func TestPercentile(t *testing.T) {
	values := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(values, 0.5); got != 5 {
		t.Fatalf("p50: expected 5, got %d", got)
	}
	if got := percentile(values, 0.95); got != 10 {
		t.Fatalf("p95: expected 10, got %d", got)
	}
	if got := percentile(nil, 0.5); got != 0 {
		t.Fatalf("empty: expected 0, got %d", got)
	}
}
