package middleware

import (
	"bufio"
	"fmt"
	"math"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const defaultLatencyWindow = 200

type telemetryRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *telemetryRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *telemetryRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(data)
	r.bytes += n
	return n, err
}

// Hijack keeps websocket upgrades working behind the recorder.
func (r *telemetryRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return hj.Hijack()
}

func (r *telemetryRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

type latencyWindow struct {
	samples []int64
	index   int
}

func (w *latencyWindow) add(value int64, max int) {
	if len(w.samples) < max {
		w.samples = append(w.samples, value)
		return
	}
	w.samples[w.index] = value
	w.index = (w.index + 1) % max
}

// RouteLatency summarises the recent requests of one route.
type RouteLatency struct {
	Route string `json:"route"`
	Count int    `json:"count"`
	P50ms int64  `json:"p50Ms"`
	P95ms int64  `json:"p95Ms"`
}

// Telemetry logs every request of the local API with rolling p50/p95
// latencies per route.
type Telemetry struct {
	logger *zap.Logger
	window int

	mu     sync.Mutex
	routes map[string]*latencyWindow
}

func NewTelemetry(logger *zap.Logger) *Telemetry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Telemetry{logger: logger.Named("http"), window: defaultLatencyWindow, routes: make(map[string]*latencyWindow)}
}

func (t *Telemetry) record(key string, value int64) RouteLatency {
	t.mu.Lock()
	defer t.mu.Unlock()

	win, ok := t.routes[key]
	if !ok {
		win = &latencyWindow{}
		t.routes[key] = win
	}
	win.add(value, t.window)
	return summarise(key, win.samples)
}

// Routes returns a summary per route, sorted by route.
func (t *Telemetry) Routes() []RouteLatency {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]RouteLatency, 0, len(t.routes))
	for key, win := range t.routes {
		out = append(out, summarise(key, win.samples))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

func summarise(key string, samples []int64) RouteLatency {
	values := append([]int64(nil), samples...)
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return RouteLatency{
		Route: key,
		Count: len(values),
		P50ms: percentile(values, 0.5),
		P95ms: percentile(values, 0.95),
	}
}

func percentile(values []int64, p float64) int64 {
	if len(values) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}

func (t *Telemetry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &telemetryRecorder{ResponseWriter: w}

		next.ServeHTTP(recorder, r)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)

		routePattern := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			routePattern = rc.RoutePattern()
		}
		metricKey := r.Method + " " + routePattern
		if routePattern == "" {
			metricKey = r.Method + " " + r.URL.Path
		}
		lat := t.record(metricKey, duration.Milliseconds())

		t.logger.Info(
			"http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("routePattern", routePattern),
			zap.String("requestId", RequestIDFrom(r.Context())),
			zap.Int("status", status),
			zap.Int("bytes", recorder.bytes),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.Int64("p50_ms", lat.P50ms),
			zap.Int64("p95_ms", lat.P95ms),
			zap.Bool("error", status >= 500),
			zap.Bool("clientError", status >= 400 && status < 500),
		)
	})
}
