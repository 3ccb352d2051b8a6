package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RouteUnmatched labels requests that matched no API route.
const RouteUnmatched = "unmatched"

// API request metrics, labelled by chi route pattern so ids never reach a label.
var (
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rollup",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by route pattern and status code",
		},
		[]string{"method", "route", "code"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rollup",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency by route pattern",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"method", "route"},
	)

	APIRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rollup",
		Subsystem: "api",
		Name:      "requests_in_flight",
		Help:      "API requests currently being served",
	})
)

func init() {
	prometheus.MustRegister(APIRequestsTotal, APIRequestDuration, APIRequestsInFlight)
}

// Middleware instruments API requests. Requests whose path is in skip, such as the
// health and scrape endpoints, pass through unobserved.
func Middleware(skip ...string) func(next http.Handler) http.Handler {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skipped[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			APIRequestsInFlight.Inc()
			defer APIRequestsInFlight.Dec()

			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routeLabel(r)
			APIRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			APIRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// routeLabel is read after the handler ran, when chi has filled in the matched pattern.
// A pattern ending in a mount wildcard means the subrouter found no route.
func routeLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return RouteUnmatched
	}
	p := rctx.RoutePattern()
	if p == "" || strings.HasSuffix(p, "*") {
		return RouteUnmatched
	}
	return p
}
