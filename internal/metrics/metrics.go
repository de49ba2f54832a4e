// Package metrics provides Prometheus instrumentation for the simulator.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal counts mark-price ticks consumed from the feed.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrade_ticks_total",
		Help: "Total number of mark price ticks processed",
	})

	// LastPrice tracks the latest mark price (informational; money math
	// stays in decimal).
	LastPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrade_last_price",
		Help: "Last observed mark price",
	})

	// FillsTotal counts executed fills, partitioned by side.
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_fills_total",
		Help: "Total number of fills executed",
	}, []string{"side"})

	// LiquidationsTotal counts forced liquidations.
	LiquidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrade_liquidations_total",
		Help: "Total number of forced liquidations",
	})

	// OrdersSubmitted counts accepted order submissions.
	OrdersSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrade_orders_submitted_total",
		Help: "Total number of orders submitted",
	})

	// OrdersCancelled counts explicit order cancellations.
	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrade_orders_cancelled_total",
		Help: "Total number of orders cancelled by clients",
	})

	// OpenOrders tracks the number of currently Open orders.
	OpenOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrade_open_orders",
		Help: "Number of currently open orders",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrade_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "papertrade_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small and
		// fixed, so cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
