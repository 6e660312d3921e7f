// Package metrics provides Prometheus instrumentation for the game server.
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
	// TradesTotal counts executed trades, partitioned by kind.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundbattle_trades_total",
		Help: "Total number of trades executed",
	}, []string{"kind"})

	// TradesRejected counts trades rejected by input validation.
	TradesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundbattle_trades_rejected_total",
		Help: "Trades rejected as invalid",
	})

	// DayAdvances counts simulated-day increments across all rooms.
	DayAdvances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundbattle_day_advances_total",
		Help: "Total simulated-day advancements",
	})

	// FreezeLeases counts trade-freeze acquisitions.
	FreezeLeases = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundbattle_freeze_leases_total",
		Help: "Trade-freeze leases acquired",
	})

	// CrossSignals counts classified crossover signals, by kind and tier.
	CrossSignals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundbattle_cross_signals_total",
		Help: "Crossover signals emitted during day advancement",
	}, []string{"kind", "confidence"})

	// ActiveRooms tracks rooms that are not yet ended.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fundbattle_active_rooms",
		Help: "Number of rooms in WAITING or PLAYING state",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fundbattle_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundbattle_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fundbattle_http_request_duration_seconds",
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

		// Use the route pattern for path label to avoid high cardinality.
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
