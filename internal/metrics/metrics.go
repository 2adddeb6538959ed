// Package metrics provides Prometheus instrumentation for the scoring
// service.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amlscope",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "amlscope",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ScoresTotal counts completed scoring requests by verdict.
	ScoresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amlscope",
			Name:      "scores_total",
			Help:      "Total transactions scored, by verdict.",
		},
		[]string{"verdict"},
	)

	// ScoreFailuresTotal counts failed scoring requests by stage.
	ScoreFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amlscope",
			Name:      "score_failures_total",
			Help:      "Total scoring failures by reason (validation, schema, classifier).",
		},
		[]string{"reason"},
	)

	// ScoreDuration observes end-to-end scoring latency (encode through
	// verdict).
	ScoreDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "amlscope",
		Name:      "score_duration_seconds",
		Help:      "End-to-end single-transaction scoring duration in seconds.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	// ClassifierDuration observes the external classifier round trip.
	ClassifierDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "amlscope",
		Name:      "classifier_duration_seconds",
		Help:      "External classifier invocation duration in seconds.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	// HistoryRecords tracks the current size of the prediction history.
	HistoryRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "amlscope",
		Name:      "history_records",
		Help:      "Number of records in the prediction history.",
	})

	// ActiveWebSocketClients tracks connected event stream clients.
	ActiveWebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "amlscope",
		Name:      "active_websocket_clients",
		Help:      "Number of currently connected WebSocket clients.",
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "amlscope", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "amlscope", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "amlscope", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "amlscope", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ScoresTotal,
		ScoreFailuresTotal,
		ScoreDuration,
		ClassifierDuration,
		HistoryRecords,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime
// goroutine count into Prometheus gauges. Call in a goroutine; exits when
// ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
