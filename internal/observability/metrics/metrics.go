package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casebridge",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by method, route and status.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "casebridge",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	syncItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casebridge",
		Subsystem: "sync",
		Name:      "items_total",
		Help:      "Bulk sync items processed, by category and outcome.",
	}, []string{"category", "outcome"})
)

// GinMiddleware instruments inbound HTTP requests. Routes are recorded by
// pattern, not by raw path, to keep label cardinality bounded.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).
			Observe(time.Since(start).Seconds())
	}
}

// RecordSyncItem counts one bulk sync item outcome.
func RecordSyncItem(category, outcome string) {
	syncItemsTotal.WithLabelValues(category, outcome).Inc()
}
