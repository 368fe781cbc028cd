package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total number of requests",
		},
		[]string{"method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// AttachmentOperations counts store/release calls per backend. Release
	// errors are swallowed by the stores, so this is where they surface.
	AttachmentOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attachment_operations_total",
			Help: "Total number of attachment store operations",
		},
		[]string{"backend", "op", "result"},
	)

	OrphansReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orphan_attachments_released_total",
			Help: "Attachments released by reconciliation because no record referenced them",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AttachmentOperations,
		OrphansReleased,
	)
}

// RecordRequest records one handled HTTP request.
func RecordRequest(method, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, status).Inc()
	RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordAttachment records one attachment store operation.
func RecordAttachment(backend, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	AttachmentOperations.WithLabelValues(backend, op, result).Inc()
}

// GinMiddleware records request metrics for every route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		statusCode := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method + " " + c.FullPath()

		RecordRequest(method, statusCode, time.Since(start))
	}
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
