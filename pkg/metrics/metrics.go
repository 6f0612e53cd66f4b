package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	// Intake metrics
	submissionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "submissions_created_total",
			Help: "Total number of accepted submissions",
		},
	)

	uploadedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "submission_uploaded_bytes_total",
			Help: "Total bytes of submission attachments written to storage",
		},
	)

	persistenceWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_persistence_writes_total",
			Help: "Record writes per persistence path",
		},
		[]string{"path", "status"}, // store|fallback, ok|failed
	)

	listFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "submission_list_fallbacks_total",
			Help: "Listings served from the local fallback directory",
		},
	)

	reviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_reviews_total",
			Help: "Status changes applied by reviewers",
		},
		[]string{"status"},
	)

	// Storage metrics
	storageOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Storage backend operations",
		},
		[]string{"backend", "op", "status"},
	)

	storageOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_operation_duration_seconds",
			Help:    "Storage backend operation latency",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend", "op"},
	)

	// Notification metrics
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification dispatch outcomes",
		},
		[]string{"kind", "result"}, // sent, skipped, failed, dropped
	)

	notificationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_queue_depth",
			Help: "Notifications waiting for the worker",
		},
	)

	wsClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "submission_event_clients",
			Help: "Connected live event subscribers",
		},
	)
)

// GinMiddleware records request count and latency by route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, endpoint, status).Observe(time.Since(start).Seconds())
	}
}

func RecordSubmissionCreated() {
	submissionsCreatedTotal.Inc()
}

func RecordUploadedBytes(n int64) {
	uploadedBytesTotal.Add(float64(n))
}

// RecordPersistence records the outcome of one write path.
func RecordPersistence(path string, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	persistenceWritesTotal.WithLabelValues(path, status).Inc()
}

func RecordListFallback() {
	listFallbacksTotal.Inc()
}

func RecordReview(status string) {
	reviewsTotal.WithLabelValues(status).Inc()
}

// RecordStorageOp records a storage call and its latency.
func RecordStorageOp(backend, op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	storageOpsTotal.WithLabelValues(backend, op, status).Inc()
	storageOpDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

func RecordNotification(kind, result string) {
	notificationsTotal.WithLabelValues(kind, result).Inc()
}

func SetNotificationQueueDepth(n int) {
	notificationQueueDepth.Set(float64(n))
}

func IncEventClients() { wsClients.Inc() }
func DecEventClients() { wsClients.Dec() }
