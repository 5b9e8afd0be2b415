package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskapi_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskapi_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	tasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskapi_tasks_created_total",
		Help: "Number of tasks created",
	})

	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskapi_task_status_transitions_total",
		Help: "Task status transitions by previous and new status",
	}, []string{"from", "to"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskapi_notifications_total",
		Help: "Notification deliveries by kind and result",
	}, []string{"kind", "result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveTaskCreated counts a created task
func ObserveTaskCreated() {
	tasksCreated.Inc()
}

// ObserveStatusTransition counts a status change
func ObserveStatusTransition(from, to string) {
	statusTransitions.WithLabelValues(from, to).Inc()
}

// ObserveNotification counts a delivery attempt; result is "sent", "failed"
// or "skipped"
func ObserveNotification(kind, result string) {
	notifications.WithLabelValues(kind, result).Inc()
}
