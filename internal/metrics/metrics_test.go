package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/tasks", "200"))

	ObserveHTTPRequest("GET", "/api/tasks", "200", 15*time.Millisecond)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/tasks", "200"))
	assert.Equal(t, before+1, after)
}

func TestObserveNotification(t *testing.T) {
	before := testutil.ToFloat64(notifications.WithLabelValues("task_assigned", "failed"))

	ObserveNotification("task_assigned", "failed")
	ObserveNotification("task_assigned", "sent")

	assert.Equal(t, before+1, testutil.ToFloat64(notifications.WithLabelValues("task_assigned", "failed")))

	skipped := testutil.ToFloat64(notifications.WithLabelValues("deadline_passed", "skipped"))
	ObserveNotification("deadline_passed", "skipped")
	assert.Equal(t, skipped+1, testutil.ToFloat64(notifications.WithLabelValues("deadline_passed", "skipped")))
}

func TestObserveStatusTransition(t *testing.T) {
	before := testutil.ToFloat64(statusTransitions.WithLabelValues("Pending", "Completed"))

	ObserveStatusTransition("Pending", "Completed")

	assert.Equal(t, before+1, testutil.ToFloat64(statusTransitions.WithLabelValues("Pending", "Completed")))
	ObserveTaskCreated()
	assert.GreaterOrEqual(t, testutil.ToFloat64(tasksCreated), 1.0)
}
