package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	ChecksTotal         = prometheus.NewCounter(prometheus.CounterOpts{Name: "driftwatch_checks_total", Help: "Total watch checks executed"})
	CheckErrorsTotal    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "driftwatch_check_errors_total", Help: "Checks that ended in a typed error"}, []string{"kind"})
	ChangesDetected     = prometheus.NewCounter(prometheus.CounterOpts{Name: "driftwatch_changes_detected_total", Help: "Checks that detected a real content change"})
	ChecksSkipped       = prometheus.NewCounter(prometheus.CounterOpts{Name: "driftwatch_checks_skipped_total", Help: "Checks resolved by the unchanged-checksum fast path"})
	QueueDepth          = prometheus.NewGauge(prometheus.GaugeOpts{Name: "driftwatch_queue_depth", Help: "Pending items in the check priority queue"})
	RunningChecks       = prometheus.NewGauge(prometheus.GaugeOpts{Name: "driftwatch_running_checks", Help: "Checks currently in flight"})
	NotificationsSent   = prometheus.NewCounter(prometheus.CounterOpts{Name: "driftwatch_notifications_sent_total", Help: "Notification jobs delivered"})
	NotificationsFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "driftwatch_notifications_failed_total", Help: "Notification jobs that failed delivery"})
	BackpressureSkips   = prometheus.NewCounter(prometheus.CounterOpts{Name: "driftwatch_backpressure_skips_total", Help: "Scheduler scans paused by the queue ceiling or resource limiter"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			ChecksTotal,
			CheckErrorsTotal,
			ChangesDetected,
			ChecksSkipped,
			QueueDepth,
			RunningChecks,
			NotificationsSent,
			NotificationsFailed,
			BackpressureSkips,
		)
	})
	return promhttp.Handler()
}
