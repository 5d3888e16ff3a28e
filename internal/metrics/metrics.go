// Package metrics records workflow outcomes for Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts workflow calls by operation and error kind and times them.
type Recorder struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	emails   *prometheus.CounterVec
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventhub",
			Name:      "workflow_calls_total",
			Help:      "Workflow invocations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eventhub",
			Name:      "workflow_duration_seconds",
			Help:      "Workflow latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventhub",
			Name:      "emails_total",
			Help:      "Best-effort notification emails by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(r.calls, r.duration, r.emails)
	return r
}

// Observe records one workflow call. outcome is "ok" or the error kind.
func (r *Recorder) Observe(operation, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.calls.WithLabelValues(operation, outcome).Inc()
	r.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (r *Recorder) Email(sent bool) {
	if r == nil {
		return
	}
	result := "sent"
	if !sent {
		result = "failed"
	}
	r.emails.WithLabelValues(result).Inc()
}
