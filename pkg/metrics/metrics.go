// Package metrics provides Prometheus-based metrics recording for the
// agent loop.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the agent's Prometheus instruments.
type Recorder struct {
	ticksTotal         prometheus.Counter
	tickDuration       prometheus.Histogram
	actionsTotal       *prometheus.CounterVec
	commentsPosted     prometheus.Counter
	notificationsSent  prometheus.Counter
	reposObserved      prometheus.Counter
	rateLimitRemaining prometheus.Gauge
}

// NewRecorder creates a recorder registered on the given registerer. Tests
// pass a fresh registry; the binary passes the default one.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		ticksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "caretaker_ticks_total",
			Help: "Total number of completed agent ticks",
		}),
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "caretaker_tick_duration_seconds",
			Help:    "Duration of agent ticks in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		actionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caretaker_actions_total",
			Help: "Executed actions by type and result",
		}, []string{"type", "result"}),
		commentsPosted: factory.NewCounter(prometheus.CounterOpts{
			Name: "caretaker_comments_posted_total",
			Help: "Total comments posted to the forge",
		}),
		notificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "caretaker_notifications_sent_total",
			Help: "Total owner notifications sent",
		}),
		reposObserved: factory.NewCounter(prometheus.CounterOpts{
			Name: "caretaker_repos_observed_total",
			Help: "Total successful repository observations",
		}),
		rateLimitRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Name: "caretaker_forge_rate_limit_remaining",
			Help: "Last observed forge rate-limit remaining value",
		}),
	}
}

// ObserveTick records one completed tick.
func (r *Recorder) ObserveTick(duration time.Duration, observations int) {
	r.ticksTotal.Inc()
	r.tickDuration.Observe(duration.Seconds())
	r.reposObserved.Add(float64(observations))
}

// ObserveAction records one executed action outcome.
func (r *Recorder) ObserveAction(actionType string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	r.actionsTotal.WithLabelValues(actionType, result).Inc()
}

// IncCommentsPosted counts a posted comment.
func (r *Recorder) IncCommentsPosted() {
	r.commentsPosted.Inc()
}

// IncNotificationsSent counts a delivered owner notification.
func (r *Recorder) IncNotificationsSent() {
	r.notificationsSent.Inc()
}

// SetRateLimitRemaining records the forge rate-limit headroom. Negative
// values mean "not yet observed" and are not recorded.
func (r *Recorder) SetRateLimitRemaining(remaining int) {
	if remaining < 0 {
		return
	}
	r.rateLimitRemaining.Set(float64(remaining))
}
