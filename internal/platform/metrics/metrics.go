package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values for AssignmentsTotal.
const (
	OutcomeAssigned   = "assigned"
	OutcomeUnassigned = "unassigned"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	HTTPLatency             *prometheus.HistogramVec
	InterventionsCreated    prometheus.Counter
	InterventionsRemoved    prometheus.Counter
	AssignmentsTotal        *prometheus.CounterVec
	AssignmentCandidates    prometheus.Histogram
	RespondantsRegistered   prometheus.Gauge
	UsersCreated            prometheus.Counter
	NotificationsPublished  prometheus.Counter
	NotificationsDropped    prometheus.Counter
	NotificationSinkErrors  *prometheus.CounterVec
	NotificationSubscribers prometheus.Gauge
	RateLimitRejected       *prometheus.CounterVec
}

// New creates and registers all metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rescue_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		InterventionsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "rescue_interventions_created_total",
			Help: "Total number of interventions recorded",
		}),
		InterventionsRemoved: f.NewCounter(prometheus.CounterOpts{
			Name: "rescue_interventions_removed_total",
			Help: "Total number of interventions removed, including bulk clears",
		}),
		AssignmentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rescue_assignments_total",
			Help: "Assignment decisions by outcome",
		}, []string{"outcome"}),
		AssignmentCandidates: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rescue_assignment_candidates",
			Help:    "Number of respondants returned by the nearest-candidate query",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		RespondantsRegistered: f.NewGauge(prometheus.GaugeOpts{
			Name: "rescue_respondants_registered",
			Help: "Current number of registered respondants",
		}),
		UsersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "rescue_users_created_total",
			Help: "Total number of users created in the system",
		}),
		NotificationsPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "rescue_notifications_published_total",
			Help: "Notification events accepted by the broadcaster",
		}),
		NotificationsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "rescue_notifications_dropped_total",
			Help: "Notification events dropped because the queue was full",
		}),
		NotificationSinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rescue_notification_sink_errors_total",
			Help: "Notification forwarding failures by sink",
		}, []string{"sink"}),
		NotificationSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "rescue_notification_subscribers",
			Help: "Currently attached live notification subscribers",
		}),
		RateLimitRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rescue_ratelimit_rejected_total",
			Help: "Requests rejected by the rate limiter by endpoint class",
		}, []string{"class"}),
	}
}

// ObserveHTTP records one request's latency.
func (m *Metrics) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	m.HTTPLatency.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}

// ObserveAssignment records the outcome of one assignment decision.
func (m *Metrics) ObserveAssignment(outcome string, candidates int) {
	m.AssignmentsTotal.WithLabelValues(outcome).Inc()
	m.AssignmentCandidates.Observe(float64(candidates))
}

// IncrementUsersCreated increments the users created counter by 1
func (m *Metrics) IncrementUsersCreated() {
	m.UsersCreated.Inc()
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
