// Package metrics provides Prometheus metrics for the policy portal
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the portal's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	WorkflowTransitionsTotal *prometheus.CounterVec
	WorkflowConflictsTotal   *prometheus.CounterVec
	WorkflowFailuresTotal    *prometheus.CounterVec

	DiffRequestsTotal   *prometheus.CounterVec
	DiffDegradedTotal   *prometheus.CounterVec
	DiffRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grc_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grc_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.WorkflowTransitionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grc_policy_workflow_transitions_total",
			Help: "Committed policy workflow actions",
		},
		[]string{"action"},
	)

	m.WorkflowConflictsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grc_policy_workflow_conflicts_total",
			Help: "Policy writes rejected because the row changed underneath them",
		},
		[]string{"action"},
	)

	m.WorkflowFailuresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grc_policy_workflow_failures_total",
			Help: "Policy workflow operations rolled back on a storage error",
		},
		[]string{"action"},
	)

	m.DiffRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grc_diff_requests_total",
			Help: "Calls to the change diff/summary generator",
		},
		[]string{"kind"},
	)

	m.DiffDegradedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grc_diff_degraded_total",
			Help: "Generator calls that fell back to the placeholder result",
		},
		[]string{"kind", "reason"},
	)

	m.DiffRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grc_diff_request_duration_seconds",
			Help:    "Duration of generator calls in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"kind"},
	)

	return m
}

// RecordTransition counts a committed workflow action.
func (m *Metrics) RecordTransition(action string) {
	if m == nil {
		return
	}
	m.WorkflowTransitionsTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) RecordConflict(action string) {
	if m == nil {
		return
	}
	m.WorkflowConflictsTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) RecordFailure(action string) {
	if m == nil {
		return
	}
	m.WorkflowFailuresTotal.WithLabelValues(action).Inc()
}

// RecordDiff records one generator call. reason is empty when the call
// succeeded.
func (m *Metrics) RecordDiff(kind, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DiffRequestsTotal.WithLabelValues(kind).Inc()
	m.DiffRequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if reason != "" {
		m.DiffDegradedTotal.WithLabelValues(kind, reason).Inc()
	}
}

// GinMiddleware records request counts and latencies per route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
