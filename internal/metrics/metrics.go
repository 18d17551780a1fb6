// Package metrics holds the Prometheus collectors for the ICONIC API.
//
// A nil *Metrics is valid and records nothing, so services and tests can run
// without a registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics owns a private registry and the collectors registered on it.
type Metrics struct {
	reg *prometheus.Registry

	participationOps *prometheus.CounterVec
	checkinOps       *prometheus.CounterVec
	matchRuns        *prometheus.CounterVec
	matchGroups      prometheus.Counter
	httpDuration     *prometheus.HistogramVec
}

// New builds a Metrics with Go runtime and process collectors included.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		participationOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iconic_participation_ops_total",
			Help: "Join and cancel operations by outcome.",
		}, []string{"op", "result"}),
		checkinOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iconic_checkin_ops_total",
			Help: "Check-in token generate and redeem operations by outcome.",
		}, []string{"op", "result"}),
		matchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iconic_matchmaking_runs_total",
			Help: "Matchmaking runs by outcome.",
		}, []string{"result"}),
		matchGroups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iconic_match_groups_created_total",
			Help: "Match groups persisted by successful runs.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iconic_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.participationOps,
		m.checkinOps,
		m.matchRuns,
		m.matchGroups,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Participation counts a join or cancel.
func (m *Metrics) Participation(op, result string) {
	if m == nil {
		return
	}
	m.participationOps.WithLabelValues(op, result).Inc()
}

// Checkin counts a generate or redeem.
func (m *Metrics) Checkin(op, result string) {
	if m == nil {
		return
	}
	m.checkinOps.WithLabelValues(op, result).Inc()
}

// MatchRun counts a matchmaking run and the groups it created.
func (m *Metrics) MatchRun(result string, groups int) {
	if m == nil {
		return
	}
	m.matchRuns.WithLabelValues(result).Inc()
	if groups > 0 {
		m.matchGroups.Add(float64(groups))
	}
}

// ObserveHTTP records one request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
