package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink exposes engine measurements as Prometheus collectors.
type PromSink struct {
	discoveryFound *prometheus.CounterVec
	discoveryAdded *prometheus.CounterVec
	cleanupKept    prometheus.Gauge
	cleanupRemoved prometheus.Counter
	attempts       *prometheus.CounterVec
	scheduleRuns   *prometheus.CounterVec
	runsInFlight   prometheus.Gauge
}

func NewPromSink(reg prometheus.Registerer) *PromSink {
	s := &PromSink{
		discoveryFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoapply_discovery_found_total",
			Help: "Postings returned by sources per discovery cycle kind.",
		}, []string{"kind"}),
		discoveryAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoapply_discovery_added_total",
			Help: "New postings persisted per discovery cycle kind.",
		}, []string{"kind"}),
		cleanupKept: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autoapply_cleanup_kept",
			Help: "Postings surviving the most recent retention sweep.",
		}),
		cleanupRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autoapply_cleanup_removed_total",
			Help: "Postings removed by retention sweeps.",
		}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoapply_application_attempts_total",
			Help: "Application attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		scheduleRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoapply_schedule_runs_total",
			Help: "Scheduled job runs by outcome.",
		}, []string{"outcome"}),
		runsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autoapply_runs_in_flight",
			Help: "Application runs currently executing.",
		}),
	}
	reg.MustRegister(
		s.discoveryFound, s.discoveryAdded,
		s.cleanupKept, s.cleanupRemoved,
		s.attempts, s.scheduleRuns, s.runsInFlight,
	)
	return s
}

func (s *PromSink) DiscoveryCycle(kind string, found, added int) {
	s.discoveryFound.WithLabelValues(kind).Add(float64(found))
	s.discoveryAdded.WithLabelValues(kind).Add(float64(added))
}

func (s *PromSink) CleanupRun(kept, removed int) {
	s.cleanupKept.Set(float64(kept))
	s.cleanupRemoved.Add(float64(removed))
}

func (s *PromSink) ApplicationAttempt(method string, success bool) {
	s.attempts.WithLabelValues(method, outcome(success)).Inc()
}

func (s *PromSink) ScheduleRun(success bool) {
	s.scheduleRuns.WithLabelValues(outcome(success)).Inc()
}

func (s *PromSink) RunsInFlight(delta int) {
	s.runsInFlight.Add(float64(delta))
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
