package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rankpilot/auditor/internal/progress"
)

// PrometheusSink exports audit progress metrics via Prometheus. It owns the
// collectors for audits started/completed/running plus page fetch counters.
type PrometheusSink struct {
	auditsStarted   prometheus.Counter
	auditsCompleted *prometheus.CounterVec
	auditsRunning   prometheus.Gauge
	auditRuntime    *prometheus.HistogramVec
	auditScore      prometheus.Histogram

	fetchRequests *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	tracker *auditTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		auditsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auditor_audits_started_total",
			Help: "Total audits that have started executing.",
		}),
		auditsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_audits_completed_total",
			Help: "Total audits completed partitioned by result.",
		}, []string{"result"}),
		auditsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auditor_audits_running",
			Help: "Current number of executing audits.",
		}),
		auditRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auditor_audit_runtime_seconds",
			Help:    "Wall time per completed audit.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"result"}),
		auditScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "auditor_audit_score",
			Help:    "Composite score distribution of completed audits.",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		fetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_fetch_requests_total",
			Help: "Page fetch completions partitioned by status class.",
		}, []string{"status_class"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auditor_fetch_duration_seconds",
			Help:    "Page fetch duration partitioned by status class.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"status_class"}),
		tracker: newAuditTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.auditsStarted,
		s.auditsCompleted,
		s.auditsRunning,
		s.auditRuntime,
		s.auditScore,
		s.fetchRequests,
		s.fetchDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. Safe
// for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageAuditStart:
		s.auditsStarted.Inc()
		if s.tracker.start(evt.AuditID) {
			s.auditsRunning.Inc()
		}
	case progress.StageAuditDone:
		s.auditsCompleted.WithLabelValues("success").Inc()
		s.auditScore.Observe(float64(evt.Score))
		s.observeRuntime(evt, "success")
		s.completeAudit(evt.AuditID)
	case progress.StageAuditError:
		s.auditsCompleted.WithLabelValues("error").Inc()
		s.observeRuntime(evt, "error")
		s.completeAudit(evt.AuditID)
	case progress.StageFetchDone:
		s.handleFetchEvent(evt)
	}
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.auditRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) completeAudit(id string) {
	if s.tracker.complete(id) {
		s.auditsRunning.Dec()
	}
}

func (s *PrometheusSink) handleFetchEvent(evt progress.Event) {
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.fetchRequests.WithLabelValues(statusClass).Inc()
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(statusClass).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type auditTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newAuditTracker() *auditTracker {
	return &auditTracker{running: make(map[string]struct{})}
}

func (t *auditTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *auditTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
