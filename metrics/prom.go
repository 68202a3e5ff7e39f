package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PromMetrics struct {
	due           prometheus.Counter
	executed      prometheus.Counter
	failed        *prometheus.CounterVec
	deleteFailed  prometheus.Counter
	skipped       prometheus.Counter
	callLatency   prometheus.Histogram
	sweepDuration prometheus.Histogram
}

func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {

	m := &PromMetrics{
		due: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deferral_tasks_due_total",
			Help: "Number of due tasks found by sweeps",
		}),
		executed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deferral_tasks_executed_total",
			Help: "Number of tasks executed and deleted",
		}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deferral_tasks_failed_total",
			Help: "Number of failed task executions",
		}, []string{"build_error"}),
		deleteFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deferral_tasks_delete_failed_total",
			Help: "Number of executed tasks that could not be deleted",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deferral_sweeps_skipped_total",
			Help: "Number of sweeps skipped because one was still running",
		}),
		callLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deferral_call_latency_seconds",
			Help:    "Latency of target endpoint calls",
			Buckets: prometheus.DefBuckets,
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deferral_sweep_duration_seconds",
			Help:    "Duration of sweeps",
			Buckets: []float64{.01, .1, .5, 1, 5, 10, 30, 60, 300},
		}),
	}
	reg.MustRegister(m.due, m.executed, m.failed, m.deleteFailed, m.skipped, m.callLatency, m.sweepDuration)
	return m
}

func (m *PromMetrics) TasksDue(n int) {
	m.due.Add(float64(n))
}
func (m *PromMetrics) TaskExecuted() {
	m.executed.Inc()
}
func (m *PromMetrics) TaskFailed(buildError bool) {
	m.failed.WithLabelValues(strconv.FormatBool(buildError)).Inc()
}
func (m *PromMetrics) TaskDeleteFailed() {
	m.deleteFailed.Inc()
}
func (m *PromMetrics) SweepSkipped() {
	m.skipped.Inc()
}
func (m *PromMetrics) CallLatency(d time.Duration) {
	m.callLatency.Observe(d.Seconds())
}
func (m *PromMetrics) SweepDuration(d time.Duration) {
	m.sweepDuration.Observe(d.Seconds())
}
