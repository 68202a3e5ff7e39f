package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPromMetrics(reg)

	m.TasksDue(3)
	m.TaskExecuted()
	m.TaskExecuted()
	m.TaskFailed(false)
	m.TaskFailed(true)
	m.TaskFailed(true)
	m.TaskDeleteFailed()
	m.SweepSkipped()
	m.CallLatency(20 * time.Millisecond)
	m.SweepDuration(time.Second)

	if got := testutil.ToFloat64(m.due); got != 3 {
		t.Errorf("expected 3 due, got %v", got)
	}
	if got := testutil.ToFloat64(m.executed); got != 2 {
		t.Errorf("expected 2 executed, got %v", got)
	}
	if got := testutil.ToFloat64(m.failed.WithLabelValues("true")); got != 2 {
		t.Errorf("expected 2 build failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.failed.WithLabelValues("false")); got != 1 {
		t.Errorf("expected 1 call failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.deleteFailed); got != 1 {
		t.Errorf("expected 1 delete failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.skipped); got != 1 {
		t.Errorf("expected 1 skipped sweep, got %v", got)
	}
	if n := testutil.CollectAndCount(m.callLatency); n != 1 {
		t.Errorf("expected 1 latency series, got %d", n)
	}
}

func TestNop_SatisfiesInterface(t *testing.T) {
	var m SweepMetrics = Nop{}
	m.TasksDue(1)
	m.TaskFailed(true)
}
