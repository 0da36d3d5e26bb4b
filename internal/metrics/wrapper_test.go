package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"pbpd/internal/batch"
	"pbpd/internal/engine"
	"pbpd/internal/ml"
)

// compile-time checks that the wrapper satisfies every consumer interface
var (
	_ ml.MetricsInterface     = (*Wrapper)(nil)
	_ engine.MetricsInterface = (*Wrapper)(nil)
	_ batch.MetricsInterface  = (*Wrapper)(nil)
)

func TestWrapperCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)
	w := NewWrapper(m)

	w.PredictionsInc()
	w.PredictionsInc()
	w.PredictionFailureInc("DivisionByZero")
	w.ModelLoadsInc()
	w.ModelLoadFailuresInc()
	w.RangeWarningsAdd(3)
	w.ExplanationErrorsInc()
	w.BatchesInc()
	w.BatchRowsAdd(10)
	w.BatchRowFailuresAdd(2)

	cases := []struct {
		collector prometheus.Collector
		want      float64
	}{
		{m.PredictionsTotal, 2},
		{m.PredictionFailures.WithLabelValues("DivisionByZero"), 1},
		{m.ModelLoads, 1},
		{m.ModelLoadFailures, 1},
		{m.RangeWarnings, 3},
		{m.ExplanationErrors, 1},
		{m.BatchesTotal, 1},
		{m.BatchRows, 10},
		{m.BatchRowFailures, 2},
	}
	for i, tc := range cases {
		if got := testutil.ToFloat64(tc.collector); got != tc.want {
			t.Errorf("counter %d = %v, want %v", i, got, tc.want)
		}
	}
}

func TestWrapperObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)
	w := NewWrapper(m)

	w.PredictionLatencyObserve(0.002)
	w.PBPDObserve(57.2)

	if got := testutil.CollectAndCount(m.PredictionLatency); got != 1 {
		t.Errorf("latency histogram has %d series, want 1", got)
	}
	if got := testutil.CollectAndCount(m.PBPDValues); got != 1 {
		t.Errorf("pbpd histogram has %d series, want 1", got)
	}
}

func TestIsolatedRegistries(t *testing.T) {
	// two instances on separate registries must not collide
	a := NewWithRegistry(prometheus.NewRegistry())
	b := NewWithRegistry(prometheus.NewRegistry())

	a.PredictionsTotal.Inc()
	if got := testutil.ToFloat64(b.PredictionsTotal); got != 0 {
		t.Errorf("registries are not isolated: %v", got)
	}
}
