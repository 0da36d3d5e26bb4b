package metrics

// Wrapper adapts Metrics to the narrow interfaces the pipeline packages
// declare, so they depend on behavior rather than on Prometheus types.
type Wrapper struct {
	m *Metrics
}

// NewWrapper creates a wrapper around a Metrics instance.
func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

// Registry metrics (ml.MetricsInterface).

func (w *Wrapper) ModelLoadsInc() {
	w.m.ModelLoads.Inc()
}

func (w *Wrapper) ModelLoadFailuresInc() {
	w.m.ModelLoadFailures.Inc()
}

// Engine metrics (engine.MetricsInterface).

func (w *Wrapper) PredictionsInc() {
	w.m.PredictionsTotal.Inc()
}

func (w *Wrapper) PredictionFailureInc(kind string) {
	w.m.PredictionFailures.WithLabelValues(kind).Inc()
}

func (w *Wrapper) PredictionLatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *Wrapper) PBPDObserve(percent float64) {
	w.m.PBPDValues.Observe(percent)
}

func (w *Wrapper) RangeWarningsAdd(n int) {
	w.m.RangeWarnings.Add(float64(n))
}

func (w *Wrapper) ExplanationErrorsInc() {
	w.m.ExplanationErrors.Inc()
}

// Batch metrics (batch.MetricsInterface).

func (w *Wrapper) BatchesInc() {
	w.m.BatchesTotal.Inc()
}

func (w *Wrapper) BatchRowsAdd(n int) {
	w.m.BatchRows.Add(float64(n))
}

func (w *Wrapper) BatchRowFailuresAdd(n int) {
	w.m.BatchRowFailures.Add(float64(n))
}
