package batch

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pbpd/internal/engine"
	"pbpd/internal/features"
	"pbpd/internal/material"
)

// RowResult is the outcome of one input row: either a prediction result or
// a row-scoped typed error. Exactly one of Result and Err is set.
type RowResult struct {
	Index  int
	Label  string
	Raw    features.RawMeasurement
	Result *engine.Result
	Err    error
}

// Report is the aggregate outcome of a batch, ordered by input row index
// regardless of processing order.
type Report struct {
	Rows []RowResult
}

// Succeeded returns the number of rows that produced a prediction.
func (r *Report) Succeeded() int {
	n := 0
	for _, row := range r.Rows {
		if row.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of rows that ended in a row-scoped error.
func (r *Report) Failed() int {
	return len(r.Rows) - r.Succeeded()
}

// MetricsInterface defines the metrics methods the processor needs.
type MetricsInterface interface {
	BatchesInc()
	BatchRowsAdd(n int)
	BatchRowFailuresAdd(n int)
}

// ProgressFunc is called after each row completes with the number of rows
// done so far and the total. Calls may arrive out of row order.
type ProgressFunc func(done, total int)

// Processor runs batches through a prediction engine. Rows are independent,
// so they are processed in parallel up to the worker limit; the report is
// ordered by input row index.
type Processor struct {
	engine   *engine.Engine
	workers  int
	metrics  MetricsInterface
	progress ProgressFunc
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithWorkers bounds row-level parallelism. Values below 1 mean serial.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) { p.workers = n }
}

// WithMetrics wires batch metrics into the processor.
func WithMetrics(m MetricsInterface) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// WithProgress installs a per-row completion callback.
func WithProgress(fn ProgressFunc) ProcessorOption {
	return func(p *Processor) { p.progress = fn }
}

// NewProcessor creates a batch processor over a prediction engine.
func NewProcessor(e *engine.Engine, opts ...ProcessorOption) *Processor {
	p := &Processor{engine: e, workers: 1}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = 1
	}
	return p
}

// Process reads the batch CSV and predicts every row. A failed row never
// aborts the batch: its error is recorded in the row's slot and processing
// continues. The only batch-level failures are an unreadable header and
// context cancellation.
func (p *Processor) Process(ctx context.Context, r io.Reader) (*Report, error) {
	rows, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}
	return p.ProcessRows(ctx, rows)
}

// ProcessRows predicts every parsed row, preserving input order in the
// report.
func (p *Processor) ProcessRows(ctx context.Context, rows []Row) (*Report, error) {
	report := &Report{Rows: make([]RowResult, len(rows))}

	var done atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i := range rows {
		row := rows[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report.Rows[row.Index] = p.processRow(row)
			if p.progress != nil {
				p.progress(int(done.Add(1)), len(rows))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := report.Failed()
	if p.metrics != nil {
		p.metrics.BatchesInc()
		p.metrics.BatchRowsAdd(len(rows))
		p.metrics.BatchRowFailuresAdd(failed)
	}
	log.Info().
		Int("rows", len(rows)).
		Int("failed", failed).
		Msg("batch complete")
	return report, nil
}

func (p *Processor) processRow(row Row) RowResult {
	out := RowResult{Index: row.Index, Label: row.Label, Raw: row.Raw}
	if row.Err != nil {
		out.Err = row.Err
		return out
	}

	group, err := material.FromLabel(row.Label)
	if err != nil {
		out.Err = err
		return out
	}

	result, err := p.engine.Predict(row.Raw, group)
	if err != nil {
		out.Err = err
		return out
	}
	out.Result = result
	return out
}
