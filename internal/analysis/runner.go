package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"

	"lumi/internal/cutflow"
	"lumi/internal/dataset"
	"lumi/internal/event"
	"lumi/internal/metrics"
	"lumi/internal/selection"
	"lumi/internal/weight"
)

// StepAll is the first cutflow step; every decoded event passes it.
const StepAll = "all"

// Yield is the selected event count and summed weight of one dataset.
type Yield struct {
	DatasetID weight.DatasetID `json:"dsid"`
	Events    int64            `json:"events"`
	Weighted  weight.JSONFloat `json:"weighted"`
}

// Summary is the result of one run over an event stream.
type Summary struct {
	Read     int64          `json:"read"`
	Selected int64          `json:"selected"`
	Errors   int64          `json:"errors"`
	Cutflow  []cutflow.Step `json:"cutflow"`
	Yields   []Yield        `json:"yields"`

	flow *cutflow.Cutflow
}

// CutflowString renders the cutflow table.
func (s Summary) CutflowString() string {
	if s.flow == nil {
		return "(no cuts)"
	}
	return s.flow.String()
}

// Runner applies a selection to an event stream and weights the survivors.
type Runner struct {
	schema       event.Schema
	datasetField string
	selection    *selection.Selection
	output       dataset.WeightedEventRepository
}

// NewRunner creates a runner. Events are decoded with schema, their dataset
// identifier is read from datasetField, and selected events are written to output.
func NewRunner(schema event.Schema, datasetField string, sel *selection.Selection, output dataset.WeightedEventRepository) *Runner {
	return &Runner{
		schema:       schema,
		datasetField: datasetField,
		selection:    sel,
		output:       output,
	}
}

// Run reads events from r until EOF or until ctx is cancelled.
//
// Undecodable lines, events without a dataset identifier and events whose
// cuts or weight cannot be evaluated are logged, counted in Summary.Errors and
// skipped. Selected events the output rejects are counted in Summary.Errors too.
// A read error or cancellation ends the run and is returned together with the
// partial summary.
func (rn *Runner) Run(ctx context.Context, r io.Reader) (Summary, error) {
	flow := cutflow.New(append([]string{StepAll}, rn.selection.CutNames()...)...)
	yields := make(map[weight.DatasetID]*Yield)
	summary := Summary{flow: flow}
	reader := event.NewReader(r, rn.schema)

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		e, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var decodeErr *event.DecodeError
		if errors.As(err, &decodeErr) {
			slog.Warn("Unable to decode event", "error", err)
			summary.Errors++
			metrics.EventsTotal.WithLabelValues(metrics.OutcomeError).Inc()
			continue
		}
		if err != nil {
			runErr = err
			break
		}
		summary.Read++

		dsid, ok := e.DatasetID(rn.datasetField)
		if !ok {
			slog.Warn("Event without dataset identifier", "line", reader.Line(), "field", rn.datasetField)
			summary.Errors++
			metrics.EventsTotal.WithLabelValues(metrics.OutcomeError).Inc()
			continue
		}

		result, err := rn.selection.Apply(e)
		if err != nil {
			slog.Warn("Unable to evaluate event", "line", reader.Line(), "error", err)
			summary.Errors++
			metrics.EventsTotal.WithLabelValues(metrics.OutcomeError).Inc()
			continue
		}

		rn.tally(flow, result)
		if !result.Passed {
			metrics.EventsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
			continue
		}

		summary.Selected++
		metrics.EventsTotal.WithLabelValues(metrics.OutcomeSelected).Inc()

		y, found := yields[dsid]
		if !found {
			y = &Yield{DatasetID: dsid}
			yields[dsid] = y
		}
		y.Events++
		y.Weighted += weight.JSONFloat(result.Weight)

		if err := rn.output.Append(dsid, result.Weight, e); err != nil {
			slog.Warn("Unable to write weighted event", "line", reader.Line(), "error", err)
			summary.Errors++
		}
	}

	summary.Cutflow = flow.Steps()
	summary.Yields = make([]Yield, 0, len(yields))
	for _, y := range yields {
		summary.Yields = append(summary.Yields, *y)
	}
	sort.Slice(summary.Yields, func(i, j int) bool {
		return summary.Yields[i].DatasetID < summary.Yields[j].DatasetID
	})

	return summary, runErr
}

// tally adds the event and its weight to every cutflow step it survived.
func (rn *Runner) tally(flow *cutflow.Cutflow, result selection.Result) {
	w := result.Weight
	flow.Pass(StepAll, w)
	for _, name := range rn.selection.CutNames() {
		if name == result.FailedCut {
			return
		}
		flow.Pass(name, w)
	}
}
