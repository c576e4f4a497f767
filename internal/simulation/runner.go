package simulation

import (
	"testing"

	"github.com/nvandessel/cadbench/internal/corpus"
	"github.com/nvandessel/cadbench/internal/detector"
)

// Runner replays scenarios through registered detectors.
type Runner struct {
	t *testing.T
}

// NewRunner creates a simulation runner bound to t.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	return &Runner{t: t}
}

// Run executes the scenario and returns the collected results.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()

	factory, err := detector.Lookup(scenario.detectorName())
	if err != nil {
		r.t.Fatalf("%s: %v", scenario.Name, err)
	}
	opts := detector.DefaultOptions()
	if scenario.Options != nil {
		opts = *scenario.Options
	}

	lo, hi := scenario.Min, scenario.Max
	if lo == 0 && hi == 0 {
		lo, hi = valueRange(scenario.Values)
	}
	det, err := factory(detector.DataSetInfo{
		InputMin:        lo,
		InputMax:        hi,
		ProbationPeriod: scenario.ProbationPeriod,
		Length:          len(scenario.Values),
	}, opts)
	if err != nil {
		r.t.Fatalf("%s: creating detector: %v", scenario.Name, err)
	}
	if err := det.Initialize(); err != nil {
		r.t.Fatalf("%s: Initialize: %v", scenario.Name, err)
	}

	reporter, _ := det.(detector.StepReporter)
	counter, _ := det.(detector.ContextCounter)

	steps := make([]StepResult, len(scenario.Values))
	for i, v := range scenario.Values {
		values, err := det.HandleRecord(corpus.Record{Index: i, Value: v})
		if err != nil {
			r.t.Fatalf("%s: step %d: %v", scenario.Name, i, err)
		}
		step := StepResult{Index: i, Value: v, Score: values[0], Raw: values[0]}
		if reporter != nil {
			last := reporter.LastStep()
			step.Raw = last.Score
			step.PercentActive = last.PercentActive
			step.PercentNew = last.PercentNew
		}
		if counter != nil {
			step.NumContexts = counter.NumContexts()
		}
		steps[i] = step
	}

	return SimulationResult{Name: scenario.Name, Steps: steps}
}

func valueRange(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}
