package simulation

import (
	"github.com/nvandessel/cadbench/internal/constants"
	"github.com/nvandessel/cadbench/internal/detector"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name   string
	Values []float64

	// Detector names a registered detector; empty selects contextOSE.
	Detector string

	// Options overrides the detector defaults when non-nil.
	Options *detector.Options

	// Min and Max fix the input range. When both are zero the range is
	// taken from Values, as the corpus runner does.
	Min, Max float64

	// ProbationPeriod is handed to the detector factory. Zero keeps the
	// configured rest period.
	ProbationPeriod int
}

func (s Scenario) detectorName() string {
	if s.Detector == "" {
		return constants.DetectorContextOSE
	}
	return s.Detector
}

// StepResult captures one replayed value.
type StepResult struct {
	Index int
	Value float64
	// Score is the emitted anomaly score.
	Score float64
	// Raw is the ungated engine score, or Score for detectors that do not
	// report one.
	Raw           float64
	PercentActive float64
	PercentNew    float64
	NumContexts   int
}

// SimulationResult captures all steps of a scenario.
type SimulationResult struct {
	Name  string
	Steps []StepResult
}

// Scores returns the emitted scores in step order.
func (r SimulationResult) Scores() []float64 {
	out := make([]float64, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Score
	}
	return out
}

// RawScores returns the raw scores in step order.
func (r SimulationResult) RawScores() []float64 {
	out := make([]float64, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Raw
	}
	return out
}
