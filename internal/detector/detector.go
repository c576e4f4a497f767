// Package detector defines the streaming-detector interface consumed by the
// benchmark runner, a registry of detector factories, and the contextual
// anomaly detector that implements it.
package detector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nvandessel/cadbench/internal/constants"
	"github.com/nvandessel/cadbench/internal/corpus"
	"github.com/nvandessel/cadbench/internal/stream"
)

// DataSetInfo describes the file a detector instance will process. The
// runner computes it from the whole file before replaying records.
type DataSetInfo struct {
	InputMin        float64
	InputMax        float64
	ProbationPeriod int
	Length          int
}

// Detector processes one record at a time. HandleRecord returns the anomaly
// score first, followed by one value per AdditionalHeaders entry.
// A Detector instance is used by a single goroutine.
type Detector interface {
	Name() string
	Initialize() error
	HandleRecord(rec corpus.Record) ([]float64, error)
	AdditionalHeaders() []string
}

// Factory builds a detector for one data set.
type Factory func(info DataSetInfo, opts Options) (Detector, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a factory under name. It panics if name is already taken.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("detector: %q registered twice", name))
	}
	registry[name] = f
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown detector %q (available: %v)", name, namesLocked())
	}
	return f, nil
}

// Names returns the registered detector names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(constants.DetectorContextOSE, NewContextOSE)
	Register(constants.DetectorNull, NewNull)
}

// Headers returns the additional result columns of the named detector.
func Headers(name string) ([]string, error) {
	f, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	d, err := f(DataSetInfo{InputMax: 1}, DefaultOptions())
	if err != nil {
		return nil, err
	}
	return d.AdditionalHeaders(), nil
}

// ContextOSE adapts CAD to the Detector interface.
type ContextOSE struct {
	info DataSetInfo
	opts Options
	cad  *CAD
}

// NewContextOSE returns an uninitialized ContextOSE detector. When the data
// set has a probation period the rest period is derived from it.
func NewContextOSE(info DataSetInfo, opts Options) (Detector, error) {
	if info.ProbationPeriod > 0 {
		opts.RestPeriod = max(1, info.ProbationPeriod/constants.RestPeriodDivisor)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &ContextOSE{info: info, opts: opts}, nil
}

// Name implements Detector.
func (d *ContextOSE) Name() string { return constants.DetectorContextOSE }

// Initialize builds the underlying CAD over the data set's value range.
func (d *ContextOSE) Initialize() error {
	cad, err := NewCAD(d.info.InputMin, d.info.InputMax, d.opts)
	if err != nil {
		return fmt.Errorf("initializing %s: %w", d.Name(), err)
	}
	d.cad = cad
	return nil
}

// HandleRecord returns the gated score and the raw engine score.
func (d *ContextOSE) HandleRecord(rec corpus.Record) ([]float64, error) {
	if d.cad == nil {
		return nil, fmt.Errorf("%s: HandleRecord called before Initialize", d.Name())
	}
	score := d.cad.Score(rec.Value)
	return []float64{score, d.cad.Last().Score}, nil
}

// AdditionalHeaders implements Detector.
func (d *ContextOSE) AdditionalHeaders() []string { return []string{"raw_score"} }

// NumContexts reports the size of the context memory.
func (d *ContextOSE) NumContexts() int {
	if d.cad == nil {
		return 0
	}
	return d.cad.State().Memory().NumContexts()
}

// LastStep returns the engine result of the most recent record.
func (d *ContextOSE) LastStep() stream.StepResult {
	if d.cad == nil {
		return stream.StepResult{}
	}
	return d.cad.Last()
}

// Null is the benchmark control: it always reports the same score.
type Null struct{}

// NewNull returns the null detector. Options are ignored.
func NewNull(DataSetInfo, Options) (Detector, error) { return Null{}, nil }

// Name implements Detector.
func (Null) Name() string { return constants.DetectorNull }

// Initialize implements Detector.
func (Null) Initialize() error { return nil }

// HandleRecord implements Detector.
func (Null) HandleRecord(corpus.Record) ([]float64, error) {
	return []float64{constants.NullDetectorScore}, nil
}

// AdditionalHeaders implements Detector.
func (Null) AdditionalHeaders() []string { return nil }

// ContextCounter is implemented by detectors that can report their memory
// size.
type ContextCounter interface {
	NumContexts() int
}

// StepReporter is implemented by detectors that expose the engine result of
// their most recent record.
type StepReporter interface {
	LastStep() stream.StepResult
}
