package detector

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/cadbench/internal/constants"
	"github.com/nvandessel/cadbench/internal/encoder"
	"github.com/nvandessel/cadbench/internal/stream"
)

// ErrInvalidOptions is wrapped by every construction error caused by bad
// detector options.
var ErrInvalidOptions = errors.New("invalid detector options")

// Options configures the contextual anomaly detector.
type Options struct {
	BaseThreshold             float64
	RestPeriod                int
	MaxLeftSemiContextsLength int
	MaxActiveNeurons          int
	NumNormValueBits          int
}

// DefaultOptions returns the detector defaults.
func DefaultOptions() Options {
	return Options{
		BaseThreshold:             constants.DefaultBaseThreshold,
		RestPeriod:                constants.DefaultRestPeriod,
		MaxLeftSemiContextsLength: constants.DefaultMaxLeftSemiContextsLength,
		MaxActiveNeurons:          constants.DefaultMaxActiveNeurons,
		NumNormValueBits:          constants.DefaultNumNormValueBits,
	}
}

// Validate checks the options that are not covered by the encoder and
// stream constructors.
func (o Options) Validate() error {
	if math.IsNaN(o.BaseThreshold) || o.BaseThreshold < 0 || o.BaseThreshold > 1 {
		return fmt.Errorf("%w: base_threshold must be between 0 and 1, got %v", ErrInvalidOptions, o.BaseThreshold)
	}
	if o.RestPeriod < 1 {
		return fmt.Errorf("%w: rest_period must be positive, got %d", ErrInvalidOptions, o.RestPeriod)
	}
	return nil
}

// CAD is the contextual anomaly detector: an encoder and a stream state
// behind a rest-period gate.
type CAD struct {
	opts    Options
	enc     *encoder.Encoder
	state   *stream.State
	history []float64
	last    stream.StepResult
}

// NewCAD builds a detector for values in [min, max].
func NewCAD(min, max float64, opts Options) (*CAD, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	enc, err := encoder.New(min, max, opts.NumNormValueBits)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	state, err := stream.New(stream.Options{
		MaxLeftSemiContextsLength: opts.MaxLeftSemiContextsLength,
		MaxActiveNeurons:          opts.MaxActiveNeurons,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return &CAD{
		opts:    opts,
		enc:     enc,
		state:   state,
		history: []float64{constants.InitialScoreSentinel},
	}, nil
}

// Score processes one value and returns the emitted anomaly score. The score
// is forced to 0 while any of the last RestPeriod raw scores reached
// BaseThreshold.
func (c *CAD) Score(value float64) float64 {
	c.last = c.state.Step(c.enc.Encode(value))
	raw := c.last.Score

	emitted := raw
	if c.recentMax() >= c.opts.BaseThreshold {
		emitted = 0
	}
	c.history = append(c.history, raw)
	return emitted
}

// recentMax returns the largest raw score among the last RestPeriod entries.
func (c *CAD) recentMax() float64 {
	start := len(c.history) - c.opts.RestPeriod
	if start < 0 {
		start = 0
	}
	best := math.Inf(-1)
	for _, v := range c.history[start:] {
		if v > best {
			best = v
		}
	}
	return best
}

// Last returns the engine result of the most recent Score call.
func (c *CAD) Last() stream.StepResult { return c.last }

// RawHistory returns the raw scores seen so far, including the initial
// sentinel.
func (c *CAD) RawHistory() []float64 { return c.history }

// State exposes the stream state for inspection.
func (c *CAD) State() *stream.State { return c.state }

// Options returns the options the detector was built with.
func (c *CAD) Options() Options { return c.opts }
