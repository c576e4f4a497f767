// Package encoder turns scalar readings into small sets of signal facts.
package encoder

import (
	"fmt"
	"math"

	"github.com/nvandessel/cadbench/internal/facts"
)

// MaxBits bounds the encoder width so bin arithmetic stays within int range.
const MaxBits = 30

// Encoder quantizes values over a fixed [min, max] range into 2^bits-1 bins
// and emits one fact per set bit of the bin number.
type Encoder struct {
	min    float64
	bits   int
	maxBin int
	step   float64
}

// New creates an encoder for the given range and bit width.
// A degenerate range (min == max) uses the bin count as the effective range.
func New(min, max float64, bits int) (*Encoder, error) {
	if bits < 1 || bits > MaxBits {
		return nil, fmt.Errorf("num_norm_value_bits must be between 1 and %d, got %d", MaxBits, bits)
	}
	if math.IsNaN(min) || math.IsInf(min, 0) || math.IsNaN(max) || math.IsInf(max, 0) {
		return nil, fmt.Errorf("value range must be finite, got [%v, %v]", min, max)
	}
	if max < min {
		return nil, fmt.Errorf("max value %v is below min value %v", max, min)
	}

	maxBin := 1<<bits - 1
	fullRange := max - min
	if fullRange == 0 {
		fullRange = float64(maxBin)
	}

	return &Encoder{
		min:    min,
		bits:   bits,
		maxBin: maxBin,
		step:   fullRange / float64(maxBin),
	}, nil
}

// Bits returns the encoder width.
func (e *Encoder) Bits() int { return e.bits }

// Bin returns the quantized bin for value, clamped to [0, 2^bits-1].
func (e *Encoder) Bin(value float64) int {
	norm := (value - e.min) / e.step
	switch {
	case math.IsNaN(norm) || norm <= 0:
		return 0
	case norm >= float64(e.maxBin):
		return e.maxBin
	}
	return int(norm)
}

// Encode returns the facts for value: Signal(p*2+1) for every bit p set in
// the value's bin. Bin 0 encodes to the empty set.
func (e *Encoder) Encode(value float64) facts.Set {
	bin := e.Bin(value)
	out := make([]facts.Fact, 0, e.bits)
	for p := 0; p < e.bits; p++ {
		if bin&(1<<p) != 0 {
			out = append(out, facts.Signal(p*2+1))
		}
	}
	return facts.NewSet(out...)
}
