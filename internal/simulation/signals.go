package simulation

import "math"

// Sine returns n samples of amplitude*sin(2*pi*i/period).
func Sine(n, period int, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*float64(i)/float64(period))
	}
	return out
}

// Pattern repeats pattern until n samples are produced.
func Pattern(n int, pattern ...float64) []float64 {
	out := make([]float64, n)
	if len(pattern) == 0 {
		return out
	}
	for i := range out {
		out[i] = pattern[i%len(pattern)]
	}
	return out
}

// Constant returns n copies of v.
func Constant(n int, v float64) []float64 {
	return Pattern(n, v)
}

// WithSpike returns a copy of values with values[at] replaced by v.
func WithSpike(values []float64, at int, v float64) []float64 {
	out := append([]float64(nil), values...)
	if at >= 0 && at < len(out) {
		out[at] = v
	}
	return out
}

// Concat joins signals end to end.
func Concat(signals ...[]float64) []float64 {
	var out []float64
	for _, s := range signals {
		out = append(out, s...)
	}
	return out
}
