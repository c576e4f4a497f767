package detector

import (
	"errors"
	"math"
	"testing"
)

// patternValues repeats pat n times worth of steps.
func patternValues(pat []float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = pat[i%len(pat)]
	}
	return out
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"negative threshold", func(o *Options) { o.BaseThreshold = -0.1 }},
		{"threshold above one", func(o *Options) { o.BaseThreshold = 1.5 }},
		{"nan threshold", func(o *Options) { o.BaseThreshold = math.NaN() }},
		{"zero rest period", func(o *Options) { o.RestPeriod = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			if err := opts.Validate(); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("Validate() = %v, want ErrInvalidOptions", err)
			}
		})
	}

	if err := DefaultOptions().Validate(); err != nil {
		t.Errorf("DefaultOptions().Validate() = %v", err)
	}
}

func TestNewCAD_InvalidOptions(t *testing.T) {
	tests := []struct {
		name     string
		min, max float64
		mutate   func(*Options)
	}{
		{"zero bits", 0, 1, func(o *Options) { o.NumNormValueBits = 0 }},
		{"too many bits", 0, 1, func(o *Options) { o.NumNormValueBits = 31 }},
		{"zero neurons", 0, 1, func(o *Options) { o.MaxActiveNeurons = 0 }},
		{"zero left length", 0, 1, func(o *Options) { o.MaxLeftSemiContextsLength = 0 }},
		{"inverted range", 5, 1, func(o *Options) {}},
		{"bad threshold", 0, 1, func(o *Options) { o.BaseThreshold = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			if _, err := NewCAD(tt.min, tt.max, opts); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("NewCAD() error = %v, want ErrInvalidOptions", err)
			}
		})
	}
}

func TestCAD_InitialSentinelSuppresses(t *testing.T) {
	opts := DefaultOptions()
	opts.RestPeriod = 5
	cad, err := NewCAD(0, 7, opts)
	if err != nil {
		t.Fatalf("NewCAD: %v", err)
	}

	for i, v := range patternValues([]float64{1, 2, 3, 4, 3, 2}, opts.RestPeriod) {
		if got := cad.Score(v); got != 0 {
			t.Errorf("step %d: score = %v, want 0 during initial rest period", i, got)
		}
	}
	if got := cad.RawHistory()[0]; got != 1.0 {
		t.Errorf("RawHistory()[0] = %v, want sentinel 1.0", got)
	}
}

func TestCAD_GateMatchesRawHistory(t *testing.T) {
	opts := DefaultOptions()
	opts.RestPeriod = 4
	opts.BaseThreshold = 0.4
	cad, err := NewCAD(-1, 1, opts)
	if err != nil {
		t.Fatalf("NewCAD: %v", err)
	}

	n := 300
	emitted := make([]float64, n)
	for i := range n {
		emitted[i] = cad.Score(math.Sin(2 * math.Pi * float64(i) / 8))
	}

	hist := cad.RawHistory()
	if len(hist) != n+1 {
		t.Fatalf("len(RawHistory()) = %d, want %d", len(hist), n+1)
	}
	for i := range n {
		start := max(0, i+1-opts.RestPeriod)
		recent := 0.0
		for _, v := range hist[start : i+1] {
			recent = max(recent, v)
		}
		raw := hist[i+1]
		want := raw
		if recent >= opts.BaseThreshold {
			want = 0
		}
		if emitted[i] != want {
			t.Fatalf("step %d: emitted %v, want %v (raw %v, recent max %v)", i, emitted[i], want, raw, recent)
		}
	}
}

func TestCAD_ZeroThresholdAlwaysSuppresses(t *testing.T) {
	opts := DefaultOptions()
	opts.BaseThreshold = 0
	cad, err := NewCAD(0, 7, opts)
	if err != nil {
		t.Fatalf("NewCAD: %v", err)
	}
	for i, v := range patternValues([]float64{0, 7, 3}, 100) {
		if got := cad.Score(v); got != 0 {
			t.Fatalf("step %d: score = %v, want 0", i, got)
		}
	}
}

func TestCAD_SpikeScoresAndSuppresses(t *testing.T) {
	opts := DefaultOptions()
	opts.RestPeriod = 10
	opts.BaseThreshold = 0.3
	cad, err := NewCAD(0, 7, opts)
	if err != nil {
		t.Fatalf("NewCAD: %v", err)
	}

	vals := patternValues([]float64{1, 2, 3, 4, 3, 2}, 300)
	const spikeAt = 250
	vals[spikeAt] = 7

	emitted := make([]float64, len(vals))
	for i, v := range vals {
		emitted[i] = cad.Score(v)
	}
	raw := cad.RawHistory()[1:]

	baseline := 0.0
	for _, v := range raw[200:spikeAt] {
		baseline = max(baseline, v)
	}
	if baseline >= 0.25 {
		t.Errorf("baseline raw max = %v, want < 0.25", baseline)
	}
	if raw[spikeAt] < 0.45 {
		t.Errorf("spike raw score = %v, want >= 0.45", raw[spikeAt])
	}
	if emitted[spikeAt] != raw[spikeAt] {
		t.Errorf("spike emitted %v, want raw %v", emitted[spikeAt], raw[spikeAt])
	}
	for i := spikeAt + 1; i <= spikeAt+opts.RestPeriod; i++ {
		if emitted[i] != 0 {
			t.Errorf("step %d: emitted %v, want 0 after spike", i, emitted[i])
		}
	}
}

func TestCAD_Deterministic(t *testing.T) {
	vals := patternValues([]float64{0.1, 0.9, 0.5, 0.3, 0.7}, 400)
	run := func() []float64 {
		cad, err := NewCAD(0, 1, DefaultOptions())
		if err != nil {
			t.Fatalf("NewCAD: %v", err)
		}
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = cad.Score(v)
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("step %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestCAD_ScoresInUnitInterval(t *testing.T) {
	cad, err := NewCAD(0, 100, DefaultOptions())
	if err != nil {
		t.Fatalf("NewCAD: %v", err)
	}
	for i := range 1000 {
		v := float64((i * 37) % 101)
		got := cad.Score(v)
		if got < 0 || got > 1 {
			t.Fatalf("step %d: score %v outside [0, 1]", i, got)
		}
		if r := cad.Last().Score; r < 0 || r > 1 {
			t.Fatalf("step %d: raw %v outside [0, 1]", i, r)
		}
	}
}
