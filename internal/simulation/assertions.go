package simulation

import (
	"testing"
)

// AssertScoresInRange asserts that every emitted and raw score lies in
// [0, 1].
func AssertScoresInRange(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, s := range result.Steps {
		if s.Score < 0 || s.Score > 1 {
			t.Errorf("AssertScoresInRange: %s step %d: score %.6f outside [0, 1]", result.Name, s.Index, s.Score)
		}
		if s.Raw < 0 || s.Raw > 1 {
			t.Errorf("AssertScoresInRange: %s step %d: raw score %.6f outside [0, 1]", result.Name, s.Index, s.Raw)
		}
	}
}

// AssertSteadyStateBelow asserts that the mean raw score from step after
// onwards stays below maxMean.
func AssertSteadyStateBelow(t *testing.T, result SimulationResult, after int, maxMean float64) {
	t.Helper()
	if after >= len(result.Steps) {
		t.Fatalf("AssertSteadyStateBelow: %s has %d steps, need more than %d", result.Name, len(result.Steps), after)
	}
	var sum float64
	for _, s := range result.Steps[after:] {
		sum += s.Raw
	}
	mean := sum / float64(len(result.Steps)-after)
	if mean >= maxMean {
		t.Errorf("AssertSteadyStateBelow: %s mean raw score %.4f after step %d, want < %.4f", result.Name, mean, after, maxMean)
	}
}

// AssertSuppressedAfter asserts that the n emitted scores following step
// index are all exactly zero.
func AssertSuppressedAfter(t *testing.T, result SimulationResult, index, n int) {
	t.Helper()
	end := min(index+n, len(result.Steps)-1)
	for i := index + 1; i <= end; i++ {
		if s := result.Steps[i].Score; s != 0 {
			t.Errorf("AssertSuppressedAfter: %s step %d: score %.6f, want 0 within %d steps of %d", result.Name, i, s, n, index)
		}
	}
}

// AssertRawAtLeast asserts that the raw score at index reaches floor.
func AssertRawAtLeast(t *testing.T, result SimulationResult, index int, floor float64) {
	t.Helper()
	if index >= len(result.Steps) {
		t.Fatalf("AssertRawAtLeast: %s has no step %d", result.Name, index)
	}
	if raw := result.Steps[index].Raw; raw < floor {
		t.Errorf("AssertRawAtLeast: %s step %d: raw score %.4f, want >= %.4f", result.Name, index, raw, floor)
	}
}

// AssertContextsMonotonic asserts that the context memory never shrinks.
func AssertContextsMonotonic(t *testing.T, result SimulationResult) {
	t.Helper()
	for i := 1; i < len(result.Steps); i++ {
		if result.Steps[i].NumContexts < result.Steps[i-1].NumContexts {
			t.Errorf("AssertContextsMonotonic: %s step %d: %d contexts after %d", result.Name, i, result.Steps[i].NumContexts, result.Steps[i-1].NumContexts)
		}
	}
}

// AssertIdentical asserts that two runs produced the same scores.
func AssertIdentical(t *testing.T, a, b SimulationResult) {
	t.Helper()
	if len(a.Steps) != len(b.Steps) {
		t.Fatalf("AssertIdentical: %d steps vs %d", len(a.Steps), len(b.Steps))
	}
	for i := range a.Steps {
		if a.Steps[i] != b.Steps[i] {
			t.Fatalf("AssertIdentical: step %d differs: %+v vs %+v", i, a.Steps[i], b.Steps[i])
		}
	}
}
