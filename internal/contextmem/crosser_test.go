package contextmem

import (
	"testing"

	"github.com/nvandessel/cadbench/internal/facts"
)

func TestCross_CountsMatchedFacts(t *testing.T) {
	m := New(7)
	a, _ := m.GetOrCreateSemiContext(Right, set(1, 3))
	b, _ := m.GetOrCreateSemiContext(Right, set(3, 5))
	c, _ := m.GetOrCreateSemiContext(Right, set(7))

	m.Cross(Right, set(1, 3, 5))

	tests := []struct {
		id      int
		matched int
		full    bool
	}{
		{a, 2, true},
		{b, 2, true},
		{c, 0, false},
	}
	for _, tt := range tests {
		sc := m.SemiContext(Right, tt.id)
		if sc.Matched != tt.matched {
			t.Errorf("semi-context %d matched = %d, want %d", tt.id, sc.Matched, tt.matched)
		}
		if sc.FullyMatched() != tt.full {
			t.Errorf("semi-context %d fully matched = %v, want %v", tt.id, sc.FullyMatched(), tt.full)
		}
	}

	crossed := m.Crossed(Right)
	if len(crossed) != 2 || crossed[0] != a || crossed[1] != b {
		t.Errorf("Crossed(Right) = %v, want [%d %d]", crossed, a, b)
	}
}

func TestCross_ResetsPreviousStep(t *testing.T) {
	m := New(7)
	a, _ := m.GetOrCreateSemiContext(Left, set(1, 3))
	b, _ := m.GetOrCreateSemiContext(Left, set(7))

	m.Cross(Left, set(1, 3))
	m.Cross(Left, set(7))

	if got := m.SemiContext(Left, a); got.Matched != 0 || len(got.MatchedFacts) != 0 {
		t.Errorf("semi-context %d not reset: matched=%d facts=%v", a, got.Matched, got.MatchedFacts)
	}
	if got := m.SemiContext(Left, b).Matched; got != 1 {
		t.Errorf("semi-context %d matched = %d, want 1", b, got)
	}
	if crossed := m.Crossed(Left); len(crossed) != 1 || crossed[0] != b {
		t.Errorf("Crossed(Left) = %v, want [%d]", crossed, b)
	}

	m.Cross(Left, nil)
	if got := len(m.Crossed(Left)); got != 0 {
		t.Errorf("empty input left %d crossed semi-contexts", got)
	}
}

func TestActivate_FiresFullyMatchedContext(t *testing.T) {
	m := New(7)
	id, _ := m.TryConfirmOrCreateZeroLevel(set(1, 3), set(5))

	m.Cross(Right, set(5))
	m.Cross(Left, set(1, 3))

	act := m.Activate(0, false)
	if act.NumFullyMatched != 1 {
		t.Errorf("NumFullyMatched = %d, want 1", act.NumFullyMatched)
	}
	if len(act.Active) != 1 || act.Active[0].ID != id || act.Active[0].FireCount != 1 {
		t.Fatalf("Active = %+v, want one firing of context %d", act.Active, id)
	}

	act = m.Activate(0, false)
	if act.Active[0].FireCount != 2 {
		t.Errorf("FireCount after second activation = %d, want 2", act.Active[0].FireCount)
	}
	if m.Context(id).FireCount != 2 {
		t.Errorf("stored FireCount = %d, want 2", m.Context(id).FireCount)
	}
}

func TestActivate_SkipsNewZeroLevelContext(t *testing.T) {
	m := New(7)
	id, isNew := m.TryConfirmOrCreateZeroLevel(set(1, 3), set(5))

	m.Cross(Right, set(5))
	m.Cross(Left, set(1, 3))

	act := m.Activate(id, isNew)
	if len(act.Active) != 0 || act.NumFullyMatched != 0 {
		t.Errorf("just-created context was processed: %+v", act)
	}
	if m.Context(id).FireCount != 0 {
		t.Error("just-created context fired")
	}
}

func TestActivate_PartialRightProposesCandidate(t *testing.T) {
	m := New(7)
	confirmed, _ := m.TryConfirmOrCreateZeroLevel(set(1, 3), set(5, 7))
	m.TryConfirmOrCreateZeroLevel(set(1, 3), set(5, 7))
	fresh, isNew := m.TryConfirmOrCreateZeroLevel(set(1, 3), set(9))
	if !m.Context(confirmed).Confirmed || !isNew {
		t.Fatal("setup failed")
	}

	m.Cross(Right, set(5, 9))
	m.Cross(Left, set(1, 3))

	act := m.Activate(fresh, true)
	if act.NumFullyMatched != 1 {
		t.Errorf("NumFullyMatched = %d, want 1", act.NumFullyMatched)
	}
	if len(act.Active) != 0 {
		t.Errorf("partially matched right half fired: %+v", act.Active)
	}
	if len(act.Candidates) != 1 {
		t.Fatalf("Candidates = %v, want 1", act.Candidates)
	}
	got := act.Candidates[0]
	if !got.Left.Equal(set(1, 3)) || !got.Right.Equal(set(5)) {
		t.Errorf("candidate = (%v, %v), want ({s1 s3}, {s5})", got.Left, got.Right)
	}
}

func TestActivate_PartialLeftProposesCandidate(t *testing.T) {
	m := New(7)
	m.TryConfirmOrCreateZeroLevel(set(1, 3), set(5))
	m.TryConfirmOrCreateZeroLevel(set(1, 3), set(5))
	fresh, _ := m.TryConfirmOrCreateZeroLevel(set(1, 3), set(5, 7))

	m.Cross(Right, set(5, 7))
	m.Cross(Left, set(1))

	act := m.Activate(fresh, true)
	if act.NumFullyMatched != 0 {
		t.Errorf("NumFullyMatched = %d, want 0", act.NumFullyMatched)
	}
	if len(act.Candidates) != 1 {
		t.Fatalf("Candidates = %v, want 1", act.Candidates)
	}
	if c := act.Candidates[0]; !c.Left.Equal(set(1)) || !c.Right.Equal(set(5)) {
		t.Errorf("candidate = (%v, %v), want ({s1}, {s5})", c.Left, c.Right)
	}
}

func TestActivate_NoCandidatesWithoutNewZeroLevel(t *testing.T) {
	m := New(7)
	m.TryConfirmOrCreateZeroLevel(set(1, 3), set(5, 7))
	m.TryConfirmOrCreateZeroLevel(set(1, 3), set(5, 7))

	m.Cross(Right, set(5))
	m.Cross(Left, set(1))

	if act := m.Activate(0, false); len(act.Candidates) != 0 {
		t.Errorf("Candidates = %v, want none", act.Candidates)
	}
}

func TestActivate_UnconfirmedContextsDoNotPropose(t *testing.T) {
	m := New(7)
	m.TryConfirmOrCreateZeroLevel(set(1, 3), set(5, 7))
	fresh, _ := m.TryConfirmOrCreateZeroLevel(set(1, 3), set(9))

	m.Cross(Right, set(5, 9))
	m.Cross(Left, set(1, 3))

	if act := m.Activate(fresh, true); len(act.Candidates) != 0 {
		t.Errorf("Candidates = %v, want none", act.Candidates)
	}
}

func TestActivate_LeftLengthBound(t *testing.T) {
	m := New(1)
	m.TryConfirmOrCreateZeroLevel(set(1, 3), set(5, 7))
	m.TryConfirmOrCreateZeroLevel(set(1, 3), set(5, 7))
	fresh, _ := m.TryConfirmOrCreateZeroLevel(set(1, 3), set(9))

	m.Cross(Right, set(5, 9))
	m.Cross(Left, set(1, 3))

	if act := m.Activate(fresh, true); len(act.Candidates) != 0 {
		t.Errorf("left overlap above bound proposed %v", act.Candidates)
	}
}

func TestActivate_DeduplicatesCandidates(t *testing.T) {
	m := New(7)
	for _, right := range []facts.Set{set(5, 7), set(5, 11)} {
		m.TryConfirmOrCreateZeroLevel(set(1, 3), right)
		m.TryConfirmOrCreateZeroLevel(set(1, 3), right)
	}
	fresh, _ := m.TryConfirmOrCreateZeroLevel(set(1, 3), set(9))

	m.Cross(Right, set(5, 9))
	m.Cross(Left, set(1, 3))

	act := m.Activate(fresh, true)
	if len(act.Candidates) != 1 {
		t.Errorf("Candidates = %v, want exactly one", act.Candidates)
	}
	if act.NumFullyMatched != 2 {
		t.Errorf("NumFullyMatched = %d, want 2", act.NumFullyMatched)
	}
}

func TestActivate_NeuronFactsInLeftHalf(t *testing.T) {
	m := New(7)
	left := facts.NewSet(facts.Signal(1), facts.Neuron(0))
	id, _ := m.TryConfirmOrCreateZeroLevel(left, set(3))

	m.Cross(Right, set(3))
	m.Cross(Left, facts.NewSet(facts.Signal(1), facts.Signal(0)))
	if act := m.Activate(-1, false); len(act.Active) != 0 {
		t.Errorf("signal 0 must not stand in for neuron 0: %+v", act.Active)
	}

	m.Cross(Left, left)
	if act := m.Activate(-1, false); len(act.Active) != 1 || act.Active[0].ID != id {
		t.Errorf("Active = %+v, want context %d", act.Active, id)
	}
}
