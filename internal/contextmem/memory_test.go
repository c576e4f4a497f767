package contextmem

import (
	"testing"

	"github.com/nvandessel/cadbench/internal/facts"
)

func set(ids ...int) facts.Set {
	fs := make([]facts.Fact, len(ids))
	for i, id := range ids {
		fs[i] = facts.Signal(id)
	}
	return facts.NewSet(fs...)
}

func TestGetOrCreateSemiContext_Idempotent(t *testing.T) {
	m := New(7)

	id1, isNew := m.GetOrCreateSemiContext(Left, set(1, 3))
	if !isNew {
		t.Fatal("first insertion should be new")
	}
	id2, isNew := m.GetOrCreateSemiContext(Left, set(3, 1))
	if isNew {
		t.Error("second insertion of the same set should not be new")
	}
	if id1 != id2 {
		t.Errorf("ids differ: %d vs %d", id1, id2)
	}
	if got := m.NumSemiContexts(Left); got != 1 {
		t.Errorf("NumSemiContexts(Left) = %d, want 1", got)
	}
}

func TestGetOrCreateSemiContext_SidesAreIndependent(t *testing.T) {
	m := New(7)
	lid, _ := m.GetOrCreateSemiContext(Left, set(1))
	rid, isNew := m.GetOrCreateSemiContext(Right, set(1))
	if !isNew {
		t.Error("right side should not see left side's sets")
	}
	if lid != 0 || rid != 0 {
		t.Errorf("ids should be dense per side, got left=%d right=%d", lid, rid)
	}
}

func TestGetOrCreateSemiContext_DenseIDs(t *testing.T) {
	m := New(7)
	for i := 0; i < 5; i++ {
		id, _ := m.GetOrCreateSemiContext(Right, set(i+1))
		if id != i {
			t.Errorf("insertion %d got id %d", i, id)
		}
	}
}

func TestSemiContextsWith(t *testing.T) {
	m := New(7)
	a, _ := m.GetOrCreateSemiContext(Left, set(1, 3))
	b, _ := m.GetOrCreateSemiContext(Left, set(3, 5))

	got := m.SemiContextsWith(Left, facts.Signal(3))
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("SemiContextsWith(s3) = %v, want [%d %d]", got, a, b)
	}
	if got := m.SemiContextsWith(Left, facts.Signal(99)); len(got) != 0 {
		t.Errorf("unknown fact should yield no semi-contexts, got %v", got)
	}
	if got := m.SemiContextsWith(Right, facts.Signal(3)); len(got) != 0 {
		t.Errorf("right index should be empty, got %v", got)
	}
}

func TestGetOrCreateContext_UniquePerPair(t *testing.T) {
	m := New(7)
	l, _ := m.GetOrCreateSemiContext(Left, set(1))
	r, _ := m.GetOrCreateSemiContext(Right, set(3))

	id1, isNew := m.GetOrCreateContext(l, r)
	if !isNew {
		t.Fatal("first context should be new")
	}
	id2, isNew := m.GetOrCreateContext(l, r)
	if isNew || id1 != id2 {
		t.Errorf("second lookup = (%d, %v), want (%d, false)", id2, isNew, id1)
	}
	if m.Context(id1).Confirmed {
		t.Error("non-zero-level lookup must not confirm")
	}
	if got := m.NumContexts(); got != 1 {
		t.Errorf("NumContexts() = %d, want 1", got)
	}
}

func TestTryConfirmOrCreateZeroLevel(t *testing.T) {
	m := New(7)

	id, isNew := m.TryConfirmOrCreateZeroLevel(set(1, 3), set(5))
	if !isNew {
		t.Fatal("first zero-level pair should be new")
	}
	ctx := m.Context(id)
	if ctx.Confirmed {
		t.Error("new zero-level context should start unconfirmed")
	}
	if ctx.LeftHash != set(1, 3).Hash() || ctx.RightHash != set(5).Hash() {
		t.Error("context hashes do not match its halves")
	}

	again, isNew := m.TryConfirmOrCreateZeroLevel(set(3, 1), set(5))
	if isNew {
		t.Error("repeated zero-level pair should not be new")
	}
	if again != id {
		t.Errorf("repeated pair got id %d, want %d", again, id)
	}
	if !m.Context(id).Confirmed {
		t.Error("repeated zero-level pair should confirm the context")
	}
	if got := m.NumContexts(); got != 1 {
		t.Errorf("NumContexts() = %d, want 1", got)
	}
}

func TestInsertCandidateContexts(t *testing.T) {
	m := New(7)
	zid, _ := m.TryConfirmOrCreateZeroLevel(set(1), set(3))

	pairs := []Pair{
		{Left: set(1), Right: set(3)}, // collides with the zero-level context
		{Left: set(1), Right: set(5)},
		{Left: set(3), Right: set(5)},
		{Left: set(3), Right: set(5)}, // duplicate within the batch
	}
	if got := m.InsertCandidateContexts(pairs); got != 2 {
		t.Errorf("InsertCandidateContexts = %d, want 2", got)
	}
	if m.Context(zid).Confirmed {
		t.Error("candidate collision must not confirm an existing context")
	}
	if got := m.NumContexts(); got != 3 {
		t.Errorf("NumContexts() = %d, want 3", got)
	}
	if got := m.InsertCandidateContexts(pairs); got != 0 {
		t.Errorf("re-inserting the same batch added %d contexts", got)
	}
}

func TestConfirmedIsMonotonic(t *testing.T) {
	m := New(7)
	id, _ := m.TryConfirmOrCreateZeroLevel(set(1), set(3))
	m.TryConfirmOrCreateZeroLevel(set(1), set(3))
	m.InsertCandidateContexts([]Pair{{Left: set(1), Right: set(3)}})
	m.GetOrCreateContext(m.Context(id).LeftID, m.Context(id).RightID)
	if !m.Context(id).Confirmed {
		t.Error("confirmed flag was reset")
	}
}

func TestAccessors_OutOfRange(t *testing.T) {
	m := New(7)
	if m.Context(0) != nil || m.Context(-1) != nil {
		t.Error("Context on empty memory should return nil")
	}
	if m.SemiContext(Left, 0) != nil {
		t.Error("SemiContext on empty memory should return nil")
	}
}
