package contextmem

import (
	"slices"

	"github.com/nvandessel/cadbench/internal/facts"
)

// ActiveContext describes a context that fired on the current step.
type ActiveContext struct {
	ID        int
	FireCount int
	LeftHash  uint64
	RightHash uint64
}

// Activation is the outcome of the left-side activation pass.
type Activation struct {
	// Active lists the contexts whose halves were both fully matched.
	Active []ActiveContext
	// NumFullyMatched counts context entries examined under fully matched
	// left semi-contexts.
	NumFullyMatched int
	// Candidates holds deduplicated (left, right) matched-fact pairs that
	// may become new contexts.
	Candidates []Pair
}

// Cross updates the matched counts of side's semi-contexts against input.
// Only semi-contexts touched by the previous crossing on this side are
// reset, and only those reachable from input's facts are visited.
func (m *Memory) Cross(side Side, input facts.Set) {
	st := m.sides[side]
	for _, id := range st.crossed {
		sc := st.records[id]
		sc.Matched = 0
		sc.MatchedFacts = sc.MatchedFacts[:0]
	}

	crossed := st.crossed[:0]
	for _, f := range input {
		for _, id := range st.index[f] {
			sc := st.records[id]
			if sc.Matched == 0 {
				crossed = append(crossed, id)
			}
			sc.Matched++
			sc.MatchedFacts = append(sc.MatchedFacts, f)
		}
	}
	slices.Sort(crossed)
	st.crossed = crossed
}

// Crossed returns the ids of side's semi-contexts matched by the last Cross.
func (m *Memory) Crossed(side Side) []int {
	return m.sides[side].crossed
}

// Activate walks the left semi-contexts crossed on the previous step and
// their contexts. Contexts whose right half is fully matched by the current
// right crossing fire. When a new zero-level context was created this step
// (hasNew), partial overlaps of confirmed contexts become candidates.
// The context newZeroLevel itself is skipped.
func (m *Memory) Activate(newZeroLevel int, hasNew bool) Activation {
	var out Activation
	seen := make(map[pairKey]struct{})

	addCandidate := func(left, right *SemiContext) {
		p := Pair{
			Left:  facts.NewSet(left.MatchedFacts...),
			Right: facts.NewSet(right.MatchedFacts...),
		}
		k := p.key()
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out.Candidates = append(out.Candidates, p)
	}

	rights := m.sides[Right].records
	for _, leftID := range m.sides[Left].crossed {
		left := m.sides[Left].records[leftID]
		withinBound := left.Matched <= m.maxLeftLength

		for _, adj := range left.adjacent {
			if hasNew && adj.ContextID == newZeroLevel {
				continue
			}
			ctx := m.contexts[adj.ContextID]
			right := rights[adj.RightID]
			mayPropose := ctx.Confirmed && hasNew && withinBound

			if left.FullyMatched() {
				out.NumFullyMatched++
				if right.Matched == 0 {
					continue
				}
				if right.FullyMatched() {
					ctx.FireCount++
					out.Active = append(out.Active, ActiveContext{
						ID:        ctx.ID,
						FireCount: ctx.FireCount,
						LeftHash:  ctx.LeftHash,
						RightHash: ctx.RightHash,
					})
				} else if mayPropose {
					addCandidate(left, right)
				}
			} else if mayPropose && right.Matched > 0 {
				addCandidate(left, right)
			}
		}
	}
	return out
}
