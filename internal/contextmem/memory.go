// Package contextmem implements the context memory of the contextual anomaly
// detector: deduplicated left and right semi-contexts, the contexts that pair
// them, and the per-step crossing and activation passes over that memory.
//
// All state lives in append-only slices indexed by dense ids. Nothing is ever
// deleted or compacted, so ids handed out remain valid for the lifetime of the
// Memory. A Memory is not safe for concurrent use.
package contextmem

import (
	"github.com/nvandessel/cadbench/internal/facts"
)

// Side selects one half of a context.
type Side int

const (
	// Left holds the history half of a context.
	Left Side = iota
	// Right holds the current-step half of a context.
	Right
)

// String returns "left" or "right".
func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Pair is a (left, right) fact-set pair proposed as a context.
type Pair struct {
	Left  facts.Set
	Right facts.Set
}

// key returns a map key identifying the pair.
func (p Pair) key() pairKey {
	return pairKey{left: p.Left.Key(), right: p.Right.Key()}
}

type pairKey struct {
	left, right string
}

// adjacency is one rightID -> contextID entry of a left semi-context.
type adjacency struct {
	RightID   int
	ContextID int
}

// SemiContext is a deduplicated fact set seen as one half of a context.
type SemiContext struct {
	ID   int
	Side Side
	// Facts is the stored fact set; Size is its length.
	Facts facts.Set
	Hash  uint64
	Size  int

	// Matched and MatchedFacts describe the overlap with the latest input
	// crossed on this side. They are rewritten every step.
	Matched      int
	MatchedFacts []facts.Fact

	// adjacent is only populated on left semi-contexts, in insertion order.
	adjacent []adjacency
	byRight  map[int]int
}

// FullyMatched reports whether every stored fact was present in the last
// crossed input.
func (sc *SemiContext) FullyMatched() bool {
	return sc.Matched == sc.Size
}

// Adjacent returns the number of contexts this left semi-context belongs to.
func (sc *SemiContext) Adjacent() int {
	return len(sc.adjacent)
}

// Context pairs a left and a right semi-context.
type Context struct {
	ID        int
	LeftID    int
	RightID   int
	LeftHash  uint64
	RightHash uint64

	// FireCount counts the steps on which both halves were fully matched.
	FireCount int
	// Confirmed is set once the pair is observed again as a zero-level
	// context and never cleared.
	Confirmed bool
}

// sideStore holds the semi-contexts of one side.
type sideStore struct {
	ids     map[string]int
	records []*SemiContext
	index   map[facts.Fact][]int
	crossed []int
}

func newSideStore() *sideStore {
	return &sideStore{
		ids:   make(map[string]int),
		index: make(map[facts.Fact][]int),
	}
}

// Memory is the global dictionary of semi-contexts and contexts.
type Memory struct {
	maxLeftLength int
	sides         [2]*sideStore
	contexts      []*Context
}

// New creates an empty Memory. maxLeftLength bounds the number of matched
// left facts a candidate context may carry.
func New(maxLeftLength int) *Memory {
	return &Memory{
		maxLeftLength: maxLeftLength,
		sides:         [2]*sideStore{newSideStore(), newSideStore()},
	}
}

// GetOrCreateSemiContext returns the id of the semi-context holding set on
// the given side, creating and indexing it if absent.
func (m *Memory) GetOrCreateSemiContext(side Side, set facts.Set) (int, bool) {
	st := m.sides[side]
	key := set.Key()
	if id, ok := st.ids[key]; ok {
		return id, false
	}

	id := len(st.records)
	sc := &SemiContext{
		ID:    id,
		Side:  side,
		Facts: set,
		Hash:  set.Hash(),
		Size:  len(set),
	}
	if side == Left {
		sc.byRight = make(map[int]int)
	}
	st.ids[key] = id
	st.records = append(st.records, sc)
	for _, f := range set {
		st.index[f] = append(st.index[f], id)
	}
	return id, true
}

// GetOrCreateContext returns the context pairing leftID and rightID,
// creating an unconfirmed one if absent. An existing context is returned
// untouched.
func (m *Memory) GetOrCreateContext(leftID, rightID int) (int, bool) {
	left := m.sides[Left].records[leftID]
	if id, ok := left.byRight[rightID]; ok {
		return id, false
	}

	id := len(m.contexts)
	m.contexts = append(m.contexts, &Context{
		ID:        id,
		LeftID:    leftID,
		RightID:   rightID,
		LeftHash:  left.Hash,
		RightHash: m.sides[Right].records[rightID].Hash,
	})
	left.byRight[rightID] = id
	left.adjacent = append(left.adjacent, adjacency{RightID: rightID, ContextID: id})
	return id, true
}

// TryConfirmOrCreateZeroLevel records the zero-level context formed by the
// previous step's left group and the current facts. A pair seen before is
// marked confirmed and reported as not new; otherwise a new unconfirmed
// context is created.
func (m *Memory) TryConfirmOrCreateZeroLevel(left, right facts.Set) (int, bool) {
	leftID, _ := m.GetOrCreateSemiContext(Left, left)
	rightID, _ := m.GetOrCreateSemiContext(Right, right)

	id, isNew := m.GetOrCreateContext(leftID, rightID)
	if !isNew {
		m.contexts[id].Confirmed = true
	}
	return id, isNew
}

// InsertCandidateContexts stores every pair as a context and returns how
// many were genuinely new. Pairs that already exist are left unchanged.
func (m *Memory) InsertCandidateContexts(pairs []Pair) int {
	added := 0
	for _, p := range pairs {
		leftID, _ := m.GetOrCreateSemiContext(Left, p.Left)
		rightID, _ := m.GetOrCreateSemiContext(Right, p.Right)
		if _, isNew := m.GetOrCreateContext(leftID, rightID); isNew {
			added++
		}
	}
	return added
}

// SemiContext returns the semi-context with the given id, or nil.
func (m *Memory) SemiContext(side Side, id int) *SemiContext {
	st := m.sides[side]
	if id < 0 || id >= len(st.records) {
		return nil
	}
	return st.records[id]
}

// Context returns the context with the given id, or nil.
func (m *Memory) Context(id int) *Context {
	if id < 0 || id >= len(m.contexts) {
		return nil
	}
	return m.contexts[id]
}

// SemiContextsWith returns the ids of semi-contexts on side that contain f.
// Facts never stored yield an empty result.
func (m *Memory) SemiContextsWith(side Side, f facts.Fact) []int {
	return m.sides[side].index[f]
}

// NumSemiContexts returns how many semi-contexts exist on side.
func (m *Memory) NumSemiContexts(side Side) int {
	return len(m.sides[side].records)
}

// NumContexts returns how many contexts exist.
func (m *Memory) NumContexts() int {
	return len(m.contexts)
}

// MaxLeftLength returns the candidate left-length bound.
func (m *Memory) MaxLeftLength() int {
	return m.maxLeftLength
}
