// Package stream drives the context memory one input step at a time and
// derives the raw anomaly score from how many expected contexts fired and
// how many genuinely new contexts had to be learned.
package stream

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/nvandessel/cadbench/internal/contextmem"
	"github.com/nvandessel/cadbench/internal/facts"
)

// Options configures a State.
type Options struct {
	// MaxLeftSemiContextsLength bounds the left overlap of candidate contexts.
	MaxLeftSemiContextsLength int
	// MaxActiveNeurons caps the fired contexts fed back as neuron facts.
	MaxActiveNeurons int
}

// StepResult reports one step of the engine.
type StepResult struct {
	PercentActive float64
	PercentNew    float64
	// Score is (1 - PercentActive + PercentNew) / 2.
	Score float64

	NumActive       int
	NumFullyMatched int
	NumCandidates   int
	NumNewContexts  int
	NewZeroLevel    bool
	FiredNeurons    []int
}

// State carries the rolling left facts group between steps.
type State struct {
	opts      Options
	mem       *contextmem.Memory
	leftGroup facts.Set
}

// New creates a State with an empty memory.
func New(opts Options) (*State, error) {
	if opts.MaxLeftSemiContextsLength < 1 {
		return nil, fmt.Errorf("max_left_semi_contexts_length must be positive, got %d", opts.MaxLeftSemiContextsLength)
	}
	if opts.MaxActiveNeurons < 1 {
		return nil, fmt.Errorf("max_active_neurons must be positive, got %d", opts.MaxActiveNeurons)
	}
	return &State{
		opts: opts,
		mem:  contextmem.New(opts.MaxLeftSemiContextsLength),
	}, nil
}

// Memory exposes the underlying context memory for inspection.
func (s *State) Memory() *contextmem.Memory { return s.mem }

// LeftGroup returns the left facts group carried into the next step.
func (s *State) LeftGroup() facts.Set { return s.leftGroup }

// Step feeds the current step's facts through the memory.
func (s *State) Step(current facts.Set) StepResult {
	var res StepResult
	uniq := 0

	var zeroLevel contextmem.Pair
	newZeroID := -1
	if len(s.leftGroup) > 0 && len(current) > 0 {
		zeroLevel = contextmem.Pair{Left: s.leftGroup, Right: current}
		uniq++
		id, isNew := s.mem.TryConfirmOrCreateZeroLevel(zeroLevel.Left, zeroLevel.Right)
		if isNew {
			newZeroID = id
			res.NewZeroLevel = true
		}
	}

	s.mem.Cross(contextmem.Right, current)
	act := s.mem.Activate(newZeroID, res.NewZeroLevel)

	for _, c := range act.Candidates {
		if uniq > 0 && c.Left.Equal(zeroLevel.Left) && c.Right.Equal(zeroLevel.Right) {
			continue
		}
		uniq++
	}

	res.NumActive = len(act.Active)
	res.NumFullyMatched = act.NumFullyMatched
	res.NumCandidates = len(act.Candidates)
	if act.NumFullyMatched > 0 {
		res.PercentActive = float64(len(act.Active)) / float64(act.NumFullyMatched)
	}

	res.FiredNeurons = s.selectNeurons(act.Active)
	neurons := make([]facts.Fact, len(res.FiredNeurons))
	for i, id := range res.FiredNeurons {
		neurons[i] = facts.Neuron(id)
	}
	s.leftGroup = current.Union(neurons)

	res.NumNewContexts = s.mem.InsertCandidateContexts(act.Candidates)
	s.mem.Cross(contextmem.Left, s.leftGroup)
	if res.NewZeroLevel {
		res.NumNewContexts++
	}

	if uniq > 0 {
		res.PercentNew = float64(res.NumNewContexts) / float64(uniq)
	}
	res.Score = (1.0 - res.PercentActive + res.PercentNew) / 2.0
	return res
}

// selectNeurons ranks fired contexts by (FireCount, LeftHash, RightHash)
// and returns the ids of the highest-ranked MaxActiveNeurons.
func (s *State) selectNeurons(active []contextmem.ActiveContext) []int {
	if len(active) == 0 {
		return nil
	}
	ranked := slices.Clone(active)
	slices.SortStableFunc(ranked, func(a, b contextmem.ActiveContext) int {
		if c := cmp.Compare(a.FireCount, b.FireCount); c != 0 {
			return c
		}
		if c := cmp.Compare(a.LeftHash, b.LeftHash); c != 0 {
			return c
		}
		return cmp.Compare(a.RightHash, b.RightHash)
	})
	if len(ranked) > s.opts.MaxActiveNeurons {
		ranked = ranked[len(ranked)-s.opts.MaxActiveNeurons:]
	}
	ids := make([]int, len(ranked))
	for i, a := range ranked {
		ids[i] = a.ID
	}
	return ids
}
