// Package facts defines the symbolic tokens the context-memory engine learns
// from. A Fact is either a quantized signal bit or the id of a context that
// fired on the previous step ("neuron"). The two kinds never compare equal,
// whatever their numeric ids.
package facts

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Kind tags the namespace a Fact's ID lives in.
type Kind uint8

const (
	// KindSignal marks a fact produced by the value encoder.
	KindSignal Kind = iota
	// KindNeuron marks a fact produced by a context that fired.
	KindNeuron
)

// String returns a short label for the kind.
func (k Kind) String() string {
	switch k {
	case KindSignal:
		return "signal"
	case KindNeuron:
		return "neuron"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Fact is an immutable, comparable symbolic token.
type Fact struct {
	Kind Kind
	ID   int
}

// Signal returns a signal fact with the given id.
func Signal(id int) Fact { return Fact{Kind: KindSignal, ID: id} }

// Neuron returns a neuron fact for the given context id.
func Neuron(contextID int) Fact { return Fact{Kind: KindNeuron, ID: contextID} }

// Compare orders facts by kind, then id. Signal facts sort before neurons.
func Compare(a, b Fact) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// String renders the fact as "s5" or "n12".
func (f Fact) String() string {
	if f.Kind == KindNeuron {
		return fmt.Sprintf("n%d", f.ID)
	}
	return fmt.Sprintf("s%d", f.ID)
}

// Set is a sorted, duplicate-free sequence of facts. The zero value is the
// empty set. Sets must not be mutated after construction; they are used as
// dictionary keys through Key.
type Set []Fact

// NewSet builds a Set from facts in any order, dropping duplicates.
func NewSet(fs ...Fact) Set {
	if len(fs) == 0 {
		return nil
	}
	out := make(Set, len(fs))
	copy(out, fs)
	slices.SortFunc(out, Compare)
	return slices.CompactFunc(out, func(a, b Fact) bool { return a == b })
}

// Union returns the set of facts present in s or other.
func (s Set) Union(other Set) Set {
	merged := make([]Fact, 0, len(s)+len(other))
	merged = append(merged, s...)
	merged = append(merged, other...)
	return NewSet(merged...)
}

// Contains reports whether f is in the set.
func (s Set) Contains(f Fact) bool {
	_, found := slices.BinarySearchFunc(s, f, Compare)
	return found
}

// Equal reports whether both sets hold the same facts.
func (s Set) Equal(other Set) bool {
	return slices.Equal(s, other)
}

// Key returns the canonical byte encoding of the set as a string, suitable
// for map keys. Equal sets always produce equal keys.
func (s Set) Key() string {
	buf := make([]byte, 0, len(s)*(1+binary.MaxVarintLen64))
	for _, f := range s {
		buf = append(buf, byte(f.Kind))
		buf = binary.AppendUvarint(buf, uint64(f.ID))
	}
	return string(buf)
}

// Hash returns a 64-bit digest of the set's canonical key.
func (s Set) Hash() uint64 {
	return xxhash.Sum64String(s.Key())
}

// String renders the set as "{s1 s3 n7}".
func (s Set) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = f.String()
	}
	return "{" + strings.Join(parts, " ") + "}"
}
