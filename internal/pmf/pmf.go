package pmf

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Tolerance is the maximum deviation from 1 accepted for the sum of the
// probabilities of a distribution.
const Tolerance = 1e-12

// Pair couples a probability with the value it applies to.
type Pair[V any] struct {
	Prob  float64
	Value V
}

// PMF is a discrete probability mass function: an ordered list of
// (probability, value) pairs whose probabilities sum to one.
type PMF[V any] struct {
	pairs []Pair[V]
}

// New builds a PMF from the given pairs. It fails if the list is empty, any
// probability falls outside [0, 1], or the probabilities do not sum to one
// within Tolerance.
func New[V any](pairs []Pair[V]) (*PMF[V], error) {
	if len(pairs) == 0 {
		return nil, errors.New("a probability mass function needs at least one pair")
	}
	sum := 0.0
	for _, p := range pairs {
		if math.IsNaN(p.Prob) || p.Prob < 0 || p.Prob > 1 {
			return nil, fmt.Errorf("probability %v outside [0, 1]", p.Prob)
		}
		sum += p.Prob
	}
	if math.Abs(sum-1) > Tolerance {
		return nil, fmt.Errorf("probabilities sum to %.17g, want 1", sum)
	}
	return &PMF[V]{pairs: slices.Clone(pairs)}, nil
}

// Single builds the degenerate distribution assigning probability 1 to v.
func Single[V any](v V) *PMF[V] {
	return &PMF[V]{pairs: []Pair[V]{{Prob: 1, Value: v}}}
}

// Len reports the number of pairs.
func (m *PMF[V]) Len() int { return len(m.pairs) }

// Pairs returns the pairs in their stored order. The returned slice must not
// be modified.
func (m *PMF[V]) Pairs() []Pair[V] { return m.pairs }

// Probs returns the probabilities in pair order.
func (m *PMF[V]) Probs() []float64 {
	out := make([]float64, len(m.pairs))
	for i, p := range m.pairs {
		out[i] = p.Prob
	}
	return out
}

// Values returns the values in pair order.
func (m *PMF[V]) Values() []V {
	out := make([]V, len(m.pairs))
	for i, p := range m.pairs {
		out[i] = p.Value
	}
	return out
}
