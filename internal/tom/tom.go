package tom

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Default is the model kind assumed when the input declares none.
const Default = "poisson"

// TOM is a temporal occurrence model over a fixed time span, with an
// optional fixed occurrence rate (used by cluster groups).
type TOM interface {
	Name() string
	TimeSpan() float64
	// OccurrenceRate returns the declared fixed rate, if any.
	OccurrenceRate() (float64, bool)
}

type base struct {
	timeSpan float64
	rate     *float64
}

func (b base) TimeSpan() float64 { return b.timeSpan }

func (b base) OccurrenceRate() (float64, bool) {
	if b.rate == nil {
		return 0, false
	}
	return *b.rate, true
}

// Poisson models occurrences as a homogeneous Poisson process.
type Poisson struct{ base }

func (Poisson) Name() string { return "poisson" }

// ProbOneOrMore returns the probability of at least one occurrence of an
// event with the given annual rate over the time span.
func (p Poisson) ProbOneOrMore(rate float64) float64 {
	return 1 - math.Exp(-rate*p.timeSpan)
}

// ClusterPoisson is the Poisson model applied to a whole cluster group: the
// fixed occurrence rate belongs to the cluster, not to individual sources.
type ClusterPoisson struct{ Poisson }

func (ClusterPoisson) Name() string { return "cluster_poisson" }

// NegativeBinomial marks groups whose occurrence counts are overdispersed
// with respect to a Poisson process.
type NegativeBinomial struct{ base }

func (NegativeBinomial) Name() string { return "negative_binomial" }

// Registry is a name-to-constructor table, built once and never mutated.
type Registry struct {
	byName map[string]func(base) TOM
}

// Builtin returns a registry of the models shipped with this package.
func Builtin() *Registry {
	return &Registry{byName: map[string]func(base) TOM{
		"poisson":           func(b base) TOM { return Poisson{b} },
		"cluster_poisson":   func(b base) TOM { return ClusterPoisson{Poisson{b}} },
		"negative_binomial": func(b base) TOM { return NegativeBinomial{b} },
	}}
}

// New builds the model registered under name. timeSpan is in years; rate, if
// not nil, is the fixed occurrence rate of the group.
func (r *Registry) New(name string, timeSpan float64, rate *float64) (TOM, error) {
	ctor, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown temporal occurrence model %q (have %s)",
			name, strings.Join(r.Names(), ", "))
	}
	if timeSpan <= 0 {
		return nil, fmt.Errorf("time span %v must be positive", timeSpan)
	}
	if rate != nil && *rate <= 0 {
		return nil, fmt.Errorf("occurrence rate %v must be positive", *rate)
	}
	return ctor(base{timeSpan: timeSpan, rate: rate}), nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
