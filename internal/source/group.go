package source

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/quakeworks/srcmodel/internal/tom"
)

// Interdep states whether the items of a group are independent or mutually
// exclusive.
type Interdep string

const (
	Indep Interdep = "indep"
	Mutex Interdep = "mutex"
)

func (i Interdep) valid() bool { return i == Indep || i == Mutex }

// DefaultKey indexes the fallback entry of a MagFloor.
const DefaultKey = "default"

// MagFloor maps tectonic region types to their minimum magnitude, with the
// DefaultKey entry as fallback.
type MagFloor map[string]float64

// For returns the floor for the given tectonic region type.
func (f MagFloor) For(trt string) float64 {
	if m := f[trt]; m != 0 {
		return m
	}
	return f[DefaultKey]
}

// GroupOptions carries the optional attributes of a source group.
type GroupOptions struct {
	Name           string
	SrcInterdep    Interdep // empty means independent
	RupInterdep    Interdep // empty means independent
	GrpProbability *float64
	Cluster        bool
	TOM            tom.TOM
	MinMag         MagFloor // nil means no floor
}

// Group is an ordered list of sources sharing one tectonic region type, plus
// the occurrence semantics declared on the enclosing block. Sources enter
// through Update.
type Group struct {
	trt            string
	name           string
	srcInterdep    Interdep
	rupInterdep    Interdep
	grpProbability *float64
	cluster        bool
	tom            tom.TOM
	minMag         MagFloor
	sources        []Source
	maxMag         float64
	hasMaxMag      bool
}

// NewGroup returns an empty group for the given tectonic region type.
func NewGroup(trt string, opts GroupOptions) (*Group, error) {
	if trt == "" {
		return nil, errors.New("a group needs a tectonic region type")
	}
	if opts.SrcInterdep == "" {
		opts.SrcInterdep = Indep
	}
	if opts.RupInterdep == "" {
		opts.RupInterdep = Indep
	}
	if !opts.SrcInterdep.valid() {
		return nil, fmt.Errorf("source interdependence %q is neither indep nor mutex", opts.SrcInterdep)
	}
	if !opts.RupInterdep.valid() {
		return nil, fmt.Errorf("rupture interdependence %q is neither indep nor mutex", opts.RupInterdep)
	}
	if opts.MinMag == nil {
		opts.MinMag = MagFloor{DefaultKey: 0}
	}
	return &Group{
		trt:            trt,
		name:           opts.Name,
		srcInterdep:    opts.SrcInterdep,
		rupInterdep:    opts.RupInterdep,
		grpProbability: opts.GrpProbability,
		cluster:        opts.Cluster,
		tom:            opts.TOM,
		minMag:         opts.MinMag,
	}, nil
}

func (g *Group) TRT() string           { return g.trt }
func (g *Group) Name() string          { return g.name }
func (g *Group) SrcInterdep() Interdep { return g.srcInterdep }
func (g *Group) RupInterdep() Interdep { return g.rupInterdep }
func (g *Group) Cluster() bool         { return g.cluster }
func (g *Group) TOM() tom.TOM          { return g.tom }
func (g *Group) MinMag() MagFloor      { return g.minMag }

func (g *Group) GrpProbability() (float64, bool) {
	if g.grpProbability == nil {
		return 0, false
	}
	return *g.grpProbability, true
}

// Sources returns the member sources in insertion order. The returned slice
// must not be modified.
func (g *Group) Sources() []Source { return g.sources }

func (g *Group) Len() int { return len(g.sources) }

// MaxMag returns the running maximum magnitude over the members.
func (g *Group) MaxMag() (float64, bool) { return g.maxMag, g.hasMaxMag }

// Update validates src against the group and appends it, keeping the running
// maximum magnitude monotonic. A source without a floor of its own inherits
// the group's; if no magnitudes survive the floor the source is dropped, not
// an error. The returned bool reports whether src was kept.
func (g *Group) Update(src Source) (bool, error) {
	if src.TRT() != g.trt {
		return false, fmt.Errorf("source %s has tectonic region type %q, group has %q",
			src.ID(), src.TRT(), g.trt)
	}
	if src.MinMag() == 0 {
		src.ApplyMinMag(g.minMag.For(g.trt))
		if len(src.Mags()) == 0 { // filtered out
			return false, nil
		}
	}
	if g.rupInterdep == Mutex {
		if err := checkMutexRuptures(src); err != nil {
			return false, err
		}
	}
	g.sources = append(g.sources, src)
	_, maxMag := src.MinMaxMag()
	if !g.hasMaxMag || maxMag > g.maxMag {
		g.maxMag, g.hasMaxMag = maxMag, true
	}
	return true, nil
}

func checkMutexRuptures(src Source) error {
	np, ok := src.(*NonParametric)
	if !ok {
		return fmt.Errorf("mutually exclusive ruptures can only be modelled by non-parametric sources, %s is a %s source",
			src.ID(), src.Kind())
	}
	for i, d := range np.Data {
		if d.Rup.Weight == nil {
			return fmt.Errorf("source %s: rupture %d carries no weight, required for mutually exclusive ruptures",
				np.ID(), i)
		}
	}
	return nil
}

// Weight sums the member weights.
func (g *Group) Weight() float64 {
	total := 0.0
	for _, src := range g.sources {
		total += src.Weight()
	}
	return total
}

// Atomic reports whether the group must be processed as a unit: cluster
// groups and groups with mutually exclusive sources or ruptures never split.
func (g *Group) Atomic() bool {
	return g.cluster || g.srcInterdep == Mutex || g.rupInterdep == Mutex
}

// Split partitions the group into subgroups of weight at most maxWeight,
// preserving source order. Atomic groups come back whole, and a single
// source heavier than the bound gets a subgroup of its own.
func (g *Group) Split(maxWeight float64) ([]*Group, error) {
	if maxWeight <= 0 {
		return nil, fmt.Errorf("max weight %v must be positive", maxWeight)
	}
	if g.Atomic() {
		return []*Group{g}, nil
	}
	var out []*Group
	for _, block := range splitBlocks(g.sources, maxWeight, Source.Weight) {
		cp := *g
		cp.sources = block
		out = append(out, &cp)
	}
	return out, nil
}

// splitBlocks partitions items into consecutive blocks of total weight at
// most maxWeight. A single item heavier than the bound forms its own block.
func splitBlocks[T any](items []T, maxWeight float64, weight func(T) float64) [][]T {
	var out [][]T
	var cur []T
	w := 0.0
	for _, it := range items {
		iw := weight(it)
		if len(cur) > 0 && w+iw > maxWeight {
			out = append(out, cur)
			cur, w = nil, 0
		}
		cur = append(cur, it)
		w += iw
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// Compare orders groups with fewer sources first, breaking ties on the
// tectonic region type.
func (g *Group) Compare(other *Group) int {
	if d := cmp.Compare(len(g.sources), len(other.sources)); d != 0 {
		return d
	}
	return cmp.Compare(g.trt, other.trt)
}

func (g *Group) String() string {
	return fmt.Sprintf("<Group %s, %d source(s)>", g.trt, len(g.sources))
}

// CollectByTRT partitions bare sources into one group per tectonic region
// type, returned in the standard group order.
func CollectByTRT(srcs []Source, floor MagFloor) ([]*Group, error) {
	byTRT := map[string]*Group{}
	var out []*Group
	for _, src := range srcs {
		g := byTRT[src.TRT()]
		if g == nil {
			var err error
			g, err = NewGroup(src.TRT(), GroupOptions{MinMag: floor})
			if err != nil {
				return nil, fmt.Errorf("source %s: %w", src.ID(), err)
			}
			byTRT[src.TRT()] = g
			out = append(out, g)
		}
		if _, err := g.Update(src); err != nil {
			return nil, err
		}
	}
	slices.SortFunc(out, (*Group).Compare)
	return out, nil
}
