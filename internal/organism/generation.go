package organism

import (
	"math"
	"sort"
)

// Generation is an ordered set of organisms.
type Generation struct {
	orgs []*StructureOrg
}

func NewGeneration(orgs ...*StructureOrg) *Generation {
	return &Generation{orgs: append([]*StructureOrg(nil), orgs...)}
}

func (g *Generation) Add(o *StructureOrg) {
	g.orgs = append(g.orgs, o)
}

func (g *Generation) Len() int { return len(g.orgs) }

func (g *Generation) Organisms() []*StructureOrg {
	return append([]*StructureOrg(nil), g.orgs...)
}

// Ranked returns the organisms by ascending value. Unevaluated and infinite
// values sort last; ties keep insertion order.
func (g *Generation) Ranked() []*StructureOrg {
	out := g.Organisms()
	sort.SliceStable(out, func(i, j int) bool {
		return rankKey(out[i]) < rankKey(out[j])
	})
	return out
}

// Best is the lowest finite value, if any.
func (g *Generation) Best() (*StructureOrg, bool) {
	ranked := g.Ranked()
	if len(ranked) == 0 || math.IsInf(rankKey(ranked[0]), 1) {
		return nil, false
	}
	return ranked[0], true
}

func rankKey(o *StructureOrg) float64 {
	if !o.KnowsValue() {
		return math.Inf(1)
	}
	v := o.Value()
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}
