package creator

import (
	"fmt"
	"log/slog"

	"structsearch/internal/chem"
	"structsearch/internal/geom"
	"structsearch/internal/metrics"
	"structsearch/internal/organism"
	"structsearch/internal/rng"
)

// Placement is one rigidly placed group of consecutive cell sites: a unit
// instance or a single free atom. Site offsets are taken relative to
// Reference, so moving Reference moves the whole group.
type Placement struct {
	Reference geom.Vect
	Start     int
	Size      int
	Unit      bool
}

// build accumulates sites for one structure under a shared failure budget.
type build struct {
	lattice     geom.Lattice
	minDist     float64
	r           *rng.Source
	logger      *slog.Logger
	maxFailures int

	sites      []geom.Site
	placements []Placement
	references []geom.Vect
	failures   int
	skipped    int
}

func newBuild(lattice geom.Lattice, minDist float64, maxFailures int, r *rng.Source, logger *slog.Logger) *build {
	return &build{lattice: lattice, minDist: minDist, maxFailures: maxFailures, r: r, logger: logger}
}

// placeUnit rotates the template randomly and tries to drop it at a random
// reference point. Every rejected attempt spends one unit of the failure
// budget and retries; with the budget spent the instance is skipped.
func (b *build) placeUnit(t Template) bool {
	offsets := t.offsets()
	for {
		rotated := geom.Rotate(offsets, geom.RandomRotation(b.r))
		ref, ok := b.drawReference()
		if ok {
			sites := make([]geom.Site, len(rotated))
			for i, off := range rotated {
				sites[i] = geom.Site{Element: t.Sites[i].Element, Coords: ref.Plus(off)}
			}
			if b.fits(b.sites, sites) {
				b.commit(ref, sites, true)
				b.references = append(b.references, ref)
				return true
			}
			metrics.PlacementFailures.WithLabelValues("unit").Inc()
		} else {
			metrics.PlacementFailures.WithLabelValues("reference").Inc()
		}
		if !b.spend("unit " + t.Name) {
			return false
		}
	}
}

func (b *build) placeAtom(e chem.Element) bool {
	for {
		p := geom.FromFractional(b.r.Fractional(), b.lattice)
		site := []geom.Site{{Element: e, Coords: p}}
		if b.fits(b.sites, site) {
			b.commit(p, site, false)
			return true
		}
		metrics.PlacementFailures.WithLabelValues("atom").Inc()
		if !b.spend("atom " + e.Symbol) {
			return false
		}
	}
}

// drawReference samples a fractional position and resamples while it sits
// within the minimum distance of an earlier unit reference point.
func (b *build) drawReference() (geom.Vect, bool) {
	for draw := 0; draw < maxReferenceDraws; draw++ {
		p := geom.FromFractional(b.r.Fractional(), b.lattice)
		clear := true
		for _, ref := range b.references {
			if p.Minus(ref).Length() < b.minDist {
				clear = false
				break
			}
		}
		if clear {
			return p, true
		}
	}
	return geom.Vect{}, false
}

func (b *build) spend(what string) bool {
	if b.failures >= b.maxFailures {
		b.skipped++
		b.logger.Debug("placement skipped, failure budget spent", "item", what, "failures", b.failures)
		return false
	}
	b.failures++
	return true
}

func (b *build) commit(ref geom.Vect, sites []geom.Site, unit bool) {
	b.placements = append(b.placements, Placement{
		Reference: ref,
		Start:     len(b.sites),
		Size:      len(sites),
		Unit:      unit,
	})
	b.sites = append(b.sites, sites...)
}

// fits reports whether every candidate keeps the minimum distance from placed
// and from the candidates before it, periodic images included.
func (b *build) fits(placed, candidates []geom.Site) bool {
	return fitsLattice(b.lattice, b.minDist, placed, candidates)
}

func (b *build) cell() geom.Cell {
	return geom.NewCell(b.lattice, b.sites)
}

func fitsLattice(lattice geom.Lattice, minDist float64, placed, candidates []geom.Site) bool {
	tentative := append([]geom.Site(nil), placed...)
	for _, c := range candidates {
		cell := geom.NewCell(lattice, tentative)
		if len(cell.AtomsWithin(c.Coords, minDist)) > 0 {
			return false
		}
		tentative = append(tentative, c)
	}
	return true
}

// drawLattice samples a lattice whose shortest self-image distance keeps an
// atom clear of its own periodic copies.
func drawLattice(c organism.Constraints, r *rng.Source) (geom.Lattice, error) {
	closest := 0.0
	for i := 0; i < maxLatticeRedraws; i++ {
		l, err := geom.RandomLattice(c.Lattice, r)
		if err != nil {
			return geom.Lattice{}, err
		}
		d := selfImageDistance(l)
		if d >= c.MinInteratomicDistance {
			return l, nil
		}
		closest = max(closest, d)
	}
	metrics.PlacementFailures.WithLabelValues("lattice").Inc()
	return geom.Lattice{}, fmt.Errorf("%w: best self-image distance %.3f < %.3f after %d draws",
		ErrNoLattice, closest, c.MinInteratomicDistance, maxLatticeRedraws)
}

func selfImageDistance(l geom.Lattice) float64 {
	single := geom.NewCell(l, []geom.Site{{}})
	return single.MinDistance(0, 0)
}
