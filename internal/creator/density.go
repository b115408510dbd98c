package creator

import (
	"log/slog"

	"structsearch/internal/geom"
	"structsearch/internal/metrics"
	"structsearch/internal/organism"
	"structsearch/internal/rng"
)

// DensityReport describes the outcome of density relaxation.
type DensityReport struct {
	Density  float64
	Target   float64
	Met      bool
	Attempts int
}

// relaxer redraws lattices until the cell density falls inside the
// tolerance band around the target.
type relaxer struct {
	target      float64
	tolerance   float64
	maxAttempts int
	constraints organism.Constraints
	r           *rng.Source
	logger      *slog.Logger
}

func (x relaxer) targetFor(cell geom.Cell) float64 {
	if x.target > 0 {
		return x.target
	}
	n := cell.NumSites()
	if n == 0 {
		return 0
	}
	total := 0.0
	for _, s := range cell.Sites() {
		total += s.Element.Density
	}
	return total / float64(n)
}

func (x relaxer) inBand(density, target float64) bool {
	return density >= target*(1-x.tolerance) && density <= target*(1+x.tolerance)
}

// optimize returns a cell inside the density band. Density depends only on
// volume, so lattices outside the band are skipped before anything moves.
// Each placement is then moved rigidly to a fresh random reference point in
// the new lattice. A zero-density cell comes back unchanged, as does the
// input when the attempt cap runs out.
func (x relaxer) optimize(cell geom.Cell, placements []Placement) (geom.Cell, DensityReport) {
	density := cell.Density()
	target := x.targetFor(cell)
	report := DensityReport{Density: density, Target: target}
	if density == 0 {
		return cell, report
	}
	if x.inBand(density, target) {
		report.Met = true
		metrics.DensityAttempts.Observe(0)
		return cell, report
	}
	if placements == nil {
		placements = freeAtomPlacements(cell)
	}

	mass := cell.Mass()
	for attempt := 1; attempt <= x.maxAttempts; attempt++ {
		lattice, err := drawLattice(x.constraints, x.r)
		if err != nil {
			break
		}
		vol := lattice.Volume()
		if vol == 0 {
			continue
		}
		d := mass / vol * geom.AmuPerCubicAngstromToGramsPerCm3
		if !x.inBand(d, target) {
			continue
		}
		sites, ok := x.relocate(cell, placements, lattice)
		if !ok {
			continue
		}
		metrics.DensityAttempts.Observe(float64(attempt))
		return geom.NewCell(lattice, sites), DensityReport{Density: d, Target: target, Met: true, Attempts: attempt}
	}

	report.Attempts = x.maxAttempts
	metrics.DensityAttempts.Observe(float64(x.maxAttempts))
	metrics.DensityMisses.Inc()
	x.logger.Warn("density target not met, keeping unrelaxed cell",
		"density", density, "target", target, "tolerance", x.tolerance, "attempts", x.maxAttempts)
	return cell, report
}

func (x relaxer) relocate(cell geom.Cell, placements []Placement, lattice geom.Lattice) ([]geom.Site, bool) {
	old := cell.Sites()
	out := make([]geom.Site, 0, len(old))
	for _, p := range placements {
		placed := false
		for draw := 0; draw < maxRelocationDraws; draw++ {
			ref := geom.FromFractional(x.r.Fractional(), lattice)
			shift := ref.Minus(p.Reference)
			moved := make([]geom.Site, p.Size)
			for i := range moved {
				s := old[p.Start+i]
				moved[i] = geom.Site{Element: s.Element, Coords: s.Coords.Plus(shift)}
			}
			if fitsLattice(lattice, x.constraints.MinInteratomicDistance, out, moved) {
				out = append(out, moved...)
				placed = true
				break
			}
			metrics.PlacementFailures.WithLabelValues("relax").Inc()
		}
		if !placed {
			return nil, false
		}
	}
	return out, true
}

func freeAtomPlacements(cell geom.Cell) []Placement {
	out := make([]Placement, cell.NumSites())
	for i := range out {
		out[i] = Placement{Reference: cell.Site(i).Coords, Start: i, Size: 1}
	}
	return out
}
