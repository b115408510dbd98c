package geom

import (
	"fmt"
	"math"

	"structsearch/internal/chem"
)

// AmuPerCubicAngstromToGramsPerCm3 converts amu/Å³ to g/cm³.
const AmuPerCubicAngstromToGramsPerCm3 = 1.6606

// Site is one atom at a Cartesian position.
type Site struct {
	Element chem.Element
	Coords  Vect
}

func (s Site) String() string {
	return fmt.Sprintf("%s %s", s.Element.Symbol, s.Coords)
}

// Cell is a periodic structure. Cells are values: every transform returns a
// new Cell and the site slice is never shared with callers.
type Cell struct {
	lattice Lattice
	sites   []Site
}

func NewCell(lattice Lattice, sites []Site) Cell {
	return Cell{lattice: lattice, sites: append([]Site(nil), sites...)}
}

func (c Cell) Lattice() Lattice { return c.lattice }

func (c Cell) Sites() []Site {
	return append([]Site(nil), c.sites...)
}

func (c Cell) Site(i int) Site { return c.sites[i] }

func (c Cell) NumSites() int { return len(c.sites) }

func (c Cell) Volume() float64 { return c.lattice.Volume() }

// Mass is the summed atomic mass in amu.
func (c Cell) Mass() float64 {
	total := 0.0
	for _, s := range c.sites {
		total += s.Element.Mass
	}
	return total
}

// Density is in g/cm³. A cell without volume has density 0.
func (c Cell) Density() float64 {
	v := c.Volume()
	if v == 0 {
		return 0
	}
	return c.Mass() / v * AmuPerCubicAngstromToGramsPerCm3
}

func (c Cell) Composition() chem.Composition {
	counts := map[chem.Element]int{}
	for _, s := range c.sites {
		counts[s.Element]++
	}
	comp, _ := chem.FromCounts(counts)
	return comp
}

func (c Cell) WithLattice(l Lattice) Cell {
	return NewCell(l, c.sites)
}

func (c Cell) WithSites(sites []Site) Cell {
	return NewCell(c.lattice, sites)
}

// AtomsWithin returns the indices of sites that have a periodic image closer
// than radius to p.
func (c Cell) AtomsWithin(p Vect, radius float64) []int {
	if len(c.sites) == 0 {
		return nil
	}
	span := c.imageSpan(radius)
	var out []int
	for i, s := range c.sites {
		if c.imageDistance(s.Coords, p, span, false) < radius {
			out = append(out, i)
		}
	}
	return out
}

// MinDistance is the shortest periodic distance between sites i and j. For
// i == j it is the distance to the nearest non-trivial image.
func (c Cell) MinDistance(i, j int) float64 {
	a, b := c.sites[i].Coords, c.sites[j].Coords
	bound := c.lattice.Reduce(a.Minus(b)).Length()
	if i == j {
		bound = c.minLength()
	}
	return c.imageDistance(a, b, c.imageSpan(bound), i == j)
}

// MinInteratomicDistance is the smallest MinDistance over all site pairs,
// including each site and its own images. It is +Inf for an empty cell.
func (c Cell) MinInteratomicDistance() float64 {
	best := math.Inf(1)
	for i := range c.sites {
		for j := i; j < len(c.sites); j++ {
			if d := c.MinDistance(i, j); d < best {
				best = d
			}
		}
	}
	return best
}

func (c Cell) imageDistance(a, b Vect, span [3]int, skipOrigin bool) float64 {
	best := math.Inf(1)
	d := c.lattice.Reduce(a.Minus(b))
	for i := -span[0]; i <= span[0]; i++ {
		for j := -span[1]; j <= span[1]; j++ {
			for k := -span[2]; k <= span[2]; k++ {
				if skipOrigin && i == 0 && j == 0 && k == 0 {
					continue
				}
				shift := c.lattice[0].Scale(float64(i)).
					Plus(c.lattice[1].Scale(float64(j))).
					Plus(c.lattice[2].Scale(float64(k)))
				if dist := d.Plus(shift).Length(); dist < best {
					best = dist
				}
			}
		}
	}
	return best
}

// imageSpan is the number of images per axis needed to see every point within
// radius of a reduced difference vector, from the interplanar spacing along
// each axis.
func (c Cell) imageSpan(radius float64) [3]int {
	vol := c.Volume()
	span := [3]int{1, 1, 1}
	if vol == 0 {
		return span
	}
	for axis := 0; axis < 3; axis++ {
		u := c.lattice[(axis+1)%3]
		w := c.lattice[(axis+2)%3]
		spacing := vol / u.Cross(w).Length()
		span[axis] = max(int(math.Ceil(radius/spacing))+1, 1)
	}
	return span
}

func (c Cell) minLength() float64 {
	l := c.lattice.Lengths()
	return math.Min(l[0], math.Min(l[1], l[2]))
}

// EachPair calls fn for every ordered pair of sites (i, j) and every periodic
// image of j closer than cutoff to i, skipping a site's zero-shift image of
// itself. Each unordered interaction is therefore visited twice.
func (c Cell) EachPair(cutoff float64, fn func(i, j int, d float64)) {
	span := c.imageSpan(cutoff)
	for i, a := range c.sites {
		for j, b := range c.sites {
			d0 := c.lattice.Reduce(b.Coords.Minus(a.Coords))
			for x := -span[0]; x <= span[0]; x++ {
				for y := -span[1]; y <= span[1]; y++ {
					for z := -span[2]; z <= span[2]; z++ {
						if i == j && x == 0 && y == 0 && z == 0 {
							continue
						}
						shift := c.lattice[0].Scale(float64(x)).
							Plus(c.lattice[1].Scale(float64(y))).
							Plus(c.lattice[2].Scale(float64(z)))
						if d := d0.Plus(shift).Length(); d < cutoff {
							fn(i, j, d)
						}
					}
				}
			}
		}
	}
}
