package geom

import (
	"errors"
	"fmt"
	"math"

	"structsearch/internal/rng"
)

var ErrLatticeBounds = errors.New("invalid lattice bounds")

const maxLatticeDraws = 1000

// LatticeBounds limits cell edge lengths (Å) and inter-axis angles (degrees).
type LatticeBounds struct {
	MinLength float64 `yaml:"min_length" validate:"gt=0"`
	MaxLength float64 `yaml:"max_length" validate:"gtefield=MinLength"`
	MinAngle  float64 `yaml:"min_angle" validate:"gt=0,lt=180"`
	MaxAngle  float64 `yaml:"max_angle" validate:"gtefield=MinAngle,lt=180"`
}

func (b LatticeBounds) Validate() error {
	switch {
	case b.MinLength <= 0:
		return fmt.Errorf("%w: min length must be > 0", ErrLatticeBounds)
	case b.MaxLength < b.MinLength:
		return fmt.Errorf("%w: max length %.3f < min length %.3f", ErrLatticeBounds, b.MaxLength, b.MinLength)
	case b.MinAngle <= 0 || b.MaxAngle >= 180:
		return fmt.Errorf("%w: angles must lie in (0, 180)", ErrLatticeBounds)
	case b.MaxAngle < b.MinAngle:
		return fmt.Errorf("%w: max angle %.3f < min angle %.3f", ErrLatticeBounds, b.MaxAngle, b.MinAngle)
	}
	return nil
}

// RandomLattice draws three lengths and three angles uniformly within bounds
// and builds the cell with a along x and b in the xy-plane. Angle triples that
// do not close into a cell are redrawn.
func RandomLattice(bounds LatticeBounds, r *rng.Source) (Lattice, error) {
	if err := bounds.Validate(); err != nil {
		return Lattice{}, err
	}
	for draw := 0; draw < maxLatticeDraws; draw++ {
		a := r.Float64Between(bounds.MinLength, bounds.MaxLength)
		b := r.Float64Between(bounds.MinLength, bounds.MaxLength)
		c := r.Float64Between(bounds.MinLength, bounds.MaxLength)
		alpha := r.Float64Between(bounds.MinAngle, bounds.MaxAngle)
		beta := r.Float64Between(bounds.MinAngle, bounds.MaxAngle)
		gamma := r.Float64Between(bounds.MinAngle, bounds.MaxAngle)
		if l, ok := LatticeFromParameters(a, b, c, alpha, beta, gamma); ok {
			return l, nil
		}
	}
	return Lattice{}, fmt.Errorf("%w: no valid cell after %d draws", ErrLatticeBounds, maxLatticeDraws)
}

// LatticeFromParameters builds a cell from lengths and angles in degrees. It
// reports false when the angles cannot form a cell of positive volume.
func LatticeFromParameters(a, b, c, alpha, beta, gamma float64) (Lattice, bool) {
	ca := math.Cos(alpha * math.Pi / 180)
	cb := math.Cos(beta * math.Pi / 180)
	cg := math.Cos(gamma * math.Pi / 180)
	sg := math.Sin(gamma * math.Pi / 180)
	if sg <= 1e-8 {
		return Lattice{}, false
	}
	cy := (ca - cb*cg) / sg
	cz2 := 1 - cb*cb - cy*cy
	if cz2 <= 1e-6 {
		return Lattice{}, false
	}
	return Lattice{
		{a, 0, 0},
		{b * cg, b * sg, 0},
		{c * cb, c * cy, c * math.Sqrt(cz2)},
	}, true
}
