package organism

import (
	"errors"
	"fmt"

	"structsearch/internal/geom"
)

var (
	ErrInvalidConstraints = errors.New("invalid constraints")
	ErrConstraintViolated = errors.New("constraint violated")
)

// Constraints are the hard limits every generated structure must satisfy.
type Constraints struct {
	MinInteratomicDistance float64            `yaml:"min_interatomic_distance" validate:"gt=0"`
	MinNumAtoms            int                `yaml:"min_atoms" validate:"gte=1"`
	MaxNumAtoms            int                `yaml:"max_atoms" validate:"gtefield=MinNumAtoms"`
	Lattice                geom.LatticeBounds `yaml:"lattice"`
}

func (c Constraints) Validate() error {
	if c.MinInteratomicDistance <= 0 {
		return fmt.Errorf("%w: min interatomic distance must be > 0", ErrInvalidConstraints)
	}
	if c.MinNumAtoms < 1 || c.MaxNumAtoms < c.MinNumAtoms {
		return fmt.Errorf("%w: atom bounds [%d, %d]", ErrInvalidConstraints, c.MinNumAtoms, c.MaxNumAtoms)
	}
	if err := c.Lattice.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConstraints, err)
	}
	return nil
}

// Develop checks an organism against the hard constraints: atom count within
// bounds and no two atoms, periodic images included, closer than the minimum
// interatomic distance. Lattice shape is not re-checked since relaxed cells
// may legitimately drift outside the sampling bounds.
func Develop(o *StructureOrg, c Constraints) error {
	cell := o.Cell()
	n := cell.NumSites()
	if n < c.MinNumAtoms || n > c.MaxNumAtoms {
		return fmt.Errorf("%w: %s has %d atoms, want [%d, %d]", ErrConstraintViolated, o.ID(), n, c.MinNumAtoms, c.MaxNumAtoms)
	}
	if d := cell.MinInteratomicDistance(); d < c.MinInteratomicDistance {
		return fmt.Errorf("%w: %s min distance %.3f < %.3f", ErrConstraintViolated, o.ID(), d, c.MinInteratomicDistance)
	}
	return nil
}
