package creator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"structsearch/internal/chem"
	"structsearch/internal/geom"
	"structsearch/internal/metrics"
	"structsearch/internal/organism"
	"structsearch/internal/rng"
)

// Template is a rigid group of atoms given as offsets from a local origin.
type Template struct {
	Name  string
	Sites []geom.Site
}

func (t Template) offsets() []geom.Vect {
	out := make([]geom.Vect, len(t.Sites))
	for i, s := range t.Sites {
		out[i] = s.Coords
	}
	return out
}

// CountPolicy is Exact when Exact > 0, a range when Max > 0 and automatic
// otherwise.
type CountPolicy struct {
	Exact int
	Min   int
	Max   int
}

func (p CountPolicy) Auto() bool { return p.Exact == 0 && p.Max == 0 }

func (p CountPolicy) String() string {
	switch {
	case p.Exact > 0:
		return fmt.Sprintf("%d units", p.Exact)
	case p.Max > 0:
		return fmt.Sprintf("%d to %d units", p.Min, p.Max)
	default:
		return "random number of units"
	}
}

type UnitSpec struct {
	Template Template
	Count    CountPolicy
}

// UnitsConfig is owned by a single UnitsCreator and never modified after
// construction.
type UnitsConfig struct {
	Units                []UnitSpec
	UnitsOnly            bool
	TargetDensity        float64
	DensityTolerance     float64
	MaxDensityAttempts   int
	MaxPlacementFailures int
}

// UnitsCreator builds structures out of rigid units, optionally topped up with
// free atoms drawn from a composition space.
type UnitsCreator struct {
	cfg         UnitsConfig
	constraints organism.Constraints
	space       *chem.CompositionSpace
	r           *rng.Source
	logger      *slog.Logger
	relax       relaxer
}

func NewUnitsCreator(cfg UnitsConfig, constraints organism.Constraints, space *chem.CompositionSpace, r *rng.Source, opts ...Option) (*UnitsCreator, error) {
	if err := constraints.Validate(); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrMalformedUnits)
	}
	if err := validateUnits(cfg, constraints); err != nil {
		return nil, err
	}
	if !cfg.UnitsOnly && space == nil {
		return nil, fmt.Errorf("%w: free atoms need a composition space", ErrMalformedUnits)
	}

	units := make([]UnitSpec, len(cfg.Units))
	for i, u := range cfg.Units {
		u.Template.Sites = append([]geom.Site(nil), u.Template.Sites...)
		if u.Template.Name == "" {
			u.Template.Name = fmt.Sprintf("unit%d", i+1)
		}
		units[i] = u
	}
	cfg.Units = units
	cfg.DensityTolerance = orDefault(cfg.DensityTolerance, defaultDensityTolerance)
	cfg.MaxDensityAttempts = orDefault(cfg.MaxDensityAttempts, defaultMaxDensityAttempts)
	cfg.MaxPlacementFailures = orDefault(cfg.MaxPlacementFailures, defaultMaxPlacementFailures)

	o := applyOptions(opts)
	return &UnitsCreator{
		cfg:         cfg,
		constraints: constraints,
		space:       space,
		r:           r,
		logger:      o.logger,
		relax: relaxer{
			target:      cfg.TargetDensity,
			tolerance:   cfg.DensityTolerance,
			maxAttempts: cfg.MaxDensityAttempts,
			constraints: constraints,
			r:           r,
			logger:      o.logger,
		},
	}, nil
}

func validateUnits(cfg UnitsConfig, c organism.Constraints) error {
	if len(cfg.Units) == 0 {
		return fmt.Errorf("%w: no units", ErrMalformedUnits)
	}
	if cfg.TargetDensity < 0 || math.IsNaN(cfg.TargetDensity) {
		return fmt.Errorf("%w: target density %v", ErrMalformedUnits, cfg.TargetDensity)
	}
	if cfg.DensityTolerance < 0 || cfg.DensityTolerance >= 1 {
		return fmt.Errorf("%w: density tolerance %v outside [0, 1)", ErrMalformedUnits, cfg.DensityTolerance)
	}
	if cfg.MaxDensityAttempts < 0 || cfg.MaxPlacementFailures < 0 {
		return fmt.Errorf("%w: negative attempt cap", ErrMalformedUnits)
	}

	committed := 0
	for i, u := range cfg.Units {
		size := len(u.Template.Sites)
		if size == 0 {
			return fmt.Errorf("%w: unit %d has no sites", ErrMalformedUnits, i+1)
		}
		p := u.Count
		if p.Exact < 0 || p.Min < 0 || p.Max < 0 || p.Max < p.Min || (p.Exact > 0 && p.Max > 0) {
			return fmt.Errorf("%w: unit %d count policy %+v", ErrMalformedUnits, i+1, p)
		}
		for a := 0; a < size; a++ {
			for b := a + 1; b < size; b++ {
				d := u.Template.Sites[a].Coords.Minus(u.Template.Sites[b].Coords).Length()
				if d < c.MinInteratomicDistance {
					return fmt.Errorf("%w: unit %d sites %d and %d are %.3f apart, below the minimum interatomic distance %.3f",
						ErrInfeasibleUnit, i+1, a+1, b+1, d, c.MinInteratomicDistance)
				}
			}
		}
		if size > c.MaxNumAtoms {
			return fmt.Errorf("%w: unit %d has %d atoms, more than the maximum %d", ErrInfeasibleUnit, i+1, size, c.MaxNumAtoms)
		}
		committed += (p.Exact + p.Min) * size
	}
	if committed > c.MaxNumAtoms {
		return fmt.Errorf("%w: configured unit counts need %d atoms, more than the maximum %d", ErrInfeasibleUnit, committed, c.MaxNumAtoms)
	}
	return nil
}

func (c *UnitsCreator) Name() string { return "units" }

func (c *UnitsCreator) Config() UnitsConfig { return c.cfg }

// MakeOrganism places every unit instance, adds free atoms unless the creator
// is unit-only, and relaxes the result toward the target density. Placement
// exhaustion degrades the structure but is never an error.
func (c *UnitsCreator) MakeOrganism(ctx context.Context, _ *organism.Generation) (*organism.StructureOrg, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lattice, err := drawLattice(c.constraints, c.r)
	if err != nil {
		return nil, err
	}
	targets := c.unitTargets()

	b := newBuild(lattice, c.constraints.MinInteratomicDistance, c.cfg.MaxPlacementFailures, c.r, c.logger)
	for i, u := range c.cfg.Units {
		for k := 0; k < targets[i]; k++ {
			b.placeUnit(u.Template)
		}
	}

	if !c.cfg.UnitsOnly {
		placed := len(b.sites)
		lo := max(c.constraints.MinNumAtoms-placed, 0)
		hi := c.constraints.MaxNumAtoms - placed
		if hi > 0 {
			comp := c.space.RandomIntegerComposition(c.r, lo, hi)
			for _, e := range comp.Elements() {
				for k := 0; k < comp.Count(e); k++ {
					b.placeAtom(e)
				}
			}
		}
	}

	cell, report := c.OptimizeDensity(b.cell(), b.placements)
	org := organism.New(cell)
	metrics.OrganismsCreated.WithLabelValues(c.Name()).Inc()
	c.logger.Debug("organism created",
		"organism", org.ID(),
		"composition", cell.Composition().String(),
		"targets", targets,
		"placement_failures", b.failures,
		"skipped", b.skipped,
		"density", report.Density,
		"density_met", report.Met,
	)
	return org, nil
}

// OptimizeDensity moves the cell toward the target density band. placements
// describe which sites move together; nil treats every site as a free atom.
func (c *UnitsCreator) OptimizeDensity(cell geom.Cell, placements []Placement) (geom.Cell, DensityReport) {
	return c.relax.optimize(cell, placements)
}

// unitTargets draws the number of instances of every unit. Automatic units
// share what is left of a random atom budget after fixed-count units, split by
// random weights and divided by the unit size.
func (c *UnitsCreator) unitTargets() []int {
	targets := make([]int, len(c.cfg.Units))
	committed := 0
	var auto []int
	for i, u := range c.cfg.Units {
		switch {
		case u.Count.Exact > 0:
			targets[i] = u.Count.Exact
		case u.Count.Max > 0:
			targets[i] = c.r.IntBetween(u.Count.Min, u.Count.Max)
		default:
			auto = append(auto, i)
			continue
		}
		committed += targets[i] * len(u.Template.Sites)
	}
	if len(auto) == 0 {
		return targets
	}

	budget := c.r.IntBetween(c.constraints.MinNumAtoms, c.constraints.MaxNumAtoms) - committed
	if budget <= 0 {
		return targets
	}
	weights := make([]float64, len(auto))
	total := 0.0
	for total == 0 {
		for j := range weights {
			weights[j] = c.r.Float64()
			total += weights[j]
		}
	}
	for j, i := range auto {
		atoms := int(math.Round(weights[j] / total * float64(budget)))
		targets[i] = atoms / len(c.cfg.Units[i].Template.Sites)
	}
	return targets
}

func (c *UnitsCreator) String() string {
	var b strings.Builder
	b.WriteString("UnitsCreator:\n")
	for _, u := range c.cfg.Units {
		fmt.Fprintf(&b, "%s - %s:", u.Template.Name, u.Count)
		for i, s := range u.Template.Sites {
			if i >= 10 {
				b.WriteString(" ...")
				break
			}
			fmt.Fprintf(&b, " %s", s)
		}
		b.WriteString("\n")
	}
	target := "derived"
	if c.cfg.TargetDensity > 0 {
		target = fmt.Sprintf("%g g/cm^3", c.cfg.TargetDensity)
	}
	fmt.Fprintf(&b, "target density %s and tolerance %g%%, units only %t", target, c.cfg.DensityTolerance*100, c.cfg.UnitsOnly)
	return b.String()
}
