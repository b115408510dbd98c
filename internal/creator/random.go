package creator

import (
	"context"
	"fmt"
	"log/slog"

	"structsearch/internal/chem"
	"structsearch/internal/geom"
	"structsearch/internal/metrics"
	"structsearch/internal/organism"
	"structsearch/internal/rng"
)

type RandomConfig struct {
	TargetDensity        float64
	DensityTolerance     float64
	MaxDensityAttempts   int
	MaxPlacementFailures int
}

// RandomCreator fills a random lattice with free atoms whose composition is
// drawn from the space.
type RandomCreator struct {
	cfg         RandomConfig
	constraints organism.Constraints
	space       *chem.CompositionSpace
	r           *rng.Source
	logger      *slog.Logger
	relax       relaxer
}

func NewRandomCreator(cfg RandomConfig, constraints organism.Constraints, space *chem.CompositionSpace, r *rng.Source, opts ...Option) (*RandomCreator, error) {
	if err := constraints.Validate(); err != nil {
		return nil, err
	}
	if space == nil || r == nil {
		return nil, fmt.Errorf("%w: random creator needs a composition space and a random source", ErrMalformedUnits)
	}
	if cfg.TargetDensity < 0 || cfg.DensityTolerance < 0 || cfg.DensityTolerance >= 1 || cfg.MaxDensityAttempts < 0 || cfg.MaxPlacementFailures < 0 {
		return nil, fmt.Errorf("%w: density settings %+v", ErrMalformedUnits, cfg)
	}
	cfg.DensityTolerance = orDefault(cfg.DensityTolerance, defaultDensityTolerance)
	cfg.MaxDensityAttempts = orDefault(cfg.MaxDensityAttempts, defaultMaxDensityAttempts)
	cfg.MaxPlacementFailures = orDefault(cfg.MaxPlacementFailures, defaultMaxPlacementFailures)

	o := applyOptions(opts)
	return &RandomCreator{
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

func (c *RandomCreator) Name() string { return "random" }

func (c *RandomCreator) MakeOrganism(ctx context.Context, _ *organism.Generation) (*organism.StructureOrg, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lattice, err := drawLattice(c.constraints, c.r)
	if err != nil {
		return nil, err
	}
	b := newBuild(lattice, c.constraints.MinInteratomicDistance, c.cfg.MaxPlacementFailures, c.r, c.logger)
	comp := c.space.RandomIntegerComposition(c.r, c.constraints.MinNumAtoms, c.constraints.MaxNumAtoms)
	for _, e := range comp.Elements() {
		for k := 0; k < comp.Count(e); k++ {
			b.placeAtom(e)
		}
	}

	cell, report := c.relax.optimize(b.cell(), b.placements)
	org := organism.New(cell)
	metrics.OrganismsCreated.WithLabelValues(c.Name()).Inc()
	c.logger.Debug("organism created",
		"organism", org.ID(),
		"composition", cell.Composition().String(),
		"placement_failures", b.failures,
		"density", report.Density,
		"density_met", report.Met,
	)
	return org, nil
}

// OptimizeDensity has the same contract as UnitsCreator.OptimizeDensity.
func (c *RandomCreator) OptimizeDensity(cell geom.Cell, placements []Placement) (geom.Cell, DensityReport) {
	return c.relax.optimize(cell, placements)
}
