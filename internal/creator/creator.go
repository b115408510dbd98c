package creator

import (
	"context"
	"errors"
	"log/slog"

	"structsearch/internal/organism"
)

var (
	// ErrInfeasibleUnit marks a unit configuration that can never satisfy the
	// hard constraints.
	ErrInfeasibleUnit = errors.New("infeasible unit")
	ErrMalformedUnits = errors.New("malformed unit configuration")
	// ErrNoLattice means no sampled lattice kept an atom clear of its own
	// periodic images. It fails one organism, not the configuration.
	ErrNoLattice = errors.New("no lattice clears the minimum interatomic distance")
)

const (
	defaultDensityTolerance     = 0.20
	defaultMaxDensityAttempts   = 2000
	defaultMaxPlacementFailures = 100

	// maxReferenceDraws caps resampling of a unit reference point that lands
	// too close to an earlier one.
	maxReferenceDraws = 50
	// maxRelocationDraws caps redraws of one unit or atom while density
	// relaxation moves it into a new lattice.
	maxRelocationDraws = 50
	maxLatticeRedraws  = 100
)

// Creator produces new candidate structures.
type Creator interface {
	Name() string
	MakeOrganism(ctx context.Context, gen *organism.Generation) (*organism.StructureOrg, error)
}

type Option func(*options)

type options struct {
	logger *slog.Logger
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

func orDefault[T int | float64](v, def T) T {
	if v == 0 {
		return def
	}
	return v
}
