package pairpot

import (
	"context"
	"fmt"
	"math"

	"structsearch/internal/organism"
)

const defaultCutoffSigmas = 2.5

// Config parameterizes a Lennard-Jones potential in eV and Å. A zero Cutoff
// means 2.5 sigma.
type Config struct {
	Epsilon float64 `yaml:"epsilon" validate:"gt=0"`
	Sigma   float64 `yaml:"sigma" validate:"gt=0"`
	Cutoff  float64 `yaml:"cutoff" validate:"gte=0"`
}

// Engine evaluates a periodic Lennard-Jones energy in process. Every element
// pair shares the same parameters.
type Engine struct {
	cfg Config
}

func New(cfg Config) (*Engine, error) {
	if cfg.Epsilon <= 0 || cfg.Sigma <= 0 || cfg.Cutoff < 0 {
		return nil, fmt.Errorf("pairpot: epsilon and sigma must be > 0 and cutoff >= 0, got %+v", cfg)
	}
	if cfg.Cutoff == 0 {
		cfg.Cutoff = defaultCutoffSigmas * cfg.Sigma
	}
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) Name() string { return "pairpot" }

// CannotCompute rejects empty cells and cells without volume.
func (e *Engine) CannotCompute(o *organism.StructureOrg) bool {
	cell := o.Cell()
	return cell.NumSites() == 0 || cell.Volume() < 1e-9
}

func (e *Engine) TotalEnergy(ctx context.Context, o *organism.StructureOrg) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cell := o.Cell()
	total := 0.0
	cell.EachPair(e.cfg.Cutoff, func(_, _ int, d float64) {
		total += 0.5 * e.pair(d)
	})
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return 0, fmt.Errorf("pairpot: non-finite energy for %s", o.ID())
	}
	return total, nil
}

func (e *Engine) pair(r float64) float64 {
	sr6 := math.Pow(e.cfg.Sigma/r, 6)
	return 4 * e.cfg.Epsilon * (sr6*sr6 - sr6)
}
