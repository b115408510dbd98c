package config

import (
	"fmt"
	"log/slog"
	"strings"

	"structsearch/internal/chem"
	"structsearch/internal/creator"
	"structsearch/internal/energy"
	"structsearch/internal/energy/mopac"
	"structsearch/internal/energy/pairpot"
	"structsearch/internal/geom"
	"structsearch/internal/logging"
	"structsearch/internal/objective"
	"structsearch/internal/rng"
	"structsearch/internal/search"
	"structsearch/internal/storage"
)

// Runtime holds the objects a run needs, built from one RunConfig.
type Runtime struct {
	Config    RunConfig
	Logger    *slog.Logger
	Space     *chem.CompositionSpace
	Source    *rng.Source
	Creator   creator.Creator
	Engine    energy.Engine
	Objective *objective.EnergyPerAtom
}

// Build constructs the space, generator, engine and objective. A nil logger
// is built from cfg.Log.
func Build(cfg RunConfig, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		l, err := logging.New(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		logger = l
	}

	rt := &Runtime{Config: cfg, Logger: logger, Source: rng.New(cfg.Seed)}
	if cfg.CompositionSpace != "" {
		space, err := chem.NewCompositionSpaceFromTokens(strings.Fields(cfg.CompositionSpace))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		rt.Space = space
	}

	gen, err := rt.buildCreator()
	if err != nil {
		return nil, err
	}
	rt.Creator = gen

	registry, err := EngineRegistry(cfg.Energy, logger)
	if err != nil {
		return nil, err
	}
	engine, err := registry.Build(cfg.Energy.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	rt.Engine = engine
	rt.Objective = objective.NewEnergyPerAtom(engine, objective.WithLogger(logger))

	logger.Debug("runtime built",
		"creator", gen.Name(),
		"engine", engine.Name(),
		"space", cfg.CompositionSpace,
		"seed", cfg.Seed,
	)
	return rt, nil
}

// EngineRegistry registers every engine kind the configuration can name.
func EngineRegistry(cfg EnergyConfig, logger *slog.Logger) (*energy.Registry, error) {
	r := energy.NewRegistry()
	if err := r.Register("mopac", func() (energy.Engine, error) {
		return mopac.New(cfg.Mopac, energy.ExecRunner{Logger: logger}, logger)
	}); err != nil {
		return nil, err
	}
	if err := r.Register("pairpot", func() (energy.Engine, error) {
		return pairpot.New(cfg.Pairpot)
	}); err != nil {
		return nil, err
	}
	return r, nil
}

// MonitorConfig wires the runtime to a store for one search run.
func (rt *Runtime) MonitorConfig(store storage.Store) search.MonitorConfig {
	return search.MonitorConfig{
		Creator:           rt.Creator,
		Objective:         rt.Objective,
		Store:             store,
		Constraints:       rt.Config.Constraints,
		PopulationSize:    rt.Config.Population,
		Workers:           rt.Config.Workers,
		EvalTimeout:       rt.Config.EvaluationTimeout,
		MaxCreateAttempts: rt.Config.MaxCreateAttempts,
		Seed:              rt.Config.Seed,
		Space:             rt.Config.CompositionSpace,
		Logger:            rt.Logger,
	}
}

func (rt *Runtime) buildCreator() (creator.Creator, error) {
	cfg := rt.Config
	opts := []creator.Option{creator.WithLogger(rt.Logger)}
	switch cfg.Creator.Kind {
	case "random":
		d := cfg.Creator.Random
		gen, err := creator.NewRandomCreator(creator.RandomConfig{
			TargetDensity:        d.TargetDensity,
			DensityTolerance:     d.DensityTolerance,
			MaxDensityAttempts:   d.MaxDensityAttempts,
			MaxPlacementFailures: d.MaxPlacementFailures,
		}, cfg.Constraints, rt.Space, rt.Source, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		return gen, nil
	case "units":
		units, err := unitsConfig(cfg.Creator.Units)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		gen, err := creator.NewUnitsCreator(units, cfg.Constraints, rt.Space, rt.Source, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("%w: unknown creator %q", ErrInvalidConfig, cfg.Creator.Kind)
	}
}

func unitsConfig(u UnitsConfig) (creator.UnitsConfig, error) {
	if tokens := strings.Fields(u.Tokens); len(tokens) > 0 {
		out, err := creator.ParseUnitsTokens(tokens)
		if err != nil {
			return creator.UnitsConfig{}, err
		}
		out.MaxDensityAttempts = u.MaxDensityAttempts
		out.MaxPlacementFailures = u.MaxPlacementFailures
		return out, nil
	}

	out := creator.UnitsConfig{
		Units:                make([]creator.UnitSpec, len(u.Templates)),
		UnitsOnly:            u.UnitsOnly,
		TargetDensity:        u.TargetDensity,
		DensityTolerance:     u.DensityTolerance,
		MaxDensityAttempts:   u.MaxDensityAttempts,
		MaxPlacementFailures: u.MaxPlacementFailures,
	}
	for i, t := range u.Templates {
		sites := make([]geom.Site, len(t.Sites))
		for j, s := range t.Sites {
			e, err := chem.ElementBySymbol(s.Element)
			if err != nil {
				return creator.UnitsConfig{}, fmt.Errorf("template %d site %d: %w", i+1, j+1, err)
			}
			sites[j] = geom.Site{Element: e, Coords: geom.Vect{s.X, s.Y, s.Z}}
		}
		out.Units[i] = creator.UnitSpec{
			Template: creator.Template{Name: t.Name, Sites: sites},
			Count:    creator.CountPolicy{Exact: t.Count.Exact, Min: t.Count.Min, Max: t.Count.Max},
		}
	}
	return out, nil
}
