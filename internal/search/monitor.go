package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"structsearch/internal/creator"
	"structsearch/internal/metrics"
	"structsearch/internal/model"
	"structsearch/internal/objective"
	"structsearch/internal/organism"
	"structsearch/internal/storage"
)

type MonitorConfig struct {
	Creator     creator.Creator
	Objective   *objective.EnergyPerAtom
	Store       storage.Store
	Constraints organism.Constraints

	PopulationSize int
	Workers        int
	// EvalTimeout bounds each engine call. Zero means no per-call limit.
	EvalTimeout time.Duration
	// MaxCreateAttempts caps generator calls, counting organisms rejected by
	// development. Defaults to ten per requested organism.
	MaxCreateAttempts int

	RunID  string
	Seed   int64
	Space  string
	Logger *slog.Logger
	Now    func() time.Time
}

type Monitor struct {
	cfg MonitorConfig
}

type Result struct {
	RunID        string
	Ranked       []*organism.StructureOrg
	Best         *organism.StructureOrg
	Attempts     int
	Rejected     int
	Unevaluable  int
	Calculations int64
	Record       model.RunRecord
}

func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if cfg.Creator == nil {
		return nil, fmt.Errorf("creator is required")
	}
	if cfg.Objective == nil {
		return nil, fmt.Errorf("objective is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if err := cfg.Constraints.Validate(); err != nil {
		return nil, err
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.EvalTimeout < 0 {
		return nil, fmt.Errorf("evaluation timeout must be >= 0")
	}
	if cfg.MaxCreateAttempts <= 0 {
		cfg.MaxCreateAttempts = 10 * cfg.PopulationSize
	}
	if cfg.MaxCreateAttempts < cfg.PopulationSize {
		return nil, fmt.Errorf("max create attempts must be >= population size")
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Monitor{cfg: cfg}, nil
}

func (m *Monitor) RunID() string { return m.cfg.RunID }

// Run creates the initial generation, evaluates it and persists the ranked
// result. Organisms that fail development or evaluation never abort the run;
// store errors and context cancellation do.
func (m *Monitor) Run(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	log := m.cfg.Logger.With("run", m.cfg.RunID)
	started := m.cfg.Now().UTC()
	calculationsBefore := m.cfg.Objective.Calculations()

	gen, attempts, rejected, err := m.populate(ctx, log)
	if err != nil {
		return Result{}, err
	}
	if gen.Len() < m.cfg.PopulationSize {
		log.Warn("population short after create attempts",
			"created", gen.Len(), "requested", m.cfg.PopulationSize, "attempts", attempts)
	}

	if err := m.evaluatePopulation(ctx, gen.Organisms()); err != nil {
		return Result{}, err
	}

	ranked := gen.Ranked()
	result := Result{
		RunID:        m.cfg.RunID,
		Ranked:       ranked,
		Attempts:     attempts,
		Rejected:     rejected,
		Calculations: m.cfg.Objective.Calculations() - calculationsBefore,
	}
	if best, ok := gen.Best(); ok {
		result.Best = best
		metrics.BestValue.Set(best.Value())
	}

	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              m.cfg.RunID,
		StartedAt:       started,
		Seed:            m.cfg.Seed,
		Creator:         m.cfg.Creator.Name(),
		Engine:          m.cfg.Objective.Engine().Name(),
		Space:           m.cfg.Space,
		Requested:       m.cfg.PopulationSize,
		Created:         gen.Len(),
		Rejected:        rejected,
		Calculations:    result.Calculations,
		OrganismIDs:     make([]string, 0, len(ranked)),
	}
	for rank, o := range ranked {
		rec := OrganismRecord(o, m.cfg.RunID, rank)
		if rec.Unevaluable {
			result.Unevaluable++
		}
		if err := m.cfg.Store.SaveOrganism(ctx, rec); err != nil {
			return Result{}, fmt.Errorf("save organism %s: %w", o.ID(), err)
		}
		run.OrganismIDs = append(run.OrganismIDs, o.ID())
	}
	run.Unevaluable = result.Unevaluable
	if result.Best != nil {
		run.BestOrganismID = result.Best.ID()
		run.BestEnergyPerAtom = result.Best.Value()
	}
	run.FinishedAt = m.cfg.Now().UTC()
	if err := m.cfg.Store.SaveRun(ctx, run); err != nil {
		return Result{}, fmt.Errorf("save run %s: %w", m.cfg.RunID, err)
	}
	result.Record = run

	log.Info("run complete",
		"created", run.Created,
		"rejected", rejected,
		"unevaluable", run.Unevaluable,
		"calculations", run.Calculations,
		"best", run.BestOrganismID,
		"best_energy_per_atom", run.BestEnergyPerAtom,
	)
	return result, nil
}

// populate draws organisms one at a time so the random stream, and with it
// the generation, is reproducible from the seed.
func (m *Monitor) populate(ctx context.Context, log *slog.Logger) (*organism.Generation, int, int, error) {
	gen := organism.NewGeneration()
	attempts, rejected := 0, 0
	for gen.Len() < m.cfg.PopulationSize && attempts < m.cfg.MaxCreateAttempts {
		if err := ctx.Err(); err != nil {
			return nil, attempts, rejected, err
		}
		attempts++
		o, err := m.cfg.Creator.MakeOrganism(ctx, gen)
		if errors.Is(err, creator.ErrNoLattice) {
			rejected++
			log.Warn("organism skipped", "err", err)
			continue
		}
		if err != nil {
			return nil, attempts, rejected, fmt.Errorf("create organism: %w", err)
		}
		if err := organism.Develop(o, m.cfg.Constraints); err != nil {
			rejected++
			metrics.DevelopRejections.Inc()
			log.Debug("organism rejected", "organism", o.ID(), "err", err)
			continue
		}
		gen.Add(o)
	}
	return gen, attempts, rejected, nil
}

// evaluatePopulation waits for every organism under its own timeout. An
// engine that outlives the timeout leaves its organism at +Inf; the late
// result is dropped because evaluations are write-once.
func (m *Monitor) evaluatePopulation(ctx context.Context, orgs []*organism.StructureOrg) error {
	engine := m.cfg.Objective.Engine().Name()
	p := pool.New().WithMaxGoroutines(m.cfg.Workers)
	for _, o := range orgs {
		p.Go(func() {
			evalCtx, cancel := m.evalContext(ctx)
			defer cancel()
			task := m.cfg.Objective.Evaluate(evalCtx, o)
			if err := task.Wait(evalCtx); err == nil || ctx.Err() != nil {
				return
			}
			if o.SetEvaluation(math.Inf(1), math.Inf(1)) {
				metrics.Evaluations.WithLabelValues(engine, "timeout").Inc()
				m.cfg.Logger.Warn("evaluation timed out, marking organism unevaluable",
					"organism", o.ID(), "engine", engine, "timeout", m.cfg.EvalTimeout)
			}
		})
	}
	p.Wait()
	return ctx.Err()
}

func (m *Monitor) evalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.EvalTimeout > 0 {
		return context.WithTimeout(ctx, m.cfg.EvalTimeout)
	}
	return context.WithCancel(ctx)
}
