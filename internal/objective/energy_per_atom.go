package objective

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"structsearch/internal/energy"
	"structsearch/internal/metrics"
	"structsearch/internal/organism"
)

// Executor runs submitted work. conc's *pool.Pool satisfies it.
type Executor interface {
	Go(f func())
}

type goroutineExecutor struct{}

func (goroutineExecutor) Go(f func()) { go f() }

type Option func(*EnergyPerAtom)

func WithExecutor(e Executor) Option {
	return func(f *EnergyPerAtom) {
		if e != nil {
			f.exec = e
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(f *EnergyPerAtom) {
		if l != nil {
			f.logger = l
		}
	}
}

// EnergyPerAtom turns an organism into a fitness value: total energy from the
// engine divided by the number of atoms. Lower is better; +Inf marks an
// organism the engine could not evaluate.
type EnergyPerAtom struct {
	engine       energy.Engine
	exec         Executor
	logger       *slog.Logger
	calculations atomic.Int64
}

func NewEnergyPerAtom(engine energy.Engine, opts ...Option) *EnergyPerAtom {
	f := &EnergyPerAtom{engine: engine, exec: goroutineExecutor{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Task tracks one evaluation. Done closes once the organism knows its value.
type Task struct {
	done       <-chan struct{}
	dispatched bool
}

func (t *Task) Done() <-chan struct{} { return t.done }

// Dispatched reports whether this call submitted engine work.
func (t *Task) Dispatched() bool { return t.dispatched }

func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Evaluate starts the evaluation of o unless its value is known or another
// call is already computing it; in both cases the returned task completes
// with that existing evaluation. Organisms the engine cannot compute get +Inf
// synchronously. ctx is handed to the engine and bounds only the engine call.
func (f *EnergyPerAtom) Evaluate(ctx context.Context, o *organism.StructureOrg) *Task {
	done, owner := o.Claim()
	if !owner {
		metrics.Evaluations.WithLabelValues(f.engine.Name(), "cached").Inc()
		return &Task{done: done}
	}
	if f.engine.CannotCompute(o) {
		o.SetEvaluation(math.Inf(1), math.Inf(1))
		metrics.Evaluations.WithLabelValues(f.engine.Name(), "unevaluable").Inc()
		f.logger.Debug("engine cannot compute organism", "organism", o.ID(), "engine", f.engine.Name())
		return &Task{done: done}
	}

	f.calculations.Add(1)
	f.exec.Go(func() { f.run(ctx, o) })
	return &Task{done: done, dispatched: true}
}

// Calculations is the number of engine calls started so far.
func (f *EnergyPerAtom) Calculations() int64 {
	return f.calculations.Load()
}

func (f *EnergyPerAtom) Engine() energy.Engine { return f.engine }

func (f *EnergyPerAtom) run(ctx context.Context, o *organism.StructureOrg) {
	name := f.engine.Name()
	start := time.Now()
	total, err := f.totalEnergy(ctx, o)
	metrics.EvaluationDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	n := o.Cell().NumSites()
	switch {
	case err != nil:
	case n == 0:
		err = fmt.Errorf("cell has no atoms")
	case math.IsNaN(total) || math.IsInf(total, 0):
		err = fmt.Errorf("non-finite energy %v", total)
	}
	if err != nil {
		f.logger.Warn("evaluation failed, marking organism unevaluable", "organism", o.ID(), "engine", name, "err", err)
		metrics.Evaluations.WithLabelValues(name, "unevaluable").Inc()
		o.SetEvaluation(math.Inf(1), math.Inf(1))
		return
	}

	value := total / float64(n)
	metrics.Evaluations.WithLabelValues(name, "ok").Inc()
	f.logger.Debug("organism evaluated", "organism", o.ID(), "energy", total, "energy_per_atom", value, "atoms", n)
	o.SetEvaluation(total, value)
}

func (f *EnergyPerAtom) totalEnergy(ctx context.Context, o *organism.StructureOrg) (total float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return f.engine.TotalEnergy(ctx, o)
}
