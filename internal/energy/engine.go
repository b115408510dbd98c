package energy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"structsearch/internal/organism"
)

var (
	ErrNoEnergy      = errors.New("engine produced no energy")
	ErrUnknownEngine = errors.New("unknown energy engine")
)

// Engine computes the total energy of a structure. TotalEnergy may block for
// a long time and may replace the organism's cell with a relaxed one through
// SetCell. CannotCompute is a cheap synchronous precheck.
type Engine interface {
	Name() string
	CannotCompute(o *organism.StructureOrg) bool
	TotalEnergy(ctx context.Context, o *organism.StructureOrg) (float64, error)
}

type Factory func() (Engine, error)

// Registry maps engine names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" || f == nil {
		return fmt.Errorf("register engine: empty name or nil factory")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("register engine: %s already registered", name)
	}
	r.factories[name] = f
	return nil
}

func (r *Registry) Build(name string) (Engine, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s (known: %v)", ErrUnknownEngine, name, r.Names())
	}
	return f()
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
