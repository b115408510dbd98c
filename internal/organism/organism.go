package organism

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"structsearch/internal/geom"
)

// StructureOrg is one candidate structure. Its energy and fitness value are
// written at most once per cell; SetCell starts over with an empty cache.
type StructureOrg struct {
	id string

	mu          sync.Mutex
	cell        geom.Cell
	totalEnergy float64
	value       float64
	known       bool
	inflight    chan struct{}
}

func New(cell geom.Cell) *StructureOrg {
	return NewWithID(uuid.NewString(), cell)
}

func NewWithID(id string, cell geom.Cell) *StructureOrg {
	return &StructureOrg{id: id, cell: cell}
}

func (o *StructureOrg) ID() string { return o.id }

func (o *StructureOrg) Cell() geom.Cell {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cell
}

// SetCell replaces the structure, typically with a relaxed geometry returned
// by an energy engine, and forgets any cached evaluation.
func (o *StructureOrg) SetCell(cell geom.Cell) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cell = cell
	o.known = false
	o.totalEnergy = 0
	o.value = 0
}

func (o *StructureOrg) KnowsValue() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.known
}

// Value is NaN until KnowsValue reports true.
func (o *StructureOrg) Value() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.known {
		return math.NaN()
	}
	return o.value
}

// TotalEnergy is NaN until KnowsValue reports true.
func (o *StructureOrg) TotalEnergy() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.known {
		return math.NaN()
	}
	return o.totalEnergy
}

// SetEvaluation records the energy and value. It reports false and changes
// nothing when a value is already known. Any waiter on an in-flight claim is
// released.
func (o *StructureOrg) SetEvaluation(totalEnergy, value float64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight != nil {
		close(o.inflight)
		o.inflight = nil
	}
	if o.known {
		return false
	}
	o.totalEnergy = totalEnergy
	o.value = value
	o.known = true
	return true
}

// Claim marks the organism as being evaluated. The caller that receives
// owner == true must eventually call SetEvaluation; every other caller gets
// the channel that closes when that happens. A known value yields an already
// closed channel.
func (o *StructureOrg) Claim() (done <-chan struct{}, owner bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.known {
		ch := make(chan struct{})
		close(ch)
		return ch, false
	}
	if o.inflight != nil {
		return o.inflight, false
	}
	o.inflight = make(chan struct{})
	return o.inflight, true
}

func (o *StructureOrg) String() string {
	cell := o.Cell()
	return o.id + " " + cell.Composition().String()
}
