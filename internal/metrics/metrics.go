package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "structsearch"

var (
	// OrganismsCreated counts generator output. Labels: creator.
	OrganismsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "creator",
		Name:      "organisms_total",
		Help:      "Organisms produced by a generator",
	}, []string{"creator"})

	// PlacementFailures counts overlap rejections. Labels: kind (unit, atom, reference, relax, lattice).
	PlacementFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "creator",
		Name:      "placement_failures_total",
		Help:      "Rejected placements because of overlap",
	}, []string{"kind"})

	DensityAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "creator",
		Name:      "density_attempts",
		Help:      "Lattice draws needed to reach the target density",
		Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000, 2000},
	})

	DensityMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "creator",
		Name:      "density_misses_total",
		Help:      "Structures returned outside the density band after the attempt cap",
	})

	// Evaluations counts dispatcher outcomes. Labels: engine, result (ok, unevaluable, cached, timeout).
	Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "objective",
		Name:      "evaluations_total",
		Help:      "Energy evaluations by outcome",
	}, []string{"engine", "result"})

	EvaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "objective",
		Name:      "evaluation_duration_seconds",
		Help:      "Wall time of one energy engine call",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"engine"})

	// DevelopRejections counts organisms discarded by hard-constraint checks.
	DevelopRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "develop_rejections_total",
		Help:      "Organisms discarded by hard constraints",
	})

	BestValue = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "best_energy_per_atom",
		Help:      "Lowest energy per atom seen in the last run",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
