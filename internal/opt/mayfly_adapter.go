package opt

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// DefaultRadius is the half width of the search window used for unbounded
// entries, centred on the starting point.
const DefaultRadius = 1.0

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
	radius   float64
}

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(maxIters, popSize int, seed int64) Optimizer {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
		radius:   DefaultRadius,
	}
}

// Run executes the Mayfly optimization using the external library.
//
// The library takes one scalar bound for every dimension, so the search runs
// on the unit cube and each coordinate is mapped onto its own box. Gradients
// and Hessians are ignored.
func (m *MayflyAdapter) Run(p Problem, x0 []float64) ([]float64, float64) {
	lo, hi := m.searchBox(p, x0)
	toBox := func(y []float64) []float64 {
		x := make([]float64, len(y))
		for i, v := range y {
			x[i] = lo[i] + v*(hi[i]-lo[i])
		}
		return x
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(y []float64) float64 { return p.Func(toBox(y)) }
	config.ProblemSize = p.Dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.seed))

	startX, startCost := evaluateStart(p, x0)

	result, err := mayfly.Optimize(config)
	if err != nil {
		slog.Warn("Mayfly optimization failed, keeping start point", "error", err)
		return startX, startCost
	}

	best := toBox(result.GlobalBest.Position)
	cost := p.Func(best)
	if cost > startCost {
		return startX, startCost
	}
	return best, cost
}

// searchBox uses finite bounds where they exist and a window of m.radius
// around the start point elsewhere.
func (m *MayflyAdapter) searchBox(p Problem, x0 []float64) (lo, hi []float64) {
	lo = make([]float64, p.Dim)
	hi = make([]float64, p.Dim)
	for i := range lo {
		lo[i], hi[i] = x0[i]-m.radius, x0[i]+m.radius
		if i < len(p.Lower) && !math.IsInf(p.Lower[i], 0) {
			lo[i] = p.Lower[i]
		}
		if i < len(p.Upper) && !math.IsInf(p.Upper[i], 0) {
			hi[i] = p.Upper[i]
		}
	}
	return lo, hi
}
