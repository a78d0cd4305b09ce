package solve

import (
	"context"
	"errors"
	"testing"

	"github.com/cwbudde/qtrajopt/internal/opt"
)

// scripted returns a fixed sequence of costs, one per call, and records the
// start points it was given.
type scripted struct {
	costs  []float64
	starts [][]float64
}

func (s *scripted) Run(p opt.Problem, x0 []float64) ([]float64, float64) {
	s.starts = append(s.starts, append([]float64{}, x0...))
	i := len(s.starts) - 1
	return []float64{float64(i + 1)}, s.costs[i]
}

func constProblem(cost float64) opt.Problem {
	return opt.Problem{Dim: 1, Func: func([]float64) float64 { return cost }}
}

func TestRunWarmStarts(t *testing.T) {
	o := &scripted{costs: []float64{5, 3, 4}}
	var seen []Pass

	result, err := Run(context.Background(), constProblem(10), o, []float64{0}, Config{
		Passes:      3,
		Convergence: DisabledConvergenceConfig(),
		OnPass:      func(p Pass) { seen = append(seen, p) },
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.InitialCost != 10 {
		t.Errorf("Expected initial cost 10, got %v", result.InitialCost)
	}
	if result.BestCost != 3 || result.BestParams[0] != 2 {
		t.Errorf("Expected best from pass 2, got cost %v params %v", result.BestCost, result.BestParams)
	}
	if result.Passes != 3 {
		t.Errorf("Expected 3 passes, got %d", result.Passes)
	}

	// each pass starts from the best point so far
	want := []float64{0, 1, 2}
	for i, start := range o.starts {
		if start[0] != want[i] {
			t.Errorf("Pass %d started at %v, expected %v", i, start[0], want[i])
		}
	}

	if len(seen) != 3 {
		t.Fatalf("Expected 3 pass callbacks, got %d", len(seen))
	}
	if seen[2].Cost != 4 || seen[2].BestCost != 3 {
		t.Errorf("Unexpected last pass: %+v", seen[2])
	}
}

func TestRunStopsOnConvergence(t *testing.T) {
	o := &scripted{costs: []float64{1, 1, 1, 1, 1}}

	result, err := Run(context.Background(), constProblem(2), o, []float64{0}, Config{
		Passes:      5,
		Convergence: ConvergenceConfig{Enabled: true, Patience: 2, Threshold: 0.01},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !result.Converged {
		t.Error("Expected convergence")
	}
	if result.Passes != 3 {
		t.Errorf("Expected 3 passes, got %d", result.Passes)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	o := &scripted{costs: []float64{1, 0.5, 0.25}}

	result, err := Run(ctx, constProblem(2), o, []float64{0}, Config{
		Passes:      3,
		Convergence: DisabledConvergenceConfig(),
		OnPass:      func(Pass) { cancel() },
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if result.Passes != 1 || result.BestCost != 1 {
		t.Errorf("Expected the first pass to be kept, got %+v", result)
	}
}

func TestRunWithGonum(t *testing.T) {
	p := opt.Problem{
		Dim:  2,
		Func: func(x []float64) float64 { return (x[0]-1)*(x[0]-1) + (x[1]+2)*(x[1]+2) },
		Grad: func(grad, x []float64) {
			grad[0] = 2 * (x[0] - 1)
			grad[1] = 2 * (x[1] + 2)
		},
	}

	result, err := Run(context.Background(), p, opt.NewGonum("lbfgs", 100), []float64{0, 0}, Config{
		Passes:      2,
		Convergence: DefaultConvergenceConfig(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.BestCost > 1e-8 {
		t.Errorf("Expected cost near 0, got %v", result.BestCost)
	}
	if result.BestCost >= result.InitialCost {
		t.Errorf("Optimization did not improve: initial=%f, best=%f", result.InitialCost, result.BestCost)
	}
}
