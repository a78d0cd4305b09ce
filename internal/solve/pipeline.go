package solve

import (
	"context"
	"log/slog"
	"time"

	"github.com/cwbudde/qtrajopt/internal/opt"
)

// Config controls a pipeline run
type Config struct {
	// Passes is the maximum number of warm-started optimizer runs
	Passes      int
	Convergence ConvergenceConfig

	// OnPass is called after every pass with the best point so far
	OnPass func(Pass)
}

// Pass describes one completed optimizer run
type Pass struct {
	Index     int
	Cost      float64
	BestCost  float64
	Params    []float64
	Elapsed   time.Duration
	Converged bool
}

// Result holds the output of a pipeline run
type Result struct {
	BestParams  []float64
	BestCost    float64
	InitialCost float64
	Passes      int
	Converged   bool
}

// Run minimizes p by repeatedly restarting optimizer from the best point
// found so far. It stops when the pass budget is spent, the tracker detects
// stagnation or ctx is cancelled. A cancelled run still returns the best
// result found together with ctx.Err().
func Run(ctx context.Context, p opt.Problem, optimizer opt.Optimizer, x0 []float64, cfg Config) (*Result, error) {
	passes := cfg.Passes
	if passes < 1 {
		passes = 1
	}

	result := &Result{
		BestParams:  append([]float64{}, x0...),
		InitialCost: p.Func(x0),
	}
	result.BestCost = result.InitialCost

	slog.Info("Starting optimization", "dim", p.Dim, "passes", passes, "initial_cost", result.InitialCost)

	tracker := NewConvergenceTracker(cfg.Convergence)
	tracker.Update(result.InitialCost)

	start := time.Now()
	for i := 0; i < passes; i++ {
		if err := ctx.Err(); err != nil {
			slog.Info("Optimization cancelled", "passes", result.Passes, "best_cost", result.BestCost)
			return result, err
		}

		params, cost := optimizer.Run(p, result.BestParams)
		result.Passes++
		if cost < result.BestCost {
			result.BestCost = cost
			result.BestParams = params
		}

		converged := tracker.Update(result.BestCost)
		slog.Debug("Pass complete", "pass", i, "cost", cost, "best_cost", result.BestCost)

		if cfg.OnPass != nil {
			cfg.OnPass(Pass{
				Index:     i,
				Cost:      cost,
				BestCost:  result.BestCost,
				Params:    append([]float64{}, result.BestParams...),
				Elapsed:   time.Since(start),
				Converged: converged,
			})
		}

		if converged {
			result.Converged = true
			break
		}
	}

	slog.Info("Optimization complete",
		"passes", result.Passes,
		"initial_cost", result.InitialCost,
		"best_cost", result.BestCost,
		"converged", result.Converged)
	return result, nil
}
