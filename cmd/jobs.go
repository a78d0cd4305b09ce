package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/qtrajopt/internal/opt"
	"github.com/cwbudde/qtrajopt/internal/problem"
	"github.com/cwbudde/qtrajopt/internal/solve"
	"github.com/cwbudde/qtrajopt/internal/store"
	"github.com/cwbudde/qtrajopt/internal/traj"
)

// solverOverrides holds the solver flags shared by run and resume. Zero
// values keep the problem's own settings.
type solverOverrides struct {
	method string
	iters  int
	passes int
	seed   int64
}

func (o solverOverrides) apply(s *problem.Solver) {
	if o.method != "" {
		s.Method = o.method
	}
	if o.iters > 0 {
		s.Iterations = o.iters
	}
	if o.passes > 0 {
		s.Passes = o.passes
	}
	if o.seed != 0 {
		s.Seed = o.seed
	}
}

// job is one solve of a problem, either fresh or warm-started from a
// checkpoint.
type job struct {
	id   string
	spec *problem.Spec

	// start overrides the problem's starting trajectory when set
	start []float64

	// passesDone counts passes of earlier runs of the same job
	passesDone int

	appendTrace bool
	traceParams bool
}

// commandContext returns a context cancelled on interrupt
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := context.Background()
	if cmd != nil && cmd.Context() != nil {
		ctx = cmd.Context()
	}
	return signal.NotifyContext(ctx, os.Interrupt)
}

// runJob solves the job, writes one trace entry per pass and saves the best
// result as the job's checkpoint. An interrupted solve still saves its best
// point before returning the context error.
func runJob(ctx context.Context, dataDir string, j job) (*solve.Result, error) {
	tr, obj, err := j.spec.Build()
	if err != nil {
		return nil, err
	}

	lower, upper := tr.Bounds()
	x0 := tr.Data
	if j.start != nil {
		if len(j.start) != len(x0) {
			return nil, fmt.Errorf("start point has %d values, problem has %d", len(j.start), len(x0))
		}
		x0 = append([]float64{}, j.start...)
	}
	traj.Clamp(x0, lower, upper)

	s := j.spec.Solver
	optimizer, err := opt.New(s.Method, opt.Config{
		Iterations: s.Iterations,
		Population: s.Population,
		Seed:       s.Seed,
	})
	if err != nil {
		return nil, err
	}

	checkpointStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint store: %w", err)
	}
	trace, err := store.NewTraceWriter(dataDir, j.id, j.appendTrace)
	if err != nil {
		return nil, err
	}
	defer trace.Close()

	terms := make([]string, len(obj.Terms))
	for i, p := range obj.Terms {
		terms[i] = string(p.Kind())
	}

	slog.Info("Starting job",
		"job_id", j.id,
		"method", s.Method,
		"variables", tr.Len(),
		"terms", terms,
		"hessian", obj.HasHessian(),
	)

	result, runErr := solve.Run(ctx, opt.FromObjective(obj, lower, upper), optimizer, x0, solve.Config{
		Passes: s.Passes,
		Convergence: solve.ConvergenceConfig{
			Enabled:   true,
			Patience:  s.Patience,
			Threshold: s.Threshold,
		},
		OnPass: func(p solve.Pass) {
			entry := store.TraceEntry{
				Pass:      j.passesDone + p.Index + 1,
				Cost:      p.Cost,
				BestCost:  p.BestCost,
				Elapsed:   p.Elapsed.Seconds(),
				Timestamp: time.Now(),
				Terms:     terms,
			}
			if j.traceParams {
				entry.Params = p.Params
			}
			if err := trace.Write(entry); err != nil {
				slog.Warn("Failed to write trace entry", "job_id", j.id, "error", err)
			}
		},
	})
	if result == nil {
		return nil, runErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return result, runErr
	}

	checkpoint := store.NewCheckpoint(j.id, result.BestParams, result.BestCost, result.InitialCost,
		j.passesDone+result.Passes, *j.spec)
	if err := checkpointStore.SaveCheckpoint(j.id, checkpoint); err != nil {
		return result, fmt.Errorf("failed to save checkpoint: %w", err)
	}
	slog.Info("Checkpoint saved", "job_id", j.id, "best_cost", result.BestCost, "passes", checkpoint.Iteration)

	return result, runErr
}
