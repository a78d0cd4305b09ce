package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/qtrajopt/internal/problem"
)

var (
	problemPath string
	dataDir     string
	jobID       string
	traceParams bool
	runFlags    solverOverrides
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Solve a trajectory optimization problem",
	Long: `Builds the trajectory and objective described by a problem file, minimizes
the objective and saves the best trajectory as a checkpoint together with a
per-pass cost trace.`,
	RunE: runOptimization,
}

func init() {
	runCmd.Flags().StringVar(&problemPath, "problem", "", "Problem file, YAML or JSON (required)")
	runCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Base directory for checkpoints and traces")
	runCmd.Flags().StringVar(&jobID, "job-id", "", "Job ID (default: random UUID)")
	runCmd.Flags().BoolVar(&traceParams, "trace-params", false, "Include the best trajectory in every trace entry")
	runCmd.Flags().StringVar(&runFlags.method, "method", "", "Override solver method (lbfgs, bfgs, newton, gradient-descent, nelder-mead, mayfly)")
	runCmd.Flags().IntVar(&runFlags.iters, "iters", 0, "Override max iterations per pass")
	runCmd.Flags().IntVar(&runFlags.passes, "passes", 0, "Override number of passes")
	runCmd.Flags().Int64Var(&runFlags.seed, "seed", 0, "Override random seed")

	runCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(runCmd)
}

func runOptimization(cmd *cobra.Command, args []string) error {
	spec, err := problem.Load(problemPath)
	if err != nil {
		return err
	}
	runFlags.apply(&spec.Solver)

	id := jobID
	if id == "" {
		id = uuid.NewString()
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	result, err := runJob(ctx, dataDir, job{
		id:          id,
		spec:        spec,
		traceParams: traceParams,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Job %s: cost %.6g -> %.6g after %d pass(es)\n", id, result.InitialCost, result.BestCost, result.Passes)
	return nil
}
