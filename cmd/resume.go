package main

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/qtrajopt/internal/objective"
	"github.com/cwbudde/qtrajopt/internal/problem"
	"github.com/cwbudde/qtrajopt/internal/store"
)

var (
	addTermsPath string
	minTimeD     float64
	forkJob      bool
	resumeFlags  solverOverrides
)

var resumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Resume a job from its checkpoint",
	Long: `Reloads a checkpoint, rebuilds its objective from the stored term records,
optionally appends new terms, and continues from the best trajectory found.

A common use is to first solve for fidelity alone and then resume with
--min-time to shorten the pulse.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Base directory for checkpoints and traces")
	resumeCmd.Flags().StringVar(&addTermsPath, "add", "", "File with objective terms to append (YAML or JSON list)")
	resumeCmd.Flags().Float64Var(&minTimeD, "min-time", 0, "Append a minimum-time term with this weight")
	resumeCmd.Flags().BoolVar(&forkJob, "fork", false, "Save the result under a new job ID instead of overwriting")
	resumeCmd.Flags().BoolVar(&traceParams, "trace-params", false, "Include the best trajectory in every trace entry")
	resumeCmd.Flags().StringVar(&resumeFlags.method, "method", "", "Override solver method")
	resumeCmd.Flags().IntVar(&resumeFlags.iters, "iters", 0, "Override max iterations per pass")
	resumeCmd.Flags().IntVar(&resumeFlags.passes, "passes", 0, "Override number of passes")
	resumeCmd.Flags().Int64Var(&resumeFlags.seed, "seed", 0, "Override random seed")

	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	checkpointStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}
	checkpoint, err := checkpointStore.LoadCheckpoint(args[0])
	if err != nil {
		return err
	}

	var extra objective.Terms
	if addTermsPath != "" {
		terms, err := problem.LoadTerms(addTermsPath)
		if err != nil {
			return err
		}
		extra = append(extra, terms...)
	}
	if minTimeD != 0 {
		extra = append(extra, objective.MinimumTimeParams{D: minTimeD})
	}

	spec := checkpoint.Config.WithTerms(extra...)
	spec.Solver.ApplyDefaults()
	resumeFlags.apply(&spec.Solver)
	if err := checkpoint.IsCompatible(*spec); err != nil {
		return err
	}

	j := job{
		id:          checkpoint.JobID,
		spec:        spec,
		start:       checkpoint.BestParams,
		passesDone:  checkpoint.Iteration,
		appendTrace: true,
		traceParams: traceParams,
	}
	if forkJob {
		j.id = uuid.NewString()
		j.passesDone = 0
		j.appendTrace = false
	}

	slog.Info("Resuming job",
		"job_id", checkpoint.JobID,
		"saved_as", j.id,
		"previous_cost", checkpoint.BestCost,
		"added_terms", len(extra),
	)

	ctx, cancel := commandContext(cmd)
	defer cancel()

	result, err := runJob(ctx, dataDir, j)
	if err != nil {
		return err
	}

	fmt.Printf("Job %s: cost %.6g -> %.6g after %d pass(es)\n", j.id, result.InitialCost, result.BestCost, result.Passes)
	return nil
}
