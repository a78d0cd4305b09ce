package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/qtrajopt/internal/store"
)

var (
	checkpointDataDir string
	keepLast          int
	olderThanDays     int
	forceClean        bool
	showLast          int
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Manage optimization checkpoints",
	Long: `Manage optimization checkpoints including listing, inspecting and cleaning old checkpoints.
Checkpoints allow resuming a solve, optionally with additional objective terms.`,
}

var listCheckpointsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available checkpoints",
	Long:  `Display all checkpoints with metadata including job ID, problem, timestep count, objective terms, passes, cost, and file sizes.`,
	RunE:  runListCheckpoints,
}

var cleanCheckpointsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old checkpoints",
	Long: `Delete old checkpoints based on retention policy.
You can specify how many checkpoints to keep per job or delete checkpoints older than N days.`,
	RunE: runCleanCheckpoints,
}

var showCheckpointCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show a checkpoint and its per-pass trace",
	Long: `Display a checkpoint summary followed by the cost history recorded for the job,
one row per solver pass. Passes where the set of objective terms changed, for example
after a resume with --add, list the new terms.`,
	Args: cobra.ExactArgs(1),
	RunE: runShowCheckpoint,
}

func init() {
	// Add checkpoints command to root
	rootCmd.AddCommand(checkpointsCmd)

	// Add subcommands
	checkpointsCmd.AddCommand(listCheckpointsCmd)
	checkpointsCmd.AddCommand(cleanCheckpointsCmd)
	checkpointsCmd.AddCommand(showCheckpointCmd)

	// Global flags for checkpoints command
	checkpointsCmd.PersistentFlags().StringVar(&checkpointDataDir, "data-dir", "./data", "Base directory for checkpoint storage")

	// Clean command flags
	cleanCheckpointsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the N most recent checkpoints (0 = keep all)")
	cleanCheckpointsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete checkpoints older than N days (0 = no age limit)")
	cleanCheckpointsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")

	showCheckpointCmd.Flags().IntVar(&showLast, "last", 0, "Show only the N most recent passes (0 = all)")
}

func runListCheckpoints(cmd *cobra.Command, args []string) error {
	// Create store
	checkpointStore, err := store.NewFSStore(checkpointDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	// List all checkpoints
	infos, err := checkpointStore.ListCheckpoints()
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No checkpoints found.")
		return nil
	}

	// Display checkpoints in a table
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tNAME\tT\tTERMS\tTIMESTAMP\tPASSES\tBEST COST\tSIZE")
	fmt.Fprintln(w, "------\t----\t-\t-----\t---------\t------\t---------\t----")

	for _, info := range infos {
		// Get checkpoint directory size
		jobDir := filepath.Join(checkpointDataDir, "jobs", info.JobID)
		size, err := getDirSize(jobDir)
		sizeStr := "unknown"
		if err == nil {
			sizeStr = formatBytes(size)
		}

		// Format timestamp
		timestamp := info.Timestamp.Format("2006-01-02 15:04:05")

		// Truncate job ID for display
		displayID := info.JobID
		if len(displayID) > 12 {
			displayID = displayID[:12] + "..."
		}

		name := info.Name
		if name == "" {
			name = "-"
		}

		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d\t%.6g\t%s\n",
			displayID,
			name,
			info.T,
			strings.Join(info.Terms, ","),
			timestamp,
			info.Iteration,
			info.BestCost,
			sizeStr,
		)
	}

	w.Flush()

	fmt.Printf("\nTotal checkpoints: %d\n", len(infos))
	return nil
}

func runShowCheckpoint(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	checkpointStore, err := store.NewFSStore(checkpointDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}
	checkpoint, err := checkpointStore.LoadCheckpoint(jobID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	entries, err := store.ReadTrace(checkpointDataDir, jobID)
	var notFound *store.NotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("failed to read trace: %w", err)
	}

	return printCheckpoint(cmd.OutOrStdout(), checkpoint, entries, showLast)
}

// printCheckpoint writes the checkpoint summary and the last passes of its
// trace. Term kinds are printed only where they differ from the previous pass.
func printCheckpoint(out io.Writer, checkpoint *store.Checkpoint, entries []store.TraceEntry, last int) error {
	info := checkpoint.ToInfo()
	name := info.Name
	if name == "" {
		name = "-"
	}

	fmt.Fprintf(out, "Job:          %s\n", info.JobID)
	fmt.Fprintf(out, "Problem:      %s (T=%d)\n", name, info.T)
	fmt.Fprintf(out, "Terms:        %s\n", strings.Join(info.Terms, ", "))
	fmt.Fprintf(out, "Solver:       %s\n", checkpoint.Config.Solver.Method)
	fmt.Fprintf(out, "Cost:         %.6g -> %.6g\n", checkpoint.InitialCost, checkpoint.BestCost)
	fmt.Fprintf(out, "Passes:       %d\n", checkpoint.Iteration)
	fmt.Fprintf(out, "Saved:        %s\n", info.Timestamp.Format("2006-01-02 15:04:05"))

	if len(entries) == 0 {
		fmt.Fprintln(out, "\nNo trace recorded.")
		return nil
	}

	start := 0
	if last > 0 && len(entries) > last {
		start = len(entries) - last
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PASS\tCOST\tBEST COST\tELAPSED\tTERMS")
	fmt.Fprintln(w, "----\t----\t---------\t-------\t-----")

	var prev []string
	if start > 0 {
		prev = entries[start-1].Terms
	}
	for _, entry := range entries[start:] {
		terms := ""
		if !slices.Equal(entry.Terms, prev) {
			terms = strings.Join(entry.Terms, ",")
		}
		prev = entry.Terms

		fmt.Fprintf(w, "%d\t%.6g\t%.6g\t%.2fs\t%s\n",
			entry.Pass,
			entry.Cost,
			entry.BestCost,
			entry.Elapsed,
			terms,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if start > 0 {
		fmt.Fprintf(out, "\n%d earlier pass(es) not shown.\n", start)
	}
	return nil
}

func runCleanCheckpoints(cmd *cobra.Command, args []string) error {
	// Validate flags
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	// Create store
	checkpointStore, err := store.NewFSStore(checkpointDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	// List all checkpoints
	infos, err := checkpointStore.ListCheckpoints()
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No checkpoints to clean.")
		return nil
	}

	// Determine which checkpoints to delete
	toDelete := selectCheckpointsForDeletion(infos, keepLast, olderThanDays)

	if len(toDelete) == 0 {
		fmt.Println("No checkpoints match deletion criteria.")
		return nil
	}

	// Show what will be deleted
	fmt.Printf("Found %d checkpoint(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		displayID := info.JobID
		if len(displayID) > 12 {
			displayID = displayID[:12] + "..."
		}
		fmt.Printf("  - %s (%d passes, %s)\n",
			displayID,
			info.Iteration,
			info.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	// Ask for confirmation unless --force is set
	if !forceClean {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Delete checkpoints
	deleted := 0
	failed := 0
	for _, info := range toDelete {
		err := checkpointStore.DeleteCheckpoint(info.JobID)
		if err != nil {
			slog.Error("Failed to delete checkpoint", "job_id", info.JobID, "error", err)
			failed++
		} else {
			slog.Info("Deleted checkpoint", "job_id", info.JobID)
			deleted++
		}
	}

	fmt.Printf("\nDeleted %d checkpoint(s), %d failed.\n", deleted, failed)
	return nil
}

// selectCheckpointsForDeletion determines which checkpoints should be deleted based on retention policy
func selectCheckpointsForDeletion(infos []store.CheckpointInfo, keepLast int, olderThanDays int) []store.CheckpointInfo {
	var toDelete []store.CheckpointInfo

	// Apply age-based deletion
	if olderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				toDelete = append(toDelete, info)
			}
		}
	}

	// Apply count-based deletion: each job has one checkpoint, so keep the
	// keepLast most recent jobs
	if keepLast > 0 && len(infos) > keepLast {
		sorted := slices.Clone(infos)
		slices.SortFunc(sorted, func(a, b store.CheckpointInfo) int {
			return a.Timestamp.Compare(b.Timestamp)
		})

		for _, info := range sorted[:len(sorted)-keepLast] {
			if !slices.ContainsFunc(toDelete, func(existing store.CheckpointInfo) bool {
				return existing.JobID == info.JobID
			}) {
				toDelete = append(toDelete, info)
			}
		}
	}

	return toDelete
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
