package store

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/qtrajopt/internal/problem"
)

// Checkpoint represents a saved optimization state that can be resumed later.
// All fields are serialized to JSON for persistence.
//
// The checkpoint stores the best decision vector found so far together with
// the full problem definition, including the objective term records. On
// resume the objective is rebuilt from those records, optionally extended
// with new terms, and the optimizer is warm-started from BestParams.
// Internal optimizer state (quasi-Newton memory, mayfly population) is not
// saved and is reinitialized on resume.
type Checkpoint struct {
	// JobID is the unique identifier for this optimization job
	JobID string `json:"jobId"`

	// BestParams is the flat decision vector (Dim·T values) with the lowest cost
	BestParams []float64 `json:"bestParams"`

	// BestCost is the objective value at BestParams
	BestCost float64 `json:"bestCost"`

	// InitialCost is the objective value at the starting trajectory
	InitialCost float64 `json:"initialCost"`

	// Iteration counts the completed solver passes
	Iteration int `json:"iteration"`

	// Timestamp records when this checkpoint was created
	Timestamp time.Time `json:"timestamp"`

	// Config is the problem the checkpoint belongs to. Its objective term
	// records are used to rebuild the objective on resume.
	Config problem.Spec `json:"config"`
}

// CheckpointInfo contains metadata about a checkpoint without the full parameter data.
type CheckpointInfo struct {
	JobID     string    `json:"jobId"`
	BestCost  float64   `json:"bestCost"`
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`

	// Name is the problem name, if any
	Name string `json:"name,omitempty"`

	// T is the number of timesteps
	T int `json:"T"`

	// Terms lists the kinds of the objective terms in order
	Terms []string `json:"terms"`
}

// NewCheckpoint creates a checkpoint from job state.
func NewCheckpoint(jobID string, bestParams []float64, bestCost, initialCost float64, iteration int, config problem.Spec) *Checkpoint {
	return &Checkpoint{
		JobID:       jobID,
		BestParams:  bestParams,
		BestCost:    bestCost,
		InitialCost: initialCost,
		Iteration:   iteration,
		Timestamp:   time.Now(),
		Config:      config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	terms := make([]string, len(c.Config.Objective))
	for i, p := range c.Config.Objective {
		terms[i] = string(p.Kind())
	}
	return CheckpointInfo{
		JobID:     c.JobID,
		BestCost:  c.BestCost,
		Iteration: c.Iteration,
		Timestamp: c.Timestamp,
		Name:      c.Config.Name,
		T:         c.Config.T,
		Terms:     terms,
	}
}

// Validate checks if the checkpoint has valid data.
// Returns an error if any required field is missing or invalid.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.BestParams) == 0 {
		return &ValidationError{Field: "BestParams", Reason: "cannot be empty"}
	}
	if math.IsNaN(c.BestCost) || math.IsInf(c.BestCost, 0) {
		return &ValidationError{Field: "BestCost", Reason: "must be finite"}
	}
	if math.IsNaN(c.InitialCost) || math.IsInf(c.InitialCost, 0) {
		return &ValidationError{Field: "InitialCost", Reason: "must be finite"}
	}
	if c.Iteration < 0 {
		return &ValidationError{Field: "Iteration", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if len(c.Config.Objective) == 0 {
		return &ValidationError{Field: "Config.Objective", Reason: "cannot be empty"}
	}
	if c.Config.Solver.Method == "" {
		return &ValidationError{Field: "Config.Solver.Method", Reason: "cannot be empty"}
	}

	l, err := c.Config.Layout()
	if err != nil {
		return &ValidationError{Field: "Config", Reason: err.Error()}
	}
	// BestParams must cover every timestep block
	if len(c.BestParams) != l.Len() {
		return &ValidationError{
			Field:  "BestParams",
			Reason: fmt.Sprintf("length mismatch: expected %d params for %d timesteps of width %d", l.Len(), l.T(), l.Dim()),
		}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks whether the checkpoint's decision vector can seed a
// solve of spec, i.e. both lay out the same components over the same
// timesteps. Objective terms and solver settings may differ.
func (c *Checkpoint) IsCompatible(spec problem.Spec) error {
	if c.Config.T != spec.T {
		return &CompatibilityError{
			Field:    "T",
			Expected: fmt.Sprintf("%d", c.Config.T),
			Actual:   fmt.Sprintf("%d", spec.T),
		}
	}
	if c.Config.Timestep != spec.Timestep {
		return &CompatibilityError{
			Field:    "Timestep",
			Expected: fmt.Sprintf("%+v", c.Config.Timestep),
			Actual:   fmt.Sprintf("%+v", spec.Timestep),
		}
	}
	if len(c.Config.Components) != len(spec.Components) {
		return &CompatibilityError{
			Field:    "Components",
			Expected: fmt.Sprintf("%d components", len(c.Config.Components)),
			Actual:   fmt.Sprintf("%d components", len(spec.Components)),
		}
	}
	for i, comp := range c.Config.Components {
		if comp != spec.Components[i] {
			return &CompatibilityError{
				Field:    fmt.Sprintf("Components[%d]", i),
				Expected: fmt.Sprintf("%s(%d)", comp.Name, comp.Width),
				Actual:   fmt.Sprintf("%s(%d)", spec.Components[i].Name, spec.Components[i].Width),
			}
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
