// Package problem loads trajectory optimization problems from YAML or JSON
// files and builds the trajectory and objective they describe.
package problem

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/qtrajopt/internal/objective"
	"github.com/cwbudde/qtrajopt/internal/traj"
)

// Spec is a complete problem definition. It is also stored in checkpoints,
// so the objective can be rebuilt from Objective when a solve is resumed.
type Spec struct {
	Name       string           `json:"name,omitempty" yaml:"name,omitempty"`
	T          int              `json:"T" yaml:"T"`
	Components []traj.Component `json:"components" yaml:"components"`
	Timestep   traj.Timestep    `json:"timestep" yaml:"timestep"`

	// Data holds the starting values of a component, either a single row
	// used at every timestep or one row per timestep.
	Data map[string][][]float64 `json:"data,omitempty" yaml:"data,omitempty"`

	Initial map[string][]float64  `json:"initial,omitempty" yaml:"initial,omitempty"`
	Final   map[string][]float64  `json:"final,omitempty" yaml:"final,omitempty"`
	Goals   map[string][]float64  `json:"goals,omitempty" yaml:"goals,omitempty"`
	Bounds  map[string]traj.Bound `json:"bounds,omitempty" yaml:"bounds,omitempty"`

	Objective objective.Terms `json:"objective" yaml:"objective"`
	Solver    Solver          `json:"solver" yaml:"solver"`
}

// Solver selects the optimizer and its budget
type Solver struct {
	Method     string  `json:"method" yaml:"method"` // lbfgs, bfgs, newton, nelder-mead, mayfly
	Iterations int     `json:"iterations" yaml:"iterations"`
	Passes     int     `json:"passes,omitempty" yaml:"passes,omitempty"`
	Patience   int     `json:"patience,omitempty" yaml:"patience,omitempty"`
	Threshold  float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Population int     `json:"population,omitempty" yaml:"population,omitempty"`
	Seed       int64   `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// Default solver settings, applied to zero fields by Load
const (
	DefaultMethod     = "lbfgs"
	DefaultIterations = 200
	DefaultPasses     = 1
	DefaultPatience   = 3
	DefaultThreshold  = 1e-9
	DefaultPopulation = 30
)

// ApplyDefaults fills unset solver fields
func (s *Solver) ApplyDefaults() {
	if s.Method == "" {
		s.Method = DefaultMethod
	}
	if s.Iterations == 0 {
		s.Iterations = DefaultIterations
	}
	if s.Passes == 0 {
		s.Passes = DefaultPasses
	}
	if s.Patience == 0 {
		s.Patience = DefaultPatience
	}
	if s.Threshold == 0 {
		s.Threshold = DefaultThreshold
	}
	if s.Population == 0 {
		s.Population = DefaultPopulation
	}
}

// Load reads a problem file. Files ending in .json are decoded as JSON,
// everything else as YAML.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem: %w", err)
	}

	var s Spec
	if err := decodeStrict(path, data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode problem %s: %w", path, err)
	}

	s.Solver.ApplyDefaults()
	slog.Debug("Loaded problem", "path", path, "timesteps", s.T, "terms", len(s.Objective))
	return &s, nil
}

// LoadTerms reads a standalone list of objective term records
func LoadTerms(path string) (objective.Terms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read terms: %w", err)
	}
	var terms objective.Terms
	if err := decodeStrict(path, data, &terms); err != nil {
		return nil, fmt.Errorf("failed to decode terms %s: %w", path, err)
	}
	return terms, nil
}

// decodeStrict decodes JSON or YAML by file extension and rejects keys that
// v does not define.
func decodeStrict(path string, data []byte, v any) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(v)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Layout builds the trajectory layout with its goal, initial and final values
func (s *Spec) Layout() (*traj.Layout, error) {
	l, err := traj.NewLayout(s.T, s.Components, s.Timestep)
	if err != nil {
		return nil, err
	}
	for _, ref := range []struct {
		values map[string][]float64
		set    func(string, []float64) error
	}{
		{s.Goals, l.SetGoal},
		{s.Initial, l.SetInitial},
		{s.Final, l.SetFinal},
	} {
		for name, v := range ref.values {
			if err := ref.set(name, v); err != nil {
				return nil, err
			}
		}
	}
	return l, nil
}

// Trajectory builds the layout and fills it with the starting data. Initial
// and final values overwrite the first and last timestep.
func (s *Spec) Trajectory() (*traj.Trajectory, error) {
	l, err := s.Layout()
	if err != nil {
		return nil, err
	}
	tr := traj.NewTrajectory(l)

	for name, rows := range s.Data {
		switch len(rows) {
		case 1:
			for t := 0; t < l.T(); t++ {
				if err := tr.Set(t, name, rows[0]); err != nil {
					return nil, err
				}
			}
		case l.T():
			for t, row := range rows {
				if err := tr.Set(t, name, row); err != nil {
					return nil, err
				}
			}
		default:
			return nil, &traj.LayoutError{
				Field:  "data." + name,
				Reason: fmt.Sprintf("expected 1 or %d rows, got %d", l.T(), len(rows)),
			}
		}
	}
	for name := range s.Initial {
		v, _ := l.Initial(name)
		if err := tr.Set(0, name, v); err != nil {
			return nil, err
		}
	}
	for name := range s.Final {
		v, _ := l.Final(name)
		if err := tr.Set(l.T()-1, name, v); err != nil {
			return nil, err
		}
	}

	for name, b := range s.Bounds {
		if err := tr.SetBound(name, b); err != nil {
			return nil, err
		}
	}
	return tr, nil
}

// Build returns the starting trajectory and the objective rebuilt from the
// term records.
func (s *Spec) Build() (*traj.Trajectory, *objective.Objective, error) {
	tr, err := s.Trajectory()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build trajectory: %w", err)
	}
	obj, err := objective.Rebuild(tr.Layout, s.Objective)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build objective: %w", err)
	}

	slog.Debug("Built problem",
		"dim", tr.Dim(),
		"timesteps", tr.T(),
		"variables", tr.Len(),
		"terms", len(obj.Terms),
		"hessian", obj.HasHessian())
	return tr, obj, nil
}

// WithTerms returns a copy of the spec with extra objective terms appended
func (s Spec) WithTerms(extra ...objective.Params) *Spec {
	terms := make(objective.Terms, 0, len(s.Objective)+len(extra))
	terms = append(terms, s.Objective...)
	s.Objective = append(terms, extra...)
	return &s
}
