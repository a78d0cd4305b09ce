package problem

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/qtrajopt/internal/objective"
	"github.com/cwbudde/qtrajopt/internal/traj"
)

func TestLoadYAML(t *testing.T) {
	s, err := Load("testdata/xgate.yaml")
	require.NoError(t, err)

	assert.Equal(t, "x-gate", s.Name)
	assert.Equal(t, 5, s.T)
	assert.Equal(t, traj.Timestep{Variable: "dt"}, s.Timestep)
	require.Len(t, s.Objective, 3)
	assert.Equal(t, objective.KindUnitaryInfidelity, s.Objective[0].Kind())
	assert.Equal(t, objective.QuadraticParams{Name: "a", RValue: 0.01}, s.Objective[1])

	// explicit settings survive, the rest is defaulted
	assert.Equal(t, "lbfgs", s.Solver.Method)
	assert.Equal(t, 100, s.Solver.Iterations)
	assert.Equal(t, 2, s.Solver.Passes)
	assert.Equal(t, DefaultPatience, s.Solver.Patience)
	assert.Equal(t, DefaultPopulation, s.Solver.Population)
}

func TestBuild(t *testing.T) {
	s, err := Load("testdata/xgate.yaml")
	require.NoError(t, err)

	tr, obj, err := s.Build()
	require.NoError(t, err)

	assert.Equal(t, 11, tr.Dim())
	assert.Equal(t, 55, tr.Len())
	assert.Equal(t, []float64{1, 0, 0, 0, 0, 1, 0, 0}, tr.Get(4, "U"))
	assert.Equal(t, []float64{0.2}, tr.Get(2, "dt"))
	assert.True(t, obj.HasHessian())
	assert.Equal(t, s.Objective, obj.Terms)

	// identity is orthogonal to X, so the fidelity term contributes Q
	assert.InDelta(t, 100.0, obj.Loss(tr.Data), 1e-9)

	lower, upper := tr.Bounds()
	dt := tr.Index(0, "dt").Start
	assert.Equal(t, 0.05, lower[dt])
	assert.Equal(t, 0.5, upper[dt])
}

func TestJSONMatchesYAML(t *testing.T) {
	s, err := Load("testdata/xgate.yaml")
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "xgate.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, again)
}

func TestBuildErrors(t *testing.T) {
	base := func() *Spec {
		return &Spec{
			T:          3,
			Components: []traj.Component{{Name: "x", Width: 2}},
			Timestep:   traj.Timestep{Fixed: 0.1},
			Objective:  objective.Terms{objective.QuadraticParams{Name: "x", RValue: 1}},
		}
	}

	tests := []struct {
		name   string
		mutate func(s *Spec)
	}{
		{name: "bad layout", mutate: func(s *Spec) { s.T = 0 }},
		{name: "data rows", mutate: func(s *Spec) { s.Data = map[string][][]float64{"x": {{1, 2}, {3, 4}}} }},
		{name: "data width", mutate: func(s *Spec) { s.Data = map[string][][]float64{"x": {{1}}} }},
		{name: "goal width", mutate: func(s *Spec) { s.Goals = map[string][]float64{"x": {1}} }},
		{name: "unknown bound", mutate: func(s *Spec) { s.Bounds = map[string]traj.Bound{"y": {Lower: []float64{0}}} }},
		{name: "no terms", mutate: func(s *Spec) { s.Objective = nil }},
		{name: "bad term", mutate: func(s *Spec) { s.Objective = objective.Terms{objective.MinimumTimeParams{D: 1}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(s)
			_, _, err := s.Build()
			assert.Error(t, err)
		})
	}
}

func TestWithTerms(t *testing.T) {
	s, err := Load("testdata/xgate.yaml")
	require.NoError(t, err)

	extended := s.WithTerms(objective.MinimumTimeParams{D: 1})
	assert.Len(t, s.Objective, 3, "original spec must not change")
	require.Len(t, extended.Objective, 4)
	assert.Equal(t, objective.KindMinimumTime, extended.Objective[3].Kind())

	_, obj, err := extended.Build()
	require.NoError(t, err)
	assert.InDelta(t, 100.0+5*0.2, obj.Loss(mustTrajectory(t, extended).Data), 1e-9)
}

func TestLoadTerms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- type: MinimumTimeObjective\n  D: 2\n"), 0o644))

	terms, err := LoadTerms(path)
	require.NoError(t, err)
	assert.Equal(t, objective.Terms{objective.MinimumTimeParams{D: 2}}, terms)

	_, err = LoadTerms(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"problem.yaml": "T: 2\ncomponents: [{name: x, width: 1}]\ntimestep: {fixed: 1}\niterations: 5\n",
		"problem.json": `{"T": 2, "components": [{"name": "x", "width": 1}], "timestep": {"fixed": 1}, "iterations": 5}`,
		"terms.yaml":   "- type: MinimumTimeObjective\n  D: 2\n  weight: 3\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	_, err := Load(filepath.Join(dir, "problem.yaml"))
	assert.ErrorContains(t, err, "iterations")
	_, err = Load(filepath.Join(dir, "problem.json"))
	assert.ErrorContains(t, err, "iterations")
	_, err = LoadTerms(filepath.Join(dir, "terms.yaml"))
	assert.ErrorContains(t, err, "weight")
}

func mustTrajectory(t *testing.T, s *Spec) *traj.Trajectory {
	t.Helper()
	tr, err := s.Trajectory()
	require.NoError(t, err)
	return tr
}
