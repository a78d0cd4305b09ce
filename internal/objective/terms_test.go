package objective

import (
	"encoding/json"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/qtrajopt/internal/traj"
)

func TestTermsJSONRebuild(t *testing.T) {
	rng := rand.New(rand.NewSource(30))
	l := newLayout(t, 3, freeStep,
		traj.Component{Name: "U", Width: 8},
		traj.Component{Name: "a", Width: 1},
		traj.Component{Name: "dt", Width: 1},
	)

	terms := Terms{
		UnitaryInfidelityParams{Name: "U", Goal: pauliX, Q: 10, Subspace: []int{0, 1}},
		QuadraticParams{Name: "a", R: []float64{2}, Times: []int{0, 1}},
		MinimumTimeParams{D: 0.5, EvalHessian: Bool(false)},
	}
	orig, err := terms.Build(l)
	require.NoError(t, err)

	data, err := json.Marshal(orig.Terms)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"UnitaryInfidelityObjective"`)
	assert.Contains(t, string(data), `"type":"MinimumTimeObjective"`)

	var decoded Terms
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, terms, decoded)

	rebuilt, err := Rebuild(l, decoded)
	require.NoError(t, err)

	Z := randomPoint(rng, l)
	assert.Equal(t, orig.Loss(Z), rebuilt.Loss(Z))
	assert.Equal(t, orig.Gradient(Z), rebuilt.Gradient(Z))
	assert.Equal(t, orig.HessianStructure(), rebuilt.HessianStructure())
}

func TestTermsYAML(t *testing.T) {
	src := `
- type: QuadraticSmoothnessRegularizer
  name: v
  r_value: 2
- type: MinimumTimeObjective
  D: 0.25
  timesteps_all_equal: true
`
	var terms Terms
	require.NoError(t, yaml.Unmarshal([]byte(src), &terms))
	assert.Equal(t, Terms{
		SmoothnessParams{Name: "v", RValue: 2},
		MinimumTimeParams{D: 0.25, TimestepsAllEqual: true},
	}, terms)

	out, err := yaml.Marshal(terms)
	require.NoError(t, err)
	text := string(out)
	typeAt := strings.Index(text, "type: QuadraticSmoothnessRegularizer")
	require.GreaterOrEqual(t, typeAt, 0, "got:\n%s", text)
	assert.Less(t, typeAt, strings.Index(text, "name: v"), "type key must come first")

	var again Terms
	require.NoError(t, yaml.Unmarshal(out, &again))
	assert.Equal(t, terms, again)
}

func TestTermsRejectUnknownRecords(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{name: "unknown type", json: `[{"type": "Evaluate", "name": "x"}]`, want: "unknown term type"},
		{name: "missing type", json: `[{"name": "x"}]`, want: "no type"},
		{name: "bad field", json: `[{"type": "L1Regularizer", "name": 3}]`, want: "L1Regularizer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var terms Terms
			err := json.Unmarshal([]byte(tt.json), &terms)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	var terms Terms
	err := yaml.Unmarshal([]byte("type: L1Regularizer\nname: x\n"), &terms)
	assert.ErrorContains(t, err, "must be a list")
}

func TestRegistry(t *testing.T) {
	kinds := Kinds()
	assert.Len(t, kinds, 7)
	assert.True(t, slices.IsSorted(kinds))

	assert.Panics(t, func() { register(KindL1, decodeAs[L1Params]) })
}

func TestRebuildErrors(t *testing.T) {
	l := newLayout(t, 2, fixedStep(1), traj.Component{Name: "x", Width: 1})

	_, err := Rebuild(l, nil)
	assert.Error(t, err)

	_, err = Rebuild(l, Terms{QuadraticParams{Name: "x", RValue: 1}, MinimumTimeParams{D: 1}})
	var cfg *ConfigError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, KindMinimumTime, cfg.Term)
	assert.Contains(t, err.Error(), "term 1")
}

func TestTermsRejectUnknownKeys(t *testing.T) {
	var terms Terms
	err := json.Unmarshal([]byte(`[{"type": "QuadraticRegularizer", "name": "u", "r_value": 1, "R_typo": [5]}]`), &terms)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "R_typo")
	assert.Contains(t, err.Error(), "QuadraticRegularizer")

	src := `
- type: QuadraticRegularizer
  name: u
  r_value: 1
  R_typo: [5]
`
	err = yaml.Unmarshal([]byte(src), &terms)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "R_typo")

	err = yaml.Unmarshal([]byte("- [QuadraticRegularizer]\n"), &terms)
	assert.ErrorContains(t, err, "must be a mapping")
}

func TestTermsEvalHessian(t *testing.T) {
	l := newLayout(t, 2, freeStep,
		traj.Component{Name: "u", Width: 1},
		traj.Component{Name: "dt", Width: 1},
	)

	src := `
- type: QuadraticRegularizer
  name: u
  r_value: 1
  eval_hessian: false
- type: QuadraticSmoothnessRegularizer
  name: u
  r_value: 1
`
	var terms Terms
	require.NoError(t, yaml.Unmarshal([]byte(src), &terms))
	require.Len(t, terms, 2)
	assert.Equal(t, QuadraticParams{Name: "u", RValue: 1, EvalHessian: Bool(false)}, terms[0])

	quad, err := terms[0].Build(l)
	require.NoError(t, err)
	assert.False(t, quad.HasHessian())

	smooth, err := terms[1].Build(l)
	require.NoError(t, err)
	assert.True(t, smooth.HasHessian(), "eval_hessian defaults to true")

	var decoded Terms
	require.NoError(t, json.Unmarshal([]byte(`[{"type": "MinimumTimeObjective", "D": 1, "eval_hessian": true}]`), &decoded))
	obj, err := decoded.Build(l)
	require.NoError(t, err)
	assert.True(t, obj.HasHessian())
}
