package objective

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/qtrajopt/internal/sparse"
	"github.com/cwbudde/qtrajopt/internal/traj"
)

func newLayout(t *testing.T, T int, ts traj.Timestep, components ...traj.Component) *traj.Layout {
	t.Helper()
	l, err := traj.NewLayout(T, components, ts)
	require.NoError(t, err)
	return l
}

func fixedStep(dt float64) traj.Timestep { return traj.Timestep{Fixed: dt} }

var freeStep = traj.Timestep{Variable: "dt"}

// randomPoint fills a decision vector with values in [-1, 1), keeping any
// step size component strictly positive.
func randomPoint(rng *rand.Rand, l *traj.Layout) []float64 {
	Z := make([]float64, l.Len())
	for i := range Z {
		Z[i] = 2*rng.Float64() - 1
	}
	if ts := l.Timestep(); ts.Free() {
		for t := 0; t < l.T(); t++ {
			Z[l.Index(t, ts.Variable).Start] = 0.5 + rng.Float64()
		}
	}
	return Z
}

func near(want, got, tol float64) bool {
	return math.Abs(want-got) <= tol*(1+math.Abs(want))
}

// checkGradient compares the analytic gradient with a central difference
func checkGradient(t *testing.T, obj *Objective, Z []float64) {
	t.Helper()
	got := obj.Gradient(Z)
	require.Len(t, got, len(Z))

	want := fd.Gradient(nil, obj.Loss, Z, &fd.Settings{Formula: fd.Central, Step: 1e-6})
	for i := range want {
		if !near(want[i], got[i], 1e-5) {
			t.Errorf("gradient[%d] mismatch: got %g, want %g", i, got[i], want[i])
		}
	}
}

// checkHessian assembles the triplets and compares them with the central
// difference Jacobian of the analytic gradient.
func checkHessian(t *testing.T, obj *Objective, Z []float64) {
	t.Helper()
	require.True(t, obj.HasHessian())
	checkContract(t, obj, Z)

	n := len(Z)
	got := sparse.Assemble(n, obj.HessianStructure(), obj.HessianValues(Z))

	want := mat.NewDense(n, n, nil)
	fd.Jacobian(want, func(y, x []float64) {
		copy(y, obj.Gradient(x))
	}, Z, &fd.JacobianSettings{Formula: fd.Central, Step: 1e-6})

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if !near(want.At(i, j), got.At(i, j), 1e-5) {
				t.Errorf("hessian[%d,%d] mismatch: got %g, want %g", i, j, got.At(i, j), want.At(i, j))
			}
		}
	}
}

// checkContract verifies the structure/value positional contract
func checkContract(t *testing.T, obj *Objective, Z []float64) {
	t.Helper()
	s1, s2 := obj.HessianStructure(), obj.HessianStructure()
	assert.True(t, slices.Equal(s1, s2), "structure changed between calls")
	assert.Len(t, obj.HessianValues(Z), len(s1), "values and structure differ in length")
	for _, ix := range s1 {
		assert.True(t, ix.Row >= 0 && ix.Row < len(Z) && ix.Col >= 0 && ix.Col < len(Z), "index %v out of range", ix)
	}
}
