package quantum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestKetIso(t *testing.T) {
	psi := []complex128{1 + 2i, -3i}
	x := KetToIso(psi)
	assert.Equal(t, []float64{1, 0, 2, -3}, x)
	assert.Equal(t, psi, IsoToKet(x))
	assert.Panics(t, func() { IsoToKet([]float64{1, 2, 3}) })
}

func TestOperatorIsoVecLayout(t *testing.T) {
	u := mat.NewCDense(2, 2, []complex128{
		1, 2i,
		3, 4 - 1i,
	})
	x := OperatorToIsoVec(u)
	// column 0 then column 1, each as [Re; Im]
	assert.Equal(t, []float64{1, 3, 0, 0, 0, 4, 2, -1}, x)

	back := IsoVecToOperator(x)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.Equal(t, u.At(i, j), back.At(i, j))
		}
	}
}

func TestIsoOperatorMultiplies(t *testing.T) {
	// The real representation is a homomorphism: iso(A)·iso(B) = iso(AB).
	a := mat.NewCDense(2, 2, []complex128{1 + 1i, 2, -1i, 3})
	b := mat.NewCDense(2, 2, []complex128{0.5, 1i, 2 - 1i, -1})

	ab := mat.NewCDense(2, 2, nil)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			var sum complex128
			for k := 0; k < 2; k++ {
				sum += a.At(i, k) * b.At(k, j)
			}
			ab.Set(i, j, sum)
		}
	}

	var got mat.Dense
	got.Mul(OperatorToIso(a), OperatorToIso(b))
	assert.True(t, mat.EqualApprox(OperatorToIso(ab), &got, 1e-12))

	re, im := IsoOperatorBlocks(&got)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, real(ab.At(i, j)), re.At(i, j), 1e-12)
			assert.InDelta(t, imag(ab.At(i, j)), im.At(i, j), 1e-12)
		}
	}
}

func TestOperatorDim(t *testing.T) {
	for _, tt := range []struct {
		length int
		want   int
		ok     bool
	}{
		{length: 2, want: 1, ok: true},
		{length: 8, want: 2, ok: true},
		{length: 18, want: 3, ok: true},
		{length: 0},
		{length: 6},
		{length: 9},
	} {
		n, err := OperatorDim(tt.length)
		if tt.ok {
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		} else {
			assert.Error(t, err, "length %d", tt.length)
		}
	}
}

func TestHermitianAndNorm(t *testing.T) {
	h := mat.NewCDense(2, 2, []complex128{1, 1i, -1i, 2})
	assert.True(t, IsHermitian(h, 0))
	assert.InDelta(t, math.Sqrt(7), FrobeniusNorm(h), 1e-12)

	h.Set(0, 1, 1)
	assert.False(t, IsHermitian(h, 1e-9))
}

func TestSubspace(t *testing.T) {
	full, err := Subspace(nil, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, full)

	sub, err := Subspace([]int{2, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, sub)

	_, err = Subspace([]int{3}, 3)
	assert.Error(t, err)
	_, err = Subspace([]int{1, 1}, 3)
	assert.Error(t, err)

	re, im := SubspaceIsoIndices([]int{0, 2}, 3)
	assert.Equal(t, []int{0, 2, 12, 14}, re)
	assert.Equal(t, []int{3, 5, 15, 17}, im)
}
