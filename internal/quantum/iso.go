// Package quantum converts between complex quantum objects and the real
// isomorphic vectors stored in a trajectory.
//
// A ket ψ ∈ ℂⁿ is stored as [Re ψ; Im ψ]. An operator U ∈ ℂⁿˣⁿ is stored
// column by column, each column as an isomorphic ket, so the real part of
// U[i,j] lives at j·2n+i and the imaginary part at j·2n+n+i.
package quantum

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// KetToIso maps ψ to [Re ψ; Im ψ]
func KetToIso(psi []complex128) []float64 {
	n := len(psi)
	out := make([]float64, 2*n)
	for i, c := range psi {
		out[i] = real(c)
		out[n+i] = imag(c)
	}
	return out
}

// IsoToKet is the inverse of KetToIso
func IsoToKet(x []float64) []complex128 {
	if len(x)%2 != 0 {
		panic(fmt.Sprintf("isomorphic ket has odd length %d", len(x)))
	}
	n := len(x) / 2
	out := make([]complex128, n)
	for i := range out {
		out[i] = complex(x[i], x[n+i])
	}
	return out
}

// OperatorDim returns n for an isomorphic operator vector of length 2n².
func OperatorDim(length int) (int, error) {
	if length <= 0 || length%2 != 0 {
		return 0, fmt.Errorf("operator vector length %d is not 2n²", length)
	}
	n := int(math.Round(math.Sqrt(float64(length / 2))))
	if 2*n*n != length {
		return 0, fmt.Errorf("operator vector length %d is not 2n²", length)
	}
	return n, nil
}

// OperatorToIsoVec flattens a square complex operator into its isomorphic vector
func OperatorToIsoVec(u *mat.CDense) []float64 {
	n, c := u.Dims()
	if n != c {
		panic(fmt.Sprintf("operator is %d×%d, not square", n, c))
	}
	out := make([]float64, 2*n*n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			v := u.At(i, j)
			out[j*2*n+i] = real(v)
			out[j*2*n+n+i] = imag(v)
		}
	}
	return out
}

// IsoVecToOperator is the inverse of OperatorToIsoVec
func IsoVecToOperator(x []float64) *mat.CDense {
	n, err := OperatorDim(len(x))
	if err != nil {
		panic(err)
	}
	u := mat.NewCDense(n, n, nil)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			u.Set(i, j, complex(x[j*2*n+i], x[j*2*n+n+i]))
		}
	}
	return u
}

// IsoVecToIsoOperator builds the real 2n×2n representation [[Re, -Im], [Im, Re]]
// directly from an isomorphic operator vector.
func IsoVecToIsoOperator(x []float64) *mat.Dense {
	n, err := OperatorDim(len(x))
	if err != nil {
		panic(err)
	}
	m := mat.NewDense(2*n, 2*n, nil)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			re, im := x[j*2*n+i], x[j*2*n+n+i]
			m.Set(i, j, re)
			m.Set(i, n+j, -im)
			m.Set(n+i, j, im)
			m.Set(n+i, n+j, re)
		}
	}
	return m
}

// OperatorToIso builds the real 2n×2n representation of a complex operator
func OperatorToIso(u *mat.CDense) *mat.Dense {
	return IsoVecToIsoOperator(OperatorToIsoVec(u))
}

// IsoOperatorBlocks splits a real 2r×2c isomorphic matrix back into its real
// and imaginary r×c parts.
func IsoOperatorBlocks(m mat.Matrix) (re, im *mat.Dense) {
	r, c := m.Dims()
	r, c = r/2, c/2
	re = mat.NewDense(r, c, nil)
	im = mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			re.Set(i, j, m.At(i, j))
			im.Set(i, j, m.At(r+i, j))
		}
	}
	return re, im
}

// IsHermitian reports whether u equals its conjugate transpose within tol
func IsHermitian(u *mat.CDense, tol float64) bool {
	n, c := u.Dims()
	if n != c {
		return false
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a, b := u.At(i, j), u.At(j, i)
			if math.Abs(real(a)-real(b)) > tol || math.Abs(imag(a)+imag(b)) > tol {
				return false
			}
		}
	}
	return true
}

// FrobeniusNorm returns the Frobenius norm of a complex matrix
func FrobeniusNorm(u *mat.CDense) float64 {
	r, c := u.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := u.At(i, j)
			sum += real(v)*real(v) + imag(v)*imag(v)
		}
	}
	return math.Sqrt(sum)
}
