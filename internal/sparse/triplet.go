// Package sparse holds the triplet form used for objective Hessians.
//
// A Hessian is described by a structure list of (row, col) pairs and a value
// list of the same length, paired by position. Off-diagonal couplings are
// stored in both triangles. Duplicate pairs are legal: assembly sums them,
// matching the accumulation convention of interior-point solvers.
package sparse

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Index is one (row, col) position of a sparse matrix
type Index struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Shift moves every index by offset along both axes
func Shift(structure []Index, offset int) []Index {
	out := make([]Index, len(structure))
	for k, ij := range structure {
		out[k] = Index{Row: ij.Row + offset, Col: ij.Col + offset}
	}
	return out
}

// Structure returns the positions of the entries of m with magnitude above
// tol, in row-major order.
func Structure(m mat.Matrix, tol float64) []Index {
	r, c := m.Dims()
	var out []Index
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.Abs(m.At(i, j)) > tol {
				out = append(out, Index{Row: i, Col: j})
			}
		}
	}
	return out
}

// Block returns every position of a dense rows × cols block in row-major order
func Block(rows, cols []int) []Index {
	out := make([]Index, 0, len(rows)*len(cols))
	for _, i := range rows {
		for _, j := range cols {
			out = append(out, Index{Row: i, Col: j})
		}
	}
	return out
}

// Values reads the entries of m at the structure positions, in order
func Values(m mat.Matrix, structure []Index) []float64 {
	out := make([]float64, len(structure))
	for k, ij := range structure {
		out[k] = m.At(ij.Row, ij.Col)
	}
	return out
}

// Assemble builds the n × n matrix described by a triplet list. Duplicate
// positions are summed.
func Assemble(n int, structure []Index, values []float64) *mat.Dense {
	CheckPair(structure, values)
	h := mat.NewDense(n, n, nil)
	for k, ij := range structure {
		h.Set(ij.Row, ij.Col, h.At(ij.Row, ij.Col)+values[k])
	}
	return h
}

// AssembleSym assembles a triplet list into dst, which must be n × n. The
// upper triangle of the summed matrix is taken as the symmetric result.
func AssembleSym(dst *mat.SymDense, structure []Index, values []float64) {
	n := dst.SymmetricDim()
	h := Assemble(n, structure, values)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			dst.SetSym(i, j, h.At(i, j))
		}
	}
}

// CheckPair panics when a structure list and its value list disagree in
// length. A mismatch is a defect in the term that produced them.
func CheckPair(structure []Index, values []float64) {
	if len(structure) != len(values) {
		panic(fmt.Sprintf("hessian structure has %d entries but %d values", len(structure), len(values)))
	}
}

// Duplicates returns the positions that appear more than once, each reported once
func Duplicates(structure []Index) []Index {
	seen := make(map[Index]int, len(structure))
	var out []Index
	for _, ij := range structure {
		seen[ij]++
		if seen[ij] == 2 {
			out = append(out, ij)
		}
	}
	return out
}

// Asymmetric returns the off-diagonal positions whose mirror is missing
func Asymmetric(structure []Index) []Index {
	seen := make(map[Index]bool, len(structure))
	for _, ij := range structure {
		seen[ij] = true
	}
	var out []Index
	for _, ij := range structure {
		if ij.Row != ij.Col && !seen[Index{Row: ij.Col, Col: ij.Row}] {
			out = append(out, ij)
		}
	}
	return out
}
