package quantum

import "fmt"

// Subspace resolves a list of computational basis indices against an n-level
// system. An empty list selects the full space.
func Subspace(indices []int, n int) ([]int, error) {
	if len(indices) == 0 {
		full := make([]int, n)
		for i := range full {
			full[i] = i
		}
		return full, nil
	}

	seen := make(map[int]bool, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("subspace index %d outside [0, %d)", i, n)
		}
		if seen[i] {
			return nil, fmt.Errorf("subspace index %d repeated", i)
		}
		seen[i] = true
		out = append(out, i)
	}
	return out, nil
}

// SubspaceIsoIndices returns the positions in an n-level isomorphic operator
// vector that hold U[i,j] for i, j in the subspace: first the real part
// indices, then the imaginary part indices, both ordered column by column.
func SubspaceIsoIndices(sub []int, n int) (re, im []int) {
	for _, j := range sub {
		for _, i := range sub {
			re = append(re, j*2*n+i)
			im = append(im, j*2*n+n+i)
		}
	}
	return re, im
}
