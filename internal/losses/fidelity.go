package losses

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/qtrajopt/internal/quantum"
	"github.com/cwbudde/qtrajopt/internal/sparse"
)

// overlap is the loss 1 - (p² + q²) where p = u·x and q = w·x are the real and
// imaginary parts of an overlap that is linear in x. Both fidelity losses
// reduce to this form, which makes the Hessian -2(uuᵀ + wwᵀ) exact and
// constant.
type overlap struct {
	dim       int
	u, w      []float64
	support   []int
	structure []sparse.Index
}

func newOverlap(u, w []float64) *overlap {
	o := &overlap{dim: len(u), u: u, w: w}
	for i := range u {
		if u[i] != 0 || w[i] != 0 {
			o.support = append(o.support, i)
		}
	}
	o.structure = sparse.Block(o.support, o.support)
	return o
}

func (o *overlap) Dim() int { return o.dim }

func (o *overlap) parts(x []float64) (p, q float64) {
	if len(x) != o.dim {
		panic(fmt.Sprintf("loss input has length %d, want %d", len(x), o.dim))
	}
	return floats.Dot(o.u, x), floats.Dot(o.w, x)
}

// Fidelity returns p² + q²
func (o *overlap) Fidelity(x []float64) float64 {
	p, q := o.parts(x)
	return p*p + q*q
}

func (o *overlap) Value(x []float64) float64 {
	return 1 - o.Fidelity(x)
}

func (o *overlap) Gradient(x []float64) []float64 {
	p, q := o.parts(x)
	g := make([]float64, o.dim)
	floats.ScaleTo(g, -2*p, o.u)
	floats.AddScaled(g, -2*q, o.w)
	return g
}

func (o *overlap) Hessian(x []float64) *mat.SymDense {
	o.parts(x)
	h := mat.NewSymDense(o.dim, nil)
	for a, i := range o.support {
		for _, j := range o.support[a:] {
			h.SetSym(i, j, -2*(o.u[i]*o.u[j]+o.w[i]*o.w[j]))
		}
	}
	return h
}

func (o *overlap) HessianStructure() []sparse.Index {
	return slices.Clone(o.structure)
}

// StateLoss is the state infidelity 1 - |⟨g|ψ⟩|²
type StateLoss struct {
	*overlap
}

// NewStateInfidelity builds a state infidelity loss from an isomorphic goal ket
func NewStateInfidelity(goal []float64) (*StateLoss, error) {
	if len(goal) == 0 || len(goal)%2 != 0 {
		return nil, &Error{Reason: fmt.Sprintf("isomorphic ket goal must have positive even length, got %d", len(goal))}
	}
	n := len(goal) / 2
	a, b := goal[:n], goal[n:]

	u := make([]float64, 2*n)
	w := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		u[i], u[n+i] = a[i], b[i]
		w[i], w[n+i] = -b[i], a[i]
	}
	o := newOverlap(u, w)
	if len(o.support) == 0 {
		return nil, &Error{Reason: "goal ket is zero"}
	}
	return &StateLoss{overlap: o}, nil
}

// UnitaryLoss is the unitary infidelity 1 - |tr(G_S† U_S)|² / d² restricted to
// a subspace S of d basis states.
type UnitaryLoss struct {
	*overlap
	subspace []int
}

// NewUnitaryInfidelity builds a unitary infidelity loss from an isomorphic
// goal operator vector. An empty subspace selects the full space.
func NewUnitaryInfidelity(goal []float64, subspace []int) (*UnitaryLoss, error) {
	n, err := quantum.OperatorDim(len(goal))
	if err != nil {
		return nil, &Error{Reason: err.Error()}
	}
	sub, err := quantum.Subspace(subspace, n)
	if err != nil {
		return nil, &Error{Reason: err.Error()}
	}

	d := float64(len(sub))
	u := make([]float64, len(goal))
	w := make([]float64, len(goal))
	re, im := quantum.SubspaceIsoIndices(sub, n)
	for k := range re {
		gr, gi := goal[re[k]]/d, goal[im[k]]/d
		u[re[k]], u[im[k]] = gr, gi
		w[re[k]], w[im[k]] = -gi, gr
	}
	o := newOverlap(u, w)
	if len(o.support) == 0 {
		return nil, &Error{Reason: "goal operator is zero on the subspace"}
	}
	return &UnitaryLoss{overlap: o, subspace: sub}, nil
}

// Subspace returns the resolved subspace indices
func (l *UnitaryLoss) Subspace() []int {
	return slices.Clone(l.subspace)
}
