// Package losses provides scalar losses over a single trajectory component,
// each with an exact gradient and Hessian and a value-independent Hessian
// sparsity pattern.
package losses

import (
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/qtrajopt/internal/sparse"
)

// Loss is a twice differentiable scalar function of one component's values
type Loss interface {
	// Dim is the length of the component the loss is defined on
	Dim() int

	// Value evaluates the loss at x
	Value(x []float64) float64

	// Gradient returns a fresh slice of length Dim()
	Gradient(x []float64) []float64

	// Hessian returns the full symmetric Dim() × Dim() Hessian at x
	Hessian(x []float64) *mat.SymDense

	// HessianStructure lists the local positions that can be nonzero. The
	// list depends only on the loss definition, never on x.
	HessianStructure() []sparse.Index
}

// Kind selects a fidelity loss
type Kind string

const (
	StateInfidelity   Kind = "state"
	UnitaryInfidelity Kind = "unitary"
)

// New builds a loss of the given kind against a goal in isomorphic form.
// The subspace is only meaningful for unitary losses.
func New(kind Kind, goal []float64, subspace []int) (Loss, error) {
	switch kind {
	case StateInfidelity:
		if len(subspace) != 0 {
			return nil, &Error{Reason: "subspace is only supported for unitary losses"}
		}
		l, err := NewStateInfidelity(goal)
		if err != nil {
			return nil, err
		}
		return l, nil
	case UnitaryInfidelity:
		l, err := NewUnitaryInfidelity(goal, subspace)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, &Error{Reason: "unknown loss kind " + string(kind)}
	}
}

// Error reports an invalid loss definition
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "loss error: " + e.Reason
}
