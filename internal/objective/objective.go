// Package objective composes independently defined cost terms into one
// additive objective over a flat trajectory decision vector.
//
// An Objective carries a loss, its gradient, and optionally an exact Hessian
// in sparse triplet form. Objectives are combined with Add; the result keeps
// the metadata records of every term so it can be rebuilt from persisted
// parameters.
package objective

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/qtrajopt/internal/sparse"
)

// Objective is one term or a sum of terms.
//
// If HessianValues is set then HessianStructure is set too, and for every Z
// the value list has the same length and positional order as the structure
// list. An Objective is never mutated after construction.
type Objective struct {
	// Loss evaluates the scalar objective
	Loss func(Z []float64) float64

	// Gradient returns a fresh vector of the same length as Z
	Gradient func(Z []float64) []float64

	// HessianValues returns the Hessian entries in structure order, or is nil
	HessianValues func(Z []float64) []float64

	// HessianStructure returns the (row, col) list, or is nil
	HessianStructure func() []sparse.Index

	// Terms records how each constituent term was built
	Terms Terms
}

// HasHessian reports whether the objective defines a Hessian
func (o *Objective) HasHessian() bool {
	return o != nil && o.HessianValues != nil
}

// Add combines two objectives into a new one. A nil operand is the additive
// identity.
//
// Losses and gradients are summed. Hessian triplet lists are concatenated,
// not merged: when both sides touch the same (row, col) the entry appears
// twice and a solver summing duplicates adds the two contributions. If only
// one side defines a Hessian the sum uses that side's Hessian alone.
func Add(a, b *Objective) *Objective {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}

	sum := &Objective{
		Loss: func(Z []float64) float64 {
			return a.Loss(Z) + b.Loss(Z)
		},
		Gradient: func(Z []float64) []float64 {
			ga, gb := a.Gradient(Z), b.Gradient(Z)
			if len(ga) != len(gb) {
				panic(fmt.Sprintf("gradient length mismatch: %d vs %d", len(ga), len(gb)))
			}
			floats.Add(ga, gb)
			return ga
		},
		Terms: slices.Concat(a.Terms, b.Terms),
	}

	switch {
	case a.HasHessian() && b.HasHessian():
		sum.HessianStructure = func() []sparse.Index {
			return slices.Concat(a.HessianStructure(), b.HessianStructure())
		}
		sum.HessianValues = func(Z []float64) []float64 {
			return slices.Concat(a.HessianValues(Z), b.HessianValues(Z))
		}
	case a.HasHessian():
		sum.HessianStructure, sum.HessianValues = a.HessianStructure, a.HessianValues
	case b.HasHessian():
		sum.HessianStructure, sum.HessianValues = b.HessianStructure, b.HessianValues
	}

	return sum
}

// Sum left-folds Add over the objectives
func Sum(objs ...*Objective) *Objective {
	var out *Objective
	for _, o := range objs {
		out = Add(out, o)
	}
	return out
}

// Bool returns a pointer to v, for the optional EvalHessian record field
func Bool(v bool) *bool { return &v }

// evalHessian reports whether a term keeps its Hessian. Unset means true.
func evalHessian(b *bool) bool { return b == nil || *b }

// withoutHessian drops the Hessian of a freshly built term
func (o *Objective) withoutHessian() *Objective {
	o.HessianValues = nil
	o.HessianStructure = nil
	return o
}
