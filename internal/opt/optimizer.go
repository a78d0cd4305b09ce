package opt

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/qtrajopt/internal/objective"
	"github.com/cwbudde/qtrajopt/internal/sparse"
)

// Problem is a bound-constrained minimization over a flat vector.
// Grad and Hess are optional; optimizers that need them fall back to finite
// differences or to a quasi-Newton method when they are missing.
type Problem struct {
	Dim  int
	Func func(x []float64) float64
	Grad func(grad, x []float64)
	Hess func(hess *mat.SymDense, x []float64)

	// Lower and Upper may hold ±Inf for unbounded entries. Leaving both nil
	// makes the problem unconstrained.
	Lower, Upper []float64
}

// Bounded reports whether both bound vectors cover every dimension
func (p Problem) Bounded() bool {
	return len(p.Lower) == p.Dim && len(p.Upper) == p.Dim
}

// Optimizer defines an optimization algorithm interface
type Optimizer interface {
	// Run minimizes p starting from x0 and returns the best point found and
	// its cost. The returned point is never worse than x0.
	Run(p Problem, x0 []float64) ([]float64, float64)
}

// FromObjective exposes an objective to the optimizers. The Hessian triplets
// are assembled into a dense symmetric matrix, summing duplicate entries.
func FromObjective(obj *objective.Objective, lower, upper []float64) Problem {
	p := Problem{
		Dim:   len(lower),
		Func:  obj.Loss,
		Lower: lower,
		Upper: upper,
		Grad: func(grad, x []float64) {
			copy(grad, obj.Gradient(x))
		},
	}

	if obj.HasHessian() {
		structure := obj.HessianStructure()
		p.Hess = func(hess *mat.SymDense, x []float64) {
			hess.Zero()
			sparse.AssembleSym(hess, structure, obj.HessianValues(x))
		}
		slog.Debug("Hessian available", "entries", len(structure))
	}
	return p
}

// Methods lists the names accepted by New
var Methods = []string{"lbfgs", "bfgs", "newton", "gradient-descent", "nelder-mead", "mayfly"}

// Config carries the settings shared by all optimizers
type Config struct {
	Iterations int
	Population int
	Seed       int64
}

// New creates the optimizer registered under method
func New(method string, cfg Config) (Optimizer, error) {
	switch method {
	case "mayfly":
		return NewMayfly(cfg.Iterations, cfg.Population, cfg.Seed), nil
	case "lbfgs", "bfgs", "newton", "gradient-descent", "nelder-mead":
		return NewGonum(method, cfg.Iterations), nil
	default:
		return nil, fmt.Errorf("unknown optimization method: %s", method)
	}
}

func evaluateStart(p Problem, x0 []float64) ([]float64, float64) {
	x := append([]float64{}, x0...)
	return x, p.Func(x)
}
