package opt

import (
	"log/slog"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/cwbudde/qtrajopt/internal/traj"
)

// DefaultPenalty weights the quadratic penalty on bound violations
const DefaultPenalty = 1e4

// GonumAdapter runs the local methods of gonum/optimize. Those methods are
// unconstrained, so bounds are enforced by an exterior quadratic penalty and
// the final point is clamped onto the box.
type GonumAdapter struct {
	method   string
	maxIters int
	penalty  float64
}

// NewGonum creates a gonum optimizer adapter for one of lbfgs, bfgs, newton,
// gradient-descent or nelder-mead.
func NewGonum(method string, maxIters int) *GonumAdapter {
	return &GonumAdapter{
		method:   method,
		maxIters: maxIters,
		penalty:  DefaultPenalty,
	}
}

func (g *GonumAdapter) newMethod(p Problem) optimize.Method {
	switch g.method {
	case "bfgs":
		return &optimize.BFGS{}
	case "newton":
		if p.Hess == nil {
			slog.Warn("Problem has no Hessian, using BFGS instead of Newton")
			return &optimize.BFGS{}
		}
		return &optimize.Newton{}
	case "gradient-descent":
		return &optimize.GradientDescent{}
	case "nelder-mead":
		return &optimize.NelderMead{}
	default:
		return &optimize.LBFGS{}
	}
}

// Run minimizes the penalized problem from x0
func (g *GonumAdapter) Run(p Problem, x0 []float64) ([]float64, float64) {
	startX, startCost := evaluateStart(p, x0)

	prob := optimize.Problem{
		Func: func(x []float64) float64 {
			return p.Func(x) + g.violation(p, x, nil, nil)
		},
	}
	if p.Grad != nil {
		prob.Grad = func(grad, x []float64) {
			p.Grad(grad, x)
			g.violation(p, x, grad, nil)
		}
	} else {
		prob.Grad = func(grad, x []float64) {
			fd.Gradient(grad, prob.Func, x, &fd.Settings{Formula: fd.Central})
		}
	}
	if p.Hess != nil {
		prob.Hess = func(hess *mat.SymDense, x []float64) {
			p.Hess(hess, x)
			g.violation(p, x, nil, hess)
		}
	}

	settings := &optimize.Settings{
		MajorIterations: g.maxIters,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-12,
			Iterations: 20,
		},
	}

	result, err := optimize.Minimize(prob, startX, settings, g.newMethod(p))
	if result == nil {
		slog.Warn("Optimization failed, keeping start point", "method", g.method, "error", err)
		return startX, startCost
	}
	if err != nil {
		slog.Debug("Optimization stopped early", "method", g.method, "status", result.Status, "error", err)
	}

	best := append([]float64{}, result.X...)
	if p.Bounded() {
		traj.Clamp(best, p.Lower, p.Upper)
	}
	cost := p.Func(best)

	slog.Debug("Optimization finished",
		"method", g.method,
		"status", result.Status,
		"major_iterations", result.MajorIterations,
		"func_evaluations", result.FuncEvaluations,
		"cost", cost)

	if cost > startCost {
		return startX, startCost
	}
	return best, cost
}

// violation returns the penalty μ·Σ dist(xᵢ, [lᵢ, uᵢ])² and, when grad or
// hess are non-nil, adds its derivatives to them.
func (g *GonumAdapter) violation(p Problem, x, grad []float64, hess *mat.SymDense) float64 {
	var sum float64
	for i, v := range x {
		var d float64
		switch {
		case i < len(p.Lower) && v < p.Lower[i]:
			d = v - p.Lower[i]
		case i < len(p.Upper) && v > p.Upper[i]:
			d = v - p.Upper[i]
		default:
			continue
		}
		sum += g.penalty * d * d
		if grad != nil {
			grad[i] += 2 * g.penalty * d
		}
		if hess != nil {
			hess.SetSym(i, i, hess.At(i, i)+2*g.penalty)
		}
	}
	return sum
}
