package objective

import (
	"github.com/cwbudde/qtrajopt/internal/sparse"
	"github.com/cwbudde/qtrajopt/internal/traj"
)

// MinimumTimeParams configures D·Σₜ Δtₜ. With TimestepsAllEqual the step size
// is assumed constant across the trajectory, so only Δt₀ is read and the
// cost is D·T·Δt₀.
type MinimumTimeParams struct {
	D                 float64 `json:"D" yaml:"D"`
	TimestepsAllEqual bool    `json:"timesteps_all_equal,omitempty" yaml:"timesteps_all_equal,omitempty"`
	EvalHessian       *bool   `json:"eval_hessian,omitempty" yaml:"eval_hessian,omitempty"`
}

func (p MinimumTimeParams) Kind() Kind { return KindMinimumTime }

func (p MinimumTimeParams) Build(l Layout) (*Objective, error) { return NewMinimumTimeObjective(l, p) }

// NewMinimumTimeObjective requires a free step size.
func NewMinimumTimeObjective(l Layout, p MinimumTimeParams) (*Objective, error) {
	const kind = KindMinimumTime

	if p.D == 0 {
		return nil, configErr(kind, "D", "is required")
	}
	ts := l.Timestep()
	if !ts.Free() {
		return nil, configErr(kind, "timestep", "requires a free step size, trajectory uses fixed step %g", ts.Fixed)
	}
	dt, err := component(l, kind, "timestep", ts.Variable)
	if err != nil {
		return nil, err
	}

	dim, T, n := l.Dim(), l.T(), l.Dim()*l.T()
	D := p.D

	obj := &Objective{
		Terms: Terms{p},
		Loss: func(Z []float64) float64 {
			mustLen(Z, n)
			if p.TimestepsAllEqual {
				return D * float64(T) * Z[traj.Slice(0, dt, dim).Start]
			}
			var sum float64
			for t := range T {
				sum += Z[traj.Slice(t, dt, dim).Start]
			}
			return D * sum
		},
		Gradient: func(Z []float64) []float64 {
			mustLen(Z, n)
			grad := make([]float64, n)
			if p.TimestepsAllEqual {
				grad[traj.Slice(0, dt, dim).Start] = D * float64(T)
				return grad
			}
			for t := range T {
				grad[traj.Slice(t, dt, dim).Start] = D
			}
			return grad
		},
		HessianStructure: func() []sparse.Index { return []sparse.Index{} },
		HessianValues:    func([]float64) []float64 { return []float64{} },
	}

	if !evalHessian(p.EvalHessian) {
		obj.withoutHessian()
	}
	return obj, nil
}
