package objective

import (
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/qtrajopt/internal/losses"
	"github.com/cwbudde/qtrajopt/internal/sparse"
	"github.com/cwbudde/qtrajopt/internal/traj"
)

// QuantumParams configures a terminal fidelity objective over one or more
// components, each compared with its own goal and weighted by its own Q.
type QuantumParams struct {
	Names []string    `json:"names" yaml:"names"`
	Goals [][]float64 `json:"goals,omitempty" yaml:"goals,omitempty"`
	Q     []float64   `json:"Q" yaml:"Q"`
	Loss  losses.Kind `json:"loss" yaml:"loss"`

	// Subspace restricts unitary losses to a set of basis indices
	Subspace []int `json:"subspace,omitempty" yaml:"subspace,omitempty"`

	EvalHessian *bool `json:"eval_hessian,omitempty" yaml:"eval_hessian,omitempty"`
}

func (p QuantumParams) Kind() Kind { return KindQuantum }

func (p QuantumParams) Build(l Layout) (*Objective, error) { return NewQuantumObjective(l, p) }

// UnitaryInfidelityParams configures a terminal unitary infidelity objective
// on a single component. The goal defaults to the layout's goal for the
// component.
type UnitaryInfidelityParams struct {
	Name        string    `json:"name" yaml:"name"`
	Goal        []float64 `json:"goal,omitempty" yaml:"goal,omitempty"`
	Q           float64   `json:"Q" yaml:"Q"`
	Subspace    []int     `json:"subspace,omitempty" yaml:"subspace,omitempty"`
	EvalHessian *bool     `json:"eval_hessian,omitempty" yaml:"eval_hessian,omitempty"`
}

func (p UnitaryInfidelityParams) Kind() Kind { return KindUnitaryInfidelity }

func (p UnitaryInfidelityParams) Build(l Layout) (*Objective, error) {
	return NewUnitaryInfidelityObjective(l, p)
}

// NewUnitaryInfidelityObjective is the single-component unitary form of NewQuantumObjective
func NewUnitaryInfidelityObjective(l Layout, p UnitaryInfidelityParams) (*Objective, error) {
	if p.Q == 0 {
		return nil, configErr(KindUnitaryInfidelity, "Q", "is required")
	}
	q := QuantumParams{
		Names:       []string{p.Name},
		Q:           []float64{p.Q},
		Loss:        losses.UnitaryInfidelity,
		Subspace:    p.Subspace,
		EvalHessian: p.EvalHessian,
	}
	if len(p.Goal) > 0 {
		q.Goals = [][]float64{p.Goal}
	}

	obj, err := buildFidelity(l, KindUnitaryInfidelity, q)
	if err != nil {
		return nil, err
	}
	obj.Terms = Terms{p}
	return obj, nil
}

// NewQuantumObjective builds Σᵢ Qᵢ·lossᵢ(zᵢ) where zᵢ is component i at the
// final timestep. Each component's gradient and Hessian entries land in its
// own slice of the final timestep block.
func NewQuantumObjective(l Layout, p QuantumParams) (*Objective, error) {
	obj, err := buildFidelity(l, KindQuantum, p)
	if err != nil {
		return nil, err
	}
	obj.Terms = Terms{p}
	return obj, nil
}

type fidelityPart struct {
	q     float64
	loss  losses.Loss
	span  traj.Range
	local []sparse.Index
}

func buildFidelity(l Layout, kind Kind, p QuantumParams) (*Objective, error) {
	if len(p.Names) == 0 {
		return nil, configErr(kind, "names", "cannot be empty")
	}
	if len(p.Q) != len(p.Names) {
		return nil, configErr(kind, "Q", "length mismatch: expected %d, got %d", len(p.Names), len(p.Q))
	}
	if len(p.Goals) != 0 && len(p.Goals) != len(p.Names) {
		return nil, configErr(kind, "goals", "length mismatch: expected %d, got %d", len(p.Names), len(p.Goals))
	}
	if p.Loss == "" {
		return nil, configErr(kind, "loss", "is required")
	}

	final := l.T() - 1
	parts := make([]fidelityPart, len(p.Names))
	seen := map[string]bool{}
	for i, name := range p.Names {
		if seen[name] {
			return nil, configErr(kind, "names", "component %q repeated", name)
		}
		seen[name] = true

		if !(p.Q[i] > 0) {
			return nil, configErr(kind, "Q", "weight for %q must be positive, got %g", name, p.Q[i])
		}

		r, err := component(l, kind, "names", name)
		if err != nil {
			return nil, err
		}

		var goal []float64
		if len(p.Goals) != 0 {
			goal = p.Goals[i]
		} else if g, ok := l.Goal(name); ok {
			goal = g
		} else {
			return nil, configErr(kind, "goals", "no goal given for %q and the layout has none", name)
		}

		loss, err := losses.New(p.Loss, goal, p.Subspace)
		if err != nil {
			return nil, configErr(kind, "goals", "%q: %v", name, err)
		}
		if loss.Dim() != r.Len() {
			return nil, configErr(kind, "goals", "%q: goal has dimension %d but component has width %d", name, loss.Dim(), r.Len())
		}

		parts[i] = fidelityPart{
			q:     p.Q[i],
			loss:  loss,
			span:  traj.Slice(final, r, l.Dim()),
			local: loss.HessianStructure(),
		}
	}

	n := l.Dim() * l.T()
	obj := &Objective{
		Loss: func(Z []float64) float64 {
			mustLen(Z, n)
			var sum float64
			for _, part := range parts {
				sum += part.q * part.loss.Value(Z[part.span.Start:part.span.End])
			}
			return sum
		},
		Gradient: func(Z []float64) []float64 {
			mustLen(Z, n)
			grad := make([]float64, n)
			for _, part := range parts {
				g := part.loss.Gradient(Z[part.span.Start:part.span.End])
				floats.Scale(part.q, g)
				copy(grad[part.span.Start:part.span.End], g)
			}
			return grad
		},
		HessianStructure: func() []sparse.Index {
			var out []sparse.Index
			for _, part := range parts {
				out = append(out, sparse.Shift(part.local, part.span.Start)...)
			}
			return out
		},
		HessianValues: func(Z []float64) []float64 {
			mustLen(Z, n)
			var out []float64
			for _, part := range parts {
				h := part.loss.Hessian(Z[part.span.Start:part.span.End])
				v := sparse.Values(h, part.local)
				floats.Scale(part.q, v)
				out = append(out, v...)
			}
			return out
		},
	}

	if !evalHessian(p.EvalHessian) {
		obj.withoutHessian()
	}
	return obj, nil
}
