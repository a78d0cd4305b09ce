package objective

import (
	"slices"

	"github.com/cwbudde/qtrajopt/internal/sparse"
	"github.com/cwbudde/qtrajopt/internal/traj"
)

// QuadraticParams configures a running cost
//
//	Σₜ ½ Δtₜ² (vₜ - v₀ₜ)ᵀ diag(R) (vₜ - v₀ₜ)
//
// over a set of timesteps. Baseline, when given, holds v₀ₜ for every timestep.
type QuadraticParams struct {
	Name        string      `json:"name" yaml:"name"`
	Times       []int       `json:"times,omitempty" yaml:"times,omitempty"`
	R           []float64   `json:"R,omitempty" yaml:"R,omitempty"`
	RValue      float64     `json:"r_value,omitempty" yaml:"r_value,omitempty"`
	Baseline    [][]float64 `json:"baseline,omitempty" yaml:"baseline,omitempty"`
	EvalHessian *bool       `json:"eval_hessian,omitempty" yaml:"eval_hessian,omitempty"`
}

func (p QuadraticParams) Kind() Kind { return KindQuadratic }

func (p QuadraticParams) Build(l Layout) (*Objective, error) { return NewQuadraticRegularizer(l, p) }

// NewQuadraticRegularizer builds the running cost. With a free step size the
// term also couples vₜ to Δtₜ; with a fixed step those entries do not exist.
func NewQuadraticRegularizer(l Layout, p QuadraticParams) (*Objective, error) {
	const kind = KindQuadratic

	v, err := component(l, kind, "name", p.Name)
	if err != nil {
		return nil, err
	}
	times, err := resolveTimes(l, kind, p.Times)
	if err != nil {
		return nil, err
	}
	R, err := resolveWeights(kind, p.R, p.RValue, v.Len())
	if err != nil {
		return nil, err
	}
	if p.Baseline != nil {
		if len(p.Baseline) != l.T() {
			return nil, configErr(kind, "baseline", "expected %d timesteps, got %d", l.T(), len(p.Baseline))
		}
		for t, b := range p.Baseline {
			if len(b) != v.Len() {
				return nil, configErr(kind, "baseline", "timestep %d has length %d, want %d", t, len(b), v.Len())
			}
		}
	}

	ts := l.Timestep()
	var dt traj.Range
	if ts.Free() {
		if ts.Variable == p.Name {
			return nil, configErr(kind, "name", "cannot regularize the step size component %q", p.Name)
		}
		if dt, err = l.Range(ts.Variable); err != nil {
			return nil, configErr(kind, "timestep", "%v", err)
		}
	}

	dim, w, n := l.Dim(), v.Len(), l.Dim()*l.T()
	free := ts.Free()

	delta := func(Z []float64, t int) []float64 {
		s := traj.Slice(t, v, dim)
		d := slices.Clone(Z[s.Start:s.End])
		if p.Baseline != nil {
			for i := range d {
				d[i] -= p.Baseline[t][i]
			}
		}
		return d
	}

	plan := planSteps(times, func(t int) []traj.Range {
		if free {
			return []traj.Range{traj.Slice(t, v, dim), traj.Slice(t, dt, dim)}
		}
		return []traj.Range{traj.Slice(t, v, dim)}
	})

	obj := &Objective{
		Terms: Terms{p},
		Loss: func(Z []float64) float64 {
			mustLen(Z, n)
			var J float64
			for _, t := range times {
				h := stepSize(Z, ts, dt, dim, t)
				for i, d := range delta(Z, t) {
					J += 0.5 * h * h * R[i] * d * d
				}
			}
			return J
		},
		Gradient: func(Z []float64) []float64 {
			mustLen(Z, n)
			grad := make([]float64, n)
			plan.run(func(_, t int) {
				h := stepSize(Z, ts, dt, dim, t)
				s := traj.Slice(t, v, dim)
				var rdd float64
				for i, d := range delta(Z, t) {
					grad[s.Start+i] = R[i] * h * h * d
					rdd += R[i] * d * d
				}
				if free {
					grad[traj.Slice(t, dt, dim).Start] = h * rdd
				}
			})
			return grad
		},
	}

	// Per timestep block: diag(vv), then when free (v,Δt), (Δt,v), (Δt,Δt).
	block := w
	if free {
		block += 2*w + 1
	}

	obj.HessianStructure = func() []sparse.Index {
		out := make([]sparse.Index, 0, block*len(times))
		for _, t := range times {
			s := traj.Slice(t, v, dim)
			for i := s.Start; i < s.End; i++ {
				out = append(out, sparse.Index{Row: i, Col: i})
			}
			if free {
				j := traj.Slice(t, dt, dim).Start
				for i := s.Start; i < s.End; i++ {
					out = append(out, sparse.Index{Row: i, Col: j})
				}
				for i := s.Start; i < s.End; i++ {
					out = append(out, sparse.Index{Row: j, Col: i})
				}
				out = append(out, sparse.Index{Row: j, Col: j})
			}
		}
		return out
	}

	obj.HessianValues = func(Z []float64) []float64 {
		mustLen(Z, n)
		values := make([]float64, block*len(times))
		plan.run(func(k, t int) {
			out := values[k*block : (k+1)*block]
			h := stepSize(Z, ts, dt, dim, t)
			d := delta(Z, t)
			for i := range d {
				out[i] = R[i] * h * h
			}
			if free {
				var rdd float64
				for i := range d {
					c := 2 * R[i] * h * d[i]
					out[w+i] = c
					out[2*w+i] = c
					rdd += R[i] * d[i] * d[i]
				}
				out[3*w] = rdd
			}
		})
		return values
	}

	if !evalHessian(p.EvalHessian) {
		obj.withoutHessian()
	}
	return obj, nil
}

// SmoothnessParams configures a finite-difference cost
//
//	Σₜ ½ (vₜ₊₁ - vₜ)ᵀ diag(R) (vₜ₊₁ - vₜ)
//
// over consecutive timesteps.
type SmoothnessParams struct {
	Name        string    `json:"name" yaml:"name"`
	Times       []int     `json:"times,omitempty" yaml:"times,omitempty"`
	R           []float64 `json:"R,omitempty" yaml:"R,omitempty"`
	RValue      float64   `json:"r_value,omitempty" yaml:"r_value,omitempty"`
	EvalHessian *bool     `json:"eval_hessian,omitempty" yaml:"eval_hessian,omitempty"`
}

func (p SmoothnessParams) Kind() Kind { return KindQuadraticSmoothness }

func (p SmoothnessParams) Build(l Layout) (*Objective, error) {
	return NewQuadraticSmoothnessRegularizer(l, p)
}

// NewQuadraticSmoothnessRegularizer builds the finite-difference cost. The
// term is exactly quadratic, so its Hessian values are computed once here.
func NewQuadraticSmoothnessRegularizer(l Layout, p SmoothnessParams) (*Objective, error) {
	const kind = KindQuadraticSmoothness

	v, err := component(l, kind, "name", p.Name)
	if err != nil {
		return nil, err
	}
	times, err := resolveTimes(l, kind, p.Times)
	if err != nil {
		return nil, err
	}
	if len(times) < 2 {
		return nil, configErr(kind, "times", "needs at least 2 timesteps, got %d", len(times))
	}
	for k := 1; k < len(times); k++ {
		if times[k] != times[k-1]+1 {
			return nil, configErr(kind, "times", "timesteps must be consecutive, found gap between %d and %d", times[k-1], times[k])
		}
	}
	R, err := resolveWeights(kind, p.R, p.RValue, v.Len())
	if err != nil {
		return nil, err
	}

	dim, n := l.Dim(), l.Dim()*l.T()
	first, last := times[0], times[len(times)-1]

	plan := planSteps(times, func(t int) []traj.Range {
		return []traj.Range{traj.Slice(t, v, dim)}
	})

	var structure []sparse.Index
	var values []float64
	for _, t := range times {
		s := traj.Slice(t, v, dim)
		scale := 2.0
		if t == first || t == last {
			scale = 1
		}
		for i := range R {
			structure = append(structure, sparse.Index{Row: s.Start + i, Col: s.Start + i})
			values = append(values, scale*R[i])
		}
	}
	for _, t := range times[:len(times)-1] {
		a, b := traj.Slice(t, v, dim), traj.Slice(t+1, v, dim)
		for i := range R {
			structure = append(structure, sparse.Index{Row: a.Start + i, Col: b.Start + i})
			values = append(values, -R[i])
		}
		for i := range R {
			structure = append(structure, sparse.Index{Row: b.Start + i, Col: a.Start + i})
			values = append(values, -R[i])
		}
	}

	obj := &Objective{
		Terms: Terms{p},
		Loss: func(Z []float64) float64 {
			mustLen(Z, n)
			var J float64
			for _, t := range times[:len(times)-1] {
				a, b := traj.Slice(t, v, dim), traj.Slice(t+1, v, dim)
				for i := range R {
					d := Z[b.Start+i] - Z[a.Start+i]
					J += 0.5 * R[i] * d * d
				}
			}
			return J
		},
		Gradient: func(Z []float64) []float64 {
			mustLen(Z, n)
			grad := make([]float64, n)
			// Each timestep gathers both of its differences so that it only
			// writes its own slice.
			plan.run(func(_, t int) {
				s := traj.Slice(t, v, dim)
				for i := range R {
					var g float64
					if t > first {
						g += R[i] * (Z[s.Start+i] - Z[s.Start-dim+i])
					}
					if t < last {
						g -= R[i] * (Z[s.Start+dim+i] - Z[s.Start+i])
					}
					grad[s.Start+i] = g
				}
			})
			return grad
		},
		HessianStructure: func() []sparse.Index {
			return slices.Clone(structure)
		},
		HessianValues: func(Z []float64) []float64 {
			mustLen(Z, n)
			return slices.Clone(values)
		},
	}

	if !evalHessian(p.EvalHessian) {
		obj.withoutHessian()
	}
	return obj, nil
}

// L1Params configures an L1 penalty on a component through its slack
// variables s1_<name> and s2_<name>. The slacks and the linear constraint
// v = s1 - s2, s1, s2 ≥ 0 are provided by the constraint builder; this term
// only sees the slacks.
type L1Params struct {
	Name        string    `json:"name" yaml:"name"`
	Times       []int     `json:"times,omitempty" yaml:"times,omitempty"`
	R           []float64 `json:"R,omitempty" yaml:"R,omitempty"`
	RValue      float64   `json:"r_value,omitempty" yaml:"r_value,omitempty"`
	EvalHessian *bool     `json:"eval_hessian,omitempty" yaml:"eval_hessian,omitempty"`
}

func (p L1Params) Kind() Kind { return KindL1 }

func (p L1Params) Build(l Layout) (*Objective, error) { return NewL1Regularizer(l, p) }

// SlackNames returns the slack component names for an L1-regularized component
func SlackNames(name string) (s1, s2 string) {
	return "s1_" + name, "s2_" + name
}

// NewL1Regularizer builds Σₜ R·(s1ₜ + s2ₜ). The term is linear, so its
// Hessian is an explicit empty triplet list rather than an absent one.
func NewL1Regularizer(l Layout, p L1Params) (*Objective, error) {
	const kind = KindL1

	if p.Name == "" {
		return nil, configErr(kind, "name", "is required")
	}
	n1, n2 := SlackNames(p.Name)
	s1, err := component(l, kind, "slack", n1)
	if err != nil {
		return nil, err
	}
	s2, err := component(l, kind, "slack", n2)
	if err != nil {
		return nil, err
	}
	if s1.Len() != s2.Len() {
		return nil, configErr(kind, "slack", "%s and %s differ in width", n1, n2)
	}
	times, err := resolveTimes(l, kind, p.Times)
	if err != nil {
		return nil, err
	}
	R, err := resolveWeights(kind, p.R, p.RValue, s1.Len())
	if err != nil {
		return nil, err
	}

	dim, n := l.Dim(), l.Dim()*l.T()
	plan := planSteps(times, func(t int) []traj.Range {
		return []traj.Range{traj.Slice(t, s1, dim), traj.Slice(t, s2, dim)}
	})

	obj := &Objective{
		Terms: Terms{p},
		Loss: func(Z []float64) float64 {
			mustLen(Z, n)
			var J float64
			for _, t := range times {
				a, b := traj.Slice(t, s1, dim), traj.Slice(t, s2, dim)
				for i, r := range R {
					J += r * (Z[a.Start+i] + Z[b.Start+i])
				}
			}
			return J
		},
		Gradient: func(Z []float64) []float64 {
			mustLen(Z, n)
			grad := make([]float64, n)
			plan.run(func(_, t int) {
				copy(grad[traj.Slice(t, s1, dim).Start:], R)
				copy(grad[traj.Slice(t, s2, dim).Start:], R)
			})
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
