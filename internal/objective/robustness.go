package objective

import (
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/qtrajopt/internal/quantum"
	"github.com/cwbudde/qtrajopt/internal/traj"
)

// RobustnessParams configures the second-order sensitivity of a unitary
// trajectory to an error Hamiltonian Hₑ, given as an isomorphic operator
// vector.
type RobustnessParams struct {
	Name          string    `json:"name" yaml:"name"`
	ErrorOperator []float64 `json:"error_operator" yaml:"error_operator"`
	Subspace      []int     `json:"subspace,omitempty" yaml:"subspace,omitempty"`
}

func (p RobustnessParams) Kind() Kind { return KindRobustness }

func (p RobustnessParams) Build(l Layout) (*Objective, error) {
	return NewInfidelityRobustnessObjective(l, p)
}

// NewInfidelityRobustnessObjective builds
//
//	R = Σₜ cₜ (Uₜ† Ĥ Uₜ)_SS / Σₜ cₜ,  L = ‖R‖²_F / d
//
// where Ĥ = Hₑ/‖Hₑ‖_F, cₜ is the step size at t and d = |S|. Every timestep
// couples to every other through the average, so the term has no Hessian.
func NewInfidelityRobustnessObjective(l Layout, p RobustnessParams) (*Objective, error) {
	const kind = KindRobustness

	u, err := component(l, kind, "name", p.Name)
	if err != nil {
		return nil, err
	}
	if len(p.ErrorOperator) == 0 {
		return nil, configErr(kind, "error_operator", "is required")
	}
	n, err := quantum.OperatorDim(len(p.ErrorOperator))
	if err != nil {
		return nil, configErr(kind, "error_operator", "%v", err)
	}
	if u.Len() != len(p.ErrorOperator) {
		return nil, configErr(kind, "error_operator", "has length %d but component %q has width %d", len(p.ErrorOperator), p.Name, u.Len())
	}
	he := quantum.IsoVecToOperator(p.ErrorOperator)
	if !quantum.IsHermitian(he, 1e-10) {
		return nil, configErr(kind, "error_operator", "is not Hermitian")
	}
	norm := quantum.FrobeniusNorm(he)
	if norm == 0 {
		return nil, configErr(kind, "error_operator", "has zero norm")
	}
	sub, err := quantum.Subspace(p.Subspace, n)
	if err != nil {
		return nil, configErr(kind, "subspace", "%v", err)
	}

	ts := l.Timestep()
	var dt traj.Range
	if ts.Free() {
		if dt, err = l.Range(ts.Variable); err != nil {
			return nil, configErr(kind, "timestep", "%v", err)
		}
	}

	H := quantum.IsoVecToIsoOperator(p.ErrorOperator)
	H.Scale(1/norm, H)

	dim, T, N := l.Dim(), l.T(), l.Dim()*l.T()
	d := len(sub)
	times := identity(T)

	plan := planSteps(times, func(t int) []traj.Range {
		if ts.Free() {
			return []traj.Range{traj.Slice(t, u, dim), traj.Slice(t, dt, dim)}
		}
		return []traj.Range{traj.Slice(t, u, dim)}
	})

	slog.Debug("robustness objective built",
		"component", p.Name,
		"levels", n,
		"subspace_dim", d,
		"free_time", ts.Free())

	// columns returns the 2n×2d real form of Uₜ[:, S]
	columns := func(Z []float64, t int) *mat.Dense {
		base := traj.Slice(t, u, dim).Start
		a := mat.NewDense(2*n, 2*d, nil)
		for c, j := range sub {
			col := base + j*2*n
			for i := 0; i < n; i++ {
				re, im := Z[col+i], Z[col+n+i]
				a.Set(i, c, re)
				a.Set(n+i, c, im)
				a.Set(i, d+c, -im)
				a.Set(n+i, d+c, re)
			}
		}
		return a
	}

	// eval is shared by Loss and Gradient: per timestep Ĥ·Aₜ and the
	// conjugated block Mₜ = Aₜ†ĤAₜ, the weights cₜ, and the average R.
	type state struct {
		a, ha, m []*mat.Dense
		c        []float64
		tau      float64
		r        *mat.Dense
	}
	eval := func(Z []float64) *state {
		s := &state{
			a:  make([]*mat.Dense, T),
			ha: make([]*mat.Dense, T),
			m:  make([]*mat.Dense, T),
			c:  make([]float64, T),
		}
		plan.run(func(k, t int) {
			s.a[k] = columns(Z, t)
			s.ha[k] = mat.NewDense(2*n, 2*d, nil)
			s.ha[k].Mul(H, s.a[k])
			s.m[k] = mat.NewDense(2*d, 2*d, nil)
			s.m[k].Mul(s.a[k].T(), s.ha[k])
			s.c[k] = stepSize(Z, ts, dt, dim, t)
		})

		s.r = mat.NewDense(2*d, 2*d, nil)
		for k := range times {
			s.tau += s.c[k]
			s.r.Add(s.r, scaled(s.c[k], s.m[k]))
		}
		s.r.Scale(1/s.tau, s.r)
		return s
	}

	// ‖X‖²_F of a complex matrix is half that of its real form.
	normSq := func(m *mat.Dense) float64 {
		f := mat.Norm(m, 2)
		return f * f / 2
	}

	return &Objective{
		Terms: Terms{p},
		Loss: func(Z []float64) float64 {
			mustLen(Z, N)
			return normSq(eval(Z).r) / float64(d)
		},
		Gradient: func(Z []float64) []float64 {
			mustLen(Z, N)
			s := eval(Z)
			grad := make([]float64, N)
			rr := normSq(s.r)

			plan.run(func(k, t int) {
				// ∂L/∂Aₜ = 4cₜ/(dτ)·ĤAₜR
				var b mat.Dense
				b.Mul(s.ha[k], s.r)
				scale := 4 * s.c[k] / (float64(d) * s.tau)
				base := traj.Slice(t, u, dim).Start
				for c, j := range sub {
					col := base + j*2*n
					for i := 0; i < n; i++ {
						grad[col+i] = scale * b.At(i, c)
						grad[col+n+i] = scale * b.At(n+i, c)
					}
				}

				if ts.Free() {
					// ∂L/∂cₜ = 2/(dτ)·(Re tr(R Mₜ) - ‖R‖²)
					var rm mat.Dense
					rm.Mul(s.r, s.m[k])
					tr := mat.Trace(&rm) / 2
					grad[traj.Slice(t, dt, dim).Start] = 2 / (float64(d) * s.tau) * (tr - rr)
				}
			})
			return grad
		},
	}, nil
}

func scaled(f float64, m *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Scale(f, m)
	return &out
}
