package objective

import (
	"fmt"
	"slices"

	"github.com/cwbudde/qtrajopt/internal/traj"
)

// Layout is the view of a trajectory that objective terms are built against
type Layout interface {
	Dim() int
	T() int
	Range(name string) (traj.Range, error)
	Timestep() traj.Timestep
	Goal(name string) ([]float64, bool)
}

// ConfigError reports an invalid term definition. It is returned at
// construction time; terms never fall back to defaults for missing values.
type ConfigError struct {
	Term   Kind
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "objective config error: " + string(e.Term) + "." + e.Field + " " + e.Reason
}

func configErr(kind Kind, field, format string, args ...any) *ConfigError {
	return &ConfigError{Term: kind, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// component looks up a component range, reporting a missing one as a
// ConfigError of the term.
func component(l Layout, kind Kind, field, name string) (traj.Range, error) {
	if name == "" {
		return traj.Range{}, configErr(kind, field, "is required")
	}
	r, err := l.Range(name)
	if err != nil {
		return traj.Range{}, configErr(kind, field, "%v", err)
	}
	return r, nil
}

// resolveTimes validates a timestep index set. A nil set selects every
// timestep; an explicitly empty set is rejected.
func resolveTimes(l Layout, kind Kind, times []int) ([]int, error) {
	if times == nil {
		all := make([]int, l.T())
		for t := range all {
			all[t] = t
		}
		return all, nil
	}
	if len(times) == 0 {
		return nil, configErr(kind, "times", "cannot be empty")
	}

	out := slices.Clone(times)
	slices.Sort(out)
	for k, t := range out {
		if t < 0 || t >= l.T() {
			return nil, configErr(kind, "times", "timestep %d outside [0, %d)", t, l.T())
		}
		if k > 0 && out[k-1] == t {
			return nil, configErr(kind, "times", "timestep %d repeated", t)
		}
	}
	return out, nil
}

// resolveWeights returns R, or a width-length vector filled with value when
// R is empty. Weights must be nonnegative.
func resolveWeights(kind Kind, r []float64, value float64, width int) ([]float64, error) {
	if len(r) == 0 {
		if value == 0 {
			return nil, configErr(kind, "R", "is required (set R or r_value)")
		}
		r = make([]float64, width)
		for i := range r {
			r[i] = value
		}
	}
	if len(r) != width {
		return nil, configErr(kind, "R", "length mismatch: expected %d, got %d", width, len(r))
	}
	for i, v := range r {
		if v < 0 {
			return nil, configErr(kind, "R", "entry %d is negative", i)
		}
	}
	return slices.Clone(r), nil
}

// stepSize returns the step size at timestep t
func stepSize(Z []float64, ts traj.Timestep, dt traj.Range, dim, t int) float64 {
	if !ts.Free() {
		return ts.Fixed
	}
	return Z[traj.Slice(t, dt, dim).Start]
}

// mustLen panics when Z does not match the layout
func mustLen(Z []float64, n int) {
	if len(Z) != n {
		panic(fmt.Sprintf("decision vector has length %d, want %d", len(Z), n))
	}
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
