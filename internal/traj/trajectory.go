package traj

import (
	"fmt"
	"math"
)

// Bound holds per-dimension bounds of one component. Missing entries mean
// unbounded.
type Bound struct {
	Lower []float64 `json:"lower,omitempty" yaml:"lower,omitempty"`
	Upper []float64 `json:"upper,omitempty" yaml:"upper,omitempty"`
}

// Trajectory pairs a layout with the flat decision vector it describes
type Trajectory struct {
	*Layout
	Data   []float64
	bounds map[string]Bound
}

// NewTrajectory creates a zero-valued trajectory over the layout
func NewTrajectory(l *Layout) *Trajectory {
	return &Trajectory{
		Layout: l,
		Data:   make([]float64, l.Len()),
		bounds: map[string]Bound{},
	}
}

// Get returns a copy of the component value at timestep t
func (tr *Trajectory) Get(t int, name string) []float64 {
	r := tr.Index(t, name)
	return append([]float64{}, tr.Data[r.Start:r.End]...)
}

// Set writes the component value at timestep t
func (tr *Trajectory) Set(t int, name string, v []float64) error {
	r, err := tr.Range(name)
	if err != nil {
		return err
	}
	if len(v) != r.Len() {
		return &LayoutError{
			Field:  "data." + name,
			Reason: fmt.Sprintf("length mismatch: expected %d, got %d", r.Len(), len(v)),
		}
	}
	abs := tr.Index(t, name)
	copy(tr.Data[abs.Start:abs.End], v)
	return nil
}

// SetBound records bounds for a component. A bound with a single value is
// broadcast to every dimension of the component.
func (tr *Trajectory) SetBound(name string, b Bound) error {
	r, err := tr.Range(name)
	if err != nil {
		return err
	}
	for _, side := range [][]float64{b.Lower, b.Upper} {
		if len(side) != 0 && len(side) != 1 && len(side) != r.Len() {
			return &LayoutError{
				Field:  "bounds." + name,
				Reason: fmt.Sprintf("expected 1 or %d values, got %d", r.Len(), len(side)),
			}
		}
	}
	tr.bounds[name] = b
	return nil
}

// Bounds expands the component bounds to flat lower and upper vectors of
// length Len(). Unbounded entries are -Inf and +Inf.
func (tr *Trajectory) Bounds() (lower, upper []float64) {
	n := tr.Len()
	lower = make([]float64, n)
	upper = make([]float64, n)
	for i := range lower {
		lower[i] = math.Inf(-1)
		upper[i] = math.Inf(1)
	}

	for name, b := range tr.bounds {
		r, _ := tr.Range(name)
		for t := 0; t < tr.T(); t++ {
			abs := Slice(t, r, tr.Dim())
			for k := 0; k < r.Len(); k++ {
				lower[abs.Start+k] = pick(b.Lower, k, lower[abs.Start+k])
				upper[abs.Start+k] = pick(b.Upper, k, upper[abs.Start+k])
			}
		}
	}
	return lower, upper
}

func pick(side []float64, k int, fallback float64) float64 {
	switch len(side) {
	case 0:
		return fallback
	case 1:
		return side[0]
	default:
		return side[k]
	}
}

// Clamp projects data onto [lower, upper]
func Clamp(data, lower, upper []float64) {
	for i := range data {
		data[i] = math.Max(lower[i], math.Min(upper[i], data[i]))
	}
}
