package traj

import (
	"fmt"
	"slices"
)

// Component names one block of every timestep
type Component struct {
	Name  string `json:"name" yaml:"name"`
	Width int    `json:"width" yaml:"width"`
}

// Timestep describes the step size of a trajectory. Exactly one of Fixed or
// Variable is meaningful: when Variable names a component, the step size at
// timestep t is the (width 1) value of that component at t.
type Timestep struct {
	Fixed    float64 `json:"fixed,omitempty" yaml:"fixed,omitempty"`
	Variable string  `json:"variable,omitempty" yaml:"variable,omitempty"`
}

// Free reports whether the step size is a decision variable
func (ts Timestep) Free() bool {
	return ts.Variable != ""
}

// Layout maps named components onto the flat decision vector.
// A layout is built once and never mutated afterwards.
type Layout struct {
	t          int
	dim        int
	order      []string
	components map[string]Range
	timestep   Timestep

	goals   map[string][]float64
	initial map[string][]float64
	final   map[string][]float64
}

// LayoutError reports an invalid layout definition
type LayoutError struct {
	Field  string
	Reason string
}

func (e *LayoutError) Error() string {
	return "layout error: " + e.Field + " " + e.Reason
}

// NewLayout lays out components in the given order. Each timestep block is
// the concatenation of all components, so dim is the sum of their widths.
func NewLayout(t int, components []Component, timestep Timestep) (*Layout, error) {
	if t <= 0 {
		return nil, &LayoutError{Field: "T", Reason: "must be positive"}
	}
	if len(components) == 0 {
		return nil, &LayoutError{Field: "components", Reason: "cannot be empty"}
	}

	l := &Layout{
		t:          t,
		components: make(map[string]Range, len(components)),
		timestep:   timestep,
		goals:      map[string][]float64{},
		initial:    map[string][]float64{},
		final:      map[string][]float64{},
	}

	offset := 0
	for _, c := range components {
		if c.Name == "" {
			return nil, &LayoutError{Field: "components", Reason: "name cannot be empty"}
		}
		if c.Width <= 0 {
			return nil, &LayoutError{Field: "components." + c.Name, Reason: "width must be positive"}
		}
		if _, dup := l.components[c.Name]; dup {
			return nil, &LayoutError{Field: "components." + c.Name, Reason: "is defined twice"}
		}
		l.components[c.Name] = Range{Start: offset, End: offset + c.Width}
		l.order = append(l.order, c.Name)
		offset += c.Width
	}
	l.dim = offset

	if timestep.Free() {
		r, ok := l.components[timestep.Variable]
		if !ok {
			return nil, &LayoutError{Field: "timestep.variable", Reason: fmt.Sprintf("component %q does not exist", timestep.Variable)}
		}
		if r.Len() != 1 {
			return nil, &LayoutError{Field: "timestep.variable", Reason: fmt.Sprintf("component %q must have width 1", timestep.Variable)}
		}
	} else if timestep.Fixed <= 0 {
		return nil, &LayoutError{Field: "timestep.fixed", Reason: "must be positive"}
	}

	return l, nil
}

// Dim is the per-timestep block width
func (l *Layout) Dim() int { return l.dim }

// T is the number of timesteps
func (l *Layout) T() int { return l.t }

// Len is the length of the flat decision vector, Dim()*T()
func (l *Layout) Len() int { return l.dim * l.t }

// Timestep returns the step size description
func (l *Layout) Timestep() Timestep { return l.timestep }

// Names returns the component names in layout order
func (l *Layout) Names() []string { return slices.Clone(l.order) }

// Components returns the component definitions in layout order
func (l *Layout) Components() []Component {
	out := make([]Component, len(l.order))
	for i, name := range l.order {
		out[i] = Component{Name: name, Width: l.components[name].Len()}
	}
	return out
}

// Range returns the local offset range of a component within one timestep block
func (l *Layout) Range(name string) (Range, error) {
	r, ok := l.components[name]
	if !ok {
		return Range{}, &LayoutError{Field: "components", Reason: fmt.Sprintf("component %q does not exist", name)}
	}
	return r, nil
}

// Index returns the absolute range of a component at timestep t
func (l *Layout) Index(t int, name string) Range {
	r, err := l.Range(name)
	if err != nil {
		panic(err)
	}
	if t >= l.t {
		panic(fmt.Sprintf("timestep %d out of range [0, %d)", t, l.t))
	}
	return Slice(t, r, l.dim)
}

// SetGoal records the goal value of a component
func (l *Layout) SetGoal(name string, v []float64) error {
	return l.setRef(l.goals, "goal", name, v)
}

// SetInitial records the fixed initial value of a component
func (l *Layout) SetInitial(name string, v []float64) error {
	return l.setRef(l.initial, "initial", name, v)
}

// SetFinal records the fixed final value of a component
func (l *Layout) SetFinal(name string, v []float64) error {
	return l.setRef(l.final, "final", name, v)
}

func (l *Layout) setRef(m map[string][]float64, field, name string, v []float64) error {
	r, err := l.Range(name)
	if err != nil {
		return err
	}
	if len(v) != r.Len() {
		return &LayoutError{
			Field:  field + "." + name,
			Reason: fmt.Sprintf("length mismatch: expected %d, got %d", r.Len(), len(v)),
		}
	}
	m[name] = slices.Clone(v)
	return nil
}

// Goal returns the goal value of a component, if one was set
func (l *Layout) Goal(name string) ([]float64, bool) {
	v, ok := l.goals[name]
	return v, ok
}

// Initial returns the fixed initial value of a component, if one was set
func (l *Layout) Initial(name string) ([]float64, bool) {
	v, ok := l.initial[name]
	return v, ok
}

// Final returns the fixed final value of a component, if one was set
func (l *Layout) Final(name string) ([]float64, bool) {
	v, ok := l.final[name]
	return v, ok
}

// SameShape reports whether two layouts place every component identically
func (l *Layout) SameShape(o *Layout) bool {
	if l.t != o.t || l.dim != o.dim || l.timestep != o.timestep {
		return false
	}
	return slices.Equal(l.Components(), o.Components())
}
