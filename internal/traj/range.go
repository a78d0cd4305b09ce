package traj

import "fmt"

// Range is a half-open index range [Start, End)
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of indices in the range
func (r Range) Len() int {
	return r.End - r.Start
}

// Shift returns the range moved by offset
func (r Range) Shift(offset int) Range {
	return Range{Start: r.Start + offset, End: r.End + offset}
}

// Overlaps reports whether two non-empty ranges share an index
func (r Range) Overlaps(o Range) bool {
	return r.Len() > 0 && o.Len() > 0 && r.Start < o.End && o.Start < r.End
}

// Slice resolves a component's local range at timestep t into an absolute
// range of the flat decision vector: local .+ t*dim.
//
// Out-of-bounds input is a programming error and panics.
func Slice(t int, local Range, dim int) Range {
	if t < 0 {
		panic(fmt.Sprintf("negative timestep %d", t))
	}
	if local.Start < 0 || local.End > dim || local.Start > local.End {
		panic(fmt.Sprintf("local range [%d, %d) outside block [0, %d)", local.Start, local.End, dim))
	}
	return local.Shift(t * dim)
}
