package traj

import (
	"errors"
	"math"
	"testing"
)

func TestSlice(t *testing.T) {
	tests := []struct {
		name  string
		t     int
		local Range
		dim   int
		want  Range
	}{
		{name: "first timestep", t: 0, local: Range{Start: 2, End: 5}, dim: 7, want: Range{Start: 2, End: 5}},
		{name: "third timestep", t: 2, local: Range{Start: 2, End: 5}, dim: 7, want: Range{Start: 16, End: 19}},
		{name: "whole block", t: 1, local: Range{Start: 0, End: 7}, dim: 7, want: Range{Start: 7, End: 14}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slice(tt.t, tt.local, tt.dim)
			if got != tt.want {
				t.Errorf("Slice mismatch: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSlicePanicsOnBadInput(t *testing.T) {
	tests := []struct {
		name  string
		t     int
		local Range
		dim   int
	}{
		{name: "negative timestep", t: -1, local: Range{Start: 0, End: 1}, dim: 2},
		{name: "past block end", t: 0, local: Range{Start: 1, End: 3}, dim: 2},
		{name: "negative start", t: 0, local: Range{Start: -1, End: 1}, dim: 2},
		{name: "reversed", t: 0, local: Range{Start: 2, End: 1}, dim: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("expected panic")
				}
			}()
			Slice(tt.t, tt.local, tt.dim)
		})
	}
}

func TestRangeOverlaps(t *testing.T) {
	a := Range{Start: 2, End: 5}
	if !a.Overlaps(Range{Start: 4, End: 8}) {
		t.Errorf("expected [2,5) and [4,8) to overlap")
	}
	if a.Overlaps(Range{Start: 5, End: 8}) {
		t.Errorf("adjacent ranges must not overlap")
	}
	if a.Overlaps(Range{Start: 3, End: 3}) {
		t.Errorf("empty range must not overlap")
	}
}

func TestNewLayout(t *testing.T) {
	l, err := NewLayout(4, []Component{
		{Name: "psi", Width: 4},
		{Name: "u", Width: 2},
		{Name: "dt", Width: 1},
	}, Timestep{Variable: "dt"})
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}

	if l.Dim() != 7 {
		t.Errorf("Dim mismatch: got %d, want 7", l.Dim())
	}
	if l.Len() != 28 {
		t.Errorf("Len mismatch: got %d, want 28", l.Len())
	}
	r, err := l.Range("u")
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if r != (Range{Start: 4, End: 6}) {
		t.Errorf("Range mismatch: got %v", r)
	}
	if got := l.Index(3, "dt"); got != (Range{Start: 27, End: 28}) {
		t.Errorf("Index mismatch: got %v", got)
	}
	if !l.Timestep().Free() {
		t.Errorf("expected free timestep")
	}

	if _, err := l.Range("x"); err == nil {
		t.Errorf("expected error for unknown component")
	}
}

func TestNewLayoutErrors(t *testing.T) {
	tests := []struct {
		name       string
		t          int
		components []Component
		timestep   Timestep
		field      string
	}{
		{name: "no timesteps", t: 0, components: []Component{{Name: "x", Width: 1}}, timestep: Timestep{Fixed: 1}, field: "T"},
		{name: "no components", t: 2, timestep: Timestep{Fixed: 1}, field: "components"},
		{name: "empty name", t: 2, components: []Component{{Width: 1}}, timestep: Timestep{Fixed: 1}, field: "components"},
		{name: "zero width", t: 2, components: []Component{{Name: "x"}}, timestep: Timestep{Fixed: 1}, field: "components.x"},
		{name: "duplicate", t: 2, components: []Component{{Name: "x", Width: 1}, {Name: "x", Width: 2}}, timestep: Timestep{Fixed: 1}, field: "components.x"},
		{name: "missing step component", t: 2, components: []Component{{Name: "x", Width: 1}}, timestep: Timestep{Variable: "dt"}, field: "timestep.variable"},
		{name: "wide step component", t: 2, components: []Component{{Name: "dt", Width: 2}}, timestep: Timestep{Variable: "dt"}, field: "timestep.variable"},
		{name: "non-positive fixed step", t: 2, components: []Component{{Name: "x", Width: 1}}, field: "timestep.fixed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLayout(tt.t, tt.components, tt.timestep)
			var le *LayoutError
			if !errors.As(err, &le) {
				t.Fatalf("expected LayoutError, got %v", err)
			}
			if le.Field != tt.field {
				t.Errorf("Field mismatch: got %q, want %q", le.Field, tt.field)
			}
		})
	}
}

func TestLayoutReferences(t *testing.T) {
	l, err := NewLayout(2, []Component{{Name: "psi", Width: 4}}, Timestep{Fixed: 0.1})
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}

	goal := []float64{0, 1, 0, 0}
	if err := l.SetGoal("psi", goal); err != nil {
		t.Fatalf("SetGoal failed: %v", err)
	}
	goal[1] = 5
	got, ok := l.Goal("psi")
	if !ok || got[1] != 1 {
		t.Errorf("goal not stored as a copy: %v", got)
	}

	if err := l.SetInitial("psi", []float64{1}); err == nil {
		t.Errorf("expected length mismatch error")
	}
	if _, ok := l.Final("psi"); ok {
		t.Errorf("expected no final value")
	}
}

func TestSameShape(t *testing.T) {
	a, _ := NewLayout(3, []Component{{Name: "x", Width: 2}, {Name: "y", Width: 1}}, Timestep{Fixed: 1})
	b, _ := NewLayout(3, []Component{{Name: "x", Width: 2}, {Name: "y", Width: 1}}, Timestep{Fixed: 1})
	c, _ := NewLayout(3, []Component{{Name: "y", Width: 1}, {Name: "x", Width: 2}}, Timestep{Fixed: 1})

	if !a.SameShape(b) {
		t.Errorf("expected identical layouts to match")
	}
	if a.SameShape(c) {
		t.Errorf("component order must matter")
	}
}

func TestTrajectoryBounds(t *testing.T) {
	l, err := NewLayout(2, []Component{{Name: "u", Width: 2}, {Name: "dt", Width: 1}}, Timestep{Variable: "dt"})
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}
	tr := NewTrajectory(l)

	if err := tr.SetBound("u", Bound{Lower: []float64{-1}, Upper: []float64{1, 2}}); err != nil {
		t.Fatalf("SetBound failed: %v", err)
	}
	if err := tr.SetBound("dt", Bound{Lower: []float64{0.01}}); err != nil {
		t.Fatalf("SetBound failed: %v", err)
	}
	if err := tr.SetBound("u", Bound{Lower: []float64{1, 2, 3}}); err == nil {
		t.Errorf("expected error for wrong bound length")
	}

	lower, upper := tr.Bounds()
	wantLower := []float64{-1, -1, 0.01, -1, -1, 0.01}
	wantUpper := []float64{1, 2, math.Inf(1), 1, 2, math.Inf(1)}
	for i := range lower {
		if lower[i] != wantLower[i] || upper[i] != wantUpper[i] {
			t.Errorf("bounds[%d] mismatch: got [%f, %f], want [%f, %f]", i, lower[i], upper[i], wantLower[i], wantUpper[i])
		}
	}

	if err := tr.Set(1, "u", []float64{5, -5}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	Clamp(tr.Data, lower, upper)
	got := tr.Get(1, "u")
	if got[0] != 1 || got[1] != -1 {
		t.Errorf("Clamp mismatch: got %v, want [1 -1]", got)
	}
}
