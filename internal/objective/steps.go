package objective

import (
	"fmt"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/qtrajopt/internal/traj"
)

// stepPlan runs per-timestep work concurrently. Every timestep declares the
// flat index ranges it writes; a plan whose timesteps claim overlapping
// ranges is rejected when it is built, so concurrent writers never share a
// destination index.
type stepPlan struct {
	times []int
}

type claim struct {
	r traj.Range
	t int
}

// planSteps builds a plan over times. It panics if two different timesteps
// claim overlapping write ranges.
func planSteps(times []int, writes func(t int) []traj.Range) stepPlan {
	var claims []claim
	for _, t := range times {
		for _, r := range writes(t) {
			claims = append(claims, claim{r: r, t: t})
		}
	}
	slices.SortFunc(claims, func(a, b claim) int { return a.r.Start - b.r.Start })

	// Sweep keeping the claim that reaches furthest right.
	var reach *claim
	for i := range claims {
		c := &claims[i]
		if reach != nil && reach.t != c.t && reach.r.Overlaps(c.r) {
			panic(fmt.Sprintf("timesteps %d and %d both write [%d, %d)",
				reach.t, c.t, max(reach.r.Start, c.r.Start), min(reach.r.End, c.r.End)))
		}
		if reach == nil || c.r.End > reach.r.End {
			reach = c
		}
	}

	return stepPlan{times: times}
}

// run calls fn(k, t) for every k-th timestep t of the plan and waits for all
// calls to return.
func (p stepPlan) run(fn func(k, t int)) {
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for k, t := range p.times {
		g.Go(func() error {
			fn(k, t)
			return nil
		})
	}
	_ = g.Wait()
}
