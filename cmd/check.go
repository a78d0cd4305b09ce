package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/qtrajopt/internal/objective"
	"github.com/cwbudde/qtrajopt/internal/problem"
	"github.com/cwbudde/qtrajopt/internal/sparse"
	"github.com/cwbudde/qtrajopt/internal/traj"
)

var (
	checkStep   float64
	checkTol    float64
	checkJitter float64
	checkSeed   int64
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify objective derivatives by finite differences",
	Long: `Builds every objective term of a problem on its own and compares the analytic
gradient and Hessian with central finite differences at the starting
trajectory. It also checks that each Hessian structure list matches its value
list and warns about duplicate or unmirrored entries.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&problemPath, "problem", "", "Problem file, YAML or JSON (required)")
	checkCmd.Flags().Float64Var(&checkStep, "step", 1e-6, "Finite difference step")
	checkCmd.Flags().Float64Var(&checkTol, "tol", 1e-5, "Maximum relative derivative error")
	checkCmd.Flags().Float64Var(&checkJitter, "jitter", 0, "Standard deviation of random noise added to the check point")
	checkCmd.Flags().Int64Var(&checkSeed, "seed", 1, "Seed for --jitter")

	checkCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(checkCmd)
}

// termReport is the outcome of checking one term
type termReport struct {
	Kind    objective.Kind
	Loss    float64
	GradErr float64

	// Entries is the Hessian length, or -1 when the term has no Hessian
	Entries    int
	HessErr    float64
	Duplicates int
	Asymmetric int

	Err error
}

func (r termReport) failed(tol float64) bool {
	return r.Err != nil || r.GradErr > tol || r.HessErr > tol
}

func runCheck(cmd *cobra.Command, args []string) error {
	spec, err := problem.Load(problemPath)
	if err != nil {
		return err
	}
	tr, err := spec.Trajectory()
	if err != nil {
		return err
	}

	x := append([]float64{}, tr.Data...)
	if checkJitter > 0 {
		rng := rand.New(rand.NewSource(checkSeed))
		for i := range x {
			x[i] += checkJitter * rng.NormFloat64()
		}
	}

	reports := checkTerms(tr.Layout, spec.Objective, x, checkStep)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TERM\tLOSS\tGRAD ERR\tHESSIAN\tHESS ERR\tSTATUS")
	fmt.Fprintln(w, "----\t----\t--------\t-------\t--------\t------")
	failures := 0
	for _, r := range reports {
		status := "ok"
		if r.failed(checkTol) {
			status = "FAIL"
			failures++
		}
		if r.Err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t%s: %v\n", r.Kind, status, r.Err)
			continue
		}
		hessian := "none"
		if r.Entries >= 0 {
			hessian = fmt.Sprintf("%d entries", r.Entries)
		}
		fmt.Fprintf(w, "%s\t%.6g\t%.2e\t%s\t%.2e\t%s\n", r.Kind, r.Loss, r.GradErr, hessian, r.HessErr, status)
	}
	w.Flush()

	for _, r := range reports {
		if r.Duplicates > 0 {
			fmt.Printf("warning: %s repeats %d Hessian position(s)\n", r.Kind, r.Duplicates)
		}
		if r.Asymmetric > 0 {
			fmt.Printf("warning: %s has %d off-diagonal Hessian entries without a mirror\n", r.Kind, r.Asymmetric)
		}
	}

	obj, err := spec.Objective.Build(tr.Layout)
	if err != nil {
		return err
	}
	if obj.HasHessian() {
		// terms sharing a position are summed by the assembler
		if dups := sparse.Duplicates(obj.HessianStructure()); len(dups) > 0 {
			fmt.Printf("warning: %d Hessian position(s) are shared by several entries and will be summed\n", len(dups))
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d term(s) failed the derivative check", failures, len(reports))
	}
	fmt.Printf("All %d term(s) passed.\n", len(reports))
	return nil
}

// checkTerms builds every term separately and compares its derivatives at x
// with central differences.
func checkTerms(l *traj.Layout, terms objective.Terms, x []float64, step float64) []termReport {
	reports := make([]termReport, 0, len(terms))
	for _, p := range terms {
		reports = append(reports, checkTerm(l, p, x, step))
	}
	return reports
}

func checkTerm(l *traj.Layout, p objective.Params, x []float64, step float64) termReport {
	r := termReport{Kind: p.Kind(), Entries: -1}

	obj, err := p.Build(l)
	if err != nil {
		r.Err = err
		return r
	}

	r.Loss = obj.Loss(x)
	grad := obj.Gradient(x)
	numeric := fd.Gradient(nil, obj.Loss, x, &fd.Settings{Formula: fd.Central, Step: step})
	r.GradErr = relErr(grad, numeric)

	if !obj.HasHessian() {
		return r
	}

	structure := obj.HessianStructure()
	if !slices.Equal(structure, obj.HessianStructure()) {
		r.Err = fmt.Errorf("hessian structure changes between calls")
		return r
	}
	values := obj.HessianValues(x)
	if len(values) != len(structure) {
		r.Err = fmt.Errorf("hessian structure has %d entries but %d values", len(structure), len(values))
		return r
	}
	r.Entries = len(structure)
	r.Duplicates = len(sparse.Duplicates(structure))
	r.Asymmetric = len(sparse.Asymmetric(structure))

	n := len(x)
	analytic := sparse.Assemble(n, structure, values)
	jac := mat.NewDense(n, n, nil)
	fd.Jacobian(jac, func(y, z []float64) {
		copy(y, obj.Gradient(z))
	}, x, &fd.JacobianSettings{Formula: fd.Central, Step: step})
	r.HessErr = relErr(analytic.RawMatrix().Data, jac.RawMatrix().Data)

	return r
}

// relErr is the largest absolute difference scaled by the larger of one and
// the largest analytic magnitude
func relErr(analytic, numeric []float64) float64 {
	scale := math.Max(1, floats.Norm(analytic, math.Inf(1)))
	return floats.Distance(analytic, numeric, math.Inf(1)) / scale
}
