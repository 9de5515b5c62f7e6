package simplex

import (
	"testing"

	"github.com/cpmech/gosl/chk"
)

// Test_solve_box_bounded builds min c'x s.t. a single equality row and box
// bounds on two columns, and checks the dual simplex lands on the known
// optimum.
//
//	row 0:  x0 + x1 = 3            (fixed bound on the row)
//	cols:   x0 in [0,5], x1 in [0,5]
//	cost:   c = [1, 0]   -> minimize x0, so optimum is x0=0, x1=3.
func Test_solve_box_bounded(tst *testing.T) {
	p := NewProblem(1, 2)
	p.SetCoef(0, 0, 1)
	p.SetCoef(0, 1, 1)
	p.SetRowBound(0, FixedBound(3))
	p.SetColBound(0, DoubleBound(0, 5))
	p.SetColBound(1, DoubleBound(0, 5))
	p.SetCost(0, 1)
	p.SetCost(1, 0)

	out := p.Warmup(Unbounded())
	if out.Primal != Feasible {
		tst.Fatalf("primal status = %v, want Feasible", out.Primal)
	}
	chk.Scalar(tst, "x0", 1e-9, p.ColValue(0), 0)
	chk.Scalar(tst, "x1", 1e-9, p.ColValue(1), 3)
}

// Test_warm_restart_after_rhs_change mirrors mpc.UpdateX0: after an initial
// Warmup, only a row bound changes (never a cost), and Solve must reuse the
// existing basis rather than cold-starting.
func Test_warm_restart_after_rhs_change(tst *testing.T) {
	p := NewProblem(1, 2)
	p.SetCoef(0, 0, 1)
	p.SetCoef(0, 1, 1)
	p.SetRowBound(0, FixedBound(3))
	p.SetColBound(0, DoubleBound(0, 5))
	p.SetColBound(1, DoubleBound(0, 5))
	p.SetCost(0, 1)

	p.Warmup(Unbounded())
	if !p.HasBasis() {
		tst.Fatalf("expected a basis to be stored after Warmup")
	}

	p.SetRowBound(0, FixedBound(4))
	out := p.Solve(Unbounded())
	if out.Primal != Feasible {
		tst.Fatalf("primal status = %v, want Feasible", out.Primal)
	}
	chk.Scalar(tst, "x0", 1e-9, p.ColValue(0), 0)
	chk.Scalar(tst, "x1", 1e-9, p.ColValue(1), 4)
}

// Test_infeasible_when_bounds_conflict checks that a row fixed outside the
// reachable range from the column bounds is reported infeasible rather than
// looping forever.
func Test_infeasible_when_bounds_conflict(tst *testing.T) {
	p := NewProblem(1, 2)
	p.SetCoef(0, 0, 1)
	p.SetCoef(0, 1, 1)
	p.SetRowBound(0, FixedBound(20)) // unreachable: x0+x1 <= 10
	p.SetColBound(0, DoubleBound(0, 5))
	p.SetColBound(1, DoubleBound(0, 5))

	out := p.Warmup(Unbounded())
	if out.Primal != Infeasible {
		tst.Fatalf("primal status = %v, want Infeasible", out.Primal)
	}
}

// Test_snapshot_round_trip checks that SetStatuses followed by Solve
// reproduces the same optimum a fresh Warmup would, exercising the
// snapshot_resume path (spec.md §3).
func Test_snapshot_round_trip(tst *testing.T) {
	build := func() *Problem {
		p := NewProblem(1, 2)
		p.SetCoef(0, 0, 1)
		p.SetCoef(0, 1, 1)
		p.SetRowBound(0, FixedBound(3))
		p.SetColBound(0, DoubleBound(0, 5))
		p.SetColBound(1, DoubleBound(0, 5))
		p.SetCost(0, 1)
		return p
	}

	src := build()
	src.Warmup(Unbounded())
	rowStat, colStat := src.RowStatuses(), src.ColStatuses()

	dst := build()
	dst.SetStatuses(rowStat, colStat)
	if !dst.HasBasis() {
		tst.Fatalf("expected resumed problem to carry a basis")
	}
	out := dst.Solve(Unbounded())
	if out.Primal != Feasible {
		tst.Fatalf("primal status = %v, want Feasible", out.Primal)
	}
	chk.Scalar(tst, "x0", 1e-9, dst.ColValue(0), 0)
	chk.Scalar(tst, "x1", 1e-9, dst.ColValue(1), 3)
}
