package mpc

import (
	"github.com/cpmech/mpcctl/simplex"
)

// Warmup sets x0=0, refreshes the LP, and runs the simplex from a cold
// start. After Warmup the basis is dual-feasible (spec.md §4.D); every
// later UpdateX0 only perturbs row bounds, never costs, so dual feasibility
// survives automatically and later Solve calls warm-restart from it.
func (p *Problem) Warmup(budget simplex.Budget) simplex.Outcome {
	p.UpdateX0(make([]float64, p.N))
	return p.LP.Warmup(budget)
}

// Solve invokes the simplex with the current budgets, reusing whatever
// basis is already stored on the LP (set by the last Warmup/Solve or by
// SnapshotResume).
func (p *Problem) Solve(budget simplex.Budget) simplex.Outcome {
	return p.LP.Solve(budget)
}

// ExtractInput reads U_j(0) for j=0..M-1, the first control vector to apply
// to the plant this tick.
func (p *Problem) ExtractInput() []float64 {
	out := make([]float64, p.M)
	for j := 0; j < p.M; j++ {
		out[j] = p.LP.ColValue(p.colU(0, j))
	}
	return out
}
