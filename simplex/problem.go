// Package simplex implements a bounded-variable revised-tableau simplex
// solver: the in-repo stand-in for the GLPK dependency the control plane
// spec treats as an external, required library (see DESIGN.md for why
// gonum's optimize/convex/lp.Simplex does not fit the warm-restart
// contract). Variables and rows share the same GLP_FR/LO/UP/DB/FX bound
// vocabulary and basic/non-basic status vocabulary GLPK uses, since the mpc
// package's snapshot/resume contract is defined in those terms.
package simplex

import (
	"time"

	"github.com/cpmech/gosl/chk"
)

// BoundKind is the GLP_FR/LO/UP/DB/FX bound type of a row or column.
type BoundKind int

const (
	BoundFree BoundKind = iota
	BoundLower
	BoundUpper
	BoundDouble
	BoundFixed
)

// Bound is a variable or row's admissible range, tagged with its kind so
// +/-Inf sides are handled explicitly rather than relying on float compares.
type Bound struct {
	Kind   BoundKind
	Lo, Up float64
}

// FreeBound, LowerBound, UpperBound, DoubleBound and FixedBound build Bound
// values the way mpc's variable/row builders need them (spec.md §4.C: "apply
// GLP_FR / GLP_LO / GLP_UP / GLP_DB" from parsed {lo,up} pairs).
func FreeBound() Bound                  { return Bound{Kind: BoundFree} }
func LowerBound(lo float64) Bound       { return Bound{Kind: BoundLower, Lo: lo} }
func UpperBound(up float64) Bound       { return Bound{Kind: BoundUpper, Up: up} }
func DoubleBound(lo, up float64) Bound  { return Bound{Kind: BoundDouble, Lo: lo, Up: up} }
func FixedBound(v float64) Bound        { return Bound{Kind: BoundFixed, Lo: v, Up: v} }

// BoundFromPair selects the right BoundKind given a possibly-infinite
// {lo, up} pair, per spec.md §4.C / §8 ("infinite bound sides ... select
// GLP_FR/LO/UP/DB correctly").
func BoundFromPair(lo, up float64) Bound {
	loFinite, upFinite := isFinite(lo), isFinite(up)
	switch {
	case !loFinite && !upFinite:
		return FreeBound()
	case loFinite && !upFinite:
		return LowerBound(lo)
	case !loFinite && upFinite:
		return UpperBound(up)
	case lo == up:
		return FixedBound(lo)
	default:
		return DoubleBound(lo, up)
	}
}

func isFinite(v float64) bool {
	return v > -1e100 && v < 1e100
}

// Status is the basic/non-basic status GLPK attaches to every row and
// column, recorded verbatim in the Solver Status snapshot (spec.md §3).
type Status int

const (
	StatusBasic Status = iota
	StatusNonBasicLower
	StatusNonBasicUpper
	StatusNonBasicFree
	StatusNonBasicFixed
)

// Problem is a bounded-variable LP in the row/column vocabulary of
// spec.md §4.C: row i is an auxiliary variable y_i = sum_j A[i][j]*x_j with
// its own bound, and column j is a structural variable x_j with its own
// bound. Solving means finding a basis of nRows variables (drawn from the
// nRows+nCols row+column pool) such that every non-basic variable sits at a
// bound and every basic variable's implied value is feasible.
type Problem struct {
	nRows, nCols int
	a            [][]float64 // nRows x nCols, row-major, shape fixed by NewProblem
	rowBnd       []Bound     // len nRows
	colBnd       []Bound     // len nCols
	cost         []float64   // len nCols; rows carry zero cost

	// solver state, persisted across Warmup/Solve/Snapshot calls. GLPK (and
	// the Solver Status snapshot in spec.md §3) only ever carries a status
	// per row/column, not an explicit basis ordering: the set of variables
	// marked StatusBasic (exactly nRows of them) *is* the basis. value
	// holds the last-solved value of every variable, basic or not.
	status []Status  // len nRows+nCols
	value  []float64 // len nRows+nCols
}

// NewProblem allocates an empty problem with nRows rows and nCols columns,
// all bounds free and all costs zero. Rows/columns are typically declared
// up front by the mpc builder and then filled in with SetCoef/SetRowBound/
// SetColBound.
func NewProblem(nRows, nCols int) *Problem {
	p := &Problem{
		nRows:  nRows,
		nCols:  nCols,
		a:      make([][]float64, nRows),
		rowBnd: make([]Bound, nRows),
		colBnd: make([]Bound, nCols),
		cost:   make([]float64, nCols),
	}
	for i := range p.a {
		p.a[i] = make([]float64, nCols)
	}
	for i := range p.rowBnd {
		p.rowBnd[i] = FreeBound()
	}
	for j := range p.colBnd {
		p.colBnd[j] = FreeBound()
	}
	return p
}

// NumRows and NumCols report the problem's current shape.
func (p *Problem) NumRows() int { return p.nRows }
func (p *Problem) NumCols() int { return p.nCols }

// SetCoef sets A[row][col] = v.
func (p *Problem) SetCoef(row, col int, v float64) {
	requireShape(p, row, col)
	p.a[row][col] = v
}

// Coef returns A[row][col].
func (p *Problem) Coef(row, col int) float64 {
	requireShape(p, row, col)
	return p.a[row][col]
}

// SetRowBound sets row i's bound, e.g. as part of mpc.UpdateX0's RHS refresh.
func (p *Problem) SetRowBound(i int, b Bound) { p.rowBnd[i] = b }

// SetColBound sets column j's bound.
func (p *Problem) SetColBound(j int, b Bound) { p.colBnd[j] = b }

// RowBound and ColBound return the current bound.
func (p *Problem) RowBound(i int) Bound { return p.rowBnd[i] }
func (p *Problem) ColBound(j int) Bound { return p.colBnd[j] }

// SetCost sets the objective coefficient of column j.
func (p *Problem) SetCost(j int, c float64) { p.cost[j] = c }

// variable index space: [0,nRows) are row (auxiliary) variables, [nRows,
// nRows+nCols) are column (structural) variables.
func (p *Problem) numVars() int { return p.nRows + p.nCols }
func (p *Problem) isRowVar(v int) bool { return v < p.nRows }

func (p *Problem) boundOf(v int) Bound {
	if p.isRowVar(v) {
		return p.rowBnd[v]
	}
	return p.colBnd[v-p.nRows]
}

func (p *Problem) costOf(v int) float64 {
	if p.isRowVar(v) {
		return 0
	}
	return p.cost[v-p.nRows]
}

// Budget bounds a solve call by iteration count and wall time, per
// spec.md §4.D ("iteration and time limits both apply; either exceeded
// returns with the last basis intact").
type Budget struct {
	MaxIter int
	MaxTime time.Duration
}

// Unbounded returns a Budget with no effective limit, used for Warmup and
// for the controller's x0-only local solve.
func Unbounded() Budget { return Budget{MaxIter: 1 << 30, MaxTime: 365 * 24 * time.Hour} }

func (b Budget) effective() Budget {
	out := b
	if out.MaxIter <= 0 {
		out.MaxIter = 1 << 30
	}
	if out.MaxTime <= 0 {
		out.MaxTime = 365 * 24 * time.Hour
	}
	return out
}

// FeasibilityStatus mirrors GLPK's GLP_FEAS/GLP_INFEAS/GLP_NOFEAS primal and
// dual status codes, as carried in the Solver Status snapshot.
type FeasibilityStatus int

const (
	Undefined FeasibilityStatus = iota
	Feasible
	Infeasible
	NoFeasible
)

// Outcome is the result of a Solve call.
type Outcome struct {
	Primal       FeasibilityStatus
	Dual         FeasibilityStatus
	IterConsumed int
	TimeConsumed time.Duration
	// LimitHit is true when the iteration or time budget was exceeded
	// before a terminal status was reached; the caller should treat the
	// partial result as non-terminal but keep the basis (spec.md §4.D/§7).
	LimitHit bool
}

func requireShape(p *Problem, row, col int) {
	if row < 0 || row >= p.nRows {
		chk.Panic("simplex: row index %d out of range [0,%d)", row, p.nRows)
	}
	if col < 0 || col >= p.nCols {
		chk.Panic("simplex: col index %d out of range [0,%d)", col, p.nCols)
	}
}
