package mpc

import (
	"gonum.org/v1/gonum/mat"

	"github.com/cpmech/gosl/chk"

	"github.com/cpmech/mpcctl/dyn"
	"github.com/cpmech/mpcctl/simplex"
)

// bigSentinel disables a row "without structural change" (spec.md §4.C.1):
// a weighted-norm row for a state component with weight 0 gets this as its
// upper bound instead of a finite RHS, making it unsatisfiable-never i.e.
// vacuous for any input the box bounds allow.
const bigSentinel = 1e10

// Problem is one MPC instance: a Plant reference, the tagged LP variable/row
// layout from spec.md §3, and the mutable x0 that update_x0 refreshes every
// tick. Everything else (coefficients, costs, non-x0-dependent bounds) is
// fixed at Build time so the basis found by Warmup survives every later
// UpdateX0 call.
type Problem struct {
	Plant *dyn.Plant
	LP    *simplex.Problem

	N, M, H, P int
	InputBounds  []Bound
	InputRateMax []float64 // len M; negative or non-finite = no rate limit
	StateWeight  []float64
	StateBounds  []Bound
	Cost         CostModel

	x0 []float64

	// tagged indices, spec.md §3.
	VU      int // first of M*(P+1) input columns
	VAbsU   int // first of M*(P+1) |U| columns, -1 if unused
	VNinfX  int // first of H state-infinity-norm columns (Z_1..Z_H)
	VB      int // first of obstacle binary columns, -1 if unused
	IDDeltaU    int // first input-rate-link row, -1 if none
	IDNorm      int // first of the 2*H*N norm-constraint rows
	IDAbsU      int // first of the 2*M*(P+1) |U| bracket rows, -1 if unused
	IDStateBnds int // first of the H*N state-box rows
	IDObstacle  int // first obstacle row, -1 if unused

	nDeltaURows int
	weightZero  []bool // len N; true where StateWeight[k]==0

	cumABd []*mat.Dense // cumulative sums of ABd[0..k], len H

	EnableObstacles  bool
	maxObstacles     int
	nextObstacle     int
	obstacleGeometry []obstacleGeometry
}

// Options configures the optional, experimental obstacle/BIG-M block
// (spec.md §4.C: "present and not required for a correct core"). Zero value
// disables it entirely — no obstacle columns or rows are ever allocated
// unless a caller opts in explicitly.
type Options struct {
	EnableObstacles bool
	MaxObstacles    int // number of obstacle slots reserved across all H steps
}

// Build decodes a JSON model (spec.md §6) and constructs the full LP: plant,
// variables, bounds, rate/norm/state-box rows, and cost, ready for Warmup.
func Build(jsonModel []byte) (*Problem, error) {
	return BuildWithOptions(jsonModel, Options{})
}

// BuildWithOptions is Build plus the obstacle/BIG-M block reservation.
func BuildWithOptions(jsonModel []byte, opts Options) (*Problem, error) {
	c, err := ParseConfig(jsonModel)
	if err != nil {
		return nil, err
	}
	plant := c.buildPlant()
	pb := &Problem{
		Plant:           plant,
		N:               c.StateNum,
		M:               c.InputNum,
		H:               c.LenHorizon,
		P:               c.LenCtrl,
		InputBounds:     boundsOf(c.InputBounds),
		InputRateMax:    append([]float64(nil), c.InputRateMax...),
		StateWeight:     append([]float64(nil), c.StateWeight...),
		StateBounds:     boundsOf(c.StateBounds),
		Cost:            c.costModel(),
		x0:              make([]float64, c.StateNum),
		EnableObstacles: opts.EnableObstacles && opts.MaxObstacles > 0,
		maxObstacles:    opts.MaxObstacles,
	}
	pb.build()
	pb.UpdateX0(c.StateInit)
	return pb, nil
}

// useAbs reports whether the cost model references |U|, which gates whether
// the |U| columns and bracket rows exist at all.
func (p *Problem) useAbs() bool {
	_, ok := p.Cost.(MinStateInputNorms)
	return ok
}

func (p *Problem) build() {
	n, m, h, pp := p.N, p.M, p.H, p.P

	p.weightZero = make([]bool, n)
	for k, w := range p.StateWeight {
		p.weightZero[k] = w == 0
	}
	p.cumABd = cumulativeSums(p.Plant.ABd, n, m)

	// --- column layout ---
	nU := m * (pp + 1)
	nAbs := 0
	if p.useAbs() {
		nAbs = nU
	}
	nZ := h
	nB := 0
	if p.EnableObstacles {
		nB = p.maxObstacles * n * h // one binary per (obstacle, dimension, step)
	}
	nCols := nU + nAbs + nZ + nB

	p.VU = 0
	p.VAbsU = -1
	if nAbs > 0 {
		p.VAbsU = nU
	}
	p.VNinfX = nU + nAbs
	p.VB = -1
	if nB > 0 {
		p.VB = nU + nAbs + nZ
	}

	// --- row layout ---
	nFiniteRate := 0
	for _, r := range p.InputRateMax {
		if isFinite(r) && r >= 0 {
			nFiniteRate++
		}
	}
	p.nDeltaURows = 0
	if pp > 0 {
		p.nDeltaURows = nFiniteRate * pp
	}
	nNormRows := 2 * h * n
	nAbsRows := 0
	if nAbs > 0 {
		nAbsRows = 2 * nU
	}
	nStateBndRows := h * n

	p.IDDeltaU = -1
	row := 0
	if p.nDeltaURows > 0 {
		p.IDDeltaU = row
	}
	row += p.nDeltaURows
	p.IDNorm = row
	row += nNormRows
	p.IDAbsU = -1
	if nAbsRows > 0 {
		p.IDAbsU = row
	}
	row += nAbsRows
	p.IDStateBnds = row
	row += nStateBndRows
	nObstacleRows := 0
	if p.EnableObstacles {
		nObstacleRows = p.maxObstacles * (2*n + 1) * h
	}
	p.IDObstacle = -1
	if nObstacleRows > 0 {
		p.IDObstacle = row
	}
	row += nObstacleRows
	nRows := row

	p.LP = simplex.NewProblem(nRows, nCols)

	p.setColumnBoundsAndCost()
	p.buildRateRows()
	p.buildAbsBracketRows()
	p.buildNormAndStateBoxCoefficients()
	if p.EnableObstacles {
		p.reserveObstacleColumns()
	}
}

// colU returns the column index of U_j(i).
func (p *Problem) colU(i, j int) int { return p.VU + i*p.M + j }

// colAbsU returns the column index of |U_j(i)|; panics if the cost model
// does not use input-absolute-value terms.
func (p *Problem) colAbsU(i, j int) int {
	if p.VAbsU < 0 {
		chk.Panic("mpc: colAbsU called but cost model has no |U| terms")
	}
	return p.VAbsU + i*p.M + j
}

// colZ returns the column index of Z_i, i in [1,H].
func (p *Problem) colZ(i int) int { return p.VNinfX + i - 1 }

func (p *Problem) setColumnBoundsAndCost() {
	pp := p.P
	for i := 0; i <= pp; i++ {
		for j := 0; j < p.M; j++ {
			p.LP.SetColBound(p.colU(i, j), simplex.BoundFromPair(p.InputBounds[j].Lo, p.InputBounds[j].Up))
		}
	}
	if p.VAbsU >= 0 {
		for i := 0; i <= pp; i++ {
			for j := 0; j < p.M; j++ {
				p.LP.SetColBound(p.colAbsU(i, j), simplex.LowerBound(0))
			}
		}
	}
	for i := 1; i <= p.H; i++ {
		p.LP.SetColBound(p.colZ(i), simplex.LowerBound(0))
	}

	switch c := p.Cost.(type) {
	case MinStepsToZero:
		base := c.Coef
		if base < 1 {
			base = 1
		}
		mult := 1.0
		for i := 1; i <= p.H; i++ {
			p.LP.SetCost(p.colZ(i), mult)
			mult *= base
		}
	case MinStateInputNorms:
		base := c.Coef
		if base < 1 {
			base = 1
		}
		mult := 1.0
		for i := 1; i <= p.H; i++ {
			p.LP.SetCost(p.colZ(i), mult)
			mult *= base
		}
		for i := 0; i <= pp; i++ {
			for j := 0; j < p.M; j++ {
				p.LP.SetCost(p.colAbsU(i, j), c.InputWeight[j])
			}
		}
	}
}

// buildRateRows adds, for each finite-rate input j, p rows linking
// successive U_j(i), U_j(i+1) for i=0..p-1 (spec.md §4.C: "p=0 yields ... no
// rate rows").
func (p *Problem) buildRateRows() {
	if p.IDDeltaU < 0 {
		return
	}
	row := p.IDDeltaU
	for j := 0; j < p.M; j++ {
		r := p.InputRateMax[j]
		if !isFinite(r) || r < 0 {
			continue
		}
		for i := 0; i < p.P; i++ {
			p.LP.SetCoef(row, p.colU(i+1, j), 1)
			p.LP.SetCoef(row, p.colU(i, j), -1)
			p.LP.SetRowBound(row, simplex.DoubleBound(-r, r))
			row++
		}
	}
}

// buildAbsBracketRows adds, for each (i,j), the two rows bracketing
// |U_j(i)|: U-|U|<=0 and U+|U|>=0. These never change after Build.
func (p *Problem) buildAbsBracketRows() {
	if p.IDAbsU < 0 {
		return
	}
	row := p.IDAbsU
	pp := p.P
	for i := 0; i <= pp; i++ {
		for j := 0; j < p.M; j++ {
			u, au := p.colU(i, j), p.colAbsU(i, j)
			p.LP.SetCoef(row, u, 1)
			p.LP.SetCoef(row, au, -1)
			p.LP.SetRowBound(row, simplex.UpperBound(0))
			row++

			p.LP.SetCoef(row, u, 1)
			p.LP.SetCoef(row, au, 1)
			p.LP.SetRowBound(row, simplex.LowerBound(0))
			row++
		}
	}
}

// aCoef returns a_ik(t) = coefficient of U_j(t) (all j) in the linear map
// from the stacked control vector to the forced component k of X(i):
// block(t) = ABd[i-1-t] for t < min(i,P); block(t) = cumABd[i-P-1] for
// t==P and i>P (the held-input accumulation, spec.md §4.C); zero otherwise.
func (p *Problem) aCoef(i, k, t int) []float64 {
	out := make([]float64, p.M)
	switch {
	case t < p.P && t < i:
		block := p.Plant.ABd[i-1-t]
		for j := 0; j < p.M; j++ {
			out[j] = block.At(k, j)
		}
	case t == p.P && i > p.P:
		block := p.cumABd[i-p.P-1]
		for j := 0; j < p.M; j++ {
			out[j] = block.At(k, j)
		}
	}
	return out
}

// buildNormAndStateBoxCoefficients fills the (x0-independent) coefficients
// of the norm-constraint and state-box rows: the a_ik block on the U
// columns, and (for norm rows) the ±1/w_k coefficient on Z_i. Row bounds
// (the x0-dependent RHS) are left to UpdateX0.
func (p *Problem) buildNormAndStateBoxCoefficients() {
	for i := 1; i <= p.H; i++ {
		rowUp := p.IDNorm + 2*(i-1)*p.N
		rowLo := rowUp + p.N
		rowBox := p.IDStateBnds + (i-1)*p.N
		for k := 0; k < p.N; k++ {
			for t := 0; t <= p.P; t++ {
				coefs := p.aCoef(i, k, t)
				for j := 0; j < p.M; j++ {
					if coefs[j] == 0 {
						continue
					}
					p.LP.SetCoef(rowUp+k, p.colU(t, j), coefs[j])
					p.LP.SetCoef(rowLo+k, p.colU(t, j), coefs[j])
					p.LP.SetCoef(rowBox+k, p.colU(t, j), coefs[j])
				}
			}
			if !p.weightZero[k] {
				invW := 1 / p.StateWeight[k]
				p.LP.SetCoef(rowUp+k, p.colZ(i), -invW)
				p.LP.SetCoef(rowLo+k, p.colZ(i), invW)
			}
			// w_k==0: placeholder Z coefficient of 0, spec.md §4.C.
		}
	}
}

// cumulativeSums returns cum[k] = ABd[0] + ABd[1] + ... + ABd[k].
func cumulativeSums(abd []*mat.Dense, n, m int) []*mat.Dense {
	out := make([]*mat.Dense, len(abd))
	sum := mat.NewDense(n, m, nil)
	for k, blk := range abd {
		sum2 := mat.NewDense(n, m, nil)
		sum2.Add(sum, blk)
		out[k] = sum2
		sum = sum2
	}
	return out
}
