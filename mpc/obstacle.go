package mpc

import (
	"github.com/cpmech/gosl/chk"

	"github.com/cpmech/mpcctl/simplex"
)

// bigM is the penalty magnitude used in the obstacle/BIG-M rows: large
// enough to make a disabled side of the disjunction vacuous for any input
// the box bounds allow, without resorting to an unbounded coefficient.
const bigM = 1e6

// colB returns the binary column for obstacle slot, dimension k, step i
// (i in [1,H]).
func (p *Problem) colB(slot, k, i int) int {
	if p.VB < 0 {
		chk.Panic("mpc: colB called but obstacles are not enabled")
	}
	return p.VB + slot*p.N*p.H + k*p.H + (i - 1)
}

// reserveObstacleColumns gives every obstacle binary column a {0,1} bound
// and zero cost; AddObstacle later fills in the per-obstacle geometry.
func (p *Problem) reserveObstacleColumns() {
	for slot := 0; slot < p.maxObstacles; slot++ {
		for k := 0; k < p.N; k++ {
			for i := 1; i <= p.H; i++ {
				p.LP.SetColBound(p.colB(slot, k, i), simplex.DoubleBound(0, 1))
			}
		}
	}
}

// AddObstacle activates the next reserved obstacle slot as an axis-aligned
// box [center-size/2, center+size/2] the predicted state must leave on at
// least one dimension, at every step i=1..H (spec.md §4.C, "present,
// experimental, not required for a correct core"). It panics if obstacles
// were not enabled at Build time or all slots are already used.
//
// For each step i and dimension k, two BIG-M rows force the predicted
// component X(i)_k below center-size/2 OR above center+size/2 whenever the
// corresponding binary B_k(i) is 0 OR 1 respectively; a per-step row caps
// the sum of binaries at N-1, requiring at least one dimension to be clear.
func (p *Problem) AddObstacle(center, size []float64) {
	if !p.EnableObstacles {
		chk.Panic("mpc: AddObstacle called but EnableObstacles is false")
	}
	if p.nextObstacle >= p.maxObstacles {
		chk.Panic("mpc: AddObstacle: all %d reserved obstacle slots are in use", p.maxObstacles)
	}
	if len(center) != p.N || len(size) != p.N {
		chk.Panic("mpc: AddObstacle: center/size must have length %d", p.N)
	}
	slot := p.nextObstacle
	p.nextObstacle++

	sumRowBase := p.IDObstacle + slot*p.H
	bigMRowBase := p.IDObstacle + p.maxObstacles*p.H + slot*2*p.N*p.H

	for i := 1; i <= p.H; i++ {
		for k := 0; k < p.N; k++ {
			b := p.colB(slot, k, i)

			// below row: a_ik*U <= lo - y_ik + bigM*(1-B)  <=>
			// a_ik*U + bigM*B <= lo - y_ik + bigM   (x0-dependent RHS, refreshed below)
			rowBelow := bigMRowBase + 2*((i-1)*p.N+k)
			rowAbove := rowBelow + 1
			p.copyNormCoefficients(i, k, rowBelow)
			p.copyNormCoefficients(i, k, rowAbove)
			p.LP.SetCoef(rowBelow, b, bigM)
			p.LP.SetCoef(rowAbove, b, -bigM)
		}
		sumRow := sumRowBase + (i - 1)
		for k := 0; k < p.N; k++ {
			p.LP.SetCoef(sumRow, p.colB(slot, k, i), 1)
		}
		p.LP.SetRowBound(sumRow, simplex.UpperBound(float64(p.N-1)))
	}

	p.obstacleGeometry = append(p.obstacleGeometry, obstacleGeometry{slot: slot, center: append([]float64(nil), center...), size: append([]float64(nil), size...)})
	p.refreshObstacleRows()
}

type obstacleGeometry struct {
	slot   int
	center []float64
	size   []float64
}

// copyNormCoefficients copies the a_ik coefficients already placed on the
// norm-constraint row (i,k) onto a BIG-M row for the same step/dimension,
// so the obstacle rows share the same U-dependence without rebuilding it.
func (p *Problem) copyNormCoefficients(i, k, destRow int) {
	rowUp := p.IDNorm + 2*(i-1)*p.N + k
	for t := 0; t <= p.P; t++ {
		for j := 0; j < p.M; j++ {
			c := p.LP.Coef(rowUp, p.colU(t, j))
			if c != 0 {
				p.LP.SetCoef(destRow, p.colU(t, j), c)
			}
		}
	}
}

// refreshObstacleRows recomputes the x0-dependent RHS of every active
// obstacle's BIG-M rows, mirroring UpdateX0's treatment of the norm rows.
// Called after AddObstacle and from UpdateX0 once any obstacle is active.
func (p *Problem) refreshObstacleRows() {
	bigMRowBase := p.IDObstacle + p.maxObstacles*p.H
	for _, g := range p.obstacleGeometry {
		for i := 1; i <= p.H; i++ {
			y := freeEvolution(p.Plant.Ad[i-1], p.x0)
			for k := 0; k < p.N; k++ {
				lo := g.center[k] - g.size[k]/2
				up := g.center[k] + g.size[k]/2
				rowBelow := bigMRowBase + g.slot*2*p.N*p.H + 2*((i-1)*p.N+k)
				rowAbove := rowBelow + 1
				p.LP.SetRowBound(rowBelow, simplex.UpperBound(lo-y[k]+bigM))
				p.LP.SetRowBound(rowAbove, simplex.LowerBound(up-y[k]-bigM))
			}
		}
	}
}
