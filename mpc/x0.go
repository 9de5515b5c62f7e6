package mpc

import (
	"gonum.org/v1/gonum/mat"

	"github.com/cpmech/mpcctl/simplex"
)

// UpdateX0 is the hot-path operation (spec.md §4.C.1) called on every
// control tick: it recomputes the free evolution y_i = Ad^i*x0 for
// i=1..H and refreshes only row bounds. No column is added, removed, or
// re-costed, so a basis found against the previous x0 stays a valid warm
// start for the dual simplex.
func (p *Problem) UpdateX0(x0 []float64) {
	copy(p.x0, x0)
	for i := 1; i <= p.H; i++ {
		y := freeEvolution(p.Plant.Ad[i-1], x0)
		rowUp := p.IDNorm + 2*(i-1)*p.N
		rowLo := rowUp + p.N
		rowBox := p.IDStateBnds + (i-1)*p.N
		for k := 0; k < p.N; k++ {
			if p.weightZero[k] {
				p.LP.SetRowBound(rowUp+k, simplex.UpperBound(bigSentinel))
				p.LP.SetRowBound(rowLo+k, simplex.UpperBound(bigSentinel))
			} else {
				p.LP.SetRowBound(rowUp+k, simplex.UpperBound(-y[k]))
				p.LP.SetRowBound(rowLo+k, simplex.LowerBound(-y[k]))
			}

			lo := subtractFinite(p.StateBounds[k].Lo, y[k])
			up := subtractFinite(p.StateBounds[k].Up, y[k])
			p.LP.SetRowBound(rowBox+k, simplex.BoundFromPair(lo, up))
		}
	}
	if p.EnableObstacles && len(p.obstacleGeometry) > 0 {
		p.refreshObstacleRows()
	}
}

// freeEvolution computes Ad^i*x0 for the given cached Ad power (n x n) and
// an n-vector x0, returning a plain []float64.
func freeEvolution(adPower mat.Matrix, x0 []float64) []float64 {
	n, _ := adPower.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < n; j++ {
			sum += adPower.At(i, j) * x0[j]
		}
		out[i] = sum
	}
	return out
}

// subtractFinite returns bound-y unless bound is a non-finite sentinel
// (±Inf-equivalent), in which case it is returned unchanged — an infinite
// state bound stays infinite no matter what the free evolution is.
func subtractFinite(bound, y float64) float64 {
	if !isFinite(bound) {
		return bound
	}
	return bound - y
}
