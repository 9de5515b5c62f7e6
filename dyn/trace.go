package dyn

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/cpmech/mpcctl/linalg"
)

// Trace is the state/input history of a plant.Simulate run: n x (H+1) states
// from x_0 to x_H, m x H inputs from u_0 to u_{H-1}, and per-step wall time.
type Trace struct {
	N, M, H int
	X       *mat.Dense // n x (H+1)
	U       *mat.Dense // m x H
	Time    []float64  // H-long, seconds spent computing u_i
}

// NewTrace allocates a trace for a plant with state size n, input size m and
// H steps.
func NewTrace(n, m, h int) *Trace {
	return &Trace{N: n, M: m, H: h, X: mat.NewDense(n, h+1, nil), U: mat.NewDense(m, h, nil), Time: make([]float64, h)}
}

// Controller is the capability object that replaces the original function
// pointer control law: Compute returns the k-th input to apply, given the
// trace built so far.
type Controller interface {
	Compute(k int, tr *Trace) ([]float64, error)
}

// ControllerFunc adapts a plain function to the Controller interface.
type ControllerFunc func(k int, tr *Trace) ([]float64, error)

// Compute implements Controller.
func (f ControllerFunc) Compute(k int, tr *Trace) ([]float64, error) { return f(k, tr) }

// Simulate drives the plant p from x0 for t.H steps under ctl, synchronously,
// writing each step's state and input into t. If ctl is nil the input is
// held at zero for every step. Returns the first error a Controller reports.
func (p *Plant) Simulate(x0 []float64, t *Trace, ctl Controller) error {
	setCol(t.X, 0, x0)
	xCur := mat.NewVecDense(p.N, append([]float64(nil), x0...))
	for k := 0; k < t.H; k++ {
		xNext := mat.NewVecDense(p.N, nil)
		linalg.GEMV(xNext, p.Ad[0], xCur)

		if ctl == nil {
			setCol(t.U, k, make([]float64, p.M))
		} else {
			start := time.Now()
			u, err := ctl.Compute(k, t)
			t.Time[k] += time.Since(start).Seconds()
			if err != nil {
				return err
			}
			setCol(t.U, k, u)
			uVec := mat.NewVecDense(p.M, u)
			bu := mat.NewVecDense(p.N, nil)
			linalg.GEMV(bu, p.ABd[0], uVec)
			xNext.AddVec(xNext, bu)
		}
		setCol(t.X, k+1, colOf(xNext))
		xCur = xNext
	}
	return nil
}

// StateDynamics rolls the discrete dynamics forward from x0 for p.H steps
// under the fixed input sequence u (an m x (<=H) matrix of columns u_0, u_1,
// ...). If u has fewer columns than H, the last column is held constant. If
// u is nil, the input is held at zero. The resulting n x H matrix of states
// x_1..x_H is returned.
func (p *Plant) StateDynamics(x0 []float64, u *mat.Dense) *mat.Dense {
	xFull := mat.NewDense(p.N, p.H, nil)
	xCur := mat.NewVecDense(p.N, append([]float64(nil), x0...))
	var uCols int
	if u != nil {
		_, uCols = u.Dims()
	}
	for i := 0; i < p.H; i++ {
		xNext := mat.NewVecDense(p.N, nil)
		linalg.GEMV(xNext, p.Ad[0], xCur)
		if u != nil {
			id := i
			if id >= uCols {
				id = uCols - 1
			}
			uCur := mat.NewVecDense(p.M, mat.Col(nil, id, u))
			bu := mat.NewVecDense(p.N, nil)
			linalg.GEMV(bu, p.ABd[0], uCur)
			xNext.AddVec(xNext, bu)
		}
		xFull.SetCol(i, colOf(xNext))
		xCur = xNext
	}
	return xFull
}

func setCol(m *mat.Dense, j int, v []float64) { m.SetCol(j, v) }

func colOf(v *mat.VecDense) []float64 {
	n := v.Len()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = v.AtVec(i)
	}
	return out
}
