package dyn

import (
	"testing"

	"github.com/cpmech/gosl/chk"
	"gonum.org/v1/gonum/mat"

	"github.com/cpmech/mpcctl/linalg"
)

func identityTri(n int) *mat.TriDense {
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		data[i*n+i] = 1
	}
	return mat.NewTriDense(n, mat.Upper, data)
}

func Test_discretize_powers(tst *testing.T) {
	n, m := 2, 1
	v := identityTri(n)
	d := []float64{-0.5, 1e-9}
	b := mat.NewDense(n, m, []float64{1, 1})
	p := InitFromEigen(n, m, d, v, b)
	p.Discretize(0.1, 5)

	chk.IntAssert(len(p.Ad), 5)
	chk.IntAssert(len(p.ABd), 5)

	// Ad[k] == Ad[0]^(k+1) within 1e-10 Frobenius norm.
	power := linalg.CloneDense(p.Ad[0])
	for k := 0; k < 5; k++ {
		if k > 0 {
			power = linalg.GEMM(nil, p.Ad[0], power)
		}
		diff := linalg.FrobeniusDiff(p.Ad[k], power)
		if diff > 1e-10 {
			tst.Errorf("Ad[%d] differs from Ad[0]^%d by %v", k, k+1, diff)
		}
	}

	// ABd[k] == Ad[0]*ABd[k-1] for k>=1.
	for k := 1; k < 5; k++ {
		want := linalg.GEMM(nil, p.Ad[0], p.ABd[k-1])
		diff := linalg.FrobeniusDiff(p.ABd[k], want)
		if diff > 1e-10 {
			tst.Errorf("ABd[%d] differs from Ad[0]*ABd[%d] by %v", k, k-1, diff)
		}
	}
}

func Test_discretize_small_eigenvalue_uses_tau(tst *testing.T) {
	// λ=0 and λ=1e-9 both fall below eigTol and must use f(λ)=τ.
	n, m := 2, 1
	v := identityTri(n)
	d := []float64{0, 1e-9}
	b := mat.NewDense(n, m, []float64{2, 3})
	p := InitFromEigen(n, m, d, v, b)
	tau := 0.25
	p.Discretize(tau, 1)

	// With V=I, Bd is diagonal with f(λ_i)*B_i on the diagonal action;
	// since B is a column vector here, Bd_i = f(λ_i) * B_i.
	got0 := p.ABd[0].At(0, 0)
	got1 := p.ABd[0].At(1, 0)
	if diff := abs(got0 - tau*2); diff > 1e-12 {
		tst.Errorf("Bd[0]=%v, want %v", got0, tau*2)
	}
	if diff := abs(got1 - tau*3); diff > 1e-12 {
		tst.Errorf("Bd[1]=%v, want %v", got1, tau*3)
	}
}

func Test_init_from_discrete(tst *testing.T) {
	n, m, h := 1, 1, 3
	p := InitFromDiscrete(n, m, h, []float64{1.0}, []float64{1.0})
	chk.IntAssert(len(p.Ad), h)
	for k := 0; k < h; k++ {
		if p.Ad[k].At(0, 0) != 1.0 {
			tst.Errorf("Ad[%d]=%v, want 1.0 (single integrator)", k, p.Ad[k].At(0, 0))
		}
		if p.ABd[k].At(0, 0) != 1.0 {
			tst.Errorf("ABd[%d]=%v, want 1.0", k, p.ABd[k].At(0, 0))
		}
	}
}

func Test_state_dynamics_single_integrator(tst *testing.T) {
	p := InitFromDiscrete(1, 1, 3, []float64{1.0}, []float64{1.0})
	u := mat.NewDense(1, 3, []float64{-1, -1, -1})
	x := p.StateDynamics([]float64{2}, u)
	chk.Vector(tst, "x", 1e-15, mat.Row(nil, 0, x), []float64{1, 0, -1})
}
