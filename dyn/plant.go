// Package dyn holds the plant model: continuous-to-discrete LTI
// discretization and the Ad^k / (Ad^k * Bd) power caches consumed by the
// mpc LP builder on every tick.
package dyn

import (
	"math"

	"github.com/cpmech/gosl/chk"
	"gonum.org/v1/gonum/mat"

	"github.com/cpmech/mpcctl/linalg"
)

// eigTol is the magnitude below which an eigenvalue is treated as zero for
// the purposes of the f(λ) = (e^{τλ}-1)/λ continuous-to-discrete B map.
const eigTol = 1e-6

// Plant is the continuous/discrete LTI model. It is immutable after Discretize
// or InitFromDiscrete: later ticks only ever mutate the owning mpc.Problem's x0.
type Plant struct {
	N, M int     // state and input dimensions
	Tau  float64 // sampling interval
	H    int     // horizon, in sampling intervals

	HasEig bool
	A      *mat.Dense    // continuous A, reconstructed from V,D when HasEig
	EigV   *mat.TriDense // unit-upper-triangular eigenvector basis
	EigD   []float64     // eigenvalues of A
	B      *mat.Dense    // continuous B (n x m), only set when HasEig

	Ad  []*mat.Dense // Ad[0]=Ad, Ad[k] = Ad^(k+1), len H
	ABd []*mat.Dense // ABd[0]=Bd, ABd[k] = Ad^k * Bd, len H
}

// InitFromEigen records D, V, B and reconstructs A = V*diag(D)*V^-1 using
// triangular multiply/solve. It does not precompute discretization; call
// Discretize afterwards.
func InitFromEigen(n, m int, d []float64, v *mat.TriDense, b *mat.Dense) *Plant {
	if len(d) != n {
		chk.Panic("dyn: InitFromEigen: len(D)=%d does not match n=%d", len(d), n)
	}
	vr, vc := v.Dims()
	if vr != n || vc != n {
		chk.Panic("dyn: InitFromEigen: V has shape %dx%d, expected %dx%d", vr, vc, n, n)
	}
	p := &Plant{N: n, M: m, HasEig: true, EigV: v, EigD: append([]float64(nil), d...), B: b}

	// A = V * diag(D) * V^-1, computed column by column: A*e_j = V*(D*(V^-1*e_j))
	p.A = mat.NewDense(n, n, nil)
	vinvCol := mat.NewVecDense(n, nil)
	for j := 0; j < n; j++ {
		ej := mat.NewVecDense(n, nil)
		ej.SetVec(j, 1)
		if err := linalg.TriSolveVec(vinvCol, v, ej); err != nil {
			chk.Panic("dyn: InitFromEigen: V is singular: %v", err)
		}
		scaled := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			scaled.SetVec(i, d[i]*vinvCol.AtVec(i))
		}
		col := linalg.TriMulVec(nil, v, scaled)
		for i := 0; i < n; i++ {
			p.A.Set(i, j, col.AtVec(i))
		}
	}
	return p
}

// InitFromDiscrete builds a plant from n, m, the horizon H, Ad[0] (ad0,
// row-major n*n) and Bd (bd0, row-major n*m), as decoded from the JSON model
// by mpc, and rebuilds only the power caches.
func InitFromDiscrete(n, m, horizon int, ad0, bd0 []float64) *Plant {
	if len(ad0) != n*n {
		chk.Panic("dyn: InitFromDiscrete: len(Ad)=%d, expected %d", len(ad0), n*n)
	}
	if len(bd0) != n*m {
		chk.Panic("dyn: InitFromDiscrete: len(Bd)=%d, expected %d", len(bd0), n*m)
	}
	p := &Plant{N: n, M: m, H: horizon}
	ad := mat.NewDense(n, n, append([]float64(nil), ad0...))
	bd := mat.NewDense(n, m, append([]float64(nil), bd0...))
	p.populatePowers(ad, bd)
	return p
}

// Discretize requires the eigendecomposition to be present (InitFromEigen
// must have been called) and computes Ad[0] and Bd from it, then populates
// the power caches for k=1..H-1.
func (p *Plant) Discretize(tau float64, horizon int) {
	if !p.HasEig {
		chk.Panic("dyn: Discretize: plant has no eigendecomposition; call InitFromEigen first")
	}
	p.Tau = tau
	p.H = horizon

	n := p.N
	expTauD := make([]float64, n)
	fD := make([]float64, n)
	for i, lam := range p.EigD {
		expTauD[i] = math.Exp(tau * lam)
		if abs(lam) >= eigTol {
			fD[i] = (math.Exp(tau*lam) - 1) / lam
		} else {
			fD[i] = tau
		}
	}

	ad := conjugateDiag(p.EigV, expTauD)
	bd := conjugateApply(p.EigV, fD, p.B)

	p.populatePowers(ad, bd)
}

// conjugateDiag computes V * diag(d) * V^-1.
func conjugateDiag(v *mat.TriDense, d []float64) *mat.Dense {
	n, _ := v.Dims()
	out := mat.NewDense(n, n, nil)
	vinvCol := mat.NewVecDense(n, nil)
	for j := 0; j < n; j++ {
		ej := mat.NewVecDense(n, nil)
		ej.SetVec(j, 1)
		if err := linalg.TriSolveVec(vinvCol, v, ej); err != nil {
			chk.Panic("dyn: conjugateDiag: V is singular: %v", err)
		}
		scaled := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			scaled.SetVec(i, d[i]*vinvCol.AtVec(i))
		}
		col := linalg.TriMulVec(nil, v, scaled)
		for i := 0; i < n; i++ {
			out.Set(i, j, col.AtVec(i))
		}
	}
	return out
}

// conjugateApply computes V * diag(f) * V^-1 * b.
func conjugateApply(v *mat.TriDense, f []float64, b *mat.Dense) *mat.Dense {
	n, m := b.Dims()
	out := mat.NewDense(n, m, nil)
	vinvCol := mat.NewVecDense(n, nil)
	for j := 0; j < m; j++ {
		col := mat.NewVecDense(n, mat.Col(nil, j, b))
		if err := linalg.TriSolveVec(vinvCol, v, col); err != nil {
			chk.Panic("dyn: conjugateApply: V is singular: %v", err)
		}
		scaled := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			scaled.SetVec(i, f[i]*vinvCol.AtVec(i))
		}
		res := linalg.TriMulVec(nil, v, scaled)
		for i := 0; i < n; i++ {
			out.Set(i, j, res.AtVec(i))
		}
	}
	return out
}

// populatePowers fills Ad[k]=Ad^(k+1) and ABd[k]=Ad^k*Bd for k=0..H-1,
// preserving the invariant Ad[0]=Ad, Ad[k]=Ad*Ad[k-1], ABd[0]=Bd,
// ABd[k]=Ad*ABd[k-1].
func (p *Plant) populatePowers(ad, bd *mat.Dense) {
	p.Ad = make([]*mat.Dense, p.H)
	p.ABd = make([]*mat.Dense, p.H)
	p.Ad[0] = ad
	p.ABd[0] = bd
	for k := 1; k < p.H; k++ {
		p.Ad[k] = linalg.GEMM(nil, ad, p.Ad[k-1])
		p.ABd[k] = linalg.GEMM(nil, ad, p.ABd[k-1])
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
