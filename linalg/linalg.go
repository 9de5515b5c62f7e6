// Package linalg is the dense-numerics façade used by dyn. It narrows the
// plant model down to a handful of calls into gonum.org/v1/gonum/mat, the
// same role gofem/shp plays over gosl/la; mpc uses gonum/mat directly and
// simplex does not use it at all.
package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// GEMM computes dst = a*b, allocating dst if it is nil.
func GEMM(dst *mat.Dense, a, b mat.Matrix) *mat.Dense {
	ar, _ := a.Dims()
	_, bc := b.Dims()
	if dst == nil {
		dst = mat.NewDense(ar, bc, nil)
	}
	dst.Mul(a, b)
	return dst
}

// GEMV computes dst = a*x, allocating dst if it is nil.
func GEMV(dst *mat.VecDense, a mat.Matrix, x mat.Vector) *mat.VecDense {
	ar, _ := a.Dims()
	if dst == nil {
		dst = mat.NewVecDense(ar, nil)
	}
	dst.MulVec(a, x)
	return dst
}

// TriMulVec computes dst = v*x where v is triangular, allocating dst if nil.
func TriMulVec(dst *mat.VecDense, v *mat.TriDense, x mat.Vector) *mat.VecDense {
	n, _ := v.Dims()
	if dst == nil {
		dst = mat.NewVecDense(n, nil)
	}
	dst.MulVec(v, x)
	return dst
}

// TriSolveVec solves v*dst = b for dst, where v is triangular.
func TriSolveVec(dst *mat.VecDense, v *mat.TriDense, b mat.Vector) error {
	return dst.SolveVec(v, b)
}

// Diag builds a diagonal matrix from d.
func Diag(d []float64) *mat.DiagDense {
	return mat.NewDiagDense(len(d), append([]float64(nil), d...))
}

// FrobeniusDiff returns ||a-b||_F, used by tests checking the Ad[k]=Ad[0]^(k+1)
// invariant within tolerance.
func FrobeniusDiff(a, b *mat.Dense) float64 {
	var diff mat.Dense
	diff.Sub(a, b)
	r, c := diff.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := diff.At(i, j)
			sum += v * v
		}
	}
	return math.Sqrt(sum)
}

// CloneDense returns a deep copy of m.
func CloneDense(m *mat.Dense) *mat.Dense {
	var c mat.Dense
	c.CloneFrom(m)
	return &c
}
