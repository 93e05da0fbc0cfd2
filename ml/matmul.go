// matmul.go - Matrix-Multiplikation ueber gonum BLAS
//
// Dieses Modul enthaelt:
// - Matmul: x [..., M, K] @ w [K, N]
// - MatmulT: x [..., M, K] @ w^T mit w [N, K] (PyTorch-Linear-Layout)
// - BatchMatmul: [B, M, K] @ [B, K, N] (optional mit transponiertem b)
package ml

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

func general(data []float32, rows, cols int) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Data: data, Stride: cols}
}

// Matmul multipliziert die letzte Achse von x mit der 2D-Matrix w [K, N].
func Matmul(x, w *Array) *Array {
	return matmul2d(x, w, blas.NoTrans)
}

// MatmulT multipliziert die letzte Achse von x mit w^T, w hat die Form [N, K].
func MatmulT(x, w *Array) *Array {
	return matmul2d(x, w, blas.Trans)
}

func matmul2d(x, w *Array, t blas.Transpose) *Array {
	if w.NDim() != 2 || x.NDim() < 1 {
		panic(fmt.Sprintf("ml: matmul %v x %v", x.shape, w.shape))
	}

	k, n := w.shape[0], w.shape[1]
	if t == blas.Trans {
		k, n = n, k
	}
	if x.Dim(-1) != k {
		panic(fmt.Sprintf("ml: matmul inner dimension mismatch %v x %v", x.shape, w.shape))
	}

	shape := append(x.Shape()[:x.NDim()-1], n)
	out := Zeros(shape...)
	if k == 0 || n == 0 || x.Size() == 0 {
		return out
	}
	m := x.Size() / k

	blas32.Gemm(blas.NoTrans, t, 1,
		general(x.data, m, k),
		general(w.data, w.shape[0], w.shape[1]),
		0, general(out.data, m, n))
	return out
}

// BatchMatmul multipliziert je Batch a [B, M, K] mit b [B, K, N]
// oder, falls transB gesetzt ist, mit b^T fuer b [B, N, K].
func BatchMatmul(a, b *Array, transB bool) *Array {
	if a.NDim() != 3 || b.NDim() != 3 || a.shape[0] != b.shape[0] {
		panic(fmt.Sprintf("ml: batch matmul %v x %v", a.shape, b.shape))
	}

	batch, m, k := a.shape[0], a.shape[1], a.shape[2]
	t, bk, n := blas.NoTrans, b.shape[1], b.shape[2]
	if transB {
		t, bk, n = blas.Trans, b.shape[2], b.shape[1]
	}
	if bk != k {
		panic(fmt.Sprintf("ml: batch matmul inner dimension mismatch %v x %v", a.shape, b.shape))
	}

	out := Zeros(batch, m, n)
	if m == 0 || n == 0 || k == 0 {
		return out
	}

	as, bs, cs := m*k, b.shape[1]*b.shape[2], m*n
	for i := range batch {
		blas32.Gemm(blas.NoTrans, t, 1,
			general(a.data[i*as:(i+1)*as], m, k),
			general(b.data[i*bs:(i+1)*bs], b.shape[1], b.shape[2]),
			0, general(out.data[i*cs:(i+1)*cs], m, n))
	}
	return out
}
