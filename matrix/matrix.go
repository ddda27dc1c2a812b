package matrix

import (
	"fmt"
	"math"

	mx "github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/mat"
)

// TriDim returns the number of elements in the lower triangle of n x n matrix, including diagonal.
func TriDim(n int) int {
	return n * (n + 1) / 2
}

// Eye returns n x n identity matrix.
// It panics if n is not positive.
func Eye(n int) *mat.Dense {
	eye, err := mx.NewDenseValIdentity(n, 1.0)
	if err != nil {
		panic(err)
	}

	return eye
}

// Symmetrize returns symmetric matrix (m + m')/2.
// It panics if m is not square.
func Symmetrize(m mat.Matrix) *mat.SymDense {
	r, c := m.Dims()
	if r != c {
		panic(mat.ErrShape)
	}

	s := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}

	return s
}

// Sqrt returns the symmetric square root S of the symmetric positive semi-definite matrix a so that a = S*S.
// Negative eigenvalues, which appear due to roundoff, are treated as zero.
// It returns error if eigen decomposition of a fails.
func Sqrt(a mat.Symmetric) (*mat.SymDense, error) {
	n := a.SymmetricDim()

	var eig mat.EigenSym
	if ok := eig.Factorize(a, true); !ok {
		return nil, fmt.Errorf("eigen decomposition failed")
	}

	vals := eig.Values(nil)
	vecs := &mat.Dense{}
	eig.VectorsTo(vecs)

	for i := range vals {
		vals[i] = math.Sqrt(math.Max(vals[i], 0))
	}

	// V * diag(sqrt(lambda)) * V'
	vd := mat.NewDense(n, n, nil)
	vd.Mul(vecs, mat.NewDiagDense(n, vals))
	s := &mat.Dense{}
	s.Mul(vd, vecs.T())

	return Symmetrize(s), nil
}

// PackLower stores the lower triangle of s in dst column by column.
// It panics if dst is shorter than TriDim of s.
func PackLower(dst []float64, s mat.Symmetric) {
	n := s.SymmetricDim()
	if len(dst) < TriDim(n) {
		panic(mat.ErrShape)
	}

	k := 0
	for j := 0; j < n; j++ {
		for i := j; i < n; i++ {
			dst[k] = s.At(i, j)
			k++
		}
	}
}

// UnpackLower creates n x n symmetric matrix from its lower triangle stored column by column in v.
// It panics if v is shorter than TriDim(n).
func UnpackLower(n int, v []float64) *mat.SymDense {
	if len(v) < TriDim(n) {
		panic(mat.ErrShape)
	}

	s := mat.NewSymDense(n, nil)
	k := 0
	for j := 0; j < n; j++ {
		for i := j; i < n; i++ {
			s.SetSym(i, j, v[k])
			k++
		}
	}

	return s
}

// IsZero returns true if all elements of m are zero.
func IsZero(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if m.At(i, j) != 0 {
				return false
			}
		}
	}

	return true
}
