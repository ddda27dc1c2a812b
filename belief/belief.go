package belief

import (
	"fmt"

	"github.com/milosgajdos/go-bsp/matrix"
	"gonum.org/v1/gonum/mat"
)

// Dim returns the length of packed belief vector of nx-dimensional state:
// nx mean values followed by the lower triangle of the covariance square root.
func Dim(nx int) int {
	return nx + matrix.TriDim(nx)
}

// Belief is a Gaussian belief about the system state
type Belief struct {
	// mean is state mean
	mean *mat.VecDense
	// sqrt is symmetric square root of state covariance
	sqrt *mat.SymDense
}

// New returns belief given its mean and covariance.
// It returns error if dimensions of mean and cov do not match or if cov square root can not be computed.
func New(mean mat.Vector, cov mat.Symmetric) (*Belief, error) {
	if mean == nil || cov == nil {
		return nil, fmt.Errorf("invalid belief: mean %v, cov %v", mean, cov)
	}

	sqrt, err := matrix.Sqrt(cov)
	if err != nil {
		return nil, fmt.Errorf("failed to compute covariance square root: %v", err)
	}

	return NewWithSqrt(mean, sqrt)
}

// NewWithSqrt returns belief given its mean and symmetric square root of its covariance.
// It returns error if dimensions of mean and sqrt do not match.
func NewWithSqrt(mean mat.Vector, sqrt mat.Symmetric) (*Belief, error) {
	if mean == nil || sqrt == nil {
		return nil, fmt.Errorf("invalid belief: mean %v, sqrt %v", mean, sqrt)
	}

	if mean.Len() != sqrt.SymmetricDim() {
		return nil, fmt.Errorf("invalid dimensions. Mean: %d, Cov: %d x %d", mean.Len(), sqrt.SymmetricDim(), sqrt.SymmetricDim())
	}

	m := &mat.VecDense{}
	m.CloneFromVec(mean)

	s := mat.NewSymDense(sqrt.SymmetricDim(), nil)
	s.CopySym(sqrt)

	return &Belief{
		mean: m,
		sqrt: s,
	}, nil
}

// FromVec unpacks belief of nx-dimensional state from packed belief vector v.
// It returns error if the length of v does not match Dim(nx).
func FromVec(nx int, v []float64) (*Belief, error) {
	if nx <= 0 || len(v) != Dim(nx) {
		return nil, fmt.Errorf("invalid belief vector length %d for state dimension %d", len(v), nx)
	}

	mean := mat.NewVecDense(nx, nil)
	for i := 0; i < nx; i++ {
		mean.SetVec(i, v[i])
	}

	return &Belief{
		mean: mean,
		sqrt: matrix.UnpackLower(nx, v[nx:]),
	}, nil
}

// Dim returns state dimension
func (b *Belief) Dim() int {
	return b.mean.Len()
}

// Mean returns belief mean
func (b *Belief) Mean() mat.Vector {
	m := &mat.VecDense{}
	m.CloneFromVec(b.mean)

	return m
}

// Cov returns belief covariance
func (b *Belief) Cov() mat.Symmetric {
	cov := mat.NewSymDense(b.sqrt.SymmetricDim(), nil)
	cov.SymOuterK(1.0, b.sqrt)

	return cov
}

// SqrtCov returns symmetric square root of belief covariance
func (b *Belief) SqrtCov() mat.Symmetric {
	s := mat.NewSymDense(b.sqrt.SymmetricDim(), nil)
	s.CopySym(b.sqrt)

	return s
}

// Vec packs belief into dst and returns it.
// If dst is nil a new slice of length Dim(b.Dim()) is allocated.
// It panics if dst is not nil and its length is different from the belief vector length.
func (b *Belief) Vec(dst []float64) []float64 {
	nx := b.mean.Len()
	if dst == nil {
		dst = make([]float64, Dim(nx))
	}

	if len(dst) != Dim(nx) {
		panic(mat.ErrShape)
	}

	for i := 0; i < nx; i++ {
		dst[i] = b.mean.AtVec(i)
	}
	matrix.PackLower(dst[nx:], b.sqrt)

	return dst
}

// Trace returns the trace of belief covariance.
func (b *Belief) Trace() float64 {
	return mat.Trace(b.Cov())
}

// String implements the Stringer interface.
func (b *Belief) String() string {
	return fmt.Sprintf("Belief{\nMean=%v\nCov=%v\n}",
		mat.Formatted(b.mean.T(), mat.Prefix("     "), mat.Squeeze()),
		mat.Formatted(b.Cov(), mat.Prefix("    "), mat.Squeeze()))
}
