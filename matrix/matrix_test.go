package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestTriDim(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(1, TriDim(1))
	assert.Equal(3, TriDim(2))
	assert.Equal(6, TriDim(3))
}

func TestEye(t *testing.T) {
	assert := assert.New(t)

	eye := Eye(3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i == j {
				assert.Equal(1.0, eye.At(i, j))
			} else {
				assert.Equal(0.0, eye.At(i, j))
			}
		}
	}
}

func TestSymmetrize(t *testing.T) {
	assert := assert.New(t)

	m := mat.NewDense(2, 2, []float64{1.0, 2.0, 4.0, 3.0})
	s := Symmetrize(m)
	assert.Equal(3.0, s.At(0, 1))
	assert.Equal(3.0, s.At(1, 0))
	assert.Equal(1.0, s.At(0, 0))

	assert.Panics(func() { Symmetrize(mat.NewDense(2, 3, nil)) })
}

func TestSqrt(t *testing.T) {
	assert := assert.New(t)
	delta := 1e-9

	a := mat.NewSymDense(2, []float64{4.0, 1.0, 1.0, 3.0})
	s, err := Sqrt(a)
	assert.NoError(err)

	ss := &mat.Dense{}
	ss.Mul(s, s)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(a.At(i, j), ss.At(i, j), delta)
		}
	}

	// zero matrix has zero square root
	z, err := Sqrt(mat.NewSymDense(2, nil))
	assert.NoError(err)
	assert.True(IsZero(z))
}

func TestPackUnpackLower(t *testing.T) {
	assert := assert.New(t)

	s := mat.NewSymDense(3, []float64{
		1, 2, 3,
		2, 4, 5,
		3, 5, 6,
	})
	v := make([]float64, TriDim(3))
	PackLower(v, s)
	assert.Equal([]float64{1, 2, 3, 4, 5, 6}, v)

	u := UnpackLower(3, v)
	assert.True(mat.Equal(s, u))

	assert.Panics(func() { PackLower(make([]float64, 2), s) })
	assert.Panics(func() { UnpackLower(3, v[:4]) })
}

func TestIsZero(t *testing.T) {
	assert := assert.New(t)

	assert.True(IsZero(mat.NewDense(2, 2, nil)))
	assert.False(IsZero(mat.NewDense(1, 2, []float64{0, 1e-300})))
}
