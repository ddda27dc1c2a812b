package sim

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

var (
	x, u, q, r    *mat.VecDense
	A, B, C, M, N *mat.Dense
)

func setup() {
	x = mat.NewVecDense(2, []float64{0.5, 0.6})
	u = mat.NewVecDense(1, []float64{-1.0})

	// state and output noise
	q = mat.NewVecDense(1, []float64{2.0})
	r = mat.NewVecDense(1, []float64{0.5})

	A = mat.NewDense(2, 2, []float64{1.0, 1.0, 0.0, 1.0})
	B = mat.NewDense(2, 1, []float64{0.5, 1.0})
	C = mat.NewDense(1, 2, []float64{1.0, 0.0})
	M = mat.NewDense(2, 1, []float64{1.0, 0})
	N = mat.NewDense(1, 1, []float64{1.0})
}

func TestMain(m *testing.M) {
	// set up tests
	setup()
	// run the tests
	retCode := m.Run()
	// call with result of m.Run()
	os.Exit(retCode)
}

func TestSystemDims(t *testing.T) {
	assert := assert.New(t)

	s := newSystem(A, B, C, M, N)
	nx, nu, ny := s.SystemDims()
	assert.Equal(2, nx)
	assert.Equal(1, nu)
	assert.Equal(1, ny)

	nq, nr := s.NoiseDims()
	assert.Equal(1, nq)
	assert.Equal(1, nr)

	s = newSystem(A, nil, C, nil, nil)
	_, nu, _ = s.SystemDims()
	assert.Equal(0, nu)
	nq, nr = s.NoiseDims()
	assert.Equal(0, nq)
	assert.Equal(0, nr)
	assert.Nil(s.ControlMatrix())
}

func TestSystemValidate(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(newSystem(A, B, C, M, N).validate())
	assert.Error(newSystem(A, B, nil, M, N).validate())
	assert.Error(newSystem(mat.NewDense(2, 3, nil), B, C, M, N).validate())
	assert.Error(newSystem(A, mat.NewDense(3, 1, nil), C, M, N).validate())
	assert.Error(newSystem(A, B, mat.NewDense(1, 3, nil), M, N).validate())
	assert.Error(newSystem(A, B, C, mat.NewDense(3, 1, nil), N).validate())
	assert.Error(newSystem(A, B, C, M, mat.NewDense(2, 1, nil)).validate())
}

func TestSystemObserve(t *testing.T) {
	assert := assert.New(t)

	s := newSystem(A, B, C, M, N)

	y, err := s.Observe(x, r)
	assert.NoError(err)
	assert.InDelta(1.0, y.AtVec(0), 1e-12)

	y, err = s.Observe(x, nil)
	assert.NoError(err)
	assert.InDelta(0.5, y.AtVec(0), 1e-12)

	_x := mat.NewVecDense(10, nil)
	y, err = s.Observe(_x, r)
	assert.Nil(y)
	assert.Error(err)

	_r := mat.NewVecDense(10, nil)
	y, err = s.Observe(x, _r)
	assert.Nil(y)
	assert.Error(err)
}
