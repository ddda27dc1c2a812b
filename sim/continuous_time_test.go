package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestNewContinuous(t *testing.T) {
	assert := assert.New(t)

	c, err := NewContinuous(A, B, C, M, N)
	assert.NotNil(c)
	assert.NoError(err)

	c, err = NewContinuous(nil, B, C, M, N)
	assert.Nil(c)
	assert.Error(err)
}

func TestContinuousPropagate(t *testing.T) {
	assert := assert.New(t)

	c, err := NewContinuous(A, B, C, M, N)
	assert.NoError(err)

	v, err := c.Propagate(x, u, nil, 0.1)
	assert.NoError(err)
	// x + dt*(A*x + B*u)
	assert.InDelta(0.5+0.1*(1.1-0.5), v.AtVec(0), 1e-12)
	assert.InDelta(0.6+0.1*(0.6-1.0), v.AtVec(1), 1e-12)

	_x := mat.NewVecDense(10, nil)
	v, err = c.Propagate(_x, u, nil, 0.1)
	assert.Nil(v)
	assert.Error(err)
}

func TestToDiscrete(t *testing.T) {
	assert := assert.New(t)

	// double integrator has singular system matrix
	dA := mat.NewDense(2, 2, []float64{0, 1, 0, 0})
	dB := mat.NewDense(2, 1, []float64{0, 1})
	c, err := NewContinuous(dA, dB, C, nil, nil)
	assert.NoError(err)

	d, err := c.ToDiscrete(0.1)
	assert.NoError(err)
	assert.InDelta(1.0, d.A.At(0, 0), 1e-9)
	assert.InDelta(0.1, d.A.At(0, 1), 1e-9)
	assert.InDelta(1.0, d.A.At(1, 1), 1e-9)
	assert.InDelta(0.005, d.B.At(0, 0), 1e-6)
	assert.InDelta(0.1, d.B.At(1, 0), 1e-9)

	// first order lag
	lA := mat.NewDense(1, 1, []float64{-1})
	lB := mat.NewDense(1, 1, []float64{1})
	lC := mat.NewDense(1, 1, []float64{1})
	lM := mat.NewDense(1, 1, []float64{2})
	c, err = NewContinuous(lA, lB, lC, lM, nil)
	assert.NoError(err)

	d, err = c.ToDiscrete(0.5)
	assert.NoError(err)
	assert.InDelta(math.Exp(-0.5), d.A.At(0, 0), 1e-9)
	assert.InDelta(1-math.Exp(-0.5), d.B.At(0, 0), 1e-9)
	assert.InDelta(2*(1-math.Exp(-0.5)), d.M.At(0, 0), 1e-9)

	d, err = c.ToDiscrete(0)
	assert.Nil(d)
	assert.Error(err)
}
