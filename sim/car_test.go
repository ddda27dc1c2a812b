package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestCar(t *testing.T) {
	assert := assert.New(t)

	c, err := NewCar(0, 1, nil)
	assert.Nil(c)
	assert.Error(err)

	c, err = NewCar(1, 1, [][2]float64{{3, 4}})
	assert.NotNil(c)
	assert.NoError(err)

	nx, nu, ny := c.SystemDims()
	assert.Equal([]int{3, 2, 2}, []int{nx, nu, ny})
	nq, nr := c.NoiseDims()
	assert.Equal([]int{3, 2}, []int{nq, nr})
	assert.Equal([]int{CarHeading}, c.Angles())

	x0 := mat.NewVecDense(3, nil)
	x1, err := c.Propagate(x0, mat.NewVecDense(2, []float64{1, 0}), nil)
	assert.NoError(err)
	assert.InDelta(1.0, x1.AtVec(0), 1e-12)
	assert.InDelta(0.0, x1.AtVec(1), 1e-12)
	assert.InDelta(0.0, x1.AtVec(CarHeading), 1e-12)

	x1, err = c.Propagate(x0, mat.NewVecDense(2, []float64{1, math.Pi / 4}), nil)
	assert.NoError(err)
	assert.InDelta(1.0, x1.AtVec(CarHeading), 1e-12)

	y, err := c.Observe(x0, nil)
	assert.NoError(err)
	assert.InDelta(5.0, y.AtVec(0), 1e-12)
	assert.InDelta(0.0, y.AtVec(1), 1e-12)

	y, err = c.Observe(x0, mat.NewVecDense(3, nil))
	assert.Nil(y)
	assert.Error(err)
}
