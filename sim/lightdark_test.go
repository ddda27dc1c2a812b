package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestNewLightDark(t *testing.T) {
	assert := assert.New(t)

	l, err := NewLightDark(0.5, 5, 0.1, 0.01)
	assert.NotNil(l)
	assert.NoError(err)

	l, err = NewLightDark(0, 5, 0.1, 0.01)
	assert.Nil(l)
	assert.Error(err)

	l, err = NewLightDark(0.5, 5, -0.1, 0.01)
	assert.Nil(l)
	assert.Error(err)
}

func TestLightDark(t *testing.T) {
	assert := assert.New(t)

	l, err := NewLightDark(0.5, 5, 0.1, 0.01)
	assert.NoError(err)

	nx, nu, ny := l.SystemDims()
	assert.Equal([]int{2, 2, 2}, []int{nx, nu, ny})
	nq, nr := l.NoiseDims()
	assert.Equal([]int{2, 2}, []int{nq, nr})

	x0 := mat.NewVecDense(2, []float64{0, 0})
	u0 := mat.NewVecDense(2, []float64{1, 2})
	x1, err := l.Propagate(x0, u0, nil)
	assert.NoError(err)
	assert.InDelta(0.5, x1.AtVec(0), 1e-12)
	assert.InDelta(1.0, x1.AtVec(1), 1e-12)

	x1, err = l.Propagate(x0, u0, mat.NewVecDense(2, []float64{1, 1}))
	assert.NoError(err)
	assert.InDelta(0.55, x1.AtVec(0), 1e-12)

	under := mat.NewVecDense(2, []float64{5, 0})
	y, err := l.Observe(under, mat.NewVecDense(2, []float64{1, 1}))
	assert.NoError(err)
	assert.InDelta(5.1, y.AtVec(0), 1e-12)
	assert.InDelta(0.1, y.AtVec(1), 1e-12)

	// noise grows away from the light
	assert.Greater(l.ObsStd(x0), l.ObsStd(under))

	y, err = l.Observe(mat.NewVecDense(3, nil), nil)
	assert.Nil(y)
	assert.Error(err)
}
