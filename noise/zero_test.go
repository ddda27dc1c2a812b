package noise

import (
	"testing"

	bsp "github.com/milosgajdos/go-bsp"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

var _ bsp.Noise = (*Zero)(nil)

func TestNewZero(t *testing.T) {
	assert := assert.New(t)

	e, err := NewZero(2)
	assert.NotNil(e)
	assert.NoError(err)

	e, err = NewZero(0)
	assert.NotNil(e)
	assert.NoError(err)

	e, err = NewZero(-10)
	assert.Nil(e)
	assert.Error(err)
}

func TestZeroMeanCovSample(t *testing.T) {
	assert := assert.New(t)

	e, err := NewZero(2)
	assert.NoError(err)

	assert.Equal([]float64{0, 0}, e.Mean())
	assert.True(mat.Equal(mat.NewSymDense(2, nil), e.Cov()))

	s := e.Sample()
	assert.Equal(2, s.Len())
	assert.Equal(0.0, mat.Norm(s, 2))
	assert.NoError(e.Reset())

	e, err = NewZero(0)
	assert.NoError(err)
	assert.Nil(e.Sample())
	assert.Equal(0, e.Cov().SymmetricDim())
}
