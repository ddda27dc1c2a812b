package scp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrustRegion(t *testing.T) {
	assert := assert.New(t)

	c := DefaultConfig()
	c.TrustGroups = []TrustGroup{{Name: "a", Size: 1}, {Name: "b", Size: 2}}
	c.MaxTrustSize = 2
	c.MinTrustRegionSize = 0.3

	tr := newTrustRegion(c)
	assert.Equal([]float64{1, 2}, tr.snapshot())
	assert.Equal(2.0, tr.size(1))

	tr.expandAll()
	assert.InDeltaSlice([]float64{1.2, 2}, tr.sizes, 1e-12)

	tr.reset()
	tr.shrinkAll()
	assert.Equal([]float64{0.5, 1}, tr.snapshot())
	assert.False(tr.converged())

	tr.shrinkAll()
	assert.False(tr.converged())
	tr.shrinkAll()
	assert.True(tr.converged())

	snap := tr.snapshot()
	snap[0] = 100
	assert.Equal(0.125, tr.size(0))

	tr.reset()
	assert.Equal([]float64{1, 2}, tr.snapshot())
}
