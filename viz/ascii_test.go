package viz

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestASCIIShow(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	a := NewASCII(&buf)

	assert.NoError(a.Show(newTrajectory(t)))
	assert.Contains(buf.String(), "belief mean")
	assert.Contains(buf.String(), "covariance trace")
	// every mean component has a legend
	assert.Contains(buf.String(), "x0")
	assert.Contains(buf.String(), "x1")

	assert.Error(a.Show(nil))
}
