package viz

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"
)

func TestNop(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(Nop{}.Show(nil))
}

func TestMulti(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	m := Multi{Nop{}, NewASCII(&buf)}

	assert.NoError(m.Show(newTrajectory(t)))
	assert.Contains(buf.String(), "belief mean")

	m = Multi{NewASCII(&buf), NewASCII(&buf)}
	err := m.Show(nil)
	assert.Error(err)
	assert.Len(multierr.Errors(err), 2)
}
