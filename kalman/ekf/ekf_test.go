package ekf

import (
	"errors"
	"os"
	"testing"

	bsp "github.com/milosgajdos/go-bsp"
	"github.com/milosgajdos/go-bsp/belief"
	"github.com/milosgajdos/go-bsp/sim"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

type invalidModel struct {
	*sim.Discrete
}

func (m *invalidModel) SystemDims() (nx, nu, ny int) {
	return -10, 0, 8
}

var (
	okModel    *sim.Discrete
	badModel   *invalidModel
	blindModel *sim.Discrete
	b0         *belief.Belief
	u          *mat.VecDense
	z          *mat.VecDense
)

func setup() {
	u = mat.NewVecDense(1, []float64{-1.0})
	z = mat.NewVecDense(1, []float64{-1.5})

	initState := mat.NewVecDense(2, []float64{1.0, 3.0})
	initCov := mat.NewSymDense(2, []float64{0.25, 0, 0, 0.25})
	b0, _ = belief.New(initState, initCov)

	A := mat.NewDense(2, 2, []float64{1.0, 1.0, 0.0, 1.0})
	B := mat.NewDense(2, 1, []float64{0.5, 1.0})
	C := mat.NewDense(1, 2, []float64{1.0, 0.0})
	M := mat.NewDense(2, 2, []float64{0.1, 0.0, 0.0, 0.1})
	N := mat.NewDense(1, 1, []float64{0.5})

	okModel, _ = sim.NewDiscrete(A, B, C, M, N)
	badModel = &invalidModel{okModel}

	// constant observation without observation noise
	blindModel, _ = sim.NewDiscrete(A, B, mat.NewDense(1, 2, nil), M, nil)
}

func TestMain(m *testing.M) {
	// set up tests
	setup()
	// run the tests
	retCode := m.Run()
	// call with result of m.Run()
	os.Exit(retCode)
}

func TestEKFNew(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okModel, nil)
	assert.NotNil(f)
	assert.NoError(err)

	nx, nu := f.Dims()
	assert.Equal(2, nx)
	assert.Equal(1, nu)

	// invalid model: incorrect dimensions
	f, err = New(badModel, nil)
	assert.Nil(f)
	assert.Error(err)
}

func TestEKFPredict(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okModel, nil)
	assert.NoError(err)

	pred, err := f.Predict(b0, u)
	assert.NoError(err)

	// mean follows the model
	mean := pred.Mean()
	assert.InDelta(3.5, mean.AtVec(0), 1e-9)
	assert.InDelta(2.0, mean.AtVec(1), 1e-9)

	// A*P*A' + M*M'
	cov := pred.Cov()
	assert.InDelta(0.5+0.01, cov.At(0, 0), 1e-6)
	assert.InDelta(0.25, cov.At(0, 1), 1e-6)
	assert.InDelta(0.25+0.01, cov.At(1, 1), 1e-6)

	_, err = f.Predict(nil, u)
	assert.Error(err)
}

func TestEKFPropagate(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okModel, nil)
	assert.NoError(err)

	pred, err := f.Predict(b0, u)
	assert.NoError(err)

	next, err := f.Propagate(b0, u)
	assert.NoError(err)

	// expected observation does not move the mean
	assert.InDelta(pred.Mean().AtVec(0), next.Mean().AtVec(0), 1e-9)
	assert.InDelta(pred.Mean().AtVec(1), next.Mean().AtVec(1), 1e-9)

	// observation reduces uncertainty
	assert.Less(next.Trace(), pred.Trace())

	// P00 - P00^2/(P00 + 0.25)
	p00 := 0.51
	assert.InDelta(p00-p00*p00/(p00+0.25), next.Cov().At(0, 0), 1e-6)
}

func TestEKFGain(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okModel, nil)
	assert.NoError(err)

	// P*H' / (H*P*H' + N*N')
	gain, err := f.Gain(b0)
	assert.NoError(err)
	r, c := gain.Dims()
	assert.Equal(2, r)
	assert.Equal(1, c)
	assert.InDelta(0.5, gain.At(0, 0), 1e-6)
	assert.InDelta(0.0, gain.At(1, 0), 1e-6)

	// propagation leaves the gain of b0 untouched
	_, err = f.Propagate(b0, u)
	assert.NoError(err)
	again, err := f.Gain(b0)
	assert.NoError(err)
	assert.True(mat.EqualApprox(gain, again, 1e-12))

	_, err = f.Gain(nil)
	assert.Error(err)

	f, err = New(blindModel, nil)
	assert.NoError(err)
	_, err = f.Gain(b0)
	assert.True(errors.Is(err, bsp.ErrNumericalSingularity))
}

func TestEKFPropagateSingular(t *testing.T) {
	assert := assert.New(t)

	f, err := New(blindModel, nil)
	assert.NoError(err)

	next, err := f.Propagate(b0, u)
	assert.Nil(next)
	assert.Error(err)
	assert.True(errors.Is(err, bsp.ErrNumericalSingularity))
}

func TestEKFPropagateZeroCov(t *testing.T) {
	assert := assert.New(t)

	A := mat.NewDense(1, 1, []float64{1.0})
	B := mat.NewDense(1, 1, []float64{1.0})
	C := mat.NewDense(1, 1, []float64{1.0})
	m, err := sim.NewDiscrete(A, B, C, nil, nil)
	assert.NoError(err)

	f, err := New(m, nil)
	assert.NoError(err)

	bz, err := belief.New(mat.NewVecDense(1, []float64{2.0}), mat.NewSymDense(1, nil))
	assert.NoError(err)

	next, err := f.Propagate(bz, mat.NewVecDense(1, []float64{3.0}))
	assert.NoError(err)
	assert.InDelta(5.0, next.Mean().AtVec(0), 1e-9)
	assert.InDelta(0.0, next.Cov().At(0, 0), 1e-12)
}

func TestEKFRun(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okModel, nil)
	assert.NoError(err)

	est, err := f.Run(b0, u, z)
	assert.NoError(err)

	pred, err := f.Predict(b0, u)
	assert.NoError(err)

	// measurement below prediction pulls the mean down
	assert.Less(est.Mean().AtVec(0), pred.Mean().AtVec(0))
	assert.Less(est.Trace(), pred.Trace())

	_, err = f.Run(b0, u, mat.NewVecDense(3, nil))
	assert.Error(err)

	f, err = New(blindModel, nil)
	assert.NoError(err)
	_, err = f.Run(b0, u, z)
	assert.True(errors.Is(err, bsp.ErrNumericalSingularity))
}

func TestEKFStep(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okModel, nil)
	assert.NoError(err)

	in := b0.Vec(nil)
	out := make([]float64, len(in))
	assert.NoError(f.Step(in, []float64{-1.0}, out))

	next, err := f.Propagate(b0, u)
	assert.NoError(err)
	exp := next.Vec(nil)
	for i := range exp {
		assert.InDelta(exp[i], out[i], 1e-9)
	}

	assert.Error(f.Step(in[:2], []float64{-1.0}, out))
	assert.Error(f.Step(in, []float64{-1.0, 1.0}, out))
	assert.Error(f.Step(in, []float64{-1.0}, out[:1]))
}

func TestEKFCorrect(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okModel, nil)
	assert.NoError(err)

	// measurement equal to expected observation keeps the mean
	y := mat.NewVecDense(1, []float64{1.0})
	est, err := f.Correct(b0, y)
	assert.NoError(err)
	assert.InDelta(1.0, est.Mean().AtVec(0), 1e-9)
	assert.InDelta(3.0, est.Mean().AtVec(1), 1e-9)
	// P - P^2/(P + R) for the observed component
	assert.InDelta(0.25-0.25*0.25/0.5, est.Cov().At(0, 0), 1e-6)

	_, err = f.Correct(nil, y)
	assert.Error(err)
}
