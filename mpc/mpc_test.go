package mpc

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/milosgajdos/go-bsp/cost"
	"github.com/milosgajdos/go-bsp/kalman/ekf"
	"github.com/milosgajdos/go-bsp/noise"
	"github.com/milosgajdos/go-bsp/scp"
	"github.com/milosgajdos/go-bsp/sim"
	"github.com/milosgajdos/go-bsp/trajectory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/mat"
)

var (
	f   *ekf.EKF
	opt *scp.Optimizer
	x0  *mat.VecDense
	b0  []float64
)

func setup() {
	A := mat.NewDense(1, 1, []float64{1.0})
	B := mat.NewDense(1, 1, []float64{1.0})
	C := mat.NewDense(1, 1, []float64{1.0})
	M := mat.NewDense(1, 1, []float64{0.1})
	N := mat.NewDense(1, 1, []float64{0.1})

	m, _ := sim.NewDiscrete(A, B, C, M, N)
	f, _ = ekf.New(m, nil)

	c := scp.DefaultConfig()
	c.TrustGroups = []scp.TrustGroup{
		{Name: "belief", Size: 20},
		{Name: "control", Size: 20},
	}
	c.InitialPenalty = 1e3

	opt, _ = scp.New(f, &cost.Belief{R: 1.0, Goal: []float64{10.0}, GoalWeight: 1e4}, c)

	x0 = mat.NewVecDense(1, []float64{0.0})
	b0 = []float64{0.0, 0.5}
}

func TestMain(m *testing.M) {
	// set up tests
	setup()
	// run the tests
	retCode := m.Run()
	// call with result of m.Run()
	os.Exit(retCode)
}

func newPlan(t *testing.T, T int) *trajectory.Trajectory {
	controls := make([][]float64, T-1)
	for i := range controls {
		controls[i] = []float64{0.0}
	}

	plan, err := trajectory.Rollout(f, b0, controls)
	require.NoError(t, err)

	return plan
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	e, err := New(f, opt)
	assert.NoError(err)
	assert.NotNil(e)

	e, err = New(nil, opt)
	assert.Nil(e)
	assert.Error(err)

	e, err = New(f, nil)
	assert.Nil(e)
	assert.Error(err)

	z, err := noise.NewZero(2)
	assert.NoError(err)

	e, err = New(f, opt, WithNoise(z, nil))
	assert.Nil(e)
	assert.Error(err)

	e, err = New(f, opt, WithNoise(nil, z))
	assert.Nil(e)
	assert.Error(err)
}

func TestExecuteNoiseFree(t *testing.T) {
	assert := assert.New(t)

	e, err := New(f, opt, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	run, err := e.Execute(context.Background(), x0, newPlan(t, 4))
	require.NoError(t, err)

	assert.Len(run.States, 4)
	assert.Len(run.Measurements, 3)
	assert.Len(run.Plans, 3)
	assert.Equal(4, run.Executed.Len())

	for i, p := range run.Plans {
		assert.Equal(4-i, p.Trajectory.Len())
	}

	// noise free measurements leave the mean on the true state
	for i, x := range run.States {
		assert.InDelta(x[0], run.Executed.Mean(i)[0], 1e-6)
	}

	assert.InDelta(10.0, run.States[3][0], 1e-2)
	assert.Equal(b0, run.Executed.Beliefs[0])
}

func TestExecuteNoisy(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(1, []float64{1.0})
	q, err := noise.NewGaussian([]float64{0.0}, cov, 42)
	assert.NoError(err)
	r, err := noise.NewGaussian([]float64{0.0}, cov, 24)
	assert.NoError(err)

	e, err := New(f, opt, WithNoise(q, r))
	require.NoError(t, err)

	run, err := e.Execute(context.Background(), x0, newPlan(t, 4))
	require.NoError(t, err)
	assert.Len(run.States, 4)

	assert.True(math.Abs(run.States[3][0]-10.0) < 1.0)

	// filtering keeps the uncertainty bounded
	for i := 1; i < run.Executed.Len(); i++ {
		b, err := run.Executed.Belief(i)
		assert.NoError(err)
		assert.True(b.Trace() < 0.25)
	}
}

func TestExecuteErrors(t *testing.T) {
	assert := assert.New(t)

	e, err := New(f, opt)
	assert.NoError(err)

	run, err := e.Execute(context.Background(), x0, nil)
	assert.Nil(run)
	assert.Error(err)

	run, err = e.Execute(context.Background(), mat.NewVecDense(2, nil), newPlan(t, 3))
	assert.Nil(run)
	assert.Error(err)

	plan := newPlan(t, 3)
	plan.Controls = plan.Controls[:1]
	run, err = e.Execute(context.Background(), x0, plan)
	assert.Nil(run)
	assert.Error(err)
}
