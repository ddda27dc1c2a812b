package scp

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/milosgajdos/go-bsp/cost"
	"github.com/milosgajdos/go-bsp/kalman/ekf"
	"github.com/milosgajdos/go-bsp/qp"
	"github.com/milosgajdos/go-bsp/sim"
	"github.com/milosgajdos/go-bsp/trajectory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/mat"

	bsp "github.com/milosgajdos/go-bsp"
)

var (
	// integrator is x' = x + u observed without noise
	integrator *ekf.EKF
	// blind is x' = x + u with constant noise free observation
	blind *ekf.EKF
	// goalCost drives the terminal mean to 10
	goalCost *cost.Belief
)

func setup() {
	A := mat.NewDense(1, 1, []float64{1.0})
	B := mat.NewDense(1, 1, []float64{1.0})
	C := mat.NewDense(1, 1, []float64{1.0})

	m, _ := sim.NewDiscrete(A, B, C, nil, nil)
	integrator, _ = ekf.New(m, nil)

	bm, _ := sim.NewDiscrete(A, B, mat.NewDense(1, 1, []float64{0.0}), nil, nil)
	blind, _ = ekf.New(bm, nil)

	goalCost = &cost.Belief{R: 1.0, Goal: []float64{10.0}, GoalWeight: 1e4}
}

func TestMain(m *testing.M) {
	// set up tests
	setup()
	// run the tests
	retCode := m.Run()
	// call with result of m.Run()
	os.Exit(retCode)
}

func newConfig(size, penalty float64) *Config {
	c := DefaultConfig()
	c.TrustGroups = []TrustGroup{
		{Name: "belief", Size: size},
		{Name: "control", Size: size},
	}
	c.InitialPenalty = penalty

	return c
}

// newLine returns T=3 trajectory whose first transition violates the dynamics by 5
func newLine() *trajectory.Trajectory {
	tr, _ := trajectory.New(1, 1, 3)
	tr.Beliefs[1][0] = 5.0
	tr.Beliefs[2][0] = 5.0

	return tr
}

type recorder struct {
	shown int
}

func (r *recorder) Show(*trajectory.Trajectory) error {
	r.shown++
	return nil
}

type fakeSolver struct {
	err    error
	status qp.Status
	obj    float64
}

func (s *fakeSolver) Solve(ctx context.Context, stages []*qp.Stage) (*qp.Result, error) {
	if s.err != nil {
		return nil, s.err
	}

	primal := make([][]float64, len(stages))
	for t, st := range stages {
		primal[t] = make([]float64, st.Dim())
		copy(primal[t], st.Lb)
	}

	return &qp.Result{Status: s.status, Primal: primal, Objective: s.obj}, nil
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	o, err := New(integrator, goalCost, nil)
	assert.NoError(err)
	assert.NotNil(o)
	assert.Equal(DefaultConfig(), o.Config())

	o, err = New(nil, goalCost, nil)
	assert.Nil(o)
	assert.Error(err)

	o, err = New(integrator, nil, nil)
	assert.Nil(o)
	assert.Error(err)

	c := DefaultConfig()
	c.TrustGroups = nil
	o, err = New(integrator, goalCost, c)
	assert.Nil(o)
	assert.Error(err)
}

func TestSolve(t *testing.T) {
	assert := assert.New(t)

	v := &recorder{}
	o, err := New(integrator, goalCost, newConfig(20, 1e3),
		WithLogger(zaptest.NewLogger(t)),
		WithVisualizer(v))
	assert.NoError(err)

	init, err := trajectory.New(1, 1, 2)
	assert.NoError(err)

	res, err := o.Solve(context.Background(), init)
	require.NoError(t, err)
	assert.NoError(res.Err())
	assert.Equal(Converged, res.Status)
	assert.True(res.Feasible)
	assert.Equal(0, res.PenaltyIncreases)
	assert.Equal(1, v.shown)

	u := res.Trajectory.Controls[0][0]
	assert.InDelta(9.999, u, 1e-2)
	assert.InDelta(9.999, res.Trajectory.Mean(1)[0], 1e-2)
	assert.InDelta(u*u+1e4*(res.Trajectory.Mean(1)[0]-10)*(res.Trajectory.Mean(1)[0]-10), res.Cost, 1e-6)
	assert.True(res.Violation <= o.Config().ConstraintTolerance)

	// initial belief is never modified
	assert.Equal([]float64{0, 0}, res.Trajectory.Beliefs[0])
	assert.Equal([]float64{0, 0}, init.Beliefs[1])

	accepted := 0
	for _, s := range res.Steps {
		for _, size := range s.TrustSizes {
			assert.True(size > 0)
		}
		if s.Outcome == Accept {
			accepted++
			assert.True(s.MeritCandidate <= s.MeritCurrent)
		}
		assert.True(s.ApproxImprove >= -invalidModelThreshold)
	}
	assert.Equal(1, accepted)
	assert.True(res.SQPIterations >= accepted)

	rolled, err := trajectory.Rollout(integrator, res.Trajectory.Beliefs[0], res.Trajectory.Controls)
	assert.NoError(err)
	for i, b := range rolled.Beliefs {
		assert.InDeltaSlice(b, res.Trajectory.Beliefs[i], 1e-3)
	}
}

func TestSolveIdentityCurvature(t *testing.T) {
	assert := assert.New(t)

	c := newConfig(20, 1e3)
	c.CurvatureInit = Identity
	c.MaxSQPIterations = 200

	o, err := New(integrator, goalCost, c)
	assert.NoError(err)

	init, err := trajectory.New(1, 1, 2)
	assert.NoError(err)

	res, err := o.Solve(context.Background(), init)
	require.NoError(t, err)
	assert.Equal(Converged, res.Status)
	assert.True(res.Cost < goalCost.Cost(init))
}

func TestSolvePenalty(t *testing.T) {
	assert := assert.New(t)

	c := &cost.Belief{R: 1.0, Goal: []float64{5.0}, GoalWeight: 1.0}

	low := newConfig(10, 1e-3)
	low.MaxPenaltyIncreases = 0
	o, err := New(integrator, c, low)
	assert.NoError(err)

	lowRes, err := o.Solve(context.Background(), newLine())
	require.NoError(t, err)
	assert.Equal(ToleranceNotMet, lowRes.Status)
	assert.False(lowRes.Feasible)
	assert.True(errors.Is(lowRes.Err(), ErrConstraintToleranceNotMet))
	assert.True(lowRes.Violation > low.ConstraintTolerance)

	high := newConfig(10, 1e3)
	high.MaxPenaltyIncreases = 0
	o, err = New(integrator, c, high)
	assert.NoError(err)

	highRes, err := o.Solve(context.Background(), newLine())
	require.NoError(t, err)
	assert.True(highRes.Violation <= lowRes.Violation)
	assert.Equal(Converged, highRes.Status)
}

func TestSolvePenaltyIncrease(t *testing.T) {
	assert := assert.New(t)

	c := &cost.Belief{R: 1.0, Goal: []float64{5.0}, GoalWeight: 1.0}

	cfg := newConfig(10, 1e-2)
	cfg.MaxPenaltyIncreases = 6
	o, err := New(integrator, c, cfg)
	assert.NoError(err)

	res, err := o.Solve(context.Background(), newLine())
	require.NoError(t, err)
	assert.Equal(Converged, res.Status)
	assert.True(res.PenaltyIncreases > 0)
	assert.InDelta(1e-2*pow(cfg.PenaltyIncreaseRatio, res.PenaltyIncreases), res.Penalty, 1e-9)
}

func pow(x float64, n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= x
	}
	return r
}

func TestSolveSingular(t *testing.T) {
	assert := assert.New(t)

	o, err := New(blind, goalCost, newConfig(1, 10))
	assert.NoError(err)

	init, err := trajectory.New(1, 1, 3)
	assert.NoError(err)
	// unit covariance square root
	init.Beliefs[0][1] = 1.0

	res, err := o.Solve(context.Background(), init)
	assert.Nil(res)
	assert.True(errors.Is(err, bsp.ErrNumericalSingularity))
}

func TestSolveErrors(t *testing.T) {
	assert := assert.New(t)

	o, err := New(integrator, goalCost, nil)
	assert.NoError(err)

	res, err := o.Solve(context.Background(), nil)
	assert.Nil(res)
	assert.Error(err)

	tr, err := trajectory.New(2, 1, 3)
	assert.NoError(err)
	res, err = o.Solve(context.Background(), tr)
	assert.Nil(res)
	assert.Error(err)

	tr, err = trajectory.New(1, 1, 3)
	assert.NoError(err)
	tr.Controls = tr.Controls[:1]
	res, err = o.Solve(context.Background(), tr)
	assert.Nil(res)
	assert.Error(err)
}

func TestSolveSolverErrors(t *testing.T) {
	assert := assert.New(t)

	testCases := []struct {
		solver *fakeSolver
		err    error
	}{
		{&fakeSolver{err: qp.ErrTimeout}, ErrSolverTimeout},
		{&fakeSolver{err: errors.New("boom")}, ErrSolverFailure},
		{&fakeSolver{status: qp.Infeasible}, ErrSolverFailure},
		{&fakeSolver{status: qp.SolverError}, ErrSolverFailure},
		{&fakeSolver{status: qp.OK, obj: 1e12}, ErrInvalidLinearization},
	}

	for _, tc := range testCases {
		o, err := New(integrator, goalCost, newConfig(1, 10), WithSolver(tc.solver))
		assert.NoError(err)

		res, err := o.Solve(context.Background(), newLine())
		assert.Nil(res)
		assert.True(errors.Is(err, tc.err), "expected %v, got %v", tc.err, err)
	}
}

func TestSolveCancelled(t *testing.T) {
	assert := assert.New(t)

	o, err := New(integrator, goalCost, nil)
	assert.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := o.Solve(ctx, newLine())
	assert.Nil(res)
	assert.True(errors.Is(err, ErrSolverTimeout))
}
