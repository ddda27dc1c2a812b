// Package mpc executes optimized belief space plans in receding horizon fashion.
//
// Every step the executor optimizes the remaining plan, applies its first control
// to the true system, takes a noisy measurement and filters the belief with it.
// The shifted plan warm starts the next optimization.
package mpc

import (
	"context"
	"fmt"

	bsp "github.com/milosgajdos/go-bsp"
	"github.com/milosgajdos/go-bsp/belief"
	"github.com/milosgajdos/go-bsp/kalman/ekf"
	"github.com/milosgajdos/go-bsp/scp"
	"github.com/milosgajdos/go-bsp/trajectory"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Executor runs receding horizon belief space control
type Executor struct {
	// f filters the belief of the true system
	f *ekf.EKF
	// opt optimizes the remaining plan
	opt *scp.Optimizer
	// q is process noise of the true system
	q bsp.Noise
	// r is observation noise of the true system
	r bsp.Noise
	logger *zap.Logger
}

// Option configures Executor
type Option func(*Executor)

// WithLogger sets executor logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithNoise sets process noise q and observation noise r of the true system.
// Nil noise means the true system is noise free.
func WithNoise(q, r bsp.Noise) Option {
	return func(e *Executor) {
		e.q = q
		e.r = r
	}
}

// New creates new Executor which filters beliefs with f and plans with opt and returns it.
// The true system is the model filtered by f.
func New(f *ekf.EKF, opt *scp.Optimizer, opts ...Option) (*Executor, error) {
	if f == nil || opt == nil {
		return nil, fmt.Errorf("invalid filter %v or optimizer %v", f, opt)
	}

	e := &Executor{
		f:      f,
		opt:    opt,
		logger: zap.NewNop(),
	}

	for _, o := range opts {
		o(e)
	}

	nq, nr := f.Model().NoiseDims()
	if e.q != nil && len(e.q.Mean()) != nq {
		return nil, fmt.Errorf("invalid process noise dimension: %d", len(e.q.Mean()))
	}
	if e.r != nil && len(e.r.Mean()) != nr {
		return nil, fmt.Errorf("invalid observation noise dimension: %d", len(e.r.Mean()))
	}

	return e, nil
}

// Run is receding horizon execution record
type Run struct {
	// Executed holds filtered beliefs and the applied controls
	Executed *trajectory.Trajectory
	// States are true system states starting with the initial state
	States [][]float64
	// Measurements are noisy measurements taken after every control
	Measurements [][]float64
	// Plans are optimization results of every step
	Plans []*scp.Result
}

// Execute executes plan from the true initial state x0 and returns the execution record.
// The first belief of plan is the initial belief estimate. Every step replans with one stage less.
// It returns error if the plan is invalid, the optimizer fails or the true system fails to propagate or observe.
func (e *Executor) Execute(ctx context.Context, x0 mat.Vector, plan *trajectory.Trajectory) (*Run, error) {
	if plan == nil {
		return nil, fmt.Errorf("invalid plan: %v", plan)
	}

	if err := plan.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid plan")
	}

	nx, nu := e.f.Dims()
	if x0 == nil || x0.Len() != nx {
		return nil, fmt.Errorf("invalid initial state: %v", x0)
	}

	steps := plan.Len() - 1
	executed, err := trajectory.New(nx, nu, steps+1)
	if err != nil {
		return nil, err
	}
	copy(executed.Beliefs[0], plan.Beliefs[0])

	run := &Run{
		Executed: executed,
		States:   [][]float64{mat.Col(nil, 0, x0)},
	}

	m := e.f.Model()
	x := x0
	cur := plan.Clone()

	for t := 0; t < steps; t++ {
		res, err := e.opt.Solve(ctx, cur)
		if err != nil {
			return nil, errors.Wrapf(err, "planning step %d", t)
		}
		run.Plans = append(run.Plans, res)

		if err := res.Err(); err != nil {
			e.logger.Warn("executing infeasible plan", zap.Int("step", t), zap.Error(err))
		}

		uNow := res.Trajectory.Controls[0]
		var u mat.Vector
		if nu > 0 {
			u = mat.NewVecDense(nu, append([]float64(nil), uNow...))
		}

		x, err = m.Propagate(x, u, sample(e.q))
		if err != nil {
			return nil, errors.Wrapf(err, "system propagation at step %d", t)
		}

		z, err := m.Observe(x, sample(e.r))
		if err != nil {
			return nil, errors.Wrapf(err, "system observation at step %d", t)
		}

		b, err := belief.FromVec(nx, cur.Beliefs[0])
		if err != nil {
			return nil, err
		}

		b, err = e.f.Run(b, u, z)
		if err != nil {
			return nil, errors.Wrapf(err, "belief filtering at step %d", t)
		}

		copy(executed.Controls[t], uNow)
		b.Vec(executed.Beliefs[t+1])
		run.States = append(run.States, mat.Col(nil, 0, x))
		run.Measurements = append(run.Measurements, mat.Col(nil, 0, z))

		e.logger.Info("executed control",
			zap.Int("step", t),
			zap.Float64s("control", uNow),
			zap.Float64s("state", mat.Col(nil, 0, x)),
			zap.Float64s("mean", executed.Mean(t+1)),
			zap.Float64("trace", b.Trace()))

		if t+1 < steps {
			cur = shift(res.Trajectory, executed.Beliefs[t+1])
		}
	}

	return run, nil
}

// shift drops the first stage of tr and replaces the new initial belief with b
func shift(tr *trajectory.Trajectory, b []float64) *trajectory.Trajectory {
	next := tr.Clone()
	next.Beliefs = next.Beliefs[1:]
	next.Controls = next.Controls[1:]
	copy(next.Beliefs[0], b)

	return next
}

func sample(n bsp.Noise) mat.Vector {
	if n == nil {
		return nil
	}

	return n.Sample()
}
