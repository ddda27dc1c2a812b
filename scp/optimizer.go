// Package scp implements penalty method sequential convex programming over belief trajectories.
//
// Every SQP iteration linearizes belief dynamics around the current trajectory and solves
// a convex QP restricted to a trust region. Dynamics constraints are enforced through
// penalized slack variables whose penalty grows until the trajectory is dynamically feasible.
package scp

import (
	"context"
	"fmt"
	"math"

	"github.com/milosgajdos/go-bsp/cost"
	"github.com/milosgajdos/go-bsp/linearize"
	"github.com/milosgajdos/go-bsp/qp"
	"github.com/milosgajdos/go-bsp/trajectory"
	"github.com/milosgajdos/go-bsp/viz"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// invalidModelThreshold is the largest predicted merit increase tolerated at the QP optimum
	invalidModelThreshold = 1e-5
)

// Dynamics propagates packed beliefs
type Dynamics interface {
	trajectory.Dynamics
}

// Optimizer optimizes belief trajectories
type Optimizer struct {
	dyn    Dynamics
	cost   cost.Func
	cfg    *Config
	logger *zap.Logger
	solver qp.Solver
	viz    viz.Visualizer
}

// New creates new Optimizer of belief dynamics dyn and cost c and returns it.
// Nil cfg means DefaultConfig.
// It returns error if the configuration is invalid.
func New(dyn Dynamics, c cost.Func, cfg *Config, opts ...Option) (*Optimizer, error) {
	if dyn == nil || c == nil {
		return nil, fmt.Errorf("invalid optimizer dynamics %v or cost %v", dyn, c)
	}

	if cfg == nil {
		cfg = DefaultConfig()
	}

	nx, nu := dyn.Dims()
	if err := cfg.Validate(nx, nu); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	o := &Optimizer{
		dyn:    dyn,
		cost:   c,
		cfg:    cfg,
		logger: zap.NewNop(),
		solver: qp.NewLSEI(cfg.SolverReg, cfg.SolverTimeout),
		viz:    viz.Nop{},
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// Config returns optimizer configuration
func (o *Optimizer) Config() *Config {
	return o.cfg
}

// Solve optimizes trajectory init and returns the result.
// The first belief of init is the boundary condition and is never modified.
// Result with ToleranceNotMet status is returned with nil error when the penalty cap is reached.
// It returns error if the trajectory is invalid, belief propagation fails, the QP solver fails
// or the convex model is invalid.
func (o *Optimizer) Solve(ctx context.Context, init *trajectory.Trajectory) (*Result, error) {
	if init == nil {
		return nil, fmt.Errorf("invalid trajectory: %v", init)
	}

	if err := init.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid trajectory")
	}

	nx, nu := o.dyn.Dims()
	if init.Nx != nx || init.Nu != nu {
		return nil, fmt.Errorf("trajectory dimensions [%d, %d] do not match dynamics [%d, %d]", init.Nx, init.Nu, nx, nu)
	}

	s := newSession(o, init)

	return s.run(ctx, init.Clone())
}

// session is the state of a single Solve call
type session struct {
	o     *Optimizer
	cfg   *Config
	log   *zap.Logger
	l     layout
	sb    *stageBuilder
	trust *trustRegion
	curv  *curvature
	cs    *cost.Settings
	jac   *linearize.Settings
	steps []Step
	iters int
}

func newSession(o *Optimizer, init *trajectory.Trajectory) *session {
	l := newLayout(init.Nx, init.Nu, init.Len())

	return &session{
		o:     o,
		cfg:   o.cfg,
		log:   o.logger,
		l:     l,
		sb:    newStageBuilder(o.cfg, l),
		trust: newTrustRegion(o.cfg),
		curv:  newCurvature(l.dim()),
		cs: &cost.Settings{
			Step:          o.cfg.GradientStep,
			CurvatureStep: o.cfg.CurvatureStep,
		},
		jac: &linearize.Settings{Step: o.cfg.JacobianStep},
	}
}

func (s *session) run(ctx context.Context, cur *trajectory.Trajectory) (*Result, error) {
	grad := make([]float64, s.l.dim())
	if err := cost.Gradient(grad, s.o.cost, cur, s.cs); err != nil {
		return nil, err
	}

	if s.cfg.CurvatureInit != Identity {
		hdiag := make([]float64, s.l.dim())
		if err := cost.HessianDiag(hdiag, s.o.cost, cur, s.cs); err != nil {
			return nil, err
		}
		s.curv.setDiag(hdiag)
	}

	var (
		best          *trajectory.Trajectory
		bestViolation = math.Inf(1)
		penalty       = s.cfg.InitialPenalty
		increases     int
		err           error
	)

	for {
		s.trust.reset()

		cur, grad, err = s.optimize(ctx, cur, grad, penalty)
		if err != nil {
			return nil, err
		}

		violation, err := s.violation(cur)
		if err != nil {
			return nil, err
		}

		if best == nil || violation <= bestViolation {
			best, bestViolation = cur.Clone(), violation
		}

		s.log.Info("penalty level finished",
			zap.Float64("penalty", penalty),
			zap.Float64("violation", violation),
			zap.Float64("cost", s.o.cost.Cost(cur)),
			zap.Int("sqp_iterations", s.iters))

		if err := s.o.viz.Show(cur); err != nil {
			s.log.Warn("failed to show trajectory", zap.Error(err))
		}

		if violation <= s.cfg.ConstraintTolerance {
			return s.result(cur, violation, penalty, increases, Converged), nil
		}

		if increases >= s.cfg.MaxPenaltyIncreases {
			break
		}

		penalty *= s.cfg.PenaltyIncreaseRatio
		increases++
	}

	s.log.Warn("constraint tolerance not met",
		zap.Float64("violation", bestViolation),
		zap.Float64("tolerance", s.cfg.ConstraintTolerance))

	return s.result(best, bestViolation, penalty, increases, ToleranceNotMet), nil
}

// optimize runs trust region SQP at a fixed penalty and returns the resulting trajectory and its cost gradient
func (s *session) optimize(ctx context.Context, cur *trajectory.Trajectory, grad []float64, penalty float64) (*trajectory.Trajectory, []float64, error) {
	p := cur.Flatten(nil)
	hdiag := make([]float64, s.l.dim())

	for it := 0; it < s.cfg.MaxSQPIterations; it++ {
		s.iters++

		lin, err := s.linearize(cur)
		if err != nil {
			return nil, nil, err
		}

		curCost := s.o.cost.Cost(cur)
		meritCur := curCost + penalty*lin.violation()
		s.curv.diag(hdiag)

		for {
			stages, constant := s.sb.build(p, grad, hdiag, lin, penalty, s.trust)

			res, err := s.o.solver.Solve(ctx, stages)
			if err != nil {
				if errors.Is(err, qp.ErrTimeout) {
					return nil, nil, errors.Wrap(ErrSolverTimeout, err.Error())
				}
				return nil, nil, errors.Wrap(ErrSolverFailure, err.Error())
			}

			if res.Status != qp.OK {
				return nil, nil, errors.Wrapf(ErrSolverFailure, "QP status: %s", res.Status)
			}

			cand := s.candidate(cur, res.Primal)
			candCost := s.o.cost.Cost(cand)
			candViolation, err := s.violation(cand)
			if err != nil {
				return nil, nil, err
			}

			meritCand := candCost + penalty*candViolation
			modelMerit := res.Objective + constant + curCost
			approx := meritCur - modelMerit
			exact := meritCur - meritCand
			ratio := exact / approx

			step := Step{
				Penalty:        penalty,
				Iteration:      it,
				MeritCurrent:   meritCur,
				MeritCandidate: meritCand,
				ModelMerit:     modelMerit,
				ApproxImprove:  approx,
				ExactImprove:   exact,
				Ratio:          ratio,
				TrustSizes:     s.trust.snapshot(),
			}

			if approx < -invalidModelThreshold {
				s.log.Error("invalid convex model",
					zap.Float64("approx_improve", approx),
					zap.Float64("merit", meritCur),
					zap.Float64("model_merit", modelMerit))
				return nil, nil, errors.Wrapf(ErrInvalidLinearization, "approx improve %g", approx)
			}

			if approx < s.cfg.MinApproxImprove {
				step.Outcome = Converge
				s.steps = append(s.steps, step)
				s.log.Debug("converged", zap.Float64("approx_improve", approx))

				candGrad := make([]float64, s.l.dim())
				if err := cost.Gradient(candGrad, s.o.cost, cand, s.cs); err != nil {
					return nil, nil, err
				}
				return cand, candGrad, nil
			}

			if exact < 0 || ratio < s.cfg.ImproveRatioThreshold {
				step.Outcome = Shrink
				s.steps = append(s.steps, step)
				s.trust.shrinkAll()
				s.log.Debug("shrinking trust region",
					zap.Float64("exact_improve", exact),
					zap.Float64("ratio", ratio),
					zap.Float64s("trust_sizes", s.trust.sizes))

				if s.trust.converged() {
					return cur, grad, nil
				}
				continue
			}

			step.Outcome = Accept
			s.steps = append(s.steps, step)
			s.trust.expandAll()

			candGrad := make([]float64, s.l.dim())
			if err := cost.Gradient(candGrad, s.o.cost, cand, s.cs); err != nil {
				return nil, nil, err
			}

			pc := cand.Flatten(nil)
			dp := make([]float64, len(p))
			floats.SubTo(dp, pc, p)
			dg := make([]float64, len(grad))
			floats.SubTo(dg, candGrad, grad)
			if !s.curv.update(dp, dg) {
				s.log.Debug("curvature update skipped")
			}

			s.log.Debug("accepted step",
				zap.Float64("merit", meritCand),
				zap.Float64("ratio", ratio),
				zap.Float64s("trust_sizes", s.trust.sizes))

			cur, grad, p = cand, candGrad, pc
			break
		}
	}

	return cur, grad, nil
}

// linearize linearizes belief dynamics around trajectory tr
func (s *session) linearize(tr *trajectory.Trajectory) (*linearization, error) {
	T, bdim, nu := s.l.T, s.l.bdim, s.l.nu
	dyn := s.o.dyn

	lin := &linearization{
		A: make([]*mat.Dense, T-1),
		B: make([]*mat.Dense, T-1),
		G: make([][]float64, T-1),
		D: make([][]float64, T-1),
	}

	for t := 0; t < T-1; t++ {
		b, u := tr.Beliefs[t], tr.Controls[t]

		lin.G[t] = make([]float64, bdim)
		if err := dyn.Step(b, u, lin.G[t]); err != nil {
			return nil, errors.Wrapf(err, "belief propagation at step %d", t)
		}
		lin.D[t] = trajectory.WrapDiff(nil, tr.Beliefs[t+1], lin.G[t], s.cfg.Angles)

		lin.A[t] = mat.NewDense(bdim, bdim, nil)
		err := linearize.Jacobian(lin.A[t], func(y, bNow []float64) error {
			return dyn.Step(bNow, u, y)
		}, b, s.jac)
		if err != nil {
			return nil, errors.Wrapf(err, "belief Jacobian at step %d", t)
		}

		if nu > 0 {
			lin.B[t] = mat.NewDense(bdim, nu, nil)
			err := linearize.Jacobian(lin.B[t], func(y, uNow []float64) error {
				return dyn.Step(b, uNow, y)
			}, u, s.jac)
			if err != nil {
				return nil, errors.Wrapf(err, "control Jacobian at step %d", t)
			}
		}
	}

	return lin, nil
}

// violation returns total absolute dynamics violation of trajectory tr
func (s *session) violation(tr *trajectory.Trajectory) (float64, error) {
	g := make([]float64, s.l.bdim)
	d := make([]float64, s.l.bdim)

	var v float64
	for t := 0; t < tr.Len()-1; t++ {
		if err := s.o.dyn.Step(tr.Beliefs[t], tr.Controls[t], g); err != nil {
			return 0, errors.Wrapf(err, "belief propagation at step %d", t)
		}
		trajectory.WrapDiff(d, tr.Beliefs[t+1], g, s.cfg.Angles)
		for _, x := range d {
			v += math.Abs(x)
		}
	}

	return v, nil
}

// candidate returns trajectory built from QP primal solution
func (s *session) candidate(cur *trajectory.Trajectory, primal [][]float64) *trajectory.Trajectory {
	cand := cur.Clone()
	for t, z := range primal {
		x := s.l.stacked(t, z)
		// initial belief is the boundary condition
		if t > 0 {
			copy(cand.Beliefs[t], x[:s.l.bdim])
		}
		if t < len(cand.Controls) {
			copy(cand.Controls[t], x[s.l.bdim:])
		}
	}

	return cand
}

func (s *session) result(tr *trajectory.Trajectory, violation, penalty float64, increases int, status Status) *Result {
	return &Result{
		Trajectory:       tr,
		Cost:             s.o.cost.Cost(tr),
		Violation:        violation,
		Feasible:         status == Converged,
		Status:           status,
		Penalty:          penalty,
		PenaltyIncreases: increases,
		SQPIterations:    s.iters,
		Steps:            s.steps,
	}
}
