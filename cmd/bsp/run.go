package main

import (
	"context"
	"fmt"
	"io"

	"github.com/milosgajdos/go-bsp/config"
	"github.com/milosgajdos/go-bsp/kalman/ekf"
	"github.com/milosgajdos/go-bsp/linearize"
	"github.com/milosgajdos/go-bsp/mpc"
	"github.com/milosgajdos/go-bsp/scp"
	"github.com/milosgajdos/go-bsp/trajectory"
	"github.com/milosgajdos/go-bsp/viz"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// session holds the problem and its planning components
type session struct {
	problem *config.Problem
	filter  *ekf.EKF
	opt     *scp.Optimizer
	init    *trajectory.Trajectory
	logger  *zap.Logger
}

func newSession() (*session, error) {
	p, err := loadProblem()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger()
	if err != nil {
		return nil, err
	}

	m, err := p.System()
	if err != nil {
		return nil, err
	}

	f, err := ekf.New(m, &linearize.Settings{Step: p.Optimizer.JacobianStep, Concurrent: true})
	if err != nil {
		return nil, err
	}

	opt, err := scp.New(f, &p.Cost, p.Optimizer, scp.WithLogger(logger.Named("scp")))
	if err != nil {
		return nil, err
	}

	init, err := p.Trajectory(f)
	if err != nil {
		return nil, err
	}

	return &session{
		problem: p,
		filter:  f,
		opt:     opt,
		init:    init,
		logger:  logger,
	}, nil
}

// visualizer returns visualizer configured by command line flags
func visualizer(w io.Writer, nx int) viz.Visualizer {
	var v viz.Multi

	if plotPath != "" {
		x, y := xAxis, yAxis
		if nx == 1 {
			x, y = viz.Time, 0
		}
		v = append(v, viz.NewPlotter(plotPath, x, y))
	}

	if ascii {
		v = append(v, viz.NewASCII(w))
	}

	return v
}

func runPlan(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.logger.Sync() //nolint:errcheck

	res, err := s.opt.Solve(context.Background(), s.init)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "status: %s\ncost: %g\nviolation: %g\npenalty: %g\nsqp iterations: %d\n",
		res.Status, res.Cost, res.Violation, res.Penalty, res.SQPIterations)
	for t, u := range res.Trajectory.Controls {
		fmt.Fprintf(out, "u[%d] = %v\n", t, u)
	}

	if err := visualizer(out, s.init.Nx).Show(res.Trajectory); err != nil {
		return err
	}

	return res.Err()
}

func runMPC(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.logger.Sync() //nolint:errcheck

	q, r, err := s.problem.Noise(s.filter.Model())
	if err != nil {
		return err
	}

	e, err := mpc.New(s.filter, s.opt, mpc.WithNoise(q, r), mpc.WithLogger(s.logger.Named("mpc")))
	if err != nil {
		return err
	}

	run, err := e.Execute(context.Background(), s.problem.State(), s.init)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for t, x := range run.States {
		fmt.Fprintf(out, "x[%d] = %v mean = %v\n", t, x, run.Executed.Mean(t))
	}

	return visualizer(out, s.init.Nx).Show(run.Executed)
}
