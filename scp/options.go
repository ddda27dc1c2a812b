package scp

import (
	"github.com/milosgajdos/go-bsp/qp"
	"github.com/milosgajdos/go-bsp/viz"
	"go.uber.org/zap"
)

// Option configures Optimizer
type Option func(*Optimizer)

// WithLogger sets optimizer logger
func WithLogger(l *zap.Logger) Option {
	return func(o *Optimizer) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSolver sets QP solver
func WithSolver(s qp.Solver) Option {
	return func(o *Optimizer) {
		if s != nil {
			o.solver = s
		}
	}
}

// WithVisualizer sets visualizer which is shown the trajectory after every penalty level
func WithVisualizer(v viz.Visualizer) Option {
	return func(o *Optimizer) {
		if v != nil {
			o.viz = v
		}
	}
}
