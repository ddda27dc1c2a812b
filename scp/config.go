package scp

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// CurvatureInit selects initial curvature approximation
type CurvatureInit string

const (
	// Identity initializes curvature to identity matrix
	Identity CurvatureInit = "identity"
	// Hessian initializes curvature to finite difference cost Hessian diagonal
	Hessian CurvatureInit = "hessian"
)

// TrustGroup is a named trust region group with its initial size
type TrustGroup struct {
	// Name is group name
	Name string `yaml:"name"`
	// Size is initial trust region size
	Size float64 `yaml:"size"`
}

// Config configures the optimizer
type Config struct {
	// TrustGroups are trust region groups
	TrustGroups []TrustGroup `yaml:"trust_groups"`
	// StateGroups maps mean components to trust groups; nil maps all of them to group 0
	StateGroups []int `yaml:"state_groups,omitempty"`
	// CovGroup is trust group of covariance square root components
	CovGroup int `yaml:"cov_group"`
	// ControlGroups maps control channels to trust groups; nil maps all of them to the last group
	ControlGroups []int `yaml:"control_groups,omitempty"`
	// MaxTrustSize caps trust region expansion
	MaxTrustSize float64 `yaml:"max_trust_size"`
	// TrustShrinkRatio shrinks trust regions of rejected steps
	TrustShrinkRatio float64 `yaml:"trust_shrink_ratio"`
	// TrustExpandRatio expands trust regions of accepted steps
	TrustExpandRatio float64 `yaml:"trust_expand_ratio"`
	// MinTrustRegionSize terminates the trust region loop when all sizes fall below it
	MinTrustRegionSize float64 `yaml:"min_trust_region_size"`
	// MinApproxImprove is the smallest model improvement treated as progress
	MinApproxImprove float64 `yaml:"min_approx_improve"`
	// ImproveRatioThreshold is the smallest exact to model improvement ratio of accepted steps
	ImproveRatioThreshold float64 `yaml:"improve_ratio_threshold"`
	// MaxSQPIterations caps the number of linearizations per penalty level
	MaxSQPIterations int `yaml:"max_sqp_iterations"`
	// InitialPenalty is the initial penalty coefficient
	InitialPenalty float64 `yaml:"initial_penalty"`
	// PenaltyIncreaseRatio multiplies the penalty when constraints are violated
	PenaltyIncreaseRatio float64 `yaml:"penalty_increase_ratio"`
	// MaxPenaltyIncreases caps the number of penalty increases
	MaxPenaltyIncreases int `yaml:"max_penalty_increases"`
	// ConstraintTolerance is the largest acceptable dynamics violation
	ConstraintTolerance float64 `yaml:"constraint_tolerance"`
	// StateMin are lower limits of mean components
	StateMin []float64 `yaml:"state_min,omitempty"`
	// StateMax are upper limits of mean components
	StateMax []float64 `yaml:"state_max,omitempty"`
	// ControlMin are lower limits of controls
	ControlMin []float64 `yaml:"control_min,omitempty"`
	// ControlMax are upper limits of controls
	ControlMax []float64 `yaml:"control_max,omitempty"`
	// Goal is terminal mean target region centre
	Goal []float64 `yaml:"goal,omitempty"`
	// GoalTolerance is terminal mean target region half width
	GoalTolerance float64 `yaml:"goal_tolerance"`
	// Horizon is the number of leading stages with their own bounds; zero means all stages
	Horizon int `yaml:"horizon"`
	// Angles are indices of angular mean components
	Angles []int `yaml:"angles,omitempty"`
	// JacobianStep is finite difference step of belief dynamics Jacobians
	JacobianStep float64 `yaml:"jacobian_step"`
	// GradientStep is finite difference step of cost gradient; zero selects it automatically
	GradientStep float64 `yaml:"gradient_step"`
	// CurvatureStep is finite difference step of cost Hessian diagonal
	CurvatureStep float64 `yaml:"curvature_step"`
	// CurvatureInit selects initial curvature
	CurvatureInit CurvatureInit `yaml:"curvature_init"`
	// SolverReg is QP solver regularization
	SolverReg float64 `yaml:"solver_reg"`
	// SolverTimeout limits a single QP solve; zero means no limit
	SolverTimeout time.Duration `yaml:"solver_timeout"`
}

// DefaultConfig returns default optimizer configuration.
func DefaultConfig() *Config {
	return &Config{
		TrustGroups: []TrustGroup{
			{Name: "belief", Size: 1.0},
			{Name: "control", Size: 1.0},
		},
		CovGroup:              0,
		MaxTrustSize:          100.0,
		TrustShrinkRatio:      0.5,
		TrustExpandRatio:      1.2,
		MinTrustRegionSize:    1e-3,
		MinApproxImprove:      1e-4,
		ImproveRatioThreshold: 0.1,
		MaxSQPIterations:      50,
		InitialPenalty:        10.0,
		PenaltyIncreaseRatio:  10.0,
		MaxPenaltyIncreases:   5,
		ConstraintTolerance:   1e-4,
		JacobianStep:          0.0078125 * 0.0078125,
		CurvatureStep:         1e-3,
		CurvatureInit:         Hessian,
		SolverReg:             1e-6,
		SolverTimeout:         10 * time.Second,
	}
}

// Validate validates the configuration for state dimension nx and control dimension nu.
// It returns all configuration errors combined.
func (c *Config) Validate(nx, nu int) error {
	var err error

	if len(c.TrustGroups) == 0 {
		err = multierr.Append(err, errors.New("no trust groups"))
	}

	for i, g := range c.TrustGroups {
		if !(g.Size > 0) || math.IsInf(g.Size, 0) {
			err = multierr.Append(err, fmt.Errorf("trust group %d (%s): invalid size %f", i, g.Name, g.Size))
		}
	}

	groups := len(c.TrustGroups)
	if c.StateGroups != nil && len(c.StateGroups) != nx {
		err = multierr.Append(err, fmt.Errorf("invalid state groups length: %d", len(c.StateGroups)))
	}
	for _, g := range c.StateGroups {
		if g < 0 || g >= groups {
			err = multierr.Append(err, fmt.Errorf("invalid state trust group: %d", g))
		}
	}
	if c.CovGroup < 0 || c.CovGroup >= max(groups, 1) {
		err = multierr.Append(err, fmt.Errorf("invalid covariance trust group: %d", c.CovGroup))
	}
	if c.ControlGroups != nil && len(c.ControlGroups) != nu {
		err = multierr.Append(err, fmt.Errorf("invalid control groups length: %d", len(c.ControlGroups)))
	}
	for _, g := range c.ControlGroups {
		if g < 0 || g >= groups {
			err = multierr.Append(err, fmt.Errorf("invalid control trust group: %d", g))
		}
	}

	if !(c.TrustShrinkRatio > 0 && c.TrustShrinkRatio < 1) {
		err = multierr.Append(err, fmt.Errorf("trust shrink ratio must be in (0, 1): %f", c.TrustShrinkRatio))
	}
	if !(c.TrustExpandRatio >= 1) {
		err = multierr.Append(err, fmt.Errorf("trust expand ratio must be at least 1: %f", c.TrustExpandRatio))
	}
	if !(c.MinTrustRegionSize > 0) {
		err = multierr.Append(err, fmt.Errorf("invalid min trust region size: %f", c.MinTrustRegionSize))
	}
	if !(c.MaxTrustSize >= c.MinTrustRegionSize) {
		err = multierr.Append(err, fmt.Errorf("invalid max trust size: %f", c.MaxTrustSize))
	}
	if c.MinApproxImprove < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid min approx improve: %f", c.MinApproxImprove))
	}
	if c.ImproveRatioThreshold < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid improve ratio threshold: %f", c.ImproveRatioThreshold))
	}
	if c.MaxSQPIterations <= 0 {
		err = multierr.Append(err, fmt.Errorf("invalid max SQP iterations: %d", c.MaxSQPIterations))
	}
	if !(c.InitialPenalty > 0) {
		err = multierr.Append(err, fmt.Errorf("invalid initial penalty: %f", c.InitialPenalty))
	}
	if !(c.PenaltyIncreaseRatio > 1) {
		err = multierr.Append(err, fmt.Errorf("penalty increase ratio must be greater than 1: %f", c.PenaltyIncreaseRatio))
	}
	if c.MaxPenaltyIncreases < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid max penalty increases: %d", c.MaxPenaltyIncreases))
	}
	if c.ConstraintTolerance < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid constraint tolerance: %f", c.ConstraintTolerance))
	}

	err = multierr.Append(err, validateLimits("state", c.StateMin, c.StateMax, nx))
	err = multierr.Append(err, validateLimits("control", c.ControlMin, c.ControlMax, nu))

	if c.Goal != nil && len(c.Goal) != nx {
		err = multierr.Append(err, fmt.Errorf("invalid goal dimension: %d", len(c.Goal)))
	}
	if c.GoalTolerance < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid goal tolerance: %f", c.GoalTolerance))
	}
	if c.Horizon < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid horizon: %d", c.Horizon))
	}
	for _, i := range c.Angles {
		if i < 0 || i >= nx {
			err = multierr.Append(err, fmt.Errorf("invalid angle index: %d", i))
		}
	}

	if c.JacobianStep < 0 || c.GradientStep < 0 || c.CurvatureStep < 0 {
		err = multierr.Append(err, errors.New("finite difference steps must not be negative"))
	}
	switch c.CurvatureInit {
	case Identity, Hessian, "":
	default:
		err = multierr.Append(err, fmt.Errorf("unknown curvature init: %q", c.CurvatureInit))
	}
	if c.SolverReg < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid solver regularization: %f", c.SolverReg))
	}
	if c.SolverTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid solver timeout: %s", c.SolverTimeout))
	}

	return err
}

func validateLimits(name string, lo, hi []float64, n int) error {
	var err error

	if lo != nil && len(lo) != n {
		err = multierr.Append(err, fmt.Errorf("invalid %s min length: %d", name, len(lo)))
	}
	if hi != nil && len(hi) != n {
		err = multierr.Append(err, fmt.Errorf("invalid %s max length: %d", name, len(hi)))
	}
	if err != nil || lo == nil || hi == nil {
		return err
	}

	for i := range lo {
		if lo[i] > hi[i] {
			err = multierr.Append(err, fmt.Errorf("invalid %s limits %d: [%f, %f]", name, i, lo[i], hi[i]))
		}
	}

	return err
}
