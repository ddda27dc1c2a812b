package scp

import (
	"github.com/milosgajdos/go-bsp/trajectory"
	"github.com/pkg/errors"
)

// Status is optimization status
type Status int

const (
	// Converged means the dynamics violation is within tolerance
	Converged Status = iota
	// ToleranceNotMet means the penalty cap was reached with dynamics still violated
	ToleranceNotMet
)

// String implements the Stringer interface.
func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case ToleranceNotMet:
		return "tolerance not met"
	default:
		return "unknown"
	}
}

// Outcome is trust region step outcome
type Outcome int

const (
	// Accept means the candidate was adopted
	Accept Outcome = iota
	// Shrink means the candidate was rejected and trust regions shrunk
	Shrink
	// Converge means the model predicted no further improvement
	Converge
)

// String implements the Stringer interface.
func (o Outcome) String() string {
	switch o {
	case Accept:
		return "accept"
	case Shrink:
		return "shrink"
	case Converge:
		return "converge"
	default:
		return "unknown"
	}
}

// Step records a single trust region step
type Step struct {
	// Penalty is penalty coefficient
	Penalty float64
	// Iteration is SQP iteration within the penalty level
	Iteration int
	// MeritCurrent is merit of the current trajectory
	MeritCurrent float64
	// MeritCandidate is merit of the candidate trajectory
	MeritCandidate float64
	// ModelMerit is merit predicted by the convex model
	ModelMerit float64
	// ApproxImprove is predicted merit improvement
	ApproxImprove float64
	// ExactImprove is actual merit improvement
	ExactImprove float64
	// Ratio is actual to predicted improvement ratio
	Ratio float64
	// TrustSizes are trust region sizes the QP was built with
	TrustSizes []float64
	// Outcome is step outcome
	Outcome Outcome
}

// Result is optimization result
type Result struct {
	// Trajectory is the optimized trajectory
	Trajectory *trajectory.Trajectory
	// Cost is true cost of the trajectory
	Cost float64
	// Violation is total absolute dynamics violation of the trajectory
	Violation float64
	// Feasible is true if Violation is within tolerance
	Feasible bool
	// Status is optimization status
	Status Status
	// Penalty is the last penalty coefficient
	Penalty float64
	// PenaltyIncreases is the number of penalty increases
	PenaltyIncreases int
	// SQPIterations is the total number of linearizations
	SQPIterations int
	// Steps are trust region steps
	Steps []Step
}

// Err returns ErrConstraintToleranceNotMet if the result is not feasible, otherwise nil.
func (r *Result) Err() error {
	if r.Status == ToleranceNotMet {
		return errors.Wrapf(ErrConstraintToleranceNotMet, "violation %g", r.Violation)
	}

	return nil
}
