package scp

import "github.com/pkg/errors"

var (
	// ErrInvalidLinearization is returned when the convex model predicts merit increase at the QP optimum
	ErrInvalidLinearization = errors.New("scp: convex model predicts merit increase")
	// ErrSolverFailure is returned when the QP solver fails or reports an infeasible subproblem
	ErrSolverFailure = errors.New("scp: QP solver failed")
	// ErrSolverTimeout is returned when the QP solver does not finish in time
	ErrSolverTimeout = errors.New("scp: QP solver timed out")
	// ErrConstraintToleranceNotMet is reported when the penalty cap is hit with dynamics still violated
	ErrConstraintToleranceNotMet = errors.New("scp: constraint tolerance not met")
)
