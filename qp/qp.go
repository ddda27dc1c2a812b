// Package qp defines block tri-diagonal quadratic programs built stage by stage and solvers of such programs.
package qp

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// StageKind is kind of QP stage
type StageKind int

const (
	// Interior stage has belief, control and slack variables and couples to its successor
	Interior StageKind = iota
	// Terminal stage has only belief variables
	Terminal
)

// String implements the Stringer interface.
func (k StageKind) String() string {
	switch k {
	case Interior:
		return "interior"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Stage is a single stage of block tri-diagonal quadratic program.
//
// Stage t minimizes 0.5*z_t'*diag(H)*z_t + F'*z_t subject to
//
//	C*z_t + D*z_{t+1} = E
//	Lb <= z_t <= Ub
//
// where z_t are stage variables. Terminal stages have no equality constraints.
type Stage struct {
	// Kind is stage kind
	Kind StageKind
	// H is diagonal of quadratic cost
	H []float64
	// F is linear cost
	F []float64
	// C is equality matrix of the stage variables
	C *mat.Dense
	// D is equality matrix of the successor stage variables
	D *mat.Dense
	// E is equality right hand side
	E []float64
	// Lb are lower bounds
	Lb []float64
	// Ub are upper bounds
	Ub []float64
	// Ref is optional reference point of the stage variables used by regularizing solvers
	Ref []float64
}

// Dim returns the number of stage variables.
func (s *Stage) Dim() int {
	return len(s.H)
}

// Rows returns the number of equality constraints of the stage.
func (s *Stage) Rows() int {
	return len(s.E)
}

// Objective returns stage objective value at z.
func (s *Stage) Objective(z []float64) float64 {
	var obj float64
	for i, v := range z {
		obj += 0.5*s.H[i]*v*v + s.F[i]*v
	}

	return obj
}

// Validate checks the dimensions of stage s followed by stage next.
// next must be nil for the last stage.
func (s *Stage) Validate(next *Stage) error {
	n := s.Dim()
	if n == 0 {
		return fmt.Errorf("empty stage")
	}

	if len(s.F) != n || len(s.Lb) != n || len(s.Ub) != n {
		return fmt.Errorf("invalid stage vector lengths: H=%d F=%d Lb=%d Ub=%d", n, len(s.F), len(s.Lb), len(s.Ub))
	}

	if s.Ref != nil && len(s.Ref) != n {
		return fmt.Errorf("invalid reference point length: %d", len(s.Ref))
	}

	for i := range s.Lb {
		if s.Lb[i] > s.Ub[i] || math.IsNaN(s.Lb[i]) || math.IsNaN(s.Ub[i]) {
			return fmt.Errorf("invalid bounds of variable %d: [%f, %f]", i, s.Lb[i], s.Ub[i])
		}
	}

	switch s.Kind {
	case Terminal:
		if next != nil {
			return fmt.Errorf("terminal stage must be the last stage")
		}
		if s.Rows() != 0 {
			return fmt.Errorf("terminal stage must not have equality constraints")
		}
	case Interior:
		if next == nil {
			return fmt.Errorf("interior stage must have a successor")
		}
		m := s.Rows()
		if s.C == nil || s.D == nil {
			return fmt.Errorf("interior stage must have equality constraints")
		}
		if r, c := s.C.Dims(); r != m || c != n {
			return fmt.Errorf("invalid C dimensions: [%d x %d]", r, c)
		}
		if r, c := s.D.Dims(); r != m || c != next.Dim() {
			return fmt.Errorf("invalid D dimensions: [%d x %d]", r, c)
		}
	default:
		return fmt.Errorf("unknown stage kind: %d", s.Kind)
	}

	return nil
}

// Validate checks the dimensions of all stages.
func Validate(stages []*Stage) error {
	if len(stages) == 0 {
		return fmt.Errorf("no stages")
	}

	for t, s := range stages {
		var next *Stage
		if t < len(stages)-1 {
			next = stages[t+1]
		}
		if err := s.Validate(next); err != nil {
			return fmt.Errorf("stage %d: %v", t, err)
		}
	}

	return nil
}

// Status is QP solve status
type Status int

const (
	// OK means the QP was solved
	OK Status = iota
	// Infeasible means the QP constraints can not be satisfied
	Infeasible
	// SolverError means the solver failed
	SolverError
)

// String implements the Stringer interface.
func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Infeasible:
		return "infeasible"
	case SolverError:
		return "solver error"
	default:
		return "unknown"
	}
}

// Result is QP solution
type Result struct {
	// Status is solve status
	Status Status
	// Primal are stage variables of the solution
	Primal [][]float64
	// Objective is QP objective at the solution
	Objective float64
}

// Solver solves block tri-diagonal quadratic programs
type Solver interface {
	// Solve solves the QP given by stages
	Solve(ctx context.Context, stages []*Stage) (*Result, error)
}
