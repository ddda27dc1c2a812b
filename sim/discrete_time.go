package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Discrete is a basic model of a linear, discrete-time, dynamical system
type Discrete struct {
	System
}

// NewDiscrete creates a linear discrete-time model based on the control theory equations.
//
//	x[n+1] = A*x[n] + B*u[n] + M*q[n]
//	y[n] = C*x[n] + N*r[n]
//
// It returns error if the matrices dimensions are not consistent.
func NewDiscrete(A, B, C, M, N *mat.Dense) (*Discrete, error) {
	if A == nil {
		return nil, fmt.Errorf("system matrix must be defined for a model")
	}

	sys := newSystem(A, B, C, M, N)
	if err := sys.validate(); err != nil {
		return nil, err
	}

	return &Discrete{System: sys}, nil
}

// Propagate returns the next internal state x
// of a linear, discrete-time system given an input vector u and process noise q.
func (ct *Discrete) Propagate(x, u, q mat.Vector) (mat.Vector, error) {
	nx, nu, _ := ct.SystemDims()
	nq, _ := ct.NoiseDims()

	if u != nil && u.Len() != nu {
		return nil, fmt.Errorf("invalid input vector")
	}

	if x == nil || x.Len() != nx {
		return nil, fmt.Errorf("invalid state vector")
	}

	if q != nil && q.Len() != nq {
		return nil, fmt.Errorf("invalid process noise vector")
	}

	out := new(mat.VecDense)
	out.MulVec(ct.A, x)

	if u != nil && ct.B != nil {
		outU := new(mat.VecDense)
		outU.MulVec(ct.B, u)

		out.AddVec(out, outU)
	}

	if q != nil && ct.M != nil {
		outQ := new(mat.VecDense)
		outQ.MulVec(ct.M, q)

		out.AddVec(out, outQ)
	}

	return out, nil
}
