package sim

import (
	"fmt"

	"github.com/milosgajdos/go-bsp/matrix"
	"gonum.org/v1/gonum/mat"
)

// Continuous is a basic model of a linear, continuous-time, dynamical system
type Continuous struct {
	System
}

// NewContinuous creates a linear continuous-time model based on the control theory equations.
//
//	dx/dt = A*x + B*u + M*q
//	y = C*x + N*r
func NewContinuous(A, B, C, M, N *mat.Dense) (*Continuous, error) {
	if A == nil {
		return nil, fmt.Errorf("system matrix must be defined for a model")
	}

	sys := newSystem(A, B, C, M, N)
	if err := sys.validate(); err != nil {
		return nil, err
	}

	return &Continuous{System: sys}, nil
}

// ToDiscrete creates a discrete-time model from a continuous time model
// using Ts as the sampling time. Process noise is integrated over Ts the same way as control input.
func (ct *Continuous) ToDiscrete(Ts float64) (*Discrete, error) {
	if Ts <= 0 {
		return nil, fmt.Errorf("invalid sampling time: %f", Ts)
	}

	nx, _, _ := ct.SystemDims()
	dsys := newSystem(ct.A, ct.B, ct.C, ct.M, ct.N)
	// continuous -> discrete time conversion
	// See Discrete-Time Control Systems by Katsuhiko Ogata
	// Eq. (5-73) p. 315  Second Edition (Spanish)
	dsys.A.Scale(Ts, dsys.A)
	dsys.A.Exp(dsys.A)

	// integral of exp(A*t) from 0 to Ts
	G := mat.NewDense(nx, nx, nil)
	Ainv := mat.NewDense(nx, nx, nil)
	if err := Ainv.Inverse(ct.A); err == nil {
		// Given A is not singular, the following is valid
		// G = (exp(A*Ts) - I)*inv(A)  Eq. (5-74 bis) Ogata
		G.Sub(dsys.A, matrix.Eye(nx))
		G.Mul(G, Ainv)
	} else {
		// if A matrix is singular we integrate numerically
		// with the trapezoidal rule from 0 to Ts
		// G = integrate( exp(A*t)dt, 0, Ts )   Eq. (5-74) Ogata
		const n = 100
		dt := Ts / float64(n-1)
		aux := mat.NewDense(nx, nx, nil)
		for i := 0; i < n; i++ {
			aux.Scale(dt*float64(i), ct.A)
			aux.Exp(aux)
			w := dt
			if i == 0 || i == n-1 {
				w = dt / 2
			}
			aux.Scale(w, aux)
			G.Add(G, aux)
		}
	}

	if ct.B != nil {
		dsys.B.Mul(G, ct.B)
	}
	if ct.M != nil {
		dsys.M.Mul(G, ct.M)
	}

	return &Discrete{dsys}, nil
}

// Propagate returns the next internal state x of a linear, continuous-time system
// given an input vector u and process noise q by integrating it with Euler step dt.
func (ct *Continuous) Propagate(x, u, q mat.Vector, dt float64) (mat.Vector, error) {
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
	// integrate the first order derivatives calculated: dx/dt = A*x + B*u + M*q
	out.ScaleVec(dt, out)
	out.AddVec(x, out)

	return out, nil
}
