package bsp

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// ErrNumericalSingularity is returned when the innovation covariance of a belief update can not be inverted.
var ErrNumericalSingularity = errors.New("bsp: innovation covariance is singular")

// Propagator propagates internal state of the system to the next step
type Propagator interface {
	// Propagate propagates state x to the next step given control u and process noise q.
	// Nil q means zero noise.
	Propagate(x, u, q mat.Vector) (mat.Vector, error)
}

// Observer observes external state (output) of the system
type Observer interface {
	// Observe observes state x given observation noise r.
	// Nil r means zero noise.
	Observe(x, r mat.Vector) (mat.Vector, error)
}

// Model is a model of a dynamical system operating under process and sensing noise
type Model interface {
	// Propagator is system propagator
	Propagator
	// Observer is system observer
	Observer
	// SystemDims returns state, control and observation dimensions
	SystemDims() (nx, nu, ny int)
	// NoiseDims returns process and observation noise dimensions
	NoiseDims() (nq, nr int)
}

// Noise is dynamical system noise
type Noise interface {
	// Mean returns noise mean
	Mean() []float64
	// Cov returns covariance matrix of the noise
	Cov() mat.Symmetric
	// Sample returns a sample of the noise
	Sample() mat.Vector
	// Reset resets the noise
	Reset() error
}
