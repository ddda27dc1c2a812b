// Package linearize computes central finite difference Jacobians of system dynamics and observation functions.
package linearize

import (
	"fmt"
	"sync"

	bsp "github.com/milosgajdos/go-bsp"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// DefaultStep is default finite difference step
const DefaultStep = 0.0078125 * 0.0078125

// Settings configure Linearizer
type Settings struct {
	// Step is finite difference step. Zero value means DefaultStep.
	Step float64
	// Concurrent evaluates Jacobian columns concurrently
	Concurrent bool
}

// Dynamics is dynamics linearization around nominal state and control
type Dynamics struct {
	// A is state Jacobian df/dx
	A *mat.Dense
	// B is control Jacobian df/du
	B *mat.Dense
	// M is process noise Jacobian df/dq
	M *mat.Dense
	// X is the nominal propagated state f(x, u, 0)
	X *mat.VecDense
}

// Observation is observation linearization around nominal state
type Observation struct {
	// H is observation Jacobian dh/dx
	H *mat.Dense
	// N is observation noise Jacobian dh/dr
	N *mat.Dense
	// Y is the nominal observation h(x, 0)
	Y *mat.VecDense
}

// Linearizer linearizes system model
type Linearizer struct {
	// m is system model
	m bsp.Model
	// step is finite difference step
	step float64
	// concurrent requests concurrent Jacobian evaluation
	concurrent bool
}

// New creates new Linearizer of model m and returns it.
// It returns error if the model dimensions are invalid or if the settings step is negative.
func New(m bsp.Model, s *Settings) (*Linearizer, error) {
	if m == nil {
		return nil, fmt.Errorf("invalid model: %v", m)
	}

	nx, nu, ny := m.SystemDims()
	nq, nr := m.NoiseDims()
	if nx <= 0 || ny <= 0 || nu < 0 || nq < 0 || nr < 0 {
		return nil, fmt.Errorf("invalid model dimensions: nx=%d nu=%d ny=%d nq=%d nr=%d", nx, nu, ny, nq, nr)
	}

	l := &Linearizer{
		m:    m,
		step: DefaultStep,
	}

	if s != nil {
		if s.Step < 0 {
			return nil, fmt.Errorf("invalid finite difference step: %f", s.Step)
		}
		if s.Step > 0 {
			l.step = s.Step
		}
		l.concurrent = s.Concurrent
	}

	return l, nil
}

// Model returns linearized model
func (l *Linearizer) Model() bsp.Model {
	return l.m
}

// Step returns finite difference step
func (l *Linearizer) Step() float64 {
	return l.step
}

// Dynamics linearizes system dynamics around state x and control u.
// It returns error if the model fails to propagate the state.
func (l *Linearizer) Dynamics(x, u mat.Vector) (*Dynamics, error) {
	nx, nu, _ := l.m.SystemDims()
	nq, _ := l.m.NoiseDims()

	if x == nil || x.Len() != nx {
		return nil, fmt.Errorf("invalid state vector: %v", x)
	}

	if nu > 0 && (u == nil || u.Len() != nu) {
		return nil, fmt.Errorf("invalid control vector: %v", u)
	}

	xNext, err := l.m.Propagate(x, u, nil)
	if err != nil {
		return nil, fmt.Errorf("system state propagation failed: %v", err)
	}

	d := &Dynamics{
		A: mat.NewDense(nx, nx, nil),
		X: mat.VecDenseCopyOf(xNext),
	}

	// state Jacobian
	err = l.Jacobian(d.A, func(y, xNow []float64) error {
		return l.propagate(y, mat.NewVecDense(nx, xNow), u, nil)
	}, mat.Col(nil, 0, x))
	if err != nil {
		return nil, err
	}

	// control Jacobian
	if nu > 0 {
		d.B = mat.NewDense(nx, nu, nil)
		err = l.Jacobian(d.B, func(y, uNow []float64) error {
			return l.propagate(y, x, mat.NewVecDense(nu, uNow), nil)
		}, mat.Col(nil, 0, u))
		if err != nil {
			return nil, err
		}
	}

	// process noise Jacobian evaluated at zero noise
	if nq > 0 {
		d.M = mat.NewDense(nx, nq, nil)
		err = l.Jacobian(d.M, func(y, qNow []float64) error {
			return l.propagate(y, x, u, mat.NewVecDense(nq, qNow))
		}, make([]float64, nq))
		if err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Observation linearizes system observation around state x.
// It returns error if the model fails to observe the state.
func (l *Linearizer) Observation(x mat.Vector) (*Observation, error) {
	nx, _, ny := l.m.SystemDims()
	_, nr := l.m.NoiseDims()

	if x == nil || x.Len() != nx {
		return nil, fmt.Errorf("invalid state vector: %v", x)
	}

	y, err := l.m.Observe(x, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to observe system output: %v", err)
	}

	o := &Observation{
		H: mat.NewDense(ny, nx, nil),
		Y: mat.VecDenseCopyOf(y),
	}

	err = l.Jacobian(o.H, func(yOut, xNow []float64) error {
		return l.observe(yOut, mat.NewVecDense(nx, xNow), nil)
	}, mat.Col(nil, 0, x))
	if err != nil {
		return nil, err
	}

	if nr > 0 {
		o.N = mat.NewDense(ny, nr, nil)
		err = l.Jacobian(o.N, func(yOut, rNow []float64) error {
			return l.observe(yOut, x, mat.NewVecDense(nr, rNow))
		}, make([]float64, nr))
		if err != nil {
			return nil, err
		}
	}

	return o, nil
}

// Jacobian computes central finite difference Jacobian of f at x and stores it in dst.
// The rows of dst must match the length of f output and its columns the length of x.
// It returns the first error returned by f.
func (l *Linearizer) Jacobian(dst *mat.Dense, f func(y, x []float64) error, x []float64) error {
	return Jacobian(dst, f, x, &Settings{Step: l.step, Concurrent: l.concurrent})
}

// Jacobian computes central finite difference Jacobian of f at x using settings s and stores it in dst.
// Nil s means default settings.
// It returns the first error returned by f.
func Jacobian(dst *mat.Dense, f func(y, x []float64) error, x []float64, s *Settings) error {
	var (
		mu   sync.Mutex
		fErr error
	)

	fn := func(y, x []float64) {
		if err := f(y, x); err != nil {
			mu.Lock()
			if fErr == nil {
				fErr = err
			}
			mu.Unlock()
		}
	}

	settings := &fd.JacobianSettings{
		Formula: fd.Central,
		Step:    DefaultStep,
	}

	if s != nil {
		if s.Step > 0 {
			settings.Step = s.Step
		}
		settings.Concurrent = s.Concurrent
	}

	fd.Jacobian(dst, fn, x, settings)

	return fErr
}

func (l *Linearizer) propagate(out []float64, x, u, q mat.Vector) error {
	xNext, err := l.m.Propagate(x, u, q)
	if err != nil {
		return fmt.Errorf("system state propagation failed: %v", err)
	}

	for i := range out {
		out[i] = xNext.AtVec(i)
	}

	return nil
}

func (l *Linearizer) observe(out []float64, x, r mat.Vector) error {
	y, err := l.m.Observe(x, r)
	if err != nil {
		return fmt.Errorf("failed to observe system output: %v", err)
	}

	for i := range out {
		out[i] = y.AtVec(i)
	}

	return nil
}
