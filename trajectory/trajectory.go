// Package trajectory provides belief trajectories and their rollout through belief dynamics.
package trajectory

import (
	"fmt"

	"github.com/milosgajdos/go-bsp/belief"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Dynamics propagates packed belief vectors
type Dynamics interface {
	// Step propagates belief b by control u and stores the result in out
	Step(b, u, out []float64) error
	// Dims returns state and control dimensions
	Dims() (nx, nu int)
}

// Trajectory is a sequence of T packed beliefs and T-1 controls.
// Beliefs[0] is the boundary condition.
type Trajectory struct {
	// Nx is state dimension
	Nx int
	// Nu is control dimension
	Nu int
	// Beliefs are packed belief vectors
	Beliefs [][]float64
	// Controls are control vectors
	Controls [][]float64
}

// New creates zero-valued trajectory with T beliefs and returns it.
// It returns error if any of the dimensions is invalid.
func New(nx, nu, T int) (*Trajectory, error) {
	if nx <= 0 || nu < 0 {
		return nil, fmt.Errorf("invalid dimensions: nx=%d nu=%d", nx, nu)
	}

	if T < 2 {
		return nil, fmt.Errorf("invalid trajectory length: %d", T)
	}

	tr := &Trajectory{
		Nx:       nx,
		Nu:       nu,
		Beliefs:  make([][]float64, T),
		Controls: make([][]float64, T-1),
	}

	for t := range tr.Beliefs {
		tr.Beliefs[t] = make([]float64, belief.Dim(nx))
	}

	for t := range tr.Controls {
		tr.Controls[t] = make([]float64, nu)
	}

	return tr, nil
}

// Rollout propagates packed belief b0 through dyn by controls and returns the resulting trajectory.
// It returns error if dimensions do not match or if belief propagation fails.
func Rollout(dyn Dynamics, b0 []float64, controls [][]float64) (*Trajectory, error) {
	nx, nu := dyn.Dims()

	if len(b0) != belief.Dim(nx) {
		return nil, fmt.Errorf("invalid initial belief length: %d", len(b0))
	}

	tr, err := New(nx, nu, len(controls)+1)
	if err != nil {
		return nil, err
	}

	copy(tr.Beliefs[0], b0)
	for t, u := range controls {
		if len(u) != nu {
			return nil, fmt.Errorf("invalid control %d length: %d", t, len(u))
		}
		copy(tr.Controls[t], u)

		if err := dyn.Step(tr.Beliefs[t], tr.Controls[t], tr.Beliefs[t+1]); err != nil {
			return nil, errors.Wrapf(err, "rollout step %d", t)
		}
	}

	return tr, nil
}

// Len returns the number of beliefs in the trajectory.
func (tr *Trajectory) Len() int {
	return len(tr.Beliefs)
}

// Validate checks trajectory dimensions consistency.
func (tr *Trajectory) Validate() error {
	if tr.Nx <= 0 || tr.Nu < 0 {
		return fmt.Errorf("invalid dimensions: nx=%d nu=%d", tr.Nx, tr.Nu)
	}

	if len(tr.Beliefs) < 2 || len(tr.Controls) != len(tr.Beliefs)-1 {
		return fmt.Errorf("invalid trajectory length: %d beliefs, %d controls", len(tr.Beliefs), len(tr.Controls))
	}

	for t, b := range tr.Beliefs {
		if len(b) != belief.Dim(tr.Nx) {
			return fmt.Errorf("invalid belief %d length: %d", t, len(b))
		}
	}

	for t, u := range tr.Controls {
		if len(u) != tr.Nu {
			return fmt.Errorf("invalid control %d length: %d", t, len(u))
		}
	}

	return nil
}

// Belief returns belief at step t.
func (tr *Trajectory) Belief(t int) (*belief.Belief, error) {
	if t < 0 || t >= len(tr.Beliefs) {
		return nil, fmt.Errorf("step out of range: %d", t)
	}

	return belief.FromVec(tr.Nx, tr.Beliefs[t])
}

// Mean returns the mean of belief at step t.
func (tr *Trajectory) Mean(t int) []float64 {
	m := make([]float64, tr.Nx)
	copy(m, tr.Beliefs[t][:tr.Nx])

	return m
}

// Means returns a T x nx matrix of belief means.
func (tr *Trajectory) Means() *mat.Dense {
	m := mat.NewDense(len(tr.Beliefs), tr.Nx, nil)
	for t := range tr.Beliefs {
		m.SetRow(t, tr.Beliefs[t][:tr.Nx])
	}

	return m
}

// Clone returns a deep copy of the trajectory.
func (tr *Trajectory) Clone() *Trajectory {
	c := &Trajectory{
		Nx:       tr.Nx,
		Nu:       tr.Nu,
		Beliefs:  make([][]float64, len(tr.Beliefs)),
		Controls: make([][]float64, len(tr.Controls)),
	}

	for t, b := range tr.Beliefs {
		c.Beliefs[t] = append([]float64(nil), b...)
	}

	for t, u := range tr.Controls {
		c.Controls[t] = append([]float64(nil), u...)
	}

	return c
}

// Dim returns the length of the stacked [b_0, u_0, b_1, u_1, ..., b_{T-1}] vector.
func (tr *Trajectory) Dim() int {
	T := len(tr.Beliefs)
	return T*belief.Dim(tr.Nx) + (T-1)*tr.Nu
}

// Flatten stacks the trajectory into dst as [b_0, u_0, b_1, u_1, ..., b_{T-1}] and returns it.
// If dst is nil a new slice is allocated.
func (tr *Trajectory) Flatten(dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, tr.Dim())
	}

	if len(dst) != tr.Dim() {
		panic(mat.ErrShape)
	}

	k := 0
	for t, b := range tr.Beliefs {
		k += copy(dst[k:], b)
		if t < len(tr.Controls) {
			k += copy(dst[k:], tr.Controls[t])
		}
	}

	return dst
}

// Unflatten sets the trajectory from stacked vector p.
// It returns error if the length of p does not match the trajectory dimension.
func (tr *Trajectory) Unflatten(p []float64) error {
	if len(p) != tr.Dim() {
		return fmt.Errorf("invalid stacked vector length: %d", len(p))
	}

	k := 0
	for t, b := range tr.Beliefs {
		k += copy(b, p[k:k+len(b)])
		if t < len(tr.Controls) {
			u := tr.Controls[t]
			k += copy(u, p[k:k+len(u)])
		}
	}

	return nil
}

// String implements the Stringer interface.
func (tr *Trajectory) String() string {
	return fmt.Sprintf("Trajectory{T=%d, Nx=%d, Nu=%d}", len(tr.Beliefs), tr.Nx, tr.Nu)
}
