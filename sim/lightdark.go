package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LightDark is a planar point robot which can localize itself well only near a light source.
//
// The robot state is its position (x, y) and it is controlled by velocity (vx, vy):
//
//	x[n+1] = x[n] + Dt*u[n] + Dt*ProcessStd*q[n]
//	y[n]   = x[n] + sqrt(0.5*(Light - x[n][0])^2 + MinObsVar)*r[n]
//
// Observation noise grows with the horizontal distance from the light at x = Light.
type LightDark struct {
	// Dt is the discretization time step
	Dt float64
	// Light is the x coordinate of the light source
	Light float64
	// ProcessStd is process noise standard deviation
	ProcessStd float64
	// MinObsVar is the observation noise variance right under the light
	MinObsVar float64
}

// NewLightDark creates new light-dark model and returns it.
// It returns error if any of the parameters are invalid.
func NewLightDark(dt, light, processStd, minObsVar float64) (*LightDark, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("invalid time step: %f", dt)
	}

	if processStd < 0 || minObsVar < 0 {
		return nil, fmt.Errorf("invalid noise parameters: %f, %f", processStd, minObsVar)
	}

	return &LightDark{
		Dt:         dt,
		Light:      light,
		ProcessStd: processStd,
		MinObsVar:  minObsVar,
	}, nil
}

// Propagate propagates internal state x by control u and process noise q.
func (l *LightDark) Propagate(x, u, q mat.Vector) (mat.Vector, error) {
	if x == nil || x.Len() != 2 {
		return nil, fmt.Errorf("invalid state vector")
	}

	if u != nil && u.Len() != 2 {
		return nil, fmt.Errorf("invalid input vector")
	}

	if q != nil && q.Len() != 2 {
		return nil, fmt.Errorf("invalid process noise vector")
	}

	out := mat.VecDenseCopyOf(x)
	if u != nil {
		out.AddScaledVec(out, l.Dt, u)
	}

	if q != nil {
		out.AddScaledVec(out, l.Dt*l.ProcessStd, q)
	}

	return out, nil
}

// Observe observes robot position x corrupted by position dependent noise r.
func (l *LightDark) Observe(x, r mat.Vector) (mat.Vector, error) {
	if x == nil || x.Len() != 2 {
		return nil, fmt.Errorf("invalid state vector")
	}

	if r != nil && r.Len() != 2 {
		return nil, fmt.Errorf("invalid observation noise vector")
	}

	out := mat.VecDenseCopyOf(x)
	if r != nil {
		out.AddScaledVec(out, l.ObsStd(x), r)
	}

	return out, nil
}

// ObsStd returns observation noise standard deviation at state x.
func (l *LightDark) ObsStd(x mat.Vector) float64 {
	d := l.Light - x.AtVec(0)
	return math.Sqrt(0.5*d*d + l.MinObsVar)
}

// SystemDims returns state, input and output dimensions.
func (l *LightDark) SystemDims() (nx, nu, ny int) {
	return 2, 2, 2
}

// NoiseDims returns process and observation noise dimensions.
func (l *LightDark) NoiseDims() (nq, nr int) {
	return 2, 2
}

// String implements the Stringer interface.
func (l *LightDark) String() string {
	return fmt.Sprintf("LightDark{Dt=%g, Light=%g, ProcessStd=%g, MinObsVar=%g}",
		l.Dt, l.Light, l.ProcessStd, l.MinObsVar)
}
