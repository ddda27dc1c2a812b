package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// CarHeading is the index of the heading angle in the car state vector
	CarHeading = 2
)

// Car is a kinematic bicycle model localized by range measurements to known beacons.
//
// The state is (x, y, heading) and the control is (speed, steering angle):
//
//	x[n+1]       = x[n] + Dt*v*cos(heading) + ProcessStd*q[0]
//	y[n+1]       = y[n] + Dt*v*sin(heading) + ProcessStd*q[1]
//	heading[n+1] = heading[n] + Dt*v*tan(steer)/Length + ProcessStd*q[2]
//
// Observations are ranges to all beacons followed by a compass heading measurement.
// Range noise grows linearly with the distance to the beacon.
type Car struct {
	// Dt is the discretization time step
	Dt float64
	// Length is the car wheel base
	Length float64
	// Beacons are beacon positions
	Beacons [][2]float64
	// ProcessStd is process noise standard deviation
	ProcessStd float64
	// RangeStd is range noise standard deviation at the beacon
	RangeStd float64
	// RangeScale scales range noise with the distance from the beacon
	RangeScale float64
	// HeadingStd is compass noise standard deviation
	HeadingStd float64
}

// NewCar creates new car model and returns it.
// It returns error if the parameters are invalid.
func NewCar(dt, length float64, beacons [][2]float64) (*Car, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("invalid time step: %f", dt)
	}

	if length <= 0 {
		return nil, fmt.Errorf("invalid car length: %f", length)
	}

	b := make([][2]float64, len(beacons))
	copy(b, beacons)

	return &Car{
		Dt:         dt,
		Length:     length,
		Beacons:    b,
		ProcessStd: 0.01,
		RangeStd:   0.01,
		RangeScale: 0.1,
		HeadingStd: 0.05,
	}, nil
}

// Propagate propagates car state x given control u and process noise q.
func (c *Car) Propagate(x, u, q mat.Vector) (mat.Vector, error) {
	if x == nil || x.Len() != 3 {
		return nil, fmt.Errorf("invalid state vector")
	}

	if u != nil && u.Len() != 2 {
		return nil, fmt.Errorf("invalid input vector")
	}

	if q != nil && q.Len() != 3 {
		return nil, fmt.Errorf("invalid process noise vector")
	}

	out := mat.VecDenseCopyOf(x)
	if u != nil {
		v, steer := u.AtVec(0), u.AtVec(1)
		heading := x.AtVec(CarHeading)
		out.SetVec(0, out.AtVec(0)+c.Dt*v*math.Cos(heading))
		out.SetVec(1, out.AtVec(1)+c.Dt*v*math.Sin(heading))
		out.SetVec(CarHeading, heading+c.Dt*v*math.Tan(steer)/c.Length)
	}

	if q != nil {
		out.AddScaledVec(out, c.ProcessStd, q)
	}

	return out, nil
}

// Observe returns beacon ranges and heading of the car in state x corrupted by noise r.
func (c *Car) Observe(x, r mat.Vector) (mat.Vector, error) {
	_, _, ny := c.SystemDims()

	if x == nil || x.Len() != 3 {
		return nil, fmt.Errorf("invalid state vector")
	}

	if r != nil && r.Len() != ny {
		return nil, fmt.Errorf("invalid observation noise vector")
	}

	out := mat.NewVecDense(ny, nil)
	for i, b := range c.Beacons {
		d := math.Hypot(x.AtVec(0)-b[0], x.AtVec(1)-b[1])
		if r != nil {
			d += (c.RangeStd + c.RangeScale*d) * r.AtVec(i)
		}
		out.SetVec(i, d)
	}

	heading := x.AtVec(CarHeading)
	if r != nil {
		heading += c.HeadingStd * r.AtVec(ny-1)
	}
	out.SetVec(ny-1, heading)

	return out, nil
}

// SystemDims returns state, input and output dimensions.
func (c *Car) SystemDims() (nx, nu, ny int) {
	return 3, 2, len(c.Beacons) + 1
}

// NoiseDims returns process and observation noise dimensions.
func (c *Car) NoiseDims() (nq, nr int) {
	return 3, len(c.Beacons) + 1
}

// Angles returns indices of the state components which are angles.
func (c *Car) Angles() []int {
	return []int{CarHeading}
}

// String implements the Stringer interface.
func (c *Car) String() string {
	return fmt.Sprintf("Car{Dt=%g, Length=%g, Beacons=%v}", c.Dt, c.Length, c.Beacons)
}
