// Package config loads and saves belief space planning problems.
package config

import (
	"fmt"
	"os"

	bsp "github.com/milosgajdos/go-bsp"
	"github.com/milosgajdos/go-bsp/belief"
	"github.com/milosgajdos/go-bsp/cost"
	"github.com/milosgajdos/go-bsp/noise"
	"github.com/milosgajdos/go-bsp/scp"
	"github.com/milosgajdos/go-bsp/sim"
	"github.com/milosgajdos/go-bsp/trajectory"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

const (
	// Linear is a linear discrete-time model
	Linear = "linear"
	// Continuous is a linear continuous-time model discretized with Dt
	Continuous = "continuous"
	// LightDark is a planar robot localized near a light source
	LightDark = "lightdark"
	// Car is a kinematic car localized by beacon ranges
	Car = "car"
)

const (
	// DefaultSteps is default trajectory length
	DefaultSteps = 15
	// DefaultDt is default discretization time step
	DefaultDt = 1.0
)

// LinearConfig configures linear models. Matrices are stored row by row.
type LinearConfig struct {
	A [][]float64 `yaml:"a"`
	B [][]float64 `yaml:"b,omitempty"`
	C [][]float64 `yaml:"c"`
	M [][]float64 `yaml:"m,omitempty"`
	N [][]float64 `yaml:"n,omitempty"`
}

// LightDarkConfig configures the light-dark model
type LightDarkConfig struct {
	Light      float64 `yaml:"light"`
	ProcessStd float64 `yaml:"process_std"`
	MinObsVar  float64 `yaml:"min_obs_var"`
}

// CarConfig configures the car model
type CarConfig struct {
	Length     float64      `yaml:"length"`
	Beacons    [][2]float64 `yaml:"beacons"`
	ProcessStd float64      `yaml:"process_std"`
	RangeStd   float64      `yaml:"range_std"`
	RangeScale float64      `yaml:"range_scale"`
	HeadingStd float64      `yaml:"heading_std"`
}

// ModelConfig selects the system model and its parameters
type ModelConfig struct {
	Kind      string          `yaml:"kind"`
	Dt        float64         `yaml:"dt"`
	Linear    LinearConfig    `yaml:"linear,omitempty"`
	LightDark LightDarkConfig `yaml:"lightdark,omitempty"`
	Car       CarConfig       `yaml:"car,omitempty"`
}

// InitConfig configures the initial belief, the true initial state and the initial controls
type InitConfig struct {
	// Mean is initial belief mean
	Mean []float64 `yaml:"mean"`
	// Std are standard deviations of the diagonal initial covariance
	Std []float64 `yaml:"std"`
	// State is true initial state; nil means Mean
	State []float64 `yaml:"state,omitempty"`
	// Control is constant control of the initial rollout; nil means zero control
	Control []float64 `yaml:"control,omitempty"`
}

// Problem is a belief space planning problem
type Problem struct {
	Model     ModelConfig `yaml:"model"`
	Steps     int         `yaml:"steps"`
	Seed      uint64      `yaml:"seed"`
	Init      InitConfig  `yaml:"init"`
	Cost      cost.Belief `yaml:"cost"`
	Optimizer *scp.Config `yaml:"optimizer"`
}

// DefaultProblem returns the default problem: the light-dark preset.
func DefaultProblem() *Problem {
	p, _ := Preset(LightDark)
	return p
}

// Load reads problem from yaml file in path overlaying it on DefaultProblem.
func Load(path string) (*Problem, error) {
	p := DefaultProblem()
	if err := p.Overlay(path); err != nil {
		return nil, err
	}

	return p, nil
}

// Overlay overlays yaml file in path on problem p.
func (p *Problem) Overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, p); err != nil {
		return errors.Wrapf(err, "failed to parse %s", path)
	}

	return nil
}

// Save writes problem p to yaml file in path.
func Save(path string, p *Problem) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// System creates the system model of the problem and returns it.
// It returns error if the model kind is unknown or its parameters are invalid.
func (p *Problem) System() (bsp.Model, error) {
	m := p.Model

	switch m.Kind {
	case Linear, Continuous:
		var mx [5]*mat.Dense
		for i, rows := range [][][]float64{m.Linear.A, m.Linear.B, m.Linear.C, m.Linear.M, m.Linear.N} {
			d, err := dense(rows)
			if err != nil {
				return nil, err
			}
			mx[i] = d
		}
		if m.Kind == Linear {
			d, err := sim.NewDiscrete(mx[0], mx[1], mx[2], mx[3], mx[4])
			if err != nil {
				return nil, err
			}
			return d, nil
		}
		ct, err := sim.NewContinuous(mx[0], mx[1], mx[2], mx[3], mx[4])
		if err != nil {
			return nil, err
		}
		d, err := ct.ToDiscrete(m.Dt)
		if err != nil {
			return nil, err
		}
		return d, nil
	case LightDark:
		c := m.LightDark
		ld, err := sim.NewLightDark(m.Dt, c.Light, c.ProcessStd, c.MinObsVar)
		if err != nil {
			return nil, err
		}
		return ld, nil
	case Car:
		c := m.Car
		car, err := sim.NewCar(m.Dt, c.Length, c.Beacons)
		if err != nil {
			return nil, err
		}
		car.ProcessStd = c.ProcessStd
		car.RangeStd = c.RangeStd
		car.RangeScale = c.RangeScale
		car.HeadingStd = c.HeadingStd
		return car, nil
	}

	return nil, fmt.Errorf("unknown model: %q", m.Kind)
}

// Validate validates problem p against its system model.
// It returns all problem errors combined.
func (p *Problem) Validate() error {
	m, err := p.System()
	if err != nil {
		return errors.Wrap(err, "invalid model")
	}

	nx, nu, _ := m.SystemDims()

	if p.Steps < 2 {
		err = multierr.Append(err, fmt.Errorf("invalid number of steps: %d", p.Steps))
	}
	if len(p.Init.Mean) != nx {
		err = multierr.Append(err, fmt.Errorf("invalid initial mean dimension: %d", len(p.Init.Mean)))
	}
	if len(p.Init.Std) != nx {
		err = multierr.Append(err, fmt.Errorf("invalid initial std dimension: %d", len(p.Init.Std)))
	}
	if p.Init.State != nil && len(p.Init.State) != nx {
		err = multierr.Append(err, fmt.Errorf("invalid initial state dimension: %d", len(p.Init.State)))
	}
	if p.Init.Control != nil && len(p.Init.Control) != nu {
		err = multierr.Append(err, fmt.Errorf("invalid initial control dimension: %d", len(p.Init.Control)))
	}
	if e := p.Cost.Validate(nx); e != nil {
		err = multierr.Append(err, errors.Wrap(e, "invalid cost"))
	}
	if p.Optimizer == nil {
		err = multierr.Append(err, errors.New("missing optimizer config"))
	} else if e := p.Optimizer.Validate(nx, nu); e != nil {
		err = multierr.Append(err, errors.Wrap(e, "invalid optimizer config"))
	}

	return err
}

// Belief returns the initial belief.
func (p *Problem) Belief() (*belief.Belief, error) {
	n := len(p.Init.Std)
	cov := mat.NewSymDense(n, nil)
	for i, s := range p.Init.Std {
		cov.SetSym(i, i, s*s)
	}

	return belief.New(mat.NewVecDense(len(p.Init.Mean), append([]float64(nil), p.Init.Mean...)), cov)
}

// State returns the true initial state.
func (p *Problem) State() *mat.VecDense {
	x := p.Init.State
	if x == nil {
		x = p.Init.Mean
	}

	return mat.NewVecDense(len(x), append([]float64(nil), x...))
}

// Trajectory rolls the initial belief out through dyn by the initial control and returns the trajectory.
func (p *Problem) Trajectory(dyn trajectory.Dynamics) (*trajectory.Trajectory, error) {
	b, err := p.Belief()
	if err != nil {
		return nil, err
	}

	_, nu := dyn.Dims()
	controls := make([][]float64, p.Steps-1)
	for t := range controls {
		controls[t] = make([]float64, nu)
		copy(controls[t], p.Init.Control)
	}

	return trajectory.Rollout(dyn, b.Vec(nil), controls)
}

// Noise returns unit Gaussian process and observation noise of system m seeded with the problem seed.
// Zero dimensional noise is returned as nil.
func (p *Problem) Noise(m bsp.Model) (q, r bsp.Noise, err error) {
	nq, nr := m.NoiseDims()

	if nq > 0 {
		if q, err = unitGaussian(nq, p.Seed); err != nil {
			return nil, nil, err
		}
	}

	if nr > 0 {
		if r, err = unitGaussian(nr, p.Seed+1); err != nil {
			return nil, nil, err
		}
	}

	return q, r, nil
}

func unitGaussian(n int, seed uint64) (*noise.Gaussian, error) {
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		cov.SetSym(i, i, 1.0)
	}

	return noise.NewGaussian(make([]float64, n), cov, seed)
}

// dense returns matrix of rows or nil if rows are empty
func dense(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, nil
	}

	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, fmt.Errorf("invalid matrix row %d length: %d", i, len(row))
		}
		m.SetRow(i, row)
	}

	return m, nil
}
