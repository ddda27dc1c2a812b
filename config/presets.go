package config

import (
	"fmt"
	"sort"

	"github.com/milosgajdos/go-bsp/cost"
	"github.com/milosgajdos/go-bsp/scp"
	"github.com/milosgajdos/go-bsp/sim"
)

var presets = map[string]func() *Problem{
	Linear:    linearPreset,
	LightDark: lightDarkPreset,
	Car:       carPreset,
}

// Presets returns names of the available presets.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Preset returns a new copy of the named preset problem.
// It returns error if no such preset exists.
func Preset(name string) (*Problem, error) {
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset: %q", name)
	}

	return p(), nil
}

// linearPreset steers a noisy double integrator observed by its position
func linearPreset() *Problem {
	opt := scp.DefaultConfig()
	opt.ControlMin = []float64{-2.0}
	opt.ControlMax = []float64{2.0}

	return &Problem{
		Model: ModelConfig{
			Kind: Linear,
			Dt:   DefaultDt,
			Linear: LinearConfig{
				A: [][]float64{{1.0, 1.0}, {0.0, 1.0}},
				B: [][]float64{{0.5}, {1.0}},
				C: [][]float64{{1.0, 0.0}},
				M: [][]float64{{0.1, 0.0}, {0.0, 0.1}},
				N: [][]float64{{0.5}},
			},
		},
		Steps: DefaultSteps,
		Seed:  1,
		Init: InitConfig{
			Mean: []float64{0.0, 0.0},
			Std:  []float64{0.5, 0.5},
		},
		Cost: cost.Belief{
			Q:          1.0,
			QFinal:     10.0,
			R:          1.0,
			Goal:       []float64{10.0, 0.0},
			GoalWeight: 10.0,
		},
		Optimizer: opt,
	}
}

// lightDarkPreset moves the robot toward the light to localize before heading to the goal
func lightDarkPreset() *Problem {
	opt := scp.DefaultConfig()
	opt.StateMin = []float64{-2.0, -2.0}
	opt.StateMax = []float64{7.0, 5.0}
	opt.ControlMin = []float64{-1.0, -1.0}
	opt.ControlMax = []float64{1.0, 1.0}

	return &Problem{
		Model: ModelConfig{
			Kind: LightDark,
			Dt:   DefaultDt,
			LightDark: LightDarkConfig{
				Light:      5.0,
				ProcessStd: 0.01,
				MinObsVar:  0.01,
			},
		},
		Steps: DefaultSteps,
		Seed:  1,
		Init: InitConfig{
			Mean:  []float64{2.0, 2.0},
			Std:   []float64{1.0, 1.0},
			State: []float64{2.5, 0.0},
		},
		Cost: cost.Belief{
			Q:          1.0,
			QFinal:     100.0,
			R:          1.0,
			Goal:       []float64{0.0, 0.0},
			GoalWeight: 10.0,
		},
		Optimizer: opt,
	}
}

// carPreset drives the car between two range beacons
func carPreset() *Problem {
	opt := scp.DefaultConfig()
	opt.TrustGroups = []scp.TrustGroup{
		{Name: "position", Size: 1.0},
		{Name: "heading", Size: 0.5},
		{Name: "control", Size: 0.5},
	}
	opt.StateGroups = []int{0, 0, 1}
	opt.Angles = []int{sim.CarHeading}
	opt.ControlMin = []float64{0.0, -0.6}
	opt.ControlMax = []float64{2.0, 0.6}

	return &Problem{
		Model: ModelConfig{
			Kind: Car,
			Dt:   0.5,
			Car: CarConfig{
				Length:     1.0,
				Beacons:    [][2]float64{{0.0, 5.0}, {10.0, 5.0}},
				ProcessStd: 0.01,
				RangeStd:   0.01,
				RangeScale: 0.1,
				HeadingStd: 0.05,
			},
		},
		Steps: DefaultSteps,
		Seed:  1,
		Init: InitConfig{
			Mean:    []float64{0.0, 0.0, 0.0},
			Std:     []float64{0.1, 0.1, 0.05},
			Control: []float64{1.0, 0.0},
		},
		Cost: cost.Belief{
			Q:          1.0,
			QFinal:     10.0,
			R:          0.1,
			Goal:       []float64{5.0, 3.0, 0.0},
			GoalWeight: 10.0,
			Angles:     []int{sim.CarHeading},
		},
		Optimizer: opt,
	}
}
