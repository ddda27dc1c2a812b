// Package viz renders belief trajectories.
package viz

import (
	"github.com/milosgajdos/go-bsp/trajectory"
	"go.uber.org/multierr"
)

// Visualizer shows belief trajectories
type Visualizer interface {
	// Show shows trajectory tr
	Show(tr *trajectory.Trajectory) error
}

// Nop is a Visualizer which does nothing
type Nop struct{}

// Show does nothing.
func (Nop) Show(*trajectory.Trajectory) error {
	return nil
}

// Multi shows trajectories with all of its visualizers
type Multi []Visualizer

// Show shows trajectory tr with every visualizer and returns their errors combined.
func (m Multi) Show(tr *trajectory.Trajectory) error {
	var err error
	for _, v := range m {
		err = multierr.Append(err, v.Show(tr))
	}

	return err
}
