package scp

// trustRegion holds per group trust region sizes
type trustRegion struct {
	sizes  []float64
	init   []float64
	min    float64
	max    float64
	shrink float64
	expand float64
}

func newTrustRegion(c *Config) *trustRegion {
	init := make([]float64, len(c.TrustGroups))
	for i, g := range c.TrustGroups {
		init[i] = g.Size
	}

	tr := &trustRegion{
		sizes:  make([]float64, len(init)),
		init:   init,
		min:    c.MinTrustRegionSize,
		max:    c.MaxTrustSize,
		shrink: c.TrustShrinkRatio,
		expand: c.TrustExpandRatio,
	}
	tr.reset()

	return tr
}

// reset restores initial sizes
func (tr *trustRegion) reset() {
	copy(tr.sizes, tr.init)
}

// size returns trust region size of group g
func (tr *trustRegion) size(g int) float64 {
	return tr.sizes[g]
}

// shrinkAll shrinks all sizes
func (tr *trustRegion) shrinkAll() {
	for i := range tr.sizes {
		tr.sizes[i] *= tr.shrink
	}
}

// expandAll expands all sizes up to the maximum size
func (tr *trustRegion) expandAll() {
	for i := range tr.sizes {
		tr.sizes[i] *= tr.expand
		if tr.sizes[i] > tr.max {
			tr.sizes[i] = tr.max
		}
	}
}

// converged returns true if all sizes are below the minimum size
func (tr *trustRegion) converged() bool {
	for _, s := range tr.sizes {
		if s >= tr.min {
			return false
		}
	}

	return true
}

// snapshot returns a copy of the current sizes
func (tr *trustRegion) snapshot() []float64 {
	return append([]float64(nil), tr.sizes...)
}
