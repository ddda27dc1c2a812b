package scp

import (
	"github.com/milosgajdos/go-bsp/belief"
	"github.com/milosgajdos/go-bsp/qp"
)

// layout indexes the stacked vector [b_0, u_0, b_1, u_1, ..., b_{T-1}] and QP stage variables.
// Interior stage variables are [b_t | u_t | s+_t | s-_t], terminal stage variables are [b_{T-1}].
type layout struct {
	nx   int
	nu   int
	bdim int
	T    int
}

func newLayout(nx, nu, T int) layout {
	return layout{
		nx:   nx,
		nu:   nu,
		bdim: belief.Dim(nx),
		T:    T,
	}
}

// dim returns the length of the stacked vector
func (l layout) dim() int {
	return l.T*l.bdim + (l.T-1)*l.nu
}

// belief returns stacked index of the first component of b_t
func (l layout) belief(t int) int {
	return t * (l.bdim + l.nu)
}

// control returns stacked index of the first component of u_t
func (l layout) control(t int) int {
	return l.belief(t) + l.bdim
}

// kind returns the kind of stage t
func (l layout) kind(t int) qp.StageKind {
	if t == l.T-1 {
		return qp.Terminal
	}

	return qp.Interior
}

// stageDim returns the number of variables of stage t
func (l layout) stageDim(t int) int {
	if l.kind(t) == qp.Terminal {
		return l.bdim
	}

	return l.bdim + l.nu + 2*l.bdim
}

// stacked returns the stacked part [b_t, u_t] of stage variables z
func (l layout) stacked(t int, z []float64) []float64 {
	if l.kind(t) == qp.Terminal {
		return z[:l.bdim]
	}

	return z[:l.bdim+l.nu]
}

// groups returns trust group of every stacked vector component
func (l layout) groups(c *Config) []int {
	controlGroup := len(c.TrustGroups) - 1

	g := make([]int, l.dim())
	for t := 0; t < l.T; t++ {
		k := l.belief(t)
		for i := 0; i < l.nx; i++ {
			g[k+i] = 0
			if c.StateGroups != nil {
				g[k+i] = c.StateGroups[i]
			}
		}
		for i := l.nx; i < l.bdim; i++ {
			g[k+i] = c.CovGroup
		}
		if t == l.T-1 {
			continue
		}
		k = l.control(t)
		for i := 0; i < l.nu; i++ {
			g[k+i] = controlGroup
			if c.ControlGroups != nil {
				g[k+i] = c.ControlGroups[i]
			}
		}
	}

	return g
}
