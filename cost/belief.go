package cost

import (
	"fmt"

	"github.com/milosgajdos/go-bsp/trajectory"
)

// Belief is a quadratic belief space cost:
//
//	sum_t Q*tr(Cov_t) + R*|u_t|^2 + QFinal*tr(Cov_{T-1}) + GoalWeight*|mean_{T-1} - Goal|^2
//
// Covariance traces are computed from the packed covariance square roots.
// Differences of angular mean components are wrapped to the nearest equivalent angle.
type Belief struct {
	// Q weights covariance trace of non-terminal beliefs
	Q float64 `yaml:"q"`
	// QFinal weights covariance trace of the terminal belief
	QFinal float64 `yaml:"q_final"`
	// R weights control effort
	R float64 `yaml:"r"`
	// Goal is terminal mean target; nil disables goal cost
	Goal []float64 `yaml:"goal,omitempty"`
	// GoalWeight weights terminal mean distance from Goal
	GoalWeight float64 `yaml:"goal_weight"`
	// Angles are indices of angular mean components
	Angles []int `yaml:"angles,omitempty"`
}

// Validate validates cost parameters for state dimension nx.
func (c *Belief) Validate(nx int) error {
	if c.Q < 0 || c.QFinal < 0 || c.R < 0 || c.GoalWeight < 0 {
		return fmt.Errorf("negative cost weight")
	}

	if c.Goal != nil && len(c.Goal) != nx {
		return fmt.Errorf("invalid goal dimension: %d", len(c.Goal))
	}

	for _, i := range c.Angles {
		if i < 0 || i >= nx {
			return fmt.Errorf("invalid angle index: %d", i)
		}
	}

	return nil
}

// Cost returns the cost of trajectory tr.
func (c *Belief) Cost(tr *trajectory.Trajectory) float64 {
	T := tr.Len()
	nx := tr.Nx

	var total float64
	for t, b := range tr.Beliefs {
		w := c.Q
		if t == T-1 {
			w = c.QFinal
		}
		total += w * sqrtTrace(nx, b[nx:])
	}

	for _, u := range tr.Controls {
		for _, v := range u {
			total += c.R * v * v
		}
	}

	if c.Goal != nil {
		d := trajectory.WrapDiff(nil, tr.Beliefs[T-1][:nx], c.Goal, c.Angles)
		for _, v := range d {
			total += c.GoalWeight * v * v
		}
	}

	return total
}

// Gradient stores cost gradient at tr in dst.
func (c *Belief) Gradient(dst []float64, tr *trajectory.Trajectory) {
	c.derivative(dst, tr, false)
}

// HessianDiag stores the diagonal of cost Hessian at tr in dst.
func (c *Belief) HessianDiag(dst []float64, tr *trajectory.Trajectory) {
	c.derivative(dst, tr, true)
}

func (c *Belief) derivative(dst []float64, tr *trajectory.Trajectory, second bool) {
	T := tr.Len()
	nx := tr.Nx

	k := 0
	for t, b := range tr.Beliefs {
		w := c.Q
		if t == T-1 {
			w = c.QFinal
		}

		var goal []float64
		if t == T-1 && c.Goal != nil {
			goal = trajectory.WrapDiff(nil, b[:nx], c.Goal, c.Angles)
		}

		for i := 0; i < nx; i++ {
			dst[k] = 0
			if goal != nil {
				dst[k] = 2 * c.GoalWeight * goal[i]
				if second {
					dst[k] = 2 * c.GoalWeight
				}
			}
			k++
		}

		// off-diagonal square root entries appear twice in the trace
		l := nx
		for j := 0; j < nx; j++ {
			for i := j; i < nx; i++ {
				m := 2.0
				if i != j {
					m = 4.0
				}
				dst[k] = m * w * b[l]
				if second {
					dst[k] = m * w
				}
				k++
				l++
			}
		}

		if t < len(tr.Controls) {
			for _, v := range tr.Controls[t] {
				dst[k] = 2 * c.R * v
				if second {
					dst[k] = 2 * c.R
				}
				k++
			}
		}
	}
}

// sqrtTrace returns the trace of S*S for symmetric S given by its packed lower triangle.
func sqrtTrace(nx int, s []float64) float64 {
	var tr float64
	k := 0
	for j := 0; j < nx; j++ {
		for i := j; i < nx; i++ {
			if i == j {
				tr += s[k] * s[k]
			} else {
				tr += 2 * s[k] * s[k]
			}
			k++
		}
	}

	return tr
}
