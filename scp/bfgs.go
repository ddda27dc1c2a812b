package scp

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// dampingThreshold triggers Powell damping when s'y < dampingThreshold*s'Bs
	dampingThreshold = 0.2
	// curvatureEps is the smallest curvature treated as positive
	curvatureEps = 1e-12
)

// curvature is damped BFGS approximation of the cost Hessian over the stacked trajectory vector
type curvature struct {
	b *mat.SymDense
}

func newCurvature(n int) *curvature {
	b := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		b.SetSym(i, i, 1.0)
	}

	return &curvature{b: b}
}

// setDiag resets the approximation to diagonal matrix with diagonal d
func (c *curvature) setDiag(d []float64) {
	n := c.b.SymmetricDim()
	c.b.Zero()
	for i := 0; i < n; i++ {
		c.b.SetSym(i, i, d[i])
	}
}

// diag stores the diagonal of the approximation in dst
func (c *curvature) diag(dst []float64) []float64 {
	n := c.b.SymmetricDim()
	if dst == nil {
		dst = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		dst[i] = c.b.At(i, i)
	}

	return dst
}

// update applies damped BFGS update given step s and gradient change y.
// It returns false if the update was skipped.
func (c *curvature) update(s, y []float64) bool {
	n := len(s)
	sv := mat.NewVecDense(n, s)
	yv := mat.NewVecDense(n, y)

	bs := mat.NewVecDense(n, nil)
	bs.MulVec(c.b, sv)

	sBs := mat.Dot(sv, bs)
	sy := floats.Dot(s, y)

	if sBs <= curvatureEps {
		if sy <= curvatureEps {
			return false
		}
		c.b.SymRankOne(c.b, 1/sy, yv)
		return true
	}

	theta := 1.0
	if sy < dampingThreshold*sBs {
		theta = (1 - dampingThreshold) * sBs / (sBs - sy)
	}

	// r = theta*y + (1-theta)*B*s
	r := mat.NewVecDense(n, nil)
	r.AddScaledVec(r, theta, yv)
	r.AddScaledVec(r, 1-theta, bs)

	sr := mat.Dot(sv, r)
	if sr <= curvatureEps {
		return false
	}

	c.b.SymRankOne(c.b, -1/sBs, bs)
	c.b.SymRankOne(c.b, 1/sr, r)

	return true
}
