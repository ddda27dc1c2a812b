// Package cost defines trajectory cost functions and their derivatives.
package cost

import (
	"fmt"

	"github.com/curioloop/optimizer/numdiff"
	"github.com/milosgajdos/go-bsp/trajectory"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
)

const (
	// DefaultCurvatureStep is default finite difference step of second derivatives
	DefaultCurvatureStep = 1e-3
)

// Func is trajectory cost function
type Func interface {
	// Cost returns the cost of trajectory tr
	Cost(tr *trajectory.Trajectory) float64
}

// FuncOf adapts ordinary function to Func
type FuncOf func(tr *trajectory.Trajectory) float64

// Cost returns f(tr).
func (f FuncOf) Cost(tr *trajectory.Trajectory) float64 {
	return f(tr)
}

// Gradienter computes cost gradient with respect to the stacked trajectory vector
type Gradienter interface {
	// Gradient stores cost gradient at tr in dst
	Gradient(dst []float64, tr *trajectory.Trajectory)
}

// HessianDiager computes the diagonal of cost Hessian with respect to the stacked trajectory vector
type HessianDiager interface {
	// HessianDiag stores the diagonal of cost Hessian at tr in dst
	HessianDiag(dst []float64, tr *trajectory.Trajectory)
}

// Settings configure numerical differentiation of cost functions
type Settings struct {
	// Step is absolute gradient step. Zero value selects the step automatically.
	Step float64
	// CurvatureStep is second derivative step. Zero value means DefaultCurvatureStep.
	CurvatureStep float64
}

// Gradient computes gradient of f at trajectory tr with respect to the stacked vector
// [b_0, u_0, b_1, u_1, ..., b_{T-1}] and stores it in dst.
// Analytic gradient is used if f implements Gradienter, otherwise central finite differences are computed.
// It returns error if dst has invalid length or the numerical differentiation fails.
func Gradient(dst []float64, f Func, tr *trajectory.Trajectory, s *Settings) error {
	n := tr.Dim()
	if len(dst) != n {
		return fmt.Errorf("invalid gradient length: %d", len(dst))
	}

	if g, ok := f.(Gradienter); ok {
		g.Gradient(dst, tr)
		return nil
	}

	work := tr.Clone()
	approx := numdiff.ApproxSpec{
		N: n,
		M: 1,
		Object: func(x, y []float64) {
			// x length always matches the trajectory dimension
			_ = work.Unflatten(x)
			y[0] = f.Cost(work)
		},
		Method: numdiff.Central,
	}

	if s != nil {
		approx.AbsStep = s.Step
	}

	if err := approx.Diff(tr.Flatten(nil), dst); err != nil {
		return errors.Wrap(err, "cost gradient")
	}

	return nil
}

// HessianDiag computes the diagonal of Hessian of f at trajectory tr with respect to the stacked vector
// and stores it in dst.
// Analytic values are used if f implements HessianDiager, otherwise central second differences are computed.
// It returns error if dst has invalid length.
func HessianDiag(dst []float64, f Func, tr *trajectory.Trajectory, s *Settings) error {
	n := tr.Dim()
	if len(dst) != n {
		return fmt.Errorf("invalid hessian diagonal length: %d", len(dst))
	}

	if h, ok := f.(HessianDiager); ok {
		h.HessianDiag(dst, tr)
		return nil
	}

	step := DefaultCurvatureStep
	if s != nil && s.CurvatureStep > 0 {
		step = s.CurvatureStep
	}

	work := tr.Clone()
	p := tr.Flatten(nil)
	x := make([]float64, n)

	for i := range dst {
		copy(x, p)
		fn := func(v float64) float64 {
			x[i] = v
			_ = work.Unflatten(x)
			return f.Cost(work)
		}
		dst[i] = fd.Derivative(fn, p[i], &fd.Settings{
			Formula: fd.Central2nd,
			Step:    step,
		})
	}

	return nil
}
