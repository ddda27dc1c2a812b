// Package ekf implements Extended Kalman Filter belief dynamics.
package ekf

import (
	"fmt"

	bsp "github.com/milosgajdos/go-bsp"
	"github.com/milosgajdos/go-bsp/belief"
	"github.com/milosgajdos/go-bsp/linearize"
	"github.com/milosgajdos/go-bsp/matrix"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// EKF is Extended Kalman Filter
type EKF struct {
	// m is EKF system model
	m bsp.Model
	// lin linearizes system model
	lin *linearize.Linearizer
}

// New creates new EKF and returns it.
// It accepts the following parameters:
// - m: dynamical system model
// - s: linearization settings; nil means default settings
// It returns error if the model can not be linearized.
func New(m bsp.Model, s *linearize.Settings) (*EKF, error) {
	lin, err := linearize.New(m, s)
	if err != nil {
		return nil, err
	}

	return &EKF{
		m:   m,
		lin: lin,
	}, nil
}

// Predict propagates belief b to the next step given control u and returns the predicted belief.
// Predicted covariance is A*P*A' + M*M' where A and M are dynamics Jacobians at the belief mean.
// It returns error if the system dynamics can not be linearized.
func (k *EKF) Predict(b *belief.Belief, u mat.Vector) (*belief.Belief, error) {
	x, cov, err := k.predict(b, u)
	if err != nil {
		return nil, err
	}

	return belief.New(x, cov)
}

// Propagate returns the belief b after applying control u and taking the expected observation.
// The mean follows the noise free dynamics and the covariance is reduced by the Kalman gain
// computed at the predicted mean. Observation update is skipped when the predicted covariance is zero.
// It returns error wrapping bsp.ErrNumericalSingularity if the innovation covariance can not be factorized.
func (k *EKF) Propagate(b *belief.Belief, u mat.Vector) (*belief.Belief, error) {
	x, cov, err := k.predict(b, u)
	if err != nil {
		return nil, err
	}

	if matrix.IsZero(cov) {
		return belief.NewWithSqrt(x, cov)
	}

	obs, err := k.lin.Observation(x)
	if err != nil {
		return nil, err
	}

	gain, pht, err := k.gain(cov, obs)
	if err != nil {
		return nil, errors.Wrapf(err, "belief update at %v", mat.Formatted(x.T()))
	}

	// P - K*H*P
	corr := &mat.Dense{}
	corr.Mul(gain, pht.T())
	upd := &mat.Dense{}
	upd.Sub(cov, corr)

	sqrt, err := matrix.Sqrt(matrix.Symmetrize(upd))
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute covariance square root")
	}

	return belief.NewWithSqrt(x, sqrt)
}

// Correct corrects belief b using the measurement z and returns the corrected belief.
// The covariance is updated in Joseph form.
// It returns error wrapping bsp.ErrNumericalSingularity if the innovation covariance can not be factorized.
func (k *EKF) Correct(b *belief.Belief, z mat.Vector) (*belief.Belief, error) {
	nx, _, ny := k.m.SystemDims()

	if b == nil || b.Dim() != nx {
		return nil, fmt.Errorf("invalid belief: %v", b)
	}

	if z == nil || z.Len() != ny {
		return nil, fmt.Errorf("invalid measurement supplied: %v", z)
	}

	x := mat.VecDenseCopyOf(b.Mean())
	cov := b.Cov()

	obs, err := k.lin.Observation(x)
	if err != nil {
		return nil, err
	}

	gain, _, err := k.gain(cov, obs)
	if err != nil {
		return nil, errors.Wrapf(err, "measurement update at %v", mat.Formatted(x.T()))
	}

	// innovation vector
	inn := &mat.VecDense{}
	inn.SubVec(z, obs.Y)

	// update state x
	corr := &mat.VecDense{}
	corr.MulVec(gain, inn)
	x.AddVec(x, corr)

	// eye - K*H
	a := &mat.Dense{}
	a.Mul(gain, obs.H)
	a.Sub(matrix.Eye(nx), a)

	ap := &mat.Dense{}
	ap.Mul(a, cov)
	pCorr := &mat.Dense{}
	pCorr.Mul(ap, a.T())

	// K*N*N'*K'
	if obs.N != nil {
		kn := &mat.Dense{}
		kn.Mul(gain, obs.N)
		knnk := &mat.Dense{}
		knnk.Mul(kn, kn.T())
		pCorr.Add(pCorr, knnk)
	}

	return belief.New(x, matrix.Symmetrize(pCorr))
}

// Run runs one step of EKF for belief b, control u and measurement z and returns the filtered belief.
// It returns error if it either fails to predict or correct the belief.
func (k *EKF) Run(b *belief.Belief, u, z mat.Vector) (*belief.Belief, error) {
	pred, err := k.Predict(b, u)
	if err != nil {
		return nil, err
	}

	return k.Correct(pred, z)
}

// Step propagates packed belief vector b given control u and stores the packed result in out.
// It returns error if b, u or out have invalid lengths or if belief propagation fails.
func (k *EKF) Step(b, u, out []float64) error {
	nx, nu := k.Dims()

	if len(b) != belief.Dim(nx) || len(out) != belief.Dim(nx) {
		return fmt.Errorf("invalid belief vector length: %d, %d", len(b), len(out))
	}

	if len(u) != nu {
		return fmt.Errorf("invalid control vector length: %d", len(u))
	}

	bNow, err := belief.FromVec(nx, b)
	if err != nil {
		return err
	}

	var uNow mat.Vector
	if nu > 0 {
		uNow = mat.NewVecDense(nu, append([]float64(nil), u...))
	}

	bNext, err := k.Propagate(bNow, uNow)
	if err != nil {
		return err
	}

	bNext.Vec(out)

	return nil
}

// Dims returns state and control dimensions of the filtered model.
func (k *EKF) Dims() (nx, nu int) {
	nx, nu, _ = k.m.SystemDims()
	return nx, nu
}

// Model returns EKF model
func (k *EKF) Model() bsp.Model {
	return k.m
}

// Gain returns the Kalman gain of belief b.
// It returns error wrapping bsp.ErrNumericalSingularity if the innovation covariance can not be factorized.
func (k *EKF) Gain(b *belief.Belief) (mat.Matrix, error) {
	nx, _, _ := k.m.SystemDims()

	if b == nil || b.Dim() != nx {
		return nil, fmt.Errorf("invalid belief: %v", b)
	}

	obs, err := k.lin.Observation(b.Mean())
	if err != nil {
		return nil, err
	}

	gain, _, err := k.gain(b.Cov(), obs)
	if err != nil {
		return nil, err
	}

	return gain, nil
}

// gain returns Kalman gain P*H'*W^-1 and P*H' for covariance cov and observation linearization obs
func (k *EKF) gain(cov mat.Symmetric, obs *linearize.Observation) (*mat.Dense, *mat.Dense, error) {
	// W = H*P*H' + N*N'
	pht, w, err := k.innovationCov(cov, obs)
	if err != nil {
		return nil, nil, err
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(w); !ok {
		return nil, nil, errors.Wrap(bsp.ErrNumericalSingularity, "innovation covariance not positive definite")
	}

	// W^-1 * H*P
	whp := &mat.Dense{}
	if err := chol.SolveTo(whp, pht.T()); err != nil {
		return nil, nil, errors.Wrap(bsp.ErrNumericalSingularity, err.Error())
	}

	gain := &mat.Dense{}
	gain.CloneFrom(whp.T())

	return gain, pht, nil
}

func (k *EKF) predict(b *belief.Belief, u mat.Vector) (*mat.VecDense, *mat.SymDense, error) {
	nx, _ := k.Dims()

	if b == nil || b.Dim() != nx {
		return nil, nil, fmt.Errorf("invalid belief: %v", b)
	}

	dyn, err := k.lin.Dynamics(b.Mean(), u)
	if err != nil {
		return nil, nil, err
	}

	// A*P*A'
	cov := &mat.Dense{}
	cov.Mul(dyn.A, b.Cov())
	cov.Mul(cov, dyn.A.T())

	// M*M'
	if dyn.M != nil {
		mm := &mat.Dense{}
		mm.Mul(dyn.M, dyn.M.T())
		cov.Add(cov, mm)
	}

	return dyn.X, matrix.Symmetrize(cov), nil
}

func (k *EKF) innovationCov(cov mat.Symmetric, obs *linearize.Observation) (*mat.Dense, *mat.SymDense, error) {
	if obs == nil || obs.H == nil {
		return nil, nil, fmt.Errorf("invalid observation linearization")
	}

	// P*H'
	pht := &mat.Dense{}
	pht.Mul(cov, obs.H.T())

	// H*P*H'
	w := &mat.Dense{}
	w.Mul(obs.H, pht)

	if obs.N != nil {
		nn := &mat.Dense{}
		nn.Mul(obs.N, obs.N.T())
		w.Add(w, nn)
	}

	return pht, matrix.Symmetrize(w), nil
}
