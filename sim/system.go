package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// System defines a linear model of a plant using
// traditional matrices of modern control theory
// extended with noise shaping matrices.
//
// It contains the System (A), input (B), Observation/Output (C),
// process noise (M) and observation noise (N) matrices.
type System struct {
	// System/State matrix A
	A *mat.Dense
	// Control/Input Matrix B
	B *mat.Dense
	// Observation/Output Matrix C
	C *mat.Dense
	// Process noise matrix M
	M *mat.Dense
	// Observation noise matrix N
	N *mat.Dense
}

func newSystem(A, B, C, M, N *mat.Dense) System {
	sys := System{A: mat.DenseCopyOf(A)}
	if B != nil {
		sys.B = mat.DenseCopyOf(B)
	}
	if C != nil {
		sys.C = mat.DenseCopyOf(C)
	}
	if M != nil {
		sys.M = mat.DenseCopyOf(M)
	}
	if N != nil {
		sys.N = mat.DenseCopyOf(N)
	}
	return sys
}

func (s System) validate() error {
	if s.A == nil {
		return fmt.Errorf("system matrix must be defined for a model")
	}
	if s.C == nil {
		return fmt.Errorf("output matrix must be defined for a model")
	}

	nx, _, ny := s.SystemDims()

	if r, c := s.A.Dims(); r != c {
		return fmt.Errorf("system matrix must be square: [%d x %d]", r, c)
	}
	if s.B != nil {
		if r, _ := s.B.Dims(); r != nx {
			return fmt.Errorf("invalid control matrix rows: %d", r)
		}
	}
	if _, c := s.C.Dims(); c != nx {
		return fmt.Errorf("invalid output matrix columns: %d", c)
	}
	if s.M != nil {
		if r, _ := s.M.Dims(); r != nx {
			return fmt.Errorf("invalid process noise matrix rows: %d", r)
		}
	}
	if s.N != nil {
		if r, _ := s.N.Dims(); r != ny {
			return fmt.Errorf("invalid observation noise matrix rows: %d", r)
		}
	}
	return nil
}

// SystemDims returns internal state length (nx), input vector length (nu)
// and external/observable/output state length (ny).
func (s System) SystemDims() (nx, nu, ny int) {
	nx, _ = s.A.Dims()
	if s.B != nil {
		_, nu = s.B.Dims()
	}
	if s.C != nil {
		ny, _ = s.C.Dims()
	}
	return nx, nu, ny
}

// NoiseDims returns process noise length (nq) and observation noise length (nr).
func (s System) NoiseDims() (nq, nr int) {
	if s.M != nil {
		_, nq = s.M.Dims()
	}
	if s.N != nil {
		_, nr = s.N.Dims()
	}
	return nq, nr
}

// SystemMatrix returns state propagation matrix `A`.
func (s System) SystemMatrix() (A mat.Matrix) { return s.A }

// ControlMatrix returns state propagation control matrix `B`
func (s System) ControlMatrix() (B mat.Matrix) {
	if s.B == nil {
		return nil
	}
	return s.B
}

// OutputMatrix returns observation matrix `C`
func (s System) OutputMatrix() (C mat.Matrix) {
	if s.C == nil {
		return nil
	}
	return s.C
}

// Observe returns external/observable state given internal state x.
// Observation noise r is shaped by N and added to the output.
func (s System) Observe(x, r mat.Vector) (y mat.Vector, err error) {
	nx, _, _ := s.SystemDims()
	_, nr := s.NoiseDims()

	if x == nil || x.Len() != nx {
		return nil, fmt.Errorf("invalid state vector")
	}

	if r != nil && r.Len() != nr {
		return nil, fmt.Errorf("invalid observation noise vector")
	}

	out := new(mat.VecDense)
	out.MulVec(s.C, x)

	if r != nil && s.N != nil {
		outR := new(mat.VecDense)
		outR.MulVec(s.N, r)

		out.AddVec(out, outR)
	}

	return out, nil
}
