package scp

import (
	"math"

	"github.com/milosgajdos/go-bsp/qp"
	"github.com/milosgajdos/go-bsp/trajectory"
	"gonum.org/v1/gonum/mat"
)

// linearization is belief dynamics linearization around the current trajectory
type linearization struct {
	// A are belief Jacobians dg/db
	A []*mat.Dense
	// B are control Jacobians dg/du
	B []*mat.Dense
	// G are propagated beliefs g(b_t, u_t)
	G [][]float64
	// D are wrapped dynamics residuals b_{t+1} - g(b_t, u_t)
	D [][]float64
}

// violation returns total absolute dynamics residual
func (lin *linearization) violation() float64 {
	var v float64
	for _, d := range lin.D {
		for _, x := range d {
			v += math.Abs(x)
		}
	}

	return v
}

// stageBuilder builds QP stages around the current trajectory
type stageBuilder struct {
	cfg    *Config
	l      layout
	groups []int
}

func newStageBuilder(cfg *Config, l layout) *stageBuilder {
	return &stageBuilder{
		cfg:    cfg,
		l:      l,
		groups: l.groups(cfg),
	}
}

// build returns QP stages at stacked point p with cost gradient grad, curvature diagonal hdiag,
// dynamics linearization lin, penalty and trust region sizes tr.
// It also returns the model constant so that QP objective plus the constant is the model merit.
func (sb *stageBuilder) build(p, grad, hdiag []float64, lin *linearization, penalty float64, tr *trustRegion) ([]*qp.Stage, float64) {
	l := sb.l
	stages := make([]*qp.Stage, l.T)

	var constant float64
	for t := 0; t < l.T; t++ {
		n := l.stageDim(t)
		st := &qp.Stage{
			Kind: l.kind(t),
			H:    make([]float64, n),
			F:    make([]float64, n),
			Lb:   make([]float64, n),
			Ub:   make([]float64, n),
			Ref:  make([]float64, n),
		}

		base := l.belief(t)
		m := l.bdim
		if st.Kind == qp.Interior {
			m += l.nu
		}

		for i := 0; i < m; i++ {
			k := base + i
			h := math.Max(hdiag[k], 0)
			st.H[i] = h
			st.F[i] = grad[k] - h*p[k]
			st.Ref[i] = p[k]
			st.Lb[i], st.Ub[i] = sb.bounds(t, i, p, tr)
			constant += -grad[k]*p[k] + 0.5*h*p[k]*p[k]
		}

		if st.Kind == qp.Interior {
			sb.dynamics(st, t, p, lin, penalty)
		}

		stages[t] = st
	}

	return stages, constant
}

// dynamics fills the slack variables and equality constraints of interior stage t
func (sb *stageBuilder) dynamics(st *qp.Stage, t int, p []float64, lin *linearization, penalty float64) {
	l := sb.l
	bdim, nu := l.bdim, l.nu
	n := l.stageDim(t)
	sp := bdim + nu
	sm := sp + bdim

	for i := 0; i < bdim; i++ {
		st.F[sp+i] = penalty
		st.F[sm+i] = penalty
		st.Lb[sp+i], st.Ub[sp+i] = 0, math.Inf(1)
		st.Lb[sm+i], st.Ub[sm+i] = 0, math.Inf(1)
		st.Ref[sp+i] = math.Max(lin.D[t][i], 0)
		st.Ref[sm+i] = math.Max(-lin.D[t][i], 0)
	}

	// b_{t+1} - A*b_t - B*u_t - s+ + s- = b'_{t+1} - A*b'_t - B*u'_t - d
	st.C = mat.NewDense(bdim, n, nil)
	st.D = mat.NewDense(bdim, l.stageDim(t+1), nil)
	st.E = make([]float64, bdim)

	A, B := lin.A[t], lin.B[t]
	bNow := p[l.belief(t) : l.belief(t)+bdim]
	uNow := p[l.control(t) : l.control(t)+nu]
	bNext := p[l.belief(t+1) : l.belief(t+1)+bdim]

	for r := 0; r < bdim; r++ {
		e := bNext[r] - lin.D[t][r]
		for j := 0; j < bdim; j++ {
			st.C.Set(r, j, -A.At(r, j))
			e -= A.At(r, j) * bNow[j]
		}
		for j := 0; j < nu; j++ {
			st.C.Set(r, bdim+j, -B.At(r, j))
			e -= B.At(r, j) * uNow[j]
		}
		st.C.Set(r, sp+r, -1)
		st.C.Set(r, sm+r, 1)
		st.D.Set(r, r, 1)
		st.E[r] = e
	}
}

// bounds returns bounds of component i of the stacked part of stage t
func (sb *stageBuilder) bounds(t, i int, p []float64, tr *trustRegion) (lo, hi float64) {
	l := sb.l
	k := l.belief(t) + i

	// initial belief is the boundary condition
	if t == 0 && i < l.bdim {
		return p[k], p[k]
	}

	// stages past the horizon reuse the horizon boundary bounds
	src := t
	if h := sb.cfg.Horizon; h > 0 && t > h {
		src = h
	}
	ks := l.belief(src) + i

	lo, hi = sb.window(ks, i, p, tr)

	if src != t {
		lo, hi = math.Min(lo, p[k]), math.Max(hi, p[k])
	}

	if t == l.T-1 && i < l.nx && sb.cfg.Goal != nil {
		lo, hi = sb.goal(i, p[k], lo, hi)
	}

	return lo, hi
}

// window returns trust window of stacked component k intersected with the global limits.
// i is the index of k within its stage.
func (sb *stageBuilder) window(k, i int, p []float64, tr *trustRegion) (lo, hi float64) {
	l := sb.l
	size := tr.size(sb.groups[k])
	lo, hi = p[k]-size, p[k]+size

	var limLo, limHi []float64
	j := i
	switch {
	case i < l.nx:
		limLo, limHi = sb.cfg.StateMin, sb.cfg.StateMax
	case i >= l.bdim:
		limLo, limHi = sb.cfg.ControlMin, sb.cfg.ControlMax
		j = i - l.bdim
	default:
		// covariance components have no global limits
		return lo, hi
	}

	gLo, gHi := math.Inf(-1), math.Inf(1)
	if limLo != nil {
		gLo = limLo[j]
	}
	if limHi != nil {
		gHi = limHi[j]
	}

	return intersect(lo, hi, gLo, gHi)
}

// goal narrows terminal mean component i at x toward the goal region
func (sb *stageBuilder) goal(i int, x, lo, hi float64) (float64, float64) {
	g := sb.cfg.Goal[i]
	for _, a := range sb.cfg.Angles {
		if a == i {
			g = x + trajectory.NearestAngle(g-x)
		}
	}

	tol := sb.cfg.GoalTolerance
	gLo, gHi := math.Min(g-tol, x), math.Max(g+tol, x)

	return intersect(lo, hi, gLo, gHi)
}

// intersect intersects [lo, hi] with limits [gLo, gHi].
// Empty intersection collapses to the limit nearest to the window.
func intersect(lo, hi, gLo, gHi float64) (float64, float64) {
	switch {
	case hi < gLo:
		return gLo, gLo
	case lo > gHi:
		return gHi, gHi
	}

	return math.Max(lo, gLo), math.Min(hi, gHi)
}
