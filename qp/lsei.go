package qp

import (
	"context"
	"math"
	"time"

	"github.com/curioloop/optimizer/slsqp"
	"github.com/pkg/errors"
)

const (
	// DefaultReg is default proximal regularization of LSEI objective
	DefaultReg = 1e-6
	// maxStepScale bounds the unconstrained step of a variable in units of the distance to the bound it descends to
	maxStepScale = 10.0
	// boundTol is relative tolerance of solution bound violations
	boundTol = 1e-6
)

// ErrTimeout is returned when QP solve does not finish in time
var ErrTimeout = errors.New("qp: solve timed out")

// LSEI solves stage QPs as a single least squares problem with linear equality and inequality constraints:
//
//	min |E*z - f|  s.t.  C*z = d, G*z >= h
//
// E is diagonal with E_ii = sqrt(H_ii + w_i) where w_i is a proximal weight pulling
// the solution toward the stage reference point, or toward the centre of the variable box
// if the stage has none. The weight is at least Reg*max(1, H_ii). Variables with negligible
// curvature, such as penalized slacks, get a larger weight so that their unconstrained step
// stays within a few multiples of the distance to the bound they descend to.
// The proximal term never makes the solution worse than the reference point
// when the reference point is feasible.
type LSEI struct {
	// Reg is proximal regularization; zero value means DefaultReg
	Reg float64
	// MaxIter limits NNLS iterations; zero lets the solver pick the limit
	MaxIter int
	// Timeout limits solve time; zero means no limit
	Timeout time.Duration
}

// NewLSEI creates new LSEI solver and returns it.
func NewLSEI(reg float64, timeout time.Duration) *LSEI {
	return &LSEI{
		Reg:     reg,
		Timeout: timeout,
	}
}

// Solve solves the QP given by stages.
// It returns error if the stages are invalid, or ErrTimeout if the solve does not finish in time or ctx is done.
// The underlying solver can not be interrupted: after ErrTimeout it keeps running in the background
// until it returns, and its result is discarded.
// Solver failures, including solutions violating the bounds, are reported via Result.Status.
func (l *LSEI) Solve(ctx context.Context, stages []*Stage) (*Result, error) {
	if err := Validate(stages); err != nil {
		return nil, errors.Wrap(err, "invalid QP")
	}

	reg := l.Reg
	if reg <= 0 {
		reg = DefaultReg
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(ErrTimeout, err.Error())
	}

	s := newSession(stages, reg, l.MaxIter)

	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	done := make(chan *Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &Result{Status: SolverError}
			}
		}()
		done <- s.solve()
	}()

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return nil, errors.Wrap(ErrTimeout, ctx.Err().Error())
	}
}

// session holds the assembled problem of a single Solve call
type session struct {
	stages  []*Stage
	offset  []int
	n       int
	reg     float64
	maxIter int
}

func newSession(stages []*Stage, reg float64, maxIter int) *session {
	s := &session{
		stages:  stages,
		offset:  make([]int, len(stages)),
		reg:     reg,
		maxIter: maxIter,
	}

	for t, st := range stages {
		s.offset[t] = s.n
		s.n += st.Dim()
	}

	return s
}

// bounds returns the bounds of global variable k
func (s *session) bounds(k int) (lb, ub float64) {
	for t := len(s.stages) - 1; t >= 0; t-- {
		if k >= s.offset[t] {
			i := k - s.offset[t]
			return s.stages[t].Lb[i], s.stages[t].Ub[i]
		}
	}

	return math.Inf(-1), math.Inf(1)
}

func (s *session) solve() *Result {
	n := s.n

	// equality rows: dynamics coupling followed by fixed variables
	var (
		eqRows  [][]float64
		eqRHS   []float64
		inRows  []int
		inSigns []float64
		inRHS   []float64
	)

	for t, st := range s.stages {
		if st.Kind != Interior {
			continue
		}
		next := s.offset[t+1]
		for r := 0; r < st.Rows(); r++ {
			row := make([]float64, n)
			for j := 0; j < st.Dim(); j++ {
				row[s.offset[t]+j] = st.C.At(r, j)
			}
			for j := 0; j < s.stages[t+1].Dim(); j++ {
				row[next+j] = st.D.At(r, j)
			}
			eqRows = append(eqRows, row)
			eqRHS = append(eqRHS, st.E[r])
		}
	}

	for k := 0; k < n; k++ {
		lb, ub := s.bounds(k)
		switch {
		case lb == ub:
			row := make([]float64, n)
			row[k] = 1
			eqRows = append(eqRows, row)
			eqRHS = append(eqRHS, lb)
		default:
			if !math.IsInf(lb, -1) {
				inRows = append(inRows, k)
				inSigns = append(inSigns, 1)
				inRHS = append(inRHS, lb)
			}
			if !math.IsInf(ub, 1) {
				inRows = append(inRows, k)
				inSigns = append(inSigns, -1)
				inRHS = append(inRHS, -ub)
			}
		}
	}

	mc, mg, me := len(eqRows), len(inRows), n
	lc, lg, le := max(1, mc), max(1, mg), n

	// column major storage
	c := make([]float64, lc*n)
	d := make([]float64, lc)
	for i, row := range eqRows {
		for j, v := range row {
			c[i+lc*j] = v
		}
		d[i] = eqRHS[i]
	}

	g := make([]float64, lg*n)
	h := make([]float64, lg)
	for i, k := range inRows {
		g[i+lg*k] = inSigns[i]
		h[i] = inRHS[i]
	}

	e := make([]float64, le*n)
	f := make([]float64, le)
	for t, st := range s.stages {
		for i := 0; i < st.Dim(); i++ {
			k := s.offset[t] + i
			h := math.Max(st.H[i], 0)
			ref := reference(st, i)
			w := proximal(st, i, h, ref, s.reg)
			diag := math.Sqrt(h + w)
			e[k+le*k] = diag
			f[k] = -(st.F[i] - w*ref) / diag
		}
	}

	x := make([]float64, n)
	w := make([]float64, 2*mc+me+(me+mg)*(n-mc)+(n-mc+1)*(mg+2)+2*mg)
	jw := make([]int, max(1, max(mg, min(me, n-mc))))

	maxIter := s.maxIter
	if maxIter <= 0 {
		maxIter = 5 * max(n, mg)
	}

	_, mode := slsqp.LSEI(c, d, e, f, g, h, lc, mc, le, me, lg, mg, n, x, w, jw, maxIter)

	switch mode {
	case slsqp.HasSolution:
	case slsqp.ConsIncompatible, slsqp.LSEISingularC:
		return &Result{Status: Infeasible}
	default:
		return &Result{Status: SolverError}
	}

	res := &Result{
		Status: OK,
		Primal: make([][]float64, len(s.stages)),
	}

	for t, st := range s.stages {
		z := make([]float64, st.Dim())
		copy(z, x[s.offset[t]:s.offset[t]+st.Dim()])
		for i, v := range z {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &Result{Status: SolverError}
			}
			lb, ub := st.Lb[i], st.Ub[i]
			if v < lb-boundTol*math.Max(1, math.Abs(lb)) || v > ub+boundTol*math.Max(1, math.Abs(ub)) {
				return &Result{Status: SolverError}
			}
			z[i] = math.Min(math.Max(v, lb), ub)
		}
		res.Primal[t] = z
		res.Objective += st.Objective(z)
	}

	return res
}

// proximal returns proximal weight of variable i of stage st with curvature h at reference point ref
func proximal(st *Stage, i int, h, ref, reg float64) float64 {
	w := reg * math.Max(1, h)

	// gradient at the reference point
	g := h*ref + st.F[i]
	if g == 0 {
		return w
	}

	bound := st.Lb[i]
	if g < 0 {
		bound = st.Ub[i]
	}

	scale := math.Max(1, math.Abs(ref-bound))
	if math.IsInf(bound, 0) {
		scale = math.Max(1, math.Abs(ref))
	}

	if math.Abs(g) > maxStepScale*scale*(h+w) {
		w = math.Abs(g)/(maxStepScale*scale) - h
	}

	return w
}

// reference returns the regularization target of variable i of stage st
func reference(st *Stage, i int) float64 {
	lb, ub := st.Lb[i], st.Ub[i]
	if st.Ref != nil {
		return math.Min(math.Max(st.Ref[i], lb), ub)
	}

	if math.IsInf(lb, 0) || math.IsInf(ub, 0) {
		return 0
	}

	return 0.5 * (lb + ub)
}
