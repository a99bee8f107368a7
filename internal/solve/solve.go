// Package solve implements a small sequential-quadratic-programming solver
// for nonlinear programs with equality constraints and box bounds:
//
//	minimize f(x) subject to c_j(x) = 0 and l <= x <= u
//
// Each iteration solves the KKT system of a quadratic approximation of the
// Lagrangian (BFGS approximated Hessian), folding the bounds in through a
// working set: variables whose step would leave the box are fixed at the
// bound and the system is re-solved, so the search direction itself keeps
// the iterate inside the bounds while the equality rows stay satisfied.
// The accepted direction is line-searched on an L1 merit function.
// Objective and constraint gradients are supplied by the caller, so
// gradient accuracy is whatever the caller provides.
package solve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Func evaluates a scalar function of the decision vector.
type Func func(x []float64) float64

// Grad writes the gradient of a scalar function into grad, which has the
// same length as x.
type Grad func(x, grad []float64)

// Constraint pairs an equality-constraint value function with its exact
// gradient.
type Constraint struct {
	F    Func
	Grad Grad
}

// Problem is a complete program handed to Solve. Lower and Upper must have
// one entry per decision variable; use ±Inf for unconstrained entries.
type Problem struct {
	Objective  Func
	Gradient   Grad
	Equalities []Constraint
	Lower      []float64
	Upper      []float64
}

// Options control the iteration.
type Options struct {
	// Tolerance bounds both the step norm and the total constraint
	// violation accepted at convergence.
	Tolerance float64
	// MaxIter caps the number of SQP iterations.
	MaxIter int
}

// DefaultOptions returns the options used when a zero Options is passed.
func DefaultOptions() Options {
	return Options{Tolerance: 1e-6, MaxIter: 100}
}

// Status reports how an optimization run ended.
type Status int

const (
	Converged Status = iota
	ExceededMaxIter
	SearchNotDescent
	LineSearchFailed
	SingularKKT
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case ExceededMaxIter:
		return "exceeded max iterations"
	case SearchNotDescent:
		return "positive directional derivative for line search"
	case LineSearchFailed:
		return "line search failed"
	case SingularKKT:
		return "singular KKT system"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Success reports whether the run produced a usable solution.
func (s Status) Success() bool { return s == Converged }

// Result holds the final iterate regardless of status; X is only
// trustworthy when Status.Success().
type Result struct {
	X          []float64
	F          float64
	Status     Status
	Iterations int
}

// Solver is the interface consumed by callers that want to substitute the
// optimizer, e.g. to force failure paths in tests.
type Solver interface {
	Solve(p Problem, x0 []float64, opts Options) (Result, error)
}

// SQP is the default Solver implementation. The zero value is ready to use.
type SQP struct{}

const (
	armijoSlope   = 0.1
	maxBacktracks = 25
)

// Solve runs the SQP iteration from x0. It returns an error only for
// malformed problems (dimension mismatches); numerical failure modes are
// reported through Result.Status.
func (SQP) Solve(p Problem, x0 []float64, opts Options) (Result, error) {
	n := len(x0)
	m := len(p.Equalities)
	if n == 0 {
		return Result{}, fmt.Errorf("solve: empty initial guess")
	}
	if len(p.Lower) != n || len(p.Upper) != n {
		return Result{}, fmt.Errorf("solve: bounds length %d/%d does not match %d variables",
			len(p.Lower), len(p.Upper), n)
	}
	if p.Objective == nil || p.Gradient == nil {
		return Result{}, fmt.Errorf("solve: objective and gradient are required")
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultOptions().Tolerance
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultOptions().MaxIter
	}

	x := make([]float64, n)
	copy(x, x0)
	clampVec(x, p.Lower, p.Upper)

	// BFGS approximation of the Lagrangian Hessian, reset to identity on
	// breakdown at most once per run.
	hess := identity(n)
	hessReset := false

	g := make([]float64, n)
	gNew := make([]float64, n)
	c := make([]float64, m)
	jac := mat.NewDense(max(m, 1), n, nil)
	jacNew := mat.NewDense(max(m, 1), n, nil)
	row := make([]float64, n)
	xTrial := make([]float64, n)
	gradL := make([]float64, n)

	f := p.Objective(x)
	p.Gradient(x, g)
	evalConstraints(p, x, c, jac, row)

	rho := 1.0
	res := Result{Status: ExceededMaxIter}

	for iter := 1; iter <= opts.MaxIter; iter++ {
		res.Iterations = iter

		d, lambda, ok := solveStep(hess, jac, g, c, x, p.Lower, p.Upper, n, m)
		if !ok {
			if !hessReset {
				hess = identity(n)
				hessReset = true
				continue
			}
			return finish(res, x, f, SingularKKT), nil
		}

		// The working-set direction already respects the bounds, so its
		// norm is the projected step.
		vio := l1(c)
		if math.Sqrt(dot(d, d)) <= opts.Tolerance && vio <= opts.Tolerance {
			return finish(res, x, f, Converged), nil
		}

		for _, l := range lambda {
			if r := 2 * math.Abs(l); r > rho {
				rho = r
			}
		}

		merit0 := f + rho*vio
		dphi := dot(g, d) - rho*vio
		if dphi >= 0 {
			if !hessReset {
				hess = identity(n)
				hessReset = true
				continue
			}
			return finish(res, x, f, SearchNotDescent), nil
		}

		alpha, fTrial, accepted := 1.0, 0.0, false
		for ls := 0; ls < maxBacktracks; ls++ {
			for i := range x {
				xTrial[i] = x[i] + alpha*d[i]
			}
			clampVec(xTrial, p.Lower, p.Upper)
			fTrial = p.Objective(xTrial)
			vioTrial := 0.0
			for _, eq := range p.Equalities {
				vioTrial += math.Abs(eq.F(xTrial))
			}
			if fTrial+rho*vioTrial <= merit0+armijoSlope*alpha*dphi {
				accepted = true
				break
			}
			alpha *= 0.5
		}
		if !accepted {
			if !hessReset {
				hess = identity(n)
				hessReset = true
				continue
			}
			return finish(res, x, f, LineSearchFailed), nil
		}

		p.Gradient(xTrial, gNew)
		evalConstraints(p, xTrial, c, jacNew, row)

		// BFGS on the Lagrangian gradient difference, with Powell
		// damping to keep the approximation positive definite.
		lagGrad(gradL, g, jac, lambda, m)
		s := make([]float64, n)
		y := make([]float64, n)
		for i := range s {
			s[i] = xTrial[i] - x[i]
			y[i] = -gradL[i]
		}
		lagGrad(gradL, gNew, jacNew, lambda, m)
		for i := range y {
			y[i] += gradL[i]
		}
		updateBFGS(hess, s, y)

		copy(x, xTrial)
		copy(g, gNew)
		jac.Copy(jacNew)
		f = fTrial
	}

	return finish(res, x, f, ExceededMaxIter), nil
}

func finish(res Result, x []float64, f float64, st Status) Result {
	res.X = make([]float64, len(x))
	copy(res.X, x)
	res.F = f
	res.Status = st
	return res
}

func evalConstraints(p Problem, x, c []float64, jac *mat.Dense, row []float64) {
	for j, eq := range p.Equalities {
		c[j] = eq.F(x)
		eq.Grad(x, row)
		jac.SetRow(j, row)
	}
}

// solveStep computes the search direction with the bounds folded in as a
// working set. The KKT direction is computed, every free variable whose
// step would cross a bound is fixed at that bound, and the system is
// re-solved until the direction keeps x+d inside the box. Each pass adds
// at least one variable, so the loop runs at most n times.
func solveStep(hess *mat.SymDense, jac *mat.Dense, g, c, x, lo, hi []float64, n, m int) (d, lambda []float64, ok bool) {
	var fixed []int
	var steps []float64
	inSet := make([]bool, n)

	for {
		d, lambda, ok = solveKKT(hess, jac, g, c, n, m, fixed, steps)
		if !ok {
			return nil, nil, false
		}

		added := false
		for i := 0; i < n; i++ {
			if inSet[i] {
				continue
			}
			if xi := x[i] + d[i]; xi < lo[i] {
				fixed = append(fixed, i)
				steps = append(steps, lo[i]-x[i])
				inSet[i] = true
				added = true
			} else if xi > hi[i] {
				fixed = append(fixed, i)
				steps = append(steps, hi[i]-x[i])
				inSet[i] = true
				added = true
			}
		}
		if !added {
			return d, lambda, true
		}
	}
}

// solveKKT solves the first-order system of the quadratic subproblem, with
// working-set rows pinning fixed[j] to the step steps[j]:
//
//	[B Aᵀ Eᵀ][d]      [-g]
//	[A  0  0][λ(neg)] [-c]
//	[E  0  0][μ]      [steps]
//
// The multipliers of the working-set rows are discarded; lambda holds the
// equality multipliers only.
func solveKKT(hess *mat.SymDense, jac *mat.Dense, g, c []float64, n, m int, fixed []int, steps []float64) (d, lambda []float64, ok bool) {
	dim := n + m + len(fixed)
	kkt := mat.NewDense(dim, dim, nil)
	rhs := mat.NewVecDense(dim, nil)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			kkt.Set(i, j, hess.At(i, j))
		}
		rhs.SetVec(i, -g[i])
	}
	for j := 0; j < m; j++ {
		for i := 0; i < n; i++ {
			kkt.Set(n+j, i, jac.At(j, i))
			kkt.Set(i, n+j, jac.At(j, i))
		}
		rhs.SetVec(n+j, -c[j])
	}
	for j, i := range fixed {
		kkt.Set(n+m+j, i, 1)
		kkt.Set(i, n+m+j, 1)
		rhs.SetVec(n+m+j, steps[j])
	}

	var lu mat.LU
	lu.Factorize(kkt)
	var sol mat.VecDense
	if err := lu.SolveVecTo(&sol, false, rhs); err != nil {
		return nil, nil, false
	}

	d = make([]float64, n)
	lambda = make([]float64, m)
	for i := 0; i < n; i++ {
		d[i] = sol.AtVec(i)
	}
	for j := 0; j < m; j++ {
		lambda[j] = -sol.AtVec(n + j)
	}
	return d, lambda, true
}

// lagGrad writes grad f(x) - Aᵀλ into dst.
func lagGrad(dst, g []float64, jac *mat.Dense, lambda []float64, m int) {
	copy(dst, g)
	for j := 0; j < m; j++ {
		for i := range dst {
			dst[i] -= jac.At(j, i) * lambda[j]
		}
	}
}

func updateBFGS(hess *mat.SymDense, s, y []float64) {
	n := len(s)
	sv := mat.NewVecDense(n, s)
	var bs mat.VecDense
	bs.MulVec(hess, sv)

	sBs := mat.Dot(sv, &bs)
	if sBs <= 1e-12 {
		return
	}
	sy := dot(s, y)
	if sy < 0.2*sBs {
		theta := 0.8 * sBs / (sBs - sy)
		for i := range y {
			y[i] = theta*y[i] + (1-theta)*bs.AtVec(i)
		}
		sy = dot(s, y)
	}
	if sy <= 1e-12 {
		return
	}

	hess.SymRankOne(hess, -1/sBs, &bs)
	hess.SymRankOne(hess, 1/sy, mat.NewVecDense(n, y))
}

func identity(n int) *mat.SymDense {
	h := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		h.SetSym(i, i, 1)
	}
	return h
}

func clampVec(x, lo, hi []float64) {
	for i := range x {
		if x[i] < lo[i] {
			x[i] = lo[i]
		}
		if x[i] > hi[i] {
			x[i] = hi[i]
		}
	}
}

func l1(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += math.Abs(x)
	}
	return sum
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
