package solve

import (
	"math"
	"testing"
)

var unbounded = math.Inf(1)

func freeBounds(n int) ([]float64, []float64) {
	lo := make([]float64, n)
	hi := make([]float64, n)
	for i := range lo {
		lo[i] = -unbounded
		hi[i] = unbounded
	}
	return lo, hi
}

// min x^2 + y^2 subject to x + y = 1; solution (0.5, 0.5).
func sphereProblem() Problem {
	lo, hi := freeBounds(2)
	return Problem{
		Objective: func(x []float64) float64 { return x[0]*x[0] + x[1]*x[1] },
		Gradient: func(x, g []float64) {
			g[0] = 2 * x[0]
			g[1] = 2 * x[1]
		},
		Equalities: []Constraint{{
			F: func(x []float64) float64 { return x[0] + x[1] - 1 },
			Grad: func(x, g []float64) {
				g[0] = 1
				g[1] = 1
			},
		}},
		Lower: lo,
		Upper: hi,
	}
}

func TestSolveEqualityConstrained(t *testing.T) {
	var s SQP
	res, err := s.Solve(sphereProblem(), []float64{3, -2}, Options{Tolerance: 1e-8, MaxIter: 200})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Status.Success() {
		t.Fatalf("status = %v", res.Status)
	}
	for i, want := range []float64{0.5, 0.5} {
		if math.Abs(res.X[i]-want) > 1e-5 {
			t.Errorf("x[%d] = %v, want %v", i, res.X[i], want)
		}
	}
}

func TestSolveRespectsBounds(t *testing.T) {
	// min (x-2)^2 with x <= 1: optimum pinned at the bound.
	p := Problem{
		Objective: func(x []float64) float64 { return (x[0] - 2) * (x[0] - 2) },
		Gradient:  func(x, g []float64) { g[0] = 2 * (x[0] - 2) },
		Lower:     []float64{-1},
		Upper:     []float64{1},
	}
	var s SQP
	res, err := s.Solve(p, []float64{0}, Options{Tolerance: 1e-8, MaxIter: 200})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.X[0] < -1-1e-12 || res.X[0] > 1+1e-12 {
		t.Errorf("solution %v escapes bounds", res.X[0])
	}
	if math.Abs(res.X[0]-1) > 1e-4 {
		t.Errorf("x = %v, want 1", res.X[0])
	}
}

func TestSolveEqualityWithActiveBound(t *testing.T) {
	// min (x-3)^2 + y^2 subject to x + y = 2 with x <= 1. On the
	// constraint line the unconstrained minimizer sits at x = 2.5, so
	// the bound is active at the solution: (1, 1).
	p := Problem{
		Objective: func(x []float64) float64 {
			return (x[0]-3)*(x[0]-3) + x[1]*x[1]
		},
		Gradient: func(x, g []float64) {
			g[0] = 2 * (x[0] - 3)
			g[1] = 2 * x[1]
		},
		Equalities: []Constraint{{
			F: func(x []float64) float64 { return x[0] + x[1] - 2 },
			Grad: func(x, g []float64) {
				g[0] = 1
				g[1] = 1
			},
		}},
		Lower: []float64{-1, -5},
		Upper: []float64{1, 5},
	}
	var s SQP
	res, err := s.Solve(p, []float64{0, 0}, Options{Tolerance: 1e-8, MaxIter: 200})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Status.Success() {
		t.Fatalf("status = %v", res.Status)
	}
	for i, want := range []float64{1, 1} {
		if math.Abs(res.X[i]-want) > 1e-5 {
			t.Errorf("x[%d] = %v, want %v", i, res.X[i], want)
		}
	}
	if vio := math.Abs(res.X[0] + res.X[1] - 2); vio > 1e-6 {
		t.Errorf("constraint violated by %v at the bound-active solution", vio)
	}
}

func TestSolveAnchoredChainPinsActuator(t *testing.T) {
	// A one-step speed-tracking chain: v0 is anchored, v1 = v0 + 0.1*a,
	// the objective pulls v1 toward a far target, and a is boxed to
	// [0, 1]. The equality rows must stay satisfiable while a sits on
	// its upper bound; solution (5, 5.1, 1).
	p := Problem{
		Objective: func(x []float64) float64 {
			dv := x[1] - 20
			return 0.4 * dv * dv
		},
		Gradient: func(x, g []float64) {
			g[0] = 0
			g[1] = 0.8 * (x[1] - 20)
			g[2] = 0
		},
		Equalities: []Constraint{
			{
				F: func(x []float64) float64 { return x[0] - 5 },
				Grad: func(x, g []float64) {
					g[0], g[1], g[2] = 1, 0, 0
				},
			},
			{
				F: func(x []float64) float64 { return x[1] - x[0] - 0.1*x[2] },
				Grad: func(x, g []float64) {
					g[0], g[1], g[2] = -1, 1, -0.1
				},
			},
		},
		Lower: []float64{-unbounded, -unbounded, 0},
		Upper: []float64{unbounded, unbounded, 1},
	}
	var s SQP
	res, err := s.Solve(p, []float64{5, 5, 0}, Options{Tolerance: 1e-8, MaxIter: 200})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Status.Success() {
		t.Fatalf("status = %v", res.Status)
	}
	for i, want := range []float64{5, 5.1, 1} {
		if math.Abs(res.X[i]-want) > 1e-5 {
			t.Errorf("x[%d] = %v, want %v", i, res.X[i], want)
		}
	}
}

func TestSolveNonlinearConstraint(t *testing.T) {
	// min x + y subject to x^2 + y^2 = 2; solution (-1, -1).
	lo, hi := freeBounds(2)
	p := Problem{
		Objective: func(x []float64) float64 { return x[0] + x[1] },
		Gradient: func(x, g []float64) {
			g[0] = 1
			g[1] = 1
		},
		Equalities: []Constraint{{
			F: func(x []float64) float64 { return x[0]*x[0] + x[1]*x[1] - 2 },
			Grad: func(x, g []float64) {
				g[0] = 2 * x[0]
				g[1] = 2 * x[1]
			},
		}},
		Lower: lo,
		Upper: hi,
	}
	var s SQP
	res, err := s.Solve(p, []float64{-0.5, -1.5}, Options{Tolerance: 1e-8, MaxIter: 300})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Status.Success() {
		t.Fatalf("status = %v", res.Status)
	}
	for i := range res.X {
		if math.Abs(res.X[i]-(-1)) > 1e-4 {
			t.Errorf("x[%d] = %v, want -1", i, res.X[i])
		}
	}
}

func TestSolveDeterministic(t *testing.T) {
	var s SQP
	opts := Options{Tolerance: 1e-8, MaxIter: 200}
	a, err := s.Solve(sphereProblem(), []float64{3, -2}, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Solve(sphereProblem(), []float64{3, -2}, opts)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.X {
		if a.X[i] != b.X[i] {
			t.Errorf("solution differs between identical runs at %d: %v vs %v", i, a.X[i], b.X[i])
		}
	}
	if a.Iterations != b.Iterations {
		t.Errorf("iteration count differs: %d vs %d", a.Iterations, b.Iterations)
	}
}

func TestSolveBadProblem(t *testing.T) {
	var s SQP
	if _, err := s.Solve(Problem{}, nil, Options{}); err == nil {
		t.Error("expected error for empty guess")
	}

	p := sphereProblem()
	p.Lower = []float64{0} // wrong length
	if _, err := s.Solve(p, []float64{1, 1}, Options{}); err == nil {
		t.Error("expected error for mismatched bounds")
	}
}

func TestStatusString(t *testing.T) {
	if Converged.String() != "converged" {
		t.Errorf("unexpected string: %s", Converged)
	}
	if ExceededMaxIter.Success() {
		t.Error("non-converged status should not report success")
	}
}
