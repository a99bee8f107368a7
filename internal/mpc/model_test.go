package mpc

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/autompc/internal/poly"
)

func testParams() Params {
	return Params{
		X: 0, Y: 0, Psi: 0, V: 5,
		CrossTrack: 0.4,
		HeadingErr: -0.1,
		Curve:      poly.Polynomial{0.001, -0.02, 0.3, 0.4},
	}
}

// testPoint builds a deterministic, non-trivial decision vector.
func testPoint(n int) []float64 {
	z := make([]float64, numBlocks*n)
	for i := range z {
		z[i] = 0.3*math.Sin(float64(i)) + 0.05*float64(i%7)
	}
	return z
}

func TestModelDimensions(t *testing.T) {
	for _, n := range []int{1, 2, 5, 10} {
		opts := DefaultOptions()
		opts.StepsAhead = n
		m, err := NewModel(opts)
		if err != nil {
			t.Fatalf("N=%d: %v", n, err)
		}
		if m.NumVars() != 8*n {
			t.Errorf("N=%d: NumVars = %d, want %d", n, m.NumVars(), 8*n)
		}
		if m.NumConstraints() != 6*n {
			t.Errorf("N=%d: NumConstraints = %d, want %d", n, m.NumConstraints(), 6*n)
		}
		cons := m.Constraints(testParams())
		if len(cons) != 6*n {
			t.Errorf("N=%d: got %d constraint functions, want %d", n, len(cons), 6*n)
		}
		lo, hi := m.Bounds(1, 1)
		if len(lo) != 8*n || len(hi) != 8*n {
			t.Errorf("N=%d: bounds lengths %d/%d, want %d", n, len(lo), len(hi), 8*n)
		}
	}
}

func TestModelConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		want   error
	}{
		{"horizon", func(o *Options) { o.StepsAhead = 0 }, ErrHorizon},
		{"timestep", func(o *Options) { o.Dt = 0 }, ErrTimestep},
		{"degree", func(o *Options) { o.PolyDegree = 0 }, ErrDegree},
		{"throttle", func(o *Options) { o.MaxThrottle = 0 }, ErrActuatorRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			if _, err := NewModel(opts); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

// Anchoring: when the first entry of every state series equals its
// initial-state parameter, the t=0 constraints evaluate to zero.
func TestModelAnchoring(t *testing.T) {
	opts := DefaultOptions()
	m, err := NewModel(opts)
	if err != nil {
		t.Fatal(err)
	}
	p := testParams()
	n := opts.StepsAhead

	z := testPoint(n)
	z[blockX*n] = p.X
	z[blockY*n] = p.Y
	z[blockPsi*n] = p.Psi
	z[blockV*n] = p.V
	z[blockCTE*n] = p.CrossTrack
	z[blockEPsi*n] = p.HeadingErr

	cons := m.Constraints(p)
	for block := 0; block < numStateBlocks; block++ {
		g := cons[block*n].F(z)
		if math.Abs(g) > 1e-12 {
			t.Errorf("block %d t=0 constraint = %v, want 0", block, g)
		}
	}
}

func TestCostGradMatchesFiniteDifference(t *testing.T) {
	opts := DefaultOptions()
	opts.StepsAhead = 4
	m, err := NewModel(opts)
	if err != nil {
		t.Fatal(err)
	}

	z := testPoint(4)
	grad := make([]float64, len(z))
	m.CostGrad(z, grad)

	const h = 1e-6
	for i := range z {
		zp := append([]float64(nil), z...)
		zm := append([]float64(nil), z...)
		zp[i] += h
		zm[i] -= h
		fd := (m.Cost(zp) - m.Cost(zm)) / (2 * h)
		if math.Abs(fd-grad[i]) > 1e-4*(1+math.Abs(fd)) {
			t.Errorf("cost gradient mismatch at %d: analytic %v, finite-difference %v", i, grad[i], fd)
		}
	}
}

func TestConstraintGradsMatchFiniteDifference(t *testing.T) {
	opts := DefaultOptions()
	opts.StepsAhead = 3
	m, err := NewModel(opts)
	if err != nil {
		t.Fatal(err)
	}
	p := testParams()
	z := testPoint(3)
	grad := make([]float64, len(z))

	const h = 1e-6
	for ci, con := range m.Constraints(p) {
		con.Grad(z, grad)
		for i := range z {
			zp := append([]float64(nil), z...)
			zm := append([]float64(nil), z...)
			zp[i] += h
			zm[i] -= h
			fd := (con.F(zp) - con.F(zm)) / (2 * h)
			if math.Abs(fd-grad[i]) > 1e-4*(1+math.Abs(fd)) {
				t.Errorf("constraint %d gradient mismatch at %d: analytic %v, finite-difference %v",
					ci, i, grad[i], fd)
			}
		}
	}
}

func TestBoundsLayout(t *testing.T) {
	opts := DefaultOptions()
	opts.StepsAhead = 3
	m, _ := NewModel(opts)
	lo, hi := m.Bounds(0.75, 1.25)

	n := 3
	for i := 0; i < 6*n; i++ {
		if !math.IsInf(lo[i], -1) || !math.IsInf(hi[i], 1) {
			t.Errorf("state bound %d should be unconstrained, got [%v, %v]", i, lo[i], hi[i])
		}
	}
	for t2 := 0; t2 < n; t2++ {
		ai := blockAcc*n + t2
		if lo[ai] != 0 || hi[ai] != 0.75 {
			t.Errorf("throttle bound %d = [%v, %v], want [0, 0.75]", t2, lo[ai], hi[ai])
		}
		si := blockSteer*n + t2
		if lo[si] != -1.25 || hi[si] != 1.25 {
			t.Errorf("steering bound %d = [%v, %v], want [-1.25, 1.25]", t2, lo[si], hi[si])
		}
	}
}
