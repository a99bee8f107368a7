package poly

import (
	"math"
	"testing"
)

func TestEval(t *testing.T) {
	p := Polynomial{2, -3, 1, 5} // 2x^3 - 3x^2 + x + 5
	tests := []struct {
		x, want float64
	}{
		{0, 5},
		{1, 5},
		{2, 11},
		{-1, -1},
	}
	for _, tt := range tests {
		if got := p.Eval(tt.x); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Eval(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestDeriv(t *testing.T) {
	p := Polynomial{2, -3, 1, 5}
	d := p.Deriv() // 6x^2 - 6x + 1
	if len(d) != 3 {
		t.Fatalf("expected 3 coefficients, got %d", len(d))
	}
	if got := d.Eval(2); math.Abs(got-13) > 1e-12 {
		t.Errorf("d(2) = %v, want 13", got)
	}

	c := Polynomial{7}
	dc := c.Deriv()
	if dc.Eval(3) != 0 {
		t.Error("derivative of constant should be zero")
	}
}

func TestFitExact(t *testing.T) {
	// Quadratic through three points should be recovered exactly.
	want := Polynomial{1, -2, 3} // x^2 - 2x + 3
	xs := []float64{-1, 0, 2}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = want.Eval(x)
	}

	got, err := Fit(xs, ys, 2)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("coefficient %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFitUnderdetermined(t *testing.T) {
	// A single sample with a cubic fit must produce the minimum-norm
	// solution that still passes through the point.
	p, err := Fit([]float64{10}, []float64{2}, 3)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if len(p) != 4 {
		t.Fatalf("expected 4 coefficients, got %d", len(p))
	}
	if got := p.Eval(10); math.Abs(got-2) > 1e-9 {
		t.Errorf("fit does not interpolate the sample: p(10) = %v", got)
	}
	if p.Constant() <= 0 {
		t.Errorf("expected positive intercept for positive offset, got %v", p.Constant())
	}
}

func TestFitZeroSamples(t *testing.T) {
	p, err := Fit([]float64{10}, []float64{0}, 3)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	for i, c := range p {
		if math.Abs(c) > 1e-12 {
			t.Errorf("coefficient %d should be 0, got %v", i, c)
		}
	}
}

func TestFitBadInput(t *testing.T) {
	if _, err := Fit(nil, nil, 3); err == nil {
		t.Error("expected error for empty samples")
	}
	if _, err := Fit([]float64{1}, []float64{1}, 0); err == nil {
		t.Error("expected error for degenerate degree")
	}
	if _, err := Fit([]float64{1, 2}, []float64{1}, 2); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}
