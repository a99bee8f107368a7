package poly

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Polynomial stores coefficients ordered from the highest degree term down,
// so Polynomial{2, 0, 1} is 2x^2 + 1.
type Polynomial []float64

func (p Polynomial) Degree() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

// Eval evaluates the polynomial at x using Horner's method.
func (p Polynomial) Eval(x float64) float64 {
	acc := 0.0
	for _, c := range p {
		acc = acc*x + c
	}
	return acc
}

// Deriv returns the first derivative as a new polynomial.
func (p Polynomial) Deriv() Polynomial {
	if len(p) <= 1 {
		return Polynomial{0}
	}
	d := make(Polynomial, len(p)-1)
	n := len(p) - 1
	for i := 0; i < n; i++ {
		d[i] = p[i] * float64(n-i)
	}
	return d
}

// Constant returns the degree-zero coefficient.
func (p Polynomial) Constant() float64 {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1]
}

// Slope returns the coefficient of the linear term.
func (p Polynomial) Slope() float64 {
	if len(p) < 2 {
		return 0
	}
	return p[len(p)-2]
}

// Fit computes a least-squares polynomial of the given degree through the
// points (xs[i], ys[i]). The system is solved through an SVD with singular
// values below rcond*sigma_max treated as zero, so underdetermined fits
// (fewer points than degree+1) yield the minimum-norm solution rather than
// an error.
func Fit(xs, ys []float64, degree int) (Polynomial, error) {
	if degree < 1 {
		return nil, fmt.Errorf("poly: fit degree must be >= 1, got %d", degree)
	}
	if len(xs) == 0 || len(xs) != len(ys) {
		return nil, fmt.Errorf("poly: need matching sample slices, got %d/%d", len(xs), len(ys))
	}

	rows, cols := len(xs), degree+1
	a := mat.NewDense(rows, cols, nil)
	for i, x := range xs {
		v := 1.0
		for j := cols - 1; j >= 0; j-- {
			a.Set(i, j, v)
			v *= x
		}
	}
	b := mat.NewVecDense(rows, nil)
	for i, y := range ys {
		b.SetVec(i, y)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("poly: SVD factorization failed for %d samples", rows)
	}

	vals := svd.Values(nil)
	larger := rows
	if cols > larger {
		larger = cols
	}
	tol := float64(larger) * vals[0] * machEps
	rank := 0
	for _, s := range vals {
		if s > tol {
			rank++
		}
	}
	var sol mat.VecDense
	svd.SolveVecTo(&sol, b, rank)

	out := make(Polynomial, cols)
	for j := 0; j < cols; j++ {
		out[j] = sol.AtVec(j)
	}
	return out, nil
}

var machEps = math.Nextafter(1, 2) - 1
