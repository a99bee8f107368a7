// Package analysis inspects logged trajectories for steering oscillation.
// A tuned controller tracks the route with slow corrections; a strong
// narrow peak in the steering or heading spectrum means the loop is
// weaving and the weights need work.
package analysis

import (
	"math"
	"math/cmplx"
)

// FFT computes the radix-2 discrete Fourier transform. The input length
// must be a power of two; use Pad first for arbitrary traces.
func FFT(data []float64) []complex128 {
	n := len(data)
	if n <= 1 {
		result := make([]complex128, n)
		for i := range data {
			result[i] = complex(data[i], 0)
		}
		return result
	}
	if n%2 != 0 {
		panic("analysis: fft requires power of 2 length")
	}

	even := make([]float64, n/2)
	odd := make([]float64, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = data[2*i]
		odd[i] = data[2*i+1]
	}

	feven := FFT(even)
	fodd := FFT(odd)

	result := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		w := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
		result[k] = feven[k] + w*fodd[k]
		result[k+n/2] = feven[k] - w*fodd[k]
	}
	return result
}

// Pad zero-extends the trace to the next power of two.
func Pad(data []float64) []float64 {
	n := 1
	for n < len(data) {
		n *= 2
	}
	padded := make([]float64, n)
	copy(padded, data)
	return padded
}

// PowerSpectrum returns the one-sided magnitude spectrum of the trace.
func PowerSpectrum(data []float64) []float64 {
	fft := FFT(Pad(data))
	ps := make([]float64, len(fft)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(fft[i])
	}
	return ps
}

// Oscillation summarizes the dominant periodic component of a trace.
type Oscillation struct {
	// Frequency in Hz of the strongest non-DC component.
	Frequency float64
	// Period in seconds, 0 when no component stands out.
	Period float64
	Power  float64
}

// DominantOscillation finds the strongest non-DC spectral peak of a trace
// sampled at dt intervals.
func DominantOscillation(data []float64, dt float64) Oscillation {
	if len(data) < 2 || dt <= 0 {
		return Oscillation{}
	}
	ps := PowerSpectrum(data)

	maxIdx, maxPower := 0, 0.0
	for i := 1; i < len(ps); i++ {
		if ps[i] > maxPower {
			maxPower = ps[i]
			maxIdx = i
		}
	}
	if maxIdx == 0 {
		return Oscillation{}
	}

	// The padded transform has 2*len(ps) bins across the sample rate.
	freq := float64(maxIdx) / (float64(2*len(ps)) * dt)
	osc := Oscillation{Frequency: freq, Power: maxPower}
	if freq > 0 {
		osc.Period = 1 / freq
	}
	return osc
}
