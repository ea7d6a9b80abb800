// Package window generates analysis windows for the overlap-add and
// spectral engines.
package window

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Hann returns a periodic Hann window of length n.
func Hann(n int) []float64 {
	if n <= 0 {
		return nil
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}

	return w
}

// HannPoisson returns a Hann window multiplied by a Poisson (exponential)
// taper with decay alpha. Larger alpha suppresses the window edges harder,
// which keeps overlapped grains free of periodic artifacts.
func HannPoisson(n int, alpha float64) []float64 {
	if n <= 0 {
		return nil
	}

	w := Hann(n)
	half := float64(n-1) / 2

	for i := range w {
		d := math.Abs(float64(i) - half)
		w[i] *= math.Exp(-alpha * d / half)
	}

	return w
}

// Kaiser returns a Kaiser window of length n with shape parameter beta.
func Kaiser(n int, beta float64) []float64 {
	if n <= 0 {
		return nil
	}

	w := make([]float64, n)
	den := besselI0(beta)
	half := float64(n-1) / 2

	for i := range w {
		r := (float64(i) - half) / half
		w[i] = besselI0(beta*math.Sqrt(1-r*r)) / den
	}

	return w
}

// ApplyInPlace multiplies buf by coeffs element-wise. The slices must be the
// same length.
func ApplyInPlace(buf, coeffs []float64) {
	vecmath.MulBlockInPlace(buf, coeffs)
}

// besselI0 computes the zeroth-order modified Bessel function by power
// series. Converges quickly for the beta range used in window design.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	half := x / 2

	for k := 1; k < 64; k++ {
		term *= (half / float64(k)) * (half / float64(k))
		sum += term

		if term < 1e-21*sum {
			break
		}
	}

	return sum
}
