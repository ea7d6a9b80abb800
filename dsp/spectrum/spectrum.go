// Package spectrum provides small frequency-domain analysis helpers used by
// the render tool and the engine property tests.
package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-rack/dsp/window"
)

// Magnitude returns |X[k]| for each complex spectrum bin.
func Magnitude(in []complex128) []float64 {
	if len(in) == 0 {
		return nil
	}

	re := make([]float64, len(in))
	im := make([]float64, len(in))
	for i, c := range in {
		re[i] = real(c)
		im[i] = imag(c)
	}

	out := make([]float64, len(in))
	vecmath.Magnitude(out, re, im)

	return out
}

// PeakFrequency estimates the dominant frequency of samples in Hz using a
// Hann-windowed FFT and parabolic bin interpolation.
func PeakFrequency(samples []float64, sampleRate float64) (float64, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return 0, fmt.Errorf("spectrum sample rate must be > 0: %f", sampleRate)
	}

	if len(samples) < 16 {
		return 0, fmt.Errorf("spectrum needs at least 16 samples: %d", len(samples))
	}

	size := 1
	for size*2 <= len(samples) {
		size *= 2
	}

	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return 0, fmt.Errorf("spectrum: create FFT plan: %w", err)
	}

	win := window.Hann(size)
	in := make([]complex128, size)
	for i := 0; i < size; i++ {
		in[i] = complex(samples[i]*win[i], 0)
	}

	out := make([]complex128, size)

	err = plan.Forward(out, in)
	if err != nil {
		return 0, fmt.Errorf("spectrum: forward FFT: %w", err)
	}

	bins := size / 2
	peakBin := 1
	peakMag := 0.0

	for k := 1; k < bins; k++ {
		mag := cmplx.Abs(out[k])
		if mag > peakMag {
			peakMag = mag
			peakBin = k
		}
	}

	if peakMag == 0 {
		return 0, nil
	}

	// Parabolic interpolation over the log-magnitude of the three bins
	// around the peak refines the estimate well below one bin.
	offset := 0.0
	if peakBin > 1 && peakBin < bins-1 {
		a := math.Log(cmplx.Abs(out[peakBin-1]) + 1e-30)
		b := math.Log(peakMag + 1e-30)
		c := math.Log(cmplx.Abs(out[peakBin+1]) + 1e-30)

		den := a - 2*b + c
		if den != 0 {
			offset = 0.5 * (a - c) / den
		}
	}

	return (float64(peakBin) + offset) * sampleRate / float64(size), nil
}
