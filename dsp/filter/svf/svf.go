// Package svf implements a topology-preserving-transform state variable
// filter. Unlike a chain of biquads it stays stable under fast coefficient
// modulation and high resonance, which is what the filter engines need.
package svf

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
)

// Output selects which response a Filter produces.
type Output int

const (
	Lowpass Output = iota
	Bandpass
	Highpass
	Notch
	Peak
)

// Filter is a TPT state variable filter with double-precision state.
type Filter struct {
	sampleRate float64
	cutoffHz   float64
	q          float64
	output     Output

	g  float64
	k  float64
	a1 float64
	a2 float64
	a3 float64

	ic1eq float64
	ic2eq float64
}

// New creates an SVF at the given sample rate with a 1 kHz cutoff.
func New(sampleRate float64) (*Filter, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("svf sample rate must be > 0: %f", sampleRate)
	}

	f := &Filter{
		sampleRate: sampleRate,
		cutoffHz:   1000,
		q:          1 / math.Sqrt2,
	}
	f.update()

	return f, nil
}

// SetSampleRate updates the sample rate and recomputes coefficients.
func (f *Filter) SetSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("svf sample rate must be > 0: %f", sampleRate)
	}

	f.sampleRate = sampleRate
	f.update()

	return nil
}

// SetOutput selects the filter response.
func (f *Filter) SetOutput(output Output) {
	f.output = output
}

// SetCutoff sets the cutoff frequency in Hz, clamped to a stable range.
func (f *Filter) SetCutoff(hz float64) {
	if math.IsNaN(hz) || math.IsInf(hz, 0) {
		return
	}

	f.cutoffHz = core.Clamp(hz, 10, f.sampleRate*0.49)
	f.update()
}

// SetQ sets the quality factor, clamped to [0.1, 40].
func (f *Filter) SetQ(q float64) {
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return
	}

	f.q = core.Clamp(q, 0.1, 40)
	f.update()
}

// Cutoff returns the cutoff frequency in Hz.
func (f *Filter) Cutoff() float64 { return f.cutoffHz }

// Q returns the quality factor.
func (f *Filter) Q() float64 { return f.q }

// Reset clears the integrator state.
func (f *Filter) Reset() {
	f.ic1eq = 0
	f.ic2eq = 0
}

// ProcessSample filters one sample through the selected output.
func (f *Filter) ProcessSample(x float64) float64 {
	low, band, high := f.Tick(x)

	switch f.output {
	case Bandpass:
		return band
	case Highpass:
		return high
	case Notch:
		return low + high
	case Peak:
		return low - high
	default:
		return low
	}
}

// Tick advances the filter one sample and returns all three primary outputs.
func (f *Filter) Tick(x float64) (low, band, high float64) {
	v3 := x - f.ic2eq
	v1 := f.a1*f.ic1eq + f.a2*v3
	v2 := f.ic2eq + f.a2*f.ic1eq + f.a3*v3

	f.ic1eq = core.FlushDenormals(2*v1 - f.ic1eq)
	f.ic2eq = core.FlushDenormals(2*v2 - f.ic2eq)

	band = v1
	low = v2
	high = x - f.k*v1 - v2

	return low, band, high
}

// ProcessBlock filters buf in place.
func (f *Filter) ProcessBlock(buf []float64) {
	for i := range buf {
		buf[i] = f.ProcessSample(buf[i])
	}
}

func (f *Filter) update() {
	f.g = math.Tan(math.Pi * f.cutoffHz / f.sampleRate)
	f.k = 1 / f.q
	f.a1 = 1 / (1 + f.g*(f.g+f.k))
	f.a2 = f.g * f.a1
	f.a3 = f.g * f.a2
}
