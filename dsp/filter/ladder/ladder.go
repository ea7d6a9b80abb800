// Package ladder implements a four-stage transistor-ladder lowpass with
// tanh stage saturation and resonance feedback.
package ladder

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
)

// Filter is a Moog-style ladder lowpass.
type Filter struct {
	sampleRate float64
	cutoffHz   float64
	resonance  float64
	drive      float64

	g    float64
	s    [4]float64
	comp float64
}

// New creates a ladder filter at the given sample rate.
func New(sampleRate float64) (*Filter, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("ladder sample rate must be > 0: %f", sampleRate)
	}

	f := &Filter{
		sampleRate: sampleRate,
		cutoffHz:   1000,
		drive:      1,
		comp:       0.5,
	}
	f.update()

	return f, nil
}

// SetCutoff sets the cutoff frequency in Hz.
func (f *Filter) SetCutoff(hz float64) {
	if math.IsNaN(hz) || math.IsInf(hz, 0) {
		return
	}

	f.cutoffHz = core.Clamp(hz, 10, f.sampleRate*0.45)
	f.update()
}

// SetResonance sets feedback amount in [0, 1]; 1 sits at the edge of
// self-oscillation.
func (f *Filter) SetResonance(r float64) {
	f.resonance = core.Clamp(r, 0, 1)
}

// SetDrive sets input drive in [0.1, 10].
func (f *Filter) SetDrive(drive float64) {
	f.drive = core.Clamp(drive, 0.1, 10)
}

// Cutoff returns the cutoff frequency in Hz.
func (f *Filter) Cutoff() float64 { return f.cutoffHz }

// Reset clears all stage state.
func (f *Filter) Reset() {
	f.s = [4]float64{}
}

// ProcessSample filters one sample.
func (f *Filter) ProcessSample(x float64) float64 {
	// Resonance feedback taps the fourth stage; the comp term restores
	// some passband level lost to the feedback path.
	fb := 4 * f.resonance * (f.s[3] - f.comp*x)
	in := math.Tanh(f.drive*x - fb)

	g := f.g
	f.s[0] += g * (in - f.s[0])
	f.s[1] += g * (f.s[0] - f.s[1])
	f.s[2] += g * (f.s[1] - f.s[2])
	f.s[3] += g * (f.s[2] - f.s[3])

	f.s[3] = core.FlushDenormals(f.s[3])

	return f.s[3]
}

// ProcessBlock filters buf in place.
func (f *Filter) ProcessBlock(buf []float64) {
	for i := range buf {
		buf[i] = f.ProcessSample(buf[i])
	}
}

func (f *Filter) update() {
	wc := 2 * math.Pi * f.cutoffHz / f.sampleRate
	// Polynomial tuning correction keeps the cutoff accurate into the
	// upper octaves.
	f.g = wc * (1 - 0.5*wc + wc*wc/12)
	if f.g > 1 {
		f.g = 1
	}
}
