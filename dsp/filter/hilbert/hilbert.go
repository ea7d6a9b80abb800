// Package hilbert implements an FIR Hilbert transformer producing the
// analytic signal pair used for single-sideband frequency shifting.
//
// The real branch is the input delayed by the filter's group delay; the
// imaginary branch is the Kaiser-windowed antisymmetric FIR. With an odd tap
// count the group delay is an integer, so both branches line up exactly.
package hilbert

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/window"
)

const (
	// DefaultTaps is the default filter length. 33 taps keeps quadrature
	// error low across 0.05..0.45 fs at modest cost.
	DefaultTaps = 33
	// DefaultBeta is the default Kaiser window shape.
	DefaultBeta = 6.0
)

// Transformer converts a real signal into its analytic pair.
type Transformer struct {
	taps  []float64
	state []float64
	pos   int
	delay int
}

// New creates a transformer with numTaps coefficients (odd, >= 7) windowed
// by a Kaiser window with the given beta.
func New(numTaps int, beta float64) (*Transformer, error) {
	if numTaps < 7 || numTaps%2 == 0 {
		return nil, fmt.Errorf("hilbert tap count must be odd and >= 7: %d", numTaps)
	}

	if beta <= 0 || beta > 20 {
		return nil, fmt.Errorf("hilbert kaiser beta must be in (0, 20]: %f", beta)
	}

	t := &Transformer{
		taps:  designTaps(numTaps, beta),
		state: make([]float64, numTaps),
		delay: (numTaps - 1) / 2,
	}

	return t, nil
}

// NewDefault creates a transformer with the default design.
func NewDefault() (*Transformer, error) {
	return New(DefaultTaps, DefaultBeta)
}

// Delay returns the group delay in samples applied to both branches.
func (t *Transformer) Delay() int {
	return t.delay
}

// Reset clears the filter history.
func (t *Transformer) Reset() {
	core.Zero(t.state)
	t.pos = 0
}

// ProcessSample pushes one input sample and returns the analytic pair.
func (t *Transformer) ProcessSample(x float64) (re, im float64) {
	n := len(t.taps)

	t.state[t.pos] = x

	// Antisymmetric kernel: only odd offsets from the center contribute.
	acc := 0.0
	idx := t.pos
	for i := 0; i < n; i++ {
		if c := t.taps[i]; c != 0 {
			acc += c * t.state[idx]
		}
		idx--
		if idx < 0 {
			idx = n - 1
		}
	}

	// Re branch: input delayed by the group delay.
	reIdx := t.pos - t.delay
	if reIdx < 0 {
		reIdx += n
	}
	re = t.state[reIdx]

	t.pos++
	if t.pos >= n {
		t.pos = 0
	}

	return re, acc
}

// designTaps builds the windowed ideal Hilbert kernel. Even offsets from the
// center are exactly zero; odd offsets follow 2/(pi*k).
func designTaps(numTaps int, beta float64) []float64 {
	taps := make([]float64, numTaps)
	center := (numTaps - 1) / 2
	win := window.Kaiser(numTaps, beta)

	for i := range taps {
		k := i - center
		if k == 0 || k%2 == 0 {
			continue
		}

		taps[i] = 2 / (math.Pi * float64(k)) * win[i]
	}

	return taps
}
