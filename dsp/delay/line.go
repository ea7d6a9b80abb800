// Package delay provides an interpolated circular delay line.
//
// The ring capacity is rounded up to a power of two and the first four
// samples are mirrored past the end of the buffer, so fractional reads never
// need a per-tap wrap check.
package delay

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/interp"
)

const ghostSamples = 4

// Line is a circular delay line with fractional read support.
type Line struct {
	buffer []float64
	mask   int
	write  int
	mode   interp.Mode
}

// Option configures a Line.
type Option func(*Line)

// WithMode selects the interpolation kernel for fractional reads.
func WithMode(mode interp.Mode) Option {
	return func(l *Line) { l.mode = mode }
}

// New returns a delay line holding at least minCapacity samples.
func New(minCapacity int, opts ...Option) (*Line, error) {
	if minCapacity <= 0 {
		return nil, fmt.Errorf("delay capacity must be > 0: %d", minCapacity)
	}

	size := nextPow2(minCapacity)

	l := &Line{
		buffer: make([]float64, size+ghostSamples),
		mask:   size - 1,
		mode:   interp.Hermite,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	return l, nil
}

// Len returns the usable ring capacity in samples.
func (l *Line) Len() int {
	return l.mask + 1
}

// MaxDelay returns the largest delay ReadFractional accepts.
func (l *Line) MaxDelay() float64 {
	return float64(l.Len() - ghostSamples)
}

// Write pushes one sample into the line.
func (l *Line) Write(sample float64) {
	w := l.write & l.mask
	l.buffer[w] = sample

	// Mirror the head into the ghost region so interpolated reads can run
	// past the physical end of the ring.
	if w < ghostSamples {
		l.buffer[w+l.Len()] = sample
	}

	l.write = (w + 1) & l.mask
}

// Read returns the sample with the given integer delay. Delay 1 is the most
// recently written sample. Out-of-range delays read as silence.
func (l *Line) Read(delaySamples int) float64 {
	if delaySamples < 1 || delaySamples > l.Len() {
		return 0
	}

	return l.buffer[(l.write-delaySamples)&l.mask]
}

// ReadFractional returns the sample at a real-valued delay in samples using
// the configured interpolation mode. Delays below 1 or beyond the usable
// capacity read as silence.
func (l *Line) ReadFractional(delaySamples float64) float64 {
	if delaySamples < 1 || delaySamples > l.MaxDelay() || math.IsNaN(delaySamples) {
		return 0
	}

	k := int(delaySamples)
	t := delaySamples - float64(k)

	if l.mode == interp.Linear {
		x0 := l.buffer[(l.write-k)&l.mask]
		x1 := l.buffer[(l.write-k-1)&l.mask]

		return interp.Linear2(t, x0, x1)
	}

	// Four consecutive locations starting at delay k+2 cover the taps
	// x2, x1, x0, xm1 thanks to the ghost mirror.
	start := (l.write - k - 2) & l.mask
	x2 := l.buffer[start]
	x1 := l.buffer[start+1]
	x0 := l.buffer[start+2]

	// The xm1 tap would sit at delay k-1; for k == 1 that slot still holds
	// the sample from a full ring revolution ago, so extrapolate it instead.
	var xm1 float64
	if k >= 2 {
		xm1 = l.buffer[start+3]
	} else {
		xm1 = 2*x0 - x1
	}

	return interp.Hermite4(t, xm1, x0, x1, x2)
}

// Reset clears line state.
func (l *Line) Reset() {
	for i := range l.buffer {
		l.buffer[i] = 0
	}

	l.write = 0
}

func nextPow2(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}

	return size
}
