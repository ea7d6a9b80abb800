// Package modulation implements the time-modulation engines: tremolos,
// choruses, phaser, ring modulator, frequency shifter, rotary speaker,
// auto-pan and the dimension expander.
package modulation

import "math"

// lfo is a phase-accumulating low frequency oscillator. Shape morphs the
// sine toward a clipped square; phase offsets give per-channel spread.
type lfo struct {
	phase float64
	inc   float64
}

func (l *lfo) setRate(freq, sampleRate float64) {
	l.inc = freq / sampleRate
}

func (l *lfo) reset() {
	l.phase = 0
}

// tick advances one sample and returns the oscillator in [-1, 1] at the
// given phase offset (in cycles).
func (l *lfo) tick(offset, shape float64) float64 {
	v := math.Sin(2 * math.Pi * (l.phase + offset))

	if shape > 1e-3 {
		// Drive the sine into tanh and renormalize. shape = 1 is close to
		// a square with rounded corners.
		k := 1 + shape*8
		v = math.Tanh(v*k) / math.Tanh(k)
	}

	l.phase += l.inc
	if l.phase >= 1 {
		l.phase -= 1
	}

	return v
}

// advance steps the phase without reading, for multi-channel loops that
// sample value at several offsets per frame.
func (l *lfo) advance() {
	l.phase += l.inc
	if l.phase >= 1 {
		l.phase -= 1
	}
}

// value reads the oscillator without advancing it.
func (l *lfo) value(offset, shape float64) float64 {
	v := math.Sin(2 * math.Pi * (l.phase + offset))

	if shape > 1e-3 {
		k := 1 + shape*8
		v = math.Tanh(v*k) / math.Tanh(k)
	}

	return v
}
