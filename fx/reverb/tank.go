// Package reverb implements the reverberator engines: plate, spring,
// hall, shimmer and gated. All tanks keep their loop gain strictly below
// unity and damp their recirculating paths, so every tail decays.
package reverb

import (
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
)

// reverbChannels is the width of the wet tank. Extra input channels pass
// through dry; the serial chain's core path is mono/stereo.
const reverbChannels = 2

// maxLoopGain caps every recirculating gain in the package.
const maxLoopGain = 0.97

// feedbackForRT60 converts a loop length and a decay time into the comb
// gain that realizes it, capped below unity.
func feedbackForRT60(loopSamples, rt60Sec, sampleRate float64) float64 {
	if rt60Sec <= 0 {
		return 0
	}

	g := math.Pow(10, -3*loopSamples/(rt60Sec*sampleRate))

	return math.Min(g, maxLoopGain)
}

// allpass is a Schroeder allpass diffuser with a fixed-length ring.
type allpass struct {
	buf  []float64
	pos  int
	gain float64
}

func newAllpass(length int, gain float64) *allpass {
	if length < 1 {
		length = 1
	}

	return &allpass{buf: make([]float64, length), gain: core.Clamp(gain, -maxLoopGain, maxLoopGain)}
}

func (a *allpass) process(x float64) float64 {
	back := a.buf[a.pos]
	in := x + back*a.gain
	a.buf[a.pos] = in

	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}

	return back - in*a.gain
}

func (a *allpass) reset() {
	core.Zero(a.buf)
	a.pos = 0
}

// dampedComb is a feedback comb with a one-pole lowpass in the loop.
type dampedComb struct {
	buf      []float64
	pos      int
	feedback float64
	damp     float64
	state    float64
}

func newDampedComb(length int) *dampedComb {
	if length < 1 {
		length = 1
	}

	return &dampedComb{buf: make([]float64, length)}
}

func (c *dampedComb) setFeedback(g float64) {
	c.feedback = core.Clamp(g, 0, maxLoopGain)
}

// setDamp sets the loop lowpass amount, 0 = bright, 1 = dark.
func (c *dampedComb) setDamp(d float64) {
	c.damp = core.Clamp(d, 0, 0.99)
}

func (c *dampedComb) process(x float64) float64 {
	out := c.buf[c.pos]

	c.state = out*(1-c.damp) + c.state*c.damp
	c.buf[c.pos] = x + c.state*c.feedback

	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}

	return out
}

func (c *dampedComb) reset() {
	core.Zero(c.buf)
	c.pos = 0
	c.state = 0
}

// scaleLength converts a tuning at 44.1 kHz into samples at the prepared
// rate, with a per-channel detune so the two tank halves decorrelate.
func scaleLength(ref44k int, sampleRate float64, channel int) int {
	n := int(float64(ref44k) * sampleRate / 44100)
	n += channel * 23

	if n < 1 {
		n = 1
	}

	return n
}
