// Package dynamics implements the dynamics engines: opto and VCA
// compressors, transient shaper, noise gate, mastering limiter, and the
// dynamic EQ. They share the envelope detector below; gain computers differ
// per engine.
package dynamics

import "math"

// detector is a peak envelope follower with separate attack and release
// one-pole coefficients.
type detector struct {
	attack  float64
	release float64
	env     float64
}

func newDetector(attackMs, releaseMs, sampleRate float64) detector {
	return detector{
		attack:  timeCoeff(attackMs, sampleRate),
		release: timeCoeff(releaseMs, sampleRate),
	}
}

func (d *detector) setTimes(attackMs, releaseMs, sampleRate float64) {
	d.attack = timeCoeff(attackMs, sampleRate)
	d.release = timeCoeff(releaseMs, sampleRate)
}

// track advances the envelope toward the rectified input.
func (d *detector) track(x float64) float64 {
	level := math.Abs(x)

	if level > d.env {
		d.env += (level - d.env) * d.attack
	} else {
		d.env += (level - d.env) * d.release
	}

	return d.env
}

func (d *detector) reset() { d.env = 0 }

func timeCoeff(ms, sampleRate float64) float64 {
	if ms <= 0 {
		return 1
	}

	return 1 - math.Exp(-1/(ms*0.001*sampleRate))
}

// compressorGainDB computes downward compression with a soft knee, all in
// decibels.
func compressorGainDB(levelDB, thresholdDB, ratio, kneeDB float64) float64 {
	over := levelDB - thresholdDB

	switch {
	case over <= -kneeDB/2:
		return 0
	case over >= kneeDB/2:
		return over * (1/ratio - 1)
	default:
		// Quadratic interpolation inside the knee.
		t := over + kneeDB/2
		return t * t / (2 * kneeDB) * (1/ratio - 1)
	}
}
