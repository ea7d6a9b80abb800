// Package smooth provides a lock-free one-pole parameter smoother.
//
// Hosts and UI threads publish targets with SetTarget; the audio thread pulls
// one smoothed value per sample with Next. Targets are exchanged through an
// atomic word, so no lock is ever taken on either side.
package smooth

import (
	"fmt"
	"math"
	"sync/atomic"
)

const (
	minTimeMs = 0.1
	maxTimeMs = 2000.0

	// denormGuard is added with alternating sign every sample so the
	// one-pole state never decays into the denormal range.
	denormGuard = 1e-30
)

// Smoother converts stepwise parameter updates into a continuous per-sample
// ramp, preventing zipper noise.
type Smoother struct {
	target  atomic.Uint64
	current float64
	coeff   float64
	guard   float64

	sampleRate float64
	timeMs     float64
}

// New creates a smoother with the given time constant in milliseconds.
func New(timeMs, sampleRate float64) (*Smoother, error) {
	if timeMs < minTimeMs || timeMs > maxTimeMs || math.IsNaN(timeMs) {
		return nil, fmt.Errorf("smoother time must be in [%g, %g] ms: %f", minTimeMs, maxTimeMs, timeMs)
	}

	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("smoother sample rate must be > 0: %f", sampleRate)
	}

	s := &Smoother{guard: denormGuard}
	s.configure(timeMs, sampleRate)

	return s, nil
}

// SetSampleRate updates the sample rate, preserving the time constant.
func (s *Smoother) SetSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("smoother sample rate must be > 0: %f", sampleRate)
	}

	s.configure(s.timeMs, sampleRate)

	return nil
}

// SetTime updates the smoothing time constant in milliseconds.
func (s *Smoother) SetTime(timeMs float64) error {
	if timeMs < minTimeMs || timeMs > maxTimeMs || math.IsNaN(timeMs) {
		return fmt.Errorf("smoother time must be in [%g, %g] ms: %f", minTimeMs, maxTimeMs, timeMs)
	}

	s.configure(timeMs, s.sampleRate)

	return nil
}

// SetTarget publishes a new target value. Safe from any goroutine.
func (s *Smoother) SetTarget(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}

	s.target.Store(math.Float64bits(v))
}

// Target returns the most recently published target.
func (s *Smoother) Target() float64 {
	return math.Float64frombits(s.target.Load())
}

// Current returns the present smoothed value without advancing.
func (s *Smoother) Current() float64 {
	return s.current
}

// Next advances the smoother one sample and returns the smoothed value.
// Audio thread only.
func (s *Smoother) Next() float64 {
	target := math.Float64frombits(s.target.Load())
	s.current += (target - s.current) * s.coeff

	s.current += s.guard
	s.guard = -s.guard

	return s.current
}

// Snap jumps the smoothed value directly to the current target.
func (s *Smoother) Snap() {
	s.current = math.Float64frombits(s.target.Load())
}

// Reset sets both target and current value to v immediately.
func (s *Smoother) Reset(v float64) {
	s.SetTarget(v)
	s.current = v
}

func (s *Smoother) configure(timeMs, sampleRate float64) {
	s.timeMs = timeMs
	s.sampleRate = sampleRate
	s.coeff = 1 - math.Exp(-1/(timeMs*0.001*sampleRate))
}
