package dynamics

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/engine"
)

// limiterLookahead gives the gain ramp time to land before the peak does.
const limiterLookahead = 64

// Limiter is a lookahead brickwall limiter with a hard ceiling.
//
// Parameters: Ceiling, Release, Input Gain.
type Limiter struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	delay   [][]float64
	pos     int
	peaks   []float64 // sliding window of recent peaks, one per lookahead slot
	peakPos int
	gain    float64
}

// NewLimiter creates an unprepared mastering limiter.
func NewLimiter() *Limiter {
	return &Limiter{params: engine.NewParamSetFor(engine.MasteringLimiter, "Ceiling", "Release", "Input Gain")}
}

// Name implements engine.Engine.
func (l *Limiter) Name() string { return "Mastering Limiter" }

// NumParameters implements engine.Engine.
func (l *Limiter) NumParameters() int { return l.params.Num() }

// ParameterName implements engine.Engine.
func (l *Limiter) ParameterName(i int) string { return l.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (l *Limiter) UpdateParameters(changes map[int]float64) { l.params.Update(changes) }

// LatencySamples reports the lookahead delay.
func (l *Limiter) LatencySamples() int { return limiterLookahead }

// Prepare implements engine.Engine.
func (l *Limiter) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("mastering limiter sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("mastering limiter max block must be > 0: %d", maxBlock)
	}

	l.sampleRate = sampleRate

	l.delay = l.delay[:0]
	for ch := 0; ch < engine.MaxChannels; ch++ {
		l.delay = append(l.delay, make([]float64, limiterLookahead))
	}

	l.peaks = make([]float64, limiterLookahead)
	l.pos = 0
	l.peakPos = 0
	l.gain = 1
	l.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (l *Limiter) Reset() {
	for ch := range l.delay {
		core.Zero(l.delay[ch])
	}

	core.Zero(l.peaks)
	l.pos = 0
	l.peakPos = 0
	l.gain = 1
}

// Process implements engine.Engine.
func (l *Limiter) Process(buf [][]float64) {
	if !l.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	ceiling := core.DBToLinear(-12 * (1 - l.params.Value(0))) // -12..0 dBFS
	release := timeCoeff(10+l.params.Value(1)*490, l.sampleRate)
	inputGain := core.DBToLinear(l.params.Value(2) * 24)

	// Attack fast enough to settle within the lookahead window.
	attack := timeCoeff(float64(limiterLookahead)/l.sampleRate*250, l.sampleRate)

	for i := range buf[0] {
		// Push the boosted input into the delay and record its peak.
		peak := 0.0
		for ch := 0; ch < nch; ch++ {
			x := buf[ch][i] * inputGain
			buf[ch][i] = l.delay[ch][l.pos]
			l.delay[ch][l.pos] = x

			if a := math.Abs(x); a > peak {
				peak = a
			}
		}

		l.peaks[l.peakPos] = peak
		l.peakPos = (l.peakPos + 1) % limiterLookahead
		l.pos = (l.pos + 1) % limiterLookahead

		// Target gain from the loudest sample still inside the window.
		windowPeak := 0.0
		for _, p := range l.peaks {
			if p > windowPeak {
				windowPeak = p
			}
		}

		target := 1.0
		if windowPeak > ceiling {
			target = ceiling / windowPeak
		}

		if target < l.gain {
			l.gain += (target - l.gain) * attack
		} else {
			l.gain += (target - l.gain) * release
		}

		for ch := 0; ch < nch; ch++ {
			buf[ch][i] = core.HardLimit(buf[ch][i]*l.gain, ceiling)
		}
	}
}
