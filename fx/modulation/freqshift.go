package modulation

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/delay"
	"github.com/cwbudde/algo-rack/dsp/filter/hilbert"
	"github.com/cwbudde/algo-rack/engine"
)

// FreqShifter shifts every frequency component by a constant offset via
// single-sideband modulation of the analytic signal. Unlike a pitch
// shifter this destroys harmonic ratios, which is the point.
//
// Parameters: Shift, Direction, Spread, Feedback, Resonance.
type FreqShifter struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	analytic []*hilbert.Transformer
	dryDelay []*delay.Line
	fbRing   []*delay.Line
	dc       [engine.MaxChannels]*core.DCBlocker
	phase    [engine.MaxChannels]float64
}

// NewFreqShifter creates an unprepared frequency shifter.
func NewFreqShifter() *FreqShifter {
	return &FreqShifter{
		params: engine.NewParamSetFor(engine.FrequencyShifter, "Shift", "Direction", "Spread", "Feedback", "Resonance"),
	}
}

// Name implements engine.Engine.
func (f *FreqShifter) Name() string { return "Frequency Shifter" }

// NumParameters implements engine.Engine.
func (f *FreqShifter) NumParameters() int { return f.params.Num() }

// ParameterName implements engine.Engine.
func (f *FreqShifter) ParameterName(i int) string { return f.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (f *FreqShifter) UpdateParameters(changes map[int]float64) { f.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (f *FreqShifter) LatencySamples() int {
	if len(f.analytic) > 0 {
		return f.analytic[0].Delay()
	}

	return 0
}

// Prepare implements engine.Engine.
func (f *FreqShifter) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("frequency shifter sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("frequency shifter max block must be > 0: %d", maxBlock)
	}

	f.sampleRate = sampleRate
	f.analytic = f.analytic[:0]
	f.dryDelay = f.dryDelay[:0]
	f.fbRing = f.fbRing[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		h, err := hilbert.NewDefault()
		if err != nil {
			return fmt.Errorf("frequency shifter hilbert: %w", err)
		}

		dryLine, err := delay.New(64)
		if err != nil {
			return fmt.Errorf("frequency shifter dry delay: %w", err)
		}

		ring, err := delay.New(1024)
		if err != nil {
			return fmt.Errorf("frequency shifter feedback ring: %w", err)
		}

		dc, err := core.NewDCBlocker(0.995)
		if err != nil {
			return fmt.Errorf("frequency shifter dc blocker: %w", err)
		}

		f.analytic = append(f.analytic, h)
		f.dryDelay = append(f.dryDelay, dryLine)
		f.fbRing = append(f.fbRing, ring)
		f.dc[ch] = dc
	}

	f.prepared = true
	f.Reset()

	return nil
}

// Reset implements engine.Engine.
func (f *FreqShifter) Reset() {
	for ch := range f.analytic {
		f.analytic[ch].Reset()
		f.dryDelay[ch].Reset()
		f.fbRing[ch].Reset()
		f.dc[ch].Reset()
		f.phase[ch] = 0
	}
}

// Process implements engine.Engine.
func (f *FreqShifter) Process(buf [][]float64) {
	if !f.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	shift := (f.params.Value(0) - 0.5) * 200
	direction := f.params.Value(1)
	spread := f.params.Value(2) * 50
	feedback := f.params.Value(3) * 0.9
	resonance := f.params.Value(4)

	// Idle settings collapse to an exact passthrough. The dry line keeps
	// the reported latency honest across the transition.
	if math.Abs(shift) < 1 && feedback < 1e-3 && resonance < 1e-3 {
		// After the write the current sample sits at delay 1, so the
		// Hilbert branch's group delay lands at lat+1.
		lat := f.LatencySamples() + 1

		for ch := 0; ch < nch; ch++ {
			for i := range buf[ch] {
				f.dryDelay[ch].Write(buf[ch][i])
				buf[ch][i] = f.dryDelay[ch].Read(lat)
			}
		}

		return
	}

	fbDelay := 32 + resonance*480

	for ch := 0; ch < nch; ch++ {
		chShift := shift
		if ch&1 == 1 {
			chShift += spread
		} else {
			chShift -= spread * 0.5
		}

		inc := chShift / f.sampleRate

		for i := range buf[ch] {
			x := buf[ch][i]
			f.dryDelay[ch].Write(x)

			// Feedback tap is high-passed by the DC blocker inside the
			// loop and soft-clipped so resonance cannot run away.
			fb := f.fbRing[ch].ReadFractional(fbDelay)
			x += core.SoftClip(fb*feedback, 0.7)

			re, im := f.analytic[ch].ProcessSample(x)

			cos := math.Cos(2 * math.Pi * f.phase[ch])
			sin := math.Sin(2 * math.Pi * f.phase[ch])

			upper := re*cos - im*sin
			lower := re*cos + im*sin
			wet := lower*(1-direction) + upper*direction

			out := f.dc[ch].ProcessSample(wet)
			f.fbRing[ch].Write(out)

			buf[ch][i] = core.SoftClip(out, 0.9)

			f.phase[ch] += inc
			if f.phase[ch] >= 1 {
				f.phase[ch] -= 1
			} else if f.phase[ch] < 0 {
				f.phase[ch] += 1
			}
		}
	}
}
