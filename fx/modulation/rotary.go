package modulation

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/delay"
	"github.com/cwbudde/algo-rack/dsp/filter/biquad"
	"github.com/cwbudde/algo-rack/dsp/filter/design"
	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/engine"
)

// Rotary models a rotating-speaker cabinet: an 800 Hz crossover feeds a
// fast horn and a slow bass drum, each rotor applying doppler (modulated
// delay) and amplitude shading. The speed control crossfades chorale and
// tremolo rates through a rotor-inertia smoother, so speed changes spin
// up rather than jump.
//
// Parameters: Speed, Drive, Balance, Mix.
type Rotary struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	hornOsc lfo
	drumOsc lfo
	speed   *smooth.Smoother

	low       []*biquad.Section
	high      []*biquad.Section
	hornLines []*delay.Line
	drumLines []*delay.Line
}

// NewRotary creates an unprepared rotary speaker.
func NewRotary() *Rotary {
	return &Rotary{params: engine.NewParamSetFor(engine.RotarySpeaker, "Speed", "Drive", "Balance", "Mix")}
}

// Name implements engine.Engine.
func (r *Rotary) Name() string { return "Rotary Speaker" }

// NumParameters implements engine.Engine.
func (r *Rotary) NumParameters() int { return r.params.Num() }

// ParameterName implements engine.Engine.
func (r *Rotary) ParameterName(i int) string { return r.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (r *Rotary) UpdateParameters(changes map[int]float64) { r.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (r *Rotary) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (r *Rotary) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("rotary speaker sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("rotary speaker max block must be > 0: %d", maxBlock)
	}

	r.sampleRate = sampleRate

	// Rotor inertia. 600 ms covers the spin-up of a real horn motor.
	sm, err := smooth.New(600, sampleRate)
	if err != nil {
		return fmt.Errorf("rotary speaker inertia: %w", err)
	}
	r.speed = sm
	r.speed.Reset(r.params.Value(0))

	r.low = r.low[:0]
	r.high = r.high[:0]
	r.hornLines = r.hornLines[:0]
	r.drumLines = r.drumLines[:0]

	lowCoeffs := design.Lowpass(800, 0.7, sampleRate)
	highCoeffs := design.Highpass(800, 0.7, sampleRate)
	capacity := int(0.003*sampleRate) + 16

	for ch := 0; ch < engine.MaxChannels; ch++ {
		r.low = append(r.low, biquad.NewSection(lowCoeffs))
		r.high = append(r.high, biquad.NewSection(highCoeffs))

		horn, err := delay.New(capacity)
		if err != nil {
			return fmt.Errorf("rotary speaker horn line: %w", err)
		}

		drum, err := delay.New(capacity)
		if err != nil {
			return fmt.Errorf("rotary speaker drum line: %w", err)
		}

		r.hornLines = append(r.hornLines, horn)
		r.drumLines = append(r.drumLines, drum)
	}

	r.prepared = true
	r.hornOsc.reset()
	r.drumOsc.reset()

	return nil
}

// Reset implements engine.Engine.
func (r *Rotary) Reset() {
	r.hornOsc.reset()
	r.drumOsc.reset()

	if r.speed != nil {
		r.speed.Reset(r.params.Value(0))
	}

	for ch := range r.low {
		r.low[ch].Reset()
		r.high[ch].Reset()
		r.hornLines[ch].Reset()
		r.drumLines[ch].Reset()
	}
}

// Process implements engine.Engine.
func (r *Rotary) Process(buf [][]float64) {
	if !r.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	r.speed.SetTarget(r.params.Value(0))

	drive := 1 + r.params.Value(1)*4
	balance := r.params.Value(2)
	mix := r.params.Value(3)

	hornDepth := 0.0009 * r.sampleRate
	drumDepth := 0.0004 * r.sampleRate
	baseDelay := 0.0012 * r.sampleRate

	n := len(buf[0])
	for i := 0; i < n; i++ {
		sp := r.speed.Next()

		// Chorale 0.7 Hz horn / 0.6 Hz drum, tremolo 6.8 / 5.9.
		r.hornOsc.setRate(0.7+sp*6.1, r.sampleRate)
		r.drumOsc.setRate(0.6+sp*5.3, r.sampleRate)

		for ch := 0; ch < nch; ch++ {
			offset := 0.0
			if ch&1 == 1 {
				offset = 0.5
			}

			dry := buf[ch][i]
			x := math.Tanh(dry*drive) / drive * (1 + (drive-1)*0.5)

			low := r.low[ch].ProcessSample(x)
			high := r.high[ch].ProcessSample(x)

			hornMod := r.hornOsc.value(offset, 0)
			drumMod := r.drumOsc.value(offset+0.13, 0)

			r.hornLines[ch].Write(high)
			r.drumLines[ch].Write(low)

			horn := r.hornLines[ch].ReadFractional(baseDelay + hornDepth*0.5*(1+hornMod))
			drum := r.drumLines[ch].ReadFractional(baseDelay + drumDepth*0.5*(1+drumMod))

			// Amplitude shading as the rotor points away from the mic.
			horn *= 0.7 + 0.3*hornMod
			drum *= 0.85 + 0.15*drumMod

			wet := drum*(1-balance)*1.4 + horn*balance*1.4
			buf[ch][i] = dry*(1-mix) + wet*mix
		}

		r.hornOsc.advance()
		r.drumOsc.advance()
	}
}
