package distortion

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/filter/biquad"
	"github.com/cwbudde/algo-rack/dsp/filter/design"
	"github.com/cwbudde/algo-rack/engine"
)

// Exciter adds synthesized upper harmonics. A highpass isolates the band
// above the tune frequency, a rectifying shaper generates new content from
// it, and the result is blended back under the untouched input.
//
// Parameters: Frequency, Amount, Mix.
type Exciter struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	split    []*biquad.Section
	post     []*biquad.Section
	lastFreq float64
}

// NewExciter creates an unprepared harmonic exciter.
func NewExciter() *Exciter {
	return &Exciter{params: engine.NewParamSetFor(engine.HarmonicExciter, "Frequency", "Amount", "Mix"), lastFreq: -1}
}

// Name implements engine.Engine.
func (e *Exciter) Name() string { return "Harmonic Exciter" }

// NumParameters implements engine.Engine.
func (e *Exciter) NumParameters() int { return e.params.Num() }

// ParameterName implements engine.Engine.
func (e *Exciter) ParameterName(i int) string { return e.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (e *Exciter) UpdateParameters(changes map[int]float64) { e.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (e *Exciter) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (e *Exciter) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("exciter sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("exciter max block must be > 0: %d", maxBlock)
	}

	e.sampleRate = sampleRate
	e.split = e.split[:0]
	e.post = e.post[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		e.split = append(e.split, biquad.NewSection(biquad.Identity()))
		e.post = append(e.post, biquad.NewSection(biquad.Identity()))
	}

	e.lastFreq = -1
	e.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (e *Exciter) Reset() {
	for ch := range e.split {
		e.split[ch].Reset()
		e.post[ch].Reset()
	}
}

// Process implements engine.Engine.
func (e *Exciter) Process(buf [][]float64) {
	if !e.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	freqV := e.params.Value(0)
	if freqV != e.lastFreq {
		e.lastFreq = freqV

		// Tune 1 kHz .. 10 kHz. The post highpass keeps the shaper's
		// intermodulation products out of the band below the split.
		freq := 1000 * math.Pow(10, freqV)
		splitCoeffs := design.Highpass(freq, 0.7, e.sampleRate)

		for ch := range e.split {
			e.split[ch].SetCoefficients(splitCoeffs)
			e.post[ch].SetCoefficients(splitCoeffs)
		}
	}

	amount := e.params.Value(1)
	mix := e.params.Value(2)

	for ch := 0; ch < nch; ch++ {
		for i := range buf[ch] {
			dry := buf[ch][i]

			hi := e.split[ch].ProcessSample(dry)

			// Half-wave rectification plus a squared term: even harmonics
			// with level-dependent emphasis.
			shaped := hi * (1 + amount*3)
			if shaped > 0 {
				shaped += shaped * shaped * 0.5
			}
			shaped = math.Tanh(shaped)
			shaped = e.post[ch].ProcessSample(shaped)

			buf[ch][i] = dry + shaped*amount*mix
		}
	}
}
