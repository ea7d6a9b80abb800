package modulation

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/filter/biquad"
	"github.com/cwbudde/algo-rack/dsp/filter/design"
	"github.com/cwbudde/algo-rack/engine"
)

// Tremolo is amplitude modulation with a morphable LFO and optional
// channel phase spread.
//
// Parameters: Rate, Depth, Shape, Stereo.
type Tremolo struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	osc lfo
}

// NewTremolo creates an unprepared tremolo.
func NewTremolo() *Tremolo {
	return &Tremolo{params: engine.NewParamSetFor(engine.ClassicTremolo, "Rate", "Depth", "Shape", "Stereo")}
}

// Name implements engine.Engine.
func (t *Tremolo) Name() string { return "Classic Tremolo" }

// NumParameters implements engine.Engine.
func (t *Tremolo) NumParameters() int { return t.params.Num() }

// ParameterName implements engine.Engine.
func (t *Tremolo) ParameterName(i int) string { return t.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (t *Tremolo) UpdateParameters(changes map[int]float64) { t.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (t *Tremolo) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (t *Tremolo) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("tremolo sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("tremolo max block must be > 0: %d", maxBlock)
	}

	t.sampleRate = sampleRate
	t.prepared = true
	t.osc.reset()

	return nil
}

// Reset implements engine.Engine.
func (t *Tremolo) Reset() { t.osc.reset() }

// tremoloRate maps the rate knob onto 0.1 .. 20 Hz, log.
func tremoloRate(v float64) float64 {
	return 0.1 * math.Pow(200, v)
}

// Process implements engine.Engine.
func (t *Tremolo) Process(buf [][]float64) {
	if !t.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	t.osc.setRate(tremoloRate(t.params.Value(0)), t.sampleRate)

	depth := t.params.Value(1)
	shape := t.params.Value(2)
	spread := t.params.Value(3) * 0.5

	n := len(buf[0])
	for i := 0; i < n; i++ {
		for ch := 0; ch < nch; ch++ {
			offset := 0.0
			if ch&1 == 1 {
				offset = spread
			}

			// Unipolar gain: depth 1 dips to silence at the LFO trough.
			gain := 1 - depth*0.5*(1-t.osc.value(offset, shape))
			buf[ch][i] *= gain
		}

		t.osc.advance()
	}
}

// HarmonicTremolo splits the signal at a crossover and modulates the two
// halves in opposite phase, the brownface amp trick. At depth 1 the bands
// trade places completely while the summed level stays near constant.
//
// Parameters: Rate, Depth, Crossover.
type HarmonicTremolo struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	osc      lfo
	low      []*biquad.Section
	high     []*biquad.Section
	lastXovr float64
}

// NewHarmonicTremolo creates an unprepared harmonic tremolo.
func NewHarmonicTremolo() *HarmonicTremolo {
	return &HarmonicTremolo{
		params:   engine.NewParamSetFor(engine.HarmonicTremolo, "Rate", "Depth", "Crossover"),
		lastXovr: -1,
	}
}

// Name implements engine.Engine.
func (h *HarmonicTremolo) Name() string { return "Harmonic Tremolo" }

// NumParameters implements engine.Engine.
func (h *HarmonicTremolo) NumParameters() int { return h.params.Num() }

// ParameterName implements engine.Engine.
func (h *HarmonicTremolo) ParameterName(i int) string { return h.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (h *HarmonicTremolo) UpdateParameters(changes map[int]float64) { h.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (h *HarmonicTremolo) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (h *HarmonicTremolo) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("harmonic tremolo sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("harmonic tremolo max block must be > 0: %d", maxBlock)
	}

	h.sampleRate = sampleRate
	h.low = h.low[:0]
	h.high = h.high[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		h.low = append(h.low, biquad.NewSection(biquad.Identity()))
		h.high = append(h.high, biquad.NewSection(biquad.Identity()))
	}

	h.lastXovr = -1
	h.prepared = true
	h.osc.reset()

	return nil
}

// Reset implements engine.Engine.
func (h *HarmonicTremolo) Reset() {
	h.osc.reset()

	for ch := range h.low {
		h.low[ch].Reset()
		h.high[ch].Reset()
	}
}

// Process implements engine.Engine.
func (h *HarmonicTremolo) Process(buf [][]float64) {
	if !h.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	if xovr := h.params.Value(2); xovr != h.lastXovr {
		h.lastXovr = xovr

		freq := 250 * math.Pow(8, xovr)
		lowCoeffs := design.Lowpass(freq, 0.7, h.sampleRate)
		highCoeffs := design.Highpass(freq, 0.7, h.sampleRate)

		for ch := range h.low {
			h.low[ch].SetCoefficients(lowCoeffs)
			h.high[ch].SetCoefficients(highCoeffs)
		}
	}

	h.osc.setRate(tremoloRate(h.params.Value(0)), h.sampleRate)
	depth := h.params.Value(1)

	n := len(buf[0])
	for i := 0; i < n; i++ {
		mod := h.osc.value(0, 0)
		lowGain := 1 - depth*0.5*(1-mod)
		highGain := 1 - depth*0.5*(1+mod)

		for ch := 0; ch < nch; ch++ {
			low := h.low[ch].ProcessSample(buf[ch][i])
			high := h.high[ch].ProcessSample(buf[ch][i])
			buf[ch][i] = low*lowGain + high*highGain
		}

		h.osc.advance()
	}
}
