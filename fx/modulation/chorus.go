package modulation

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/delay"
	"github.com/cwbudde/algo-rack/engine"
)

const (
	chorusBaseMs  = 7.0
	chorusDepthMs = 5.0
)

// Chorus is a multi-voice modulated delay. Voices share one line per
// channel and read at LFO phases spread around the circle; odd channels
// run the LFO inverted for width.
//
// Parameters: Rate, Depth, Voices, Mix.
type Chorus struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	osc   lfo
	lines []*delay.Line
}

// NewChorus creates an unprepared chorus.
func NewChorus() *Chorus {
	return &Chorus{params: engine.NewParamSetFor(engine.ClassicChorus, "Rate", "Depth", "Voices", "Mix")}
}

// Name implements engine.Engine.
func (c *Chorus) Name() string { return "Classic Chorus" }

// NumParameters implements engine.Engine.
func (c *Chorus) NumParameters() int { return c.params.Num() }

// ParameterName implements engine.Engine.
func (c *Chorus) ParameterName(i int) string { return c.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (c *Chorus) UpdateParameters(changes map[int]float64) { c.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (c *Chorus) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (c *Chorus) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("chorus sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("chorus max block must be > 0: %d", maxBlock)
	}

	c.sampleRate = sampleRate
	c.lines = c.lines[:0]

	capacity := int((chorusBaseMs+chorusDepthMs)*0.001*sampleRate) + 16

	for ch := 0; ch < engine.MaxChannels; ch++ {
		line, err := delay.New(capacity)
		if err != nil {
			return fmt.Errorf("chorus delay line: %w", err)
		}

		c.lines = append(c.lines, line)
	}

	c.prepared = true
	c.osc.reset()

	return nil
}

// Reset implements engine.Engine.
func (c *Chorus) Reset() {
	c.osc.reset()

	for _, line := range c.lines {
		line.Reset()
	}
}

// Process implements engine.Engine.
func (c *Chorus) Process(buf [][]float64) {
	if !c.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	c.osc.setRate(0.1+c.params.Value(0)*4.9, c.sampleRate)

	depthSamp := c.params.Value(1) * chorusDepthMs * 0.001 * c.sampleRate
	baseSamp := chorusBaseMs * 0.001 * c.sampleRate
	voices := 1 + int(c.params.Value(2)*2.999)
	mix := c.params.Value(3)
	voiceGain := 1 / math.Sqrt(float64(voices))

	n := len(buf[0])
	for i := 0; i < n; i++ {
		for ch := 0; ch < nch; ch++ {
			dry := buf[ch][i]
			c.lines[ch].Write(dry)

			sign := 1.0
			if ch&1 == 1 {
				sign = -1
			}

			wet := 0.0
			for v := 0; v < voices; v++ {
				phase := float64(v) / float64(voices)
				mod := sign * c.osc.value(phase, 0)
				wet += c.lines[ch].ReadFractional(baseSamp + depthSamp*0.5*(1+mod))
			}
			wet *= voiceGain

			buf[ch][i] = dry*(1-mix) + wet*mix
		}

		c.osc.advance()
	}
}

// ResonantChorus is a chorus with feedback around the modulated line, a
// shorter base delay, and a feedback soft clip. At high resonance it sits
// between chorus and flanger.
//
// Parameters: Rate, Depth, Resonance, Mix.
type ResonantChorus struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	osc   lfo
	lines []*delay.Line
	fb    [engine.MaxChannels]float64
}

// NewResonantChorus creates an unprepared resonant chorus.
func NewResonantChorus() *ResonantChorus {
	return &ResonantChorus{params: engine.NewParamSetFor(engine.ResonantChorus, "Rate", "Depth", "Resonance", "Mix")}
}

// Name implements engine.Engine.
func (r *ResonantChorus) Name() string { return "Resonant Chorus" }

// NumParameters implements engine.Engine.
func (r *ResonantChorus) NumParameters() int { return r.params.Num() }

// ParameterName implements engine.Engine.
func (r *ResonantChorus) ParameterName(i int) string { return r.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (r *ResonantChorus) UpdateParameters(changes map[int]float64) { r.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (r *ResonantChorus) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (r *ResonantChorus) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("resonant chorus sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("resonant chorus max block must be > 0: %d", maxBlock)
	}

	r.sampleRate = sampleRate
	r.lines = r.lines[:0]

	capacity := int(10*0.001*sampleRate) + 16

	for ch := 0; ch < engine.MaxChannels; ch++ {
		line, err := delay.New(capacity)
		if err != nil {
			return fmt.Errorf("resonant chorus delay line: %w", err)
		}

		r.lines = append(r.lines, line)
	}

	r.prepared = true
	r.Reset()

	return nil
}

// Reset implements engine.Engine.
func (r *ResonantChorus) Reset() {
	r.osc.reset()

	for _, line := range r.lines {
		line.Reset()
	}

	for ch := range r.fb {
		r.fb[ch] = 0
	}
}

// Process implements engine.Engine.
func (r *ResonantChorus) Process(buf [][]float64) {
	if !r.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	r.osc.setRate(0.1+r.params.Value(0)*4.9, r.sampleRate)

	baseSamp := 2.5 * 0.001 * r.sampleRate
	depthSamp := r.params.Value(1) * 4 * 0.001 * r.sampleRate
	resonance := r.params.Value(2) * 0.9
	mix := r.params.Value(3)

	n := len(buf[0])
	for i := 0; i < n; i++ {
		for ch := 0; ch < nch; ch++ {
			dry := buf[ch][i]

			sign := 1.0
			if ch&1 == 1 {
				sign = -1
			}

			r.lines[ch].Write(dry + core.SoftClip(r.fb[ch]*resonance, 0.8))

			mod := sign * r.osc.value(0, 0)
			wet := r.lines[ch].ReadFractional(baseSamp + depthSamp*0.5*(1+mod) + 1)
			r.fb[ch] = wet

			buf[ch][i] = dry*(1-mix) + wet*mix
		}

		r.osc.advance()
	}
}
