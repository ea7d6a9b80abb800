package filter

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/delay"
	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/engine"
)

const (
	combMinFreq     = 25.0
	combMaxFreq     = 2000.0
	combMaxFeedback = 0.98
)

// Comb is a tuned feedback comb resonator with damping in the loop.
//
// Parameters: Frequency, Resonance, Damping, Mix.
type Comb struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	lines  []*delay.Line
	dampLP []float64

	freqSm *smooth.Smoother
	mixSm  *smooth.Smoother
}

// NewComb creates an unprepared comb resonator.
func NewComb() *Comb {
	return &Comb{params: engine.NewParamSetFor(engine.CombResonator, "Frequency", "Resonance", "Damping", "Mix")}
}

// Name implements engine.Engine.
func (c *Comb) Name() string { return "Comb Resonator" }

// NumParameters implements engine.Engine.
func (c *Comb) NumParameters() int { return c.params.Num() }

// ParameterName implements engine.Engine.
func (c *Comb) ParameterName(i int) string { return c.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (c *Comb) UpdateParameters(changes map[int]float64) { c.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (c *Comb) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (c *Comb) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("comb resonator sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("comb resonator max block must be > 0: %d", maxBlock)
	}

	c.sampleRate = sampleRate

	capacity := int(math.Ceil(sampleRate/combMinFreq)) + 8

	c.lines = c.lines[:0]
	for ch := 0; ch < engine.MaxChannels; ch++ {
		line, err := delay.New(capacity)
		if err != nil {
			return err
		}

		c.lines = append(c.lines, line)
	}

	c.dampLP = make([]float64, engine.MaxChannels)

	var err error

	c.freqSm, err = smooth.New(30, sampleRate)
	if err != nil {
		return err
	}

	c.mixSm, err = smooth.New(20, sampleRate)
	if err != nil {
		return err
	}

	c.freqSm.Reset(c.params.Value(0))
	c.mixSm.Reset(c.params.Value(3))
	c.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (c *Comb) Reset() {
	for _, line := range c.lines {
		line.Reset()
	}

	core.Zero(c.dampLP)

	if c.prepared {
		c.freqSm.Reset(c.params.Value(0))
		c.mixSm.Reset(c.params.Value(3))
	}
}

// Process implements engine.Engine.
func (c *Comb) Process(buf [][]float64) {
	if !c.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	c.freqSm.SetTarget(c.params.Value(0))
	c.mixSm.SetTarget(c.params.Value(3))

	feedback := c.params.Value(1) * combMaxFeedback
	dampCoeff := 1 - math.Exp(-2*math.Pi*dampCutoff(c.params.Value(2))/c.sampleRate)

	for i := range buf[0] {
		freq := combMinFreq * math.Pow(combMaxFreq/combMinFreq, c.freqSm.Next())
		period := c.sampleRate / freq
		mix := c.mixSm.Next()

		for ch := 0; ch < nch; ch++ {
			dry := buf[ch][i]
			wet := c.lines[ch].ReadFractional(period)

			c.dampLP[ch] += dampCoeff * (wet - c.dampLP[ch])
			damped := c.dampLP[ch]

			c.lines[ch].Write(core.Sanitize(dry + damped*feedback))

			buf[ch][i] = dry*(1-mix) + (dry+wet)*mix
		}
	}
}

// dampCutoff maps the damping knob to a loop lowpass, bright to dark.
func dampCutoff(v float64) float64 {
	return 12000 * math.Pow(0.05, v)
}
