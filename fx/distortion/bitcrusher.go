package distortion

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/engine"
)

// Crusher reduces bit depth and sample rate. Depth reduction quantizes to
// 2..16 bit steps; rate reduction holds each sample for a whole number of
// host samples, down to roughly a kilohertz.
//
// Parameters: Bits, Downsample, Mix.
type Crusher struct {
	params *engine.ParamSet

	prepared bool

	held    [engine.MaxChannels]float64
	counter [engine.MaxChannels]int
}

// NewCrusher creates an unprepared bit crusher.
func NewCrusher() *Crusher {
	return &Crusher{params: engine.NewParamSetFor(engine.BitCrusher, "Bits", "Downsample", "Mix")}
}

// Name implements engine.Engine.
func (c *Crusher) Name() string { return "Bit Crusher" }

// NumParameters implements engine.Engine.
func (c *Crusher) NumParameters() int { return c.params.Num() }

// ParameterName implements engine.Engine.
func (c *Crusher) ParameterName(i int) string { return c.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (c *Crusher) UpdateParameters(changes map[int]float64) { c.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (c *Crusher) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (c *Crusher) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("bit crusher sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("bit crusher max block must be > 0: %d", maxBlock)
	}

	c.prepared = true
	c.Reset()

	return nil
}

// Reset implements engine.Engine.
func (c *Crusher) Reset() {
	for ch := range c.held {
		c.held[ch] = 0
		c.counter[ch] = 0
	}
}

// Process implements engine.Engine.
func (c *Crusher) Process(buf [][]float64) {
	if !c.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	// Bits sweeps 16 down to 2. Levels counts quantizer steps per polarity.
	bits := 16 - c.params.Value(0)*14
	levels := math.Pow(2, bits-1)
	hold := 1 + int(c.params.Value(1)*c.params.Value(1)*40)
	mix := c.params.Value(2)

	for ch := 0; ch < nch; ch++ {
		for i := range buf[ch] {
			dry := buf[ch][i]

			if c.counter[ch] <= 0 {
				c.held[ch] = math.Round(dry*levels) / levels
				c.counter[ch] = hold
			}
			c.counter[ch]--

			buf[ch][i] = dry*(1-mix) + c.held[ch]*mix
		}
	}
}
