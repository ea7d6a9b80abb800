package utility

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/filter/svf"
	"github.com/cwbudde/algo-rack/engine"
)

// lorenz integrates the Lorenz attractor with forward Euler at a rate-
// dependent step. The x coordinate, squashed to [-1, 1], drives the
// modulation. Never periodic, never random noise.
type lorenz struct {
	x, y, z float64
}

func (l *lorenz) init() {
	l.x, l.y, l.z = 0.1, 0, 0
}

func (l *lorenz) step(dt float64) float64 {
	const sigma = 10.0
	const rho = 28.0
	const beta = 8.0 / 3.0

	dx := sigma * (l.y - l.x)
	dy := l.x*(rho-l.z) - l.y
	dz := l.x*l.y - beta*l.z

	l.x += dx * dt
	l.y += dy * dt
	l.z += dz * dt

	// The attractor lives within |x| < ~20.
	return math.Tanh(l.x * 0.08)
}

// Chaos modulates amplitude and a lowpass sweep from a Lorenz attractor,
// an LFO that never repeats. Target crossfades tremolo against filter
// motion.
//
// Parameters: Rate, Depth, Target, Smooth.
type Chaos struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	attractor lorenz
	slew      float64
	filters   []*svf.Filter
}

// NewChaos creates an unprepared chaos modulator.
func NewChaos() *Chaos {
	return &Chaos{params: engine.NewParamSetFor(engine.ChaosModulator, "Rate", "Depth", "Target", "Smooth")}
}

// Name implements engine.Engine.
func (c *Chaos) Name() string { return "Chaos Modulator" }

// NumParameters implements engine.Engine.
func (c *Chaos) NumParameters() int { return c.params.Num() }

// ParameterName implements engine.Engine.
func (c *Chaos) ParameterName(i int) string { return c.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (c *Chaos) UpdateParameters(changes map[int]float64) { c.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (c *Chaos) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (c *Chaos) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("chaos modulator sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("chaos modulator max block must be > 0: %d", maxBlock)
	}

	c.sampleRate = sampleRate
	c.filters = c.filters[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		f, err := svf.New(sampleRate)
		if err != nil {
			return fmt.Errorf("chaos modulator filter: %w", err)
		}

		f.SetOutput(svf.Lowpass)
		f.SetQ(0.9)
		c.filters = append(c.filters, f)
	}

	c.prepared = true
	c.Reset()

	return nil
}

// Reset implements engine.Engine.
func (c *Chaos) Reset() {
	c.attractor.init()
	c.slew = 0

	for _, f := range c.filters {
		f.Reset()
	}
}

// Process implements engine.Engine.
func (c *Chaos) Process(buf [][]float64) {
	if !c.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	// dt sets how fast the attractor orbits; audio-rate Euler stays
	// stable well past this range.
	dt := (0.5 + c.params.Value(0)*30) / c.sampleRate
	depth := c.params.Value(1)
	target := c.params.Value(2)
	slewCoeff := 1 - math.Exp(-1/((1+c.params.Value(3)*200)*0.001*c.sampleRate))

	n := len(buf[0])
	for i := 0; i < n; i++ {
		raw := c.attractor.step(dt)
		c.slew += (raw - c.slew) * slewCoeff
		mod := c.slew

		tremGain := 1 - depth*0.5*(1-mod)
		cutoff := 200 * math.Pow(30, 0.5*(1+mod)*depth)

		for ch := 0; ch < nch; ch++ {
			x := buf[ch][i]

			if target < 0.5 {
				// Mostly tremolo; blend toward neutral as target rises.
				w := 1 - target*2
				buf[ch][i] = x * (tremGain*w + (1 - w))
			} else {
				w := (target - 0.5) * 2
				c.filters[ch].SetCutoff(core.Clamp(cutoff, 40, 18000))
				buf[ch][i] = x*(1-w) + c.filters[ch].ProcessSample(x)*w
			}
		}
	}
}
