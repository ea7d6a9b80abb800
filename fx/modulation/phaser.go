package modulation

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/engine"
)

const phaserMaxStages = 8

// allpass1 is the one-pole allpass used for each phaser stage. The
// coefficient is recomputed per sample from the swept center frequency.
type allpass1 struct {
	x1 float64
	y1 float64
}

func (a *allpass1) process(x, coeff float64) float64 {
	y := -coeff*x + a.x1 + coeff*a.y1
	a.x1 = x
	a.y1 = y

	return y
}

// Phaser is a classic swept-allpass phaser with feedback.
//
// Parameters: Rate, Depth, Stages, Feedback, Mix.
type Phaser struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	osc    lfo
	stages [engine.MaxChannels][phaserMaxStages]allpass1
	fb     [engine.MaxChannels]float64
}

// NewPhaser creates an unprepared phaser.
func NewPhaser() *Phaser {
	return &Phaser{params: engine.NewParamSetFor(engine.AnalogPhaser, "Rate", "Depth", "Stages", "Feedback", "Mix")}
}

// Name implements engine.Engine.
func (p *Phaser) Name() string { return "Analog Phaser" }

// NumParameters implements engine.Engine.
func (p *Phaser) NumParameters() int { return p.params.Num() }

// ParameterName implements engine.Engine.
func (p *Phaser) ParameterName(i int) string { return p.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (p *Phaser) UpdateParameters(changes map[int]float64) { p.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (p *Phaser) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (p *Phaser) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("phaser sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("phaser max block must be > 0: %d", maxBlock)
	}

	p.sampleRate = sampleRate
	p.prepared = true
	p.Reset()

	return nil
}

// Reset implements engine.Engine.
func (p *Phaser) Reset() {
	p.osc.reset()

	for ch := range p.stages {
		for s := range p.stages[ch] {
			p.stages[ch][s] = allpass1{}
		}

		p.fb[ch] = 0
	}
}

// Process implements engine.Engine.
func (p *Phaser) Process(buf [][]float64) {
	if !p.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	p.osc.setRate(0.05+p.params.Value(0)*p.params.Value(0)*8, p.sampleRate)

	depth := p.params.Value(1)
	numStages := 2 + 2*int(p.params.Value(2)*3.499)
	feedback := p.params.Value(3) * 0.85
	mix := p.params.Value(4)

	n := len(buf[0])
	for i := 0; i < n; i++ {
		for ch := 0; ch < nch; ch++ {
			sign := 1.0
			if ch&1 == 1 {
				sign = -1
			}

			// Sweep 200 Hz .. 3.2 kHz, scaled by depth.
			mod := 0.5 * (1 + sign*p.osc.value(0, 0))
			freq := 200 * math.Pow(16, mod*depth)

			// Bilinear one-pole allpass coefficient.
			t := math.Tan(math.Pi * freq / p.sampleRate)
			coeff := (1 - t) / (1 + t)

			dry := buf[ch][i]
			x := dry + core.SoftClip(p.fb[ch]*feedback, 0.8)

			for s := 0; s < numStages; s++ {
				x = p.stages[ch][s].process(x, coeff)
			}
			p.fb[ch] = x

			buf[ch][i] = dry*(1-mix) + (dry+x)*0.5*mix
		}

		p.osc.advance()
	}
}
