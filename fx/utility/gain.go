package utility

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/smooth"
	"github.com/cwbudde/algo-rack/engine"
)

// Gain is trim, pan and polarity in one slot. The gain leg is smoothed so
// automation rides cleanly.
//
// Parameters: Gain, Pan, Invert.
type Gain struct {
	params *engine.ParamSet

	prepared bool

	gainSm *smooth.Smoother
}

// NewGain creates an unprepared gain utility.
func NewGain() *Gain {
	return &Gain{params: engine.NewParamSetFor(engine.GainUtility, "Gain", "Pan", "Invert")}
}

// Name implements engine.Engine.
func (g *Gain) Name() string { return "Gain Utility" }

// NumParameters implements engine.Engine.
func (g *Gain) NumParameters() int { return g.params.Num() }

// ParameterName implements engine.Engine.
func (g *Gain) ParameterName(i int) string { return g.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (g *Gain) UpdateParameters(changes map[int]float64) { g.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (g *Gain) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (g *Gain) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("gain utility sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("gain utility max block must be > 0: %d", maxBlock)
	}

	sm, err := smooth.New(20, sampleRate)
	if err != nil {
		return fmt.Errorf("gain utility smoother: %w", err)
	}

	g.gainSm = sm
	g.gainSm.Reset(core.DBToLinear((g.params.Value(0) - 0.5) * 48))
	g.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (g *Gain) Reset() {
	if g.gainSm != nil {
		g.gainSm.Reset(core.DBToLinear((g.params.Value(0) - 0.5) * 48))
	}
}

// Process implements engine.Engine.
func (g *Gain) Process(buf [][]float64) {
	if !g.prepared || len(buf) == 0 {
		return
	}

	g.gainSm.SetTarget(core.DBToLinear((g.params.Value(0) - 0.5) * 48))

	pan := g.params.Value(1)
	left := math.Cos(pan * math.Pi / 2) * math.Sqrt2
	right := math.Sin(pan * math.Pi / 2) * math.Sqrt2

	sign := 1.0
	if g.params.Bool(2) {
		sign = -1
	}

	n := len(buf[0])
	stereo := len(buf) >= 2

	for i := 0; i < n; i++ {
		gain := g.gainSm.Next() * sign

		if stereo {
			for ch := 0; ch+1 < len(buf) && ch+1 < engine.MaxChannels; ch += 2 {
				buf[ch][i] *= gain * left
				buf[ch+1][i] *= gain * right
			}
		} else {
			buf[0][i] *= gain
		}
	}
}
