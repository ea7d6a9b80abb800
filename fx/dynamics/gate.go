package dynamics

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/engine"
)

// gateHysteresisDB keeps the gate from chattering around the threshold: it
// opens at the threshold but only closes this far below it.
const gateHysteresisDB = 4.0

// Gate is a downward noise gate with hysteresis and an adjustable floor.
//
// Parameters: Threshold, Range, Attack, Release.
type Gate struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	det  detector
	open bool
	gain float64
}

// NewGate creates an unprepared noise gate.
func NewGate() *Gate {
	return &Gate{params: engine.NewParamSetFor(engine.NoiseGate, "Threshold", "Range", "Attack", "Release")}
}

// Name implements engine.Engine.
func (g *Gate) Name() string { return "Noise Gate" }

// NumParameters implements engine.Engine.
func (g *Gate) NumParameters() int { return g.params.Num() }

// ParameterName implements engine.Engine.
func (g *Gate) ParameterName(i int) string { return g.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (g *Gate) UpdateParameters(changes map[int]float64) { g.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (g *Gate) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (g *Gate) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("noise gate sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("noise gate max block must be > 0: %d", maxBlock)
	}

	g.sampleRate = sampleRate
	g.det = newDetector(0.5, 20, sampleRate)
	g.open = false
	g.gain = 0
	g.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (g *Gate) Reset() {
	g.det.reset()
	g.open = false
	g.gain = 0
}

// Process implements engine.Engine.
func (g *Gate) Process(buf [][]float64) {
	if !g.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	thresholdDB := -80 + g.params.Value(0)*74 // -80..-6 dB
	floor := core.DBToLinear(-80 * g.params.Value(1))

	attack := timeCoeff(0.1+g.params.Value(2)*30, g.sampleRate)
	release := timeCoeff(5+g.params.Value(3)*495, g.sampleRate)

	openAt := core.DBToLinear(thresholdDB)
	closeAt := core.DBToLinear(thresholdDB - gateHysteresisDB)

	for i := range buf[0] {
		peak := 0.0
		for ch := 0; ch < nch; ch++ {
			if a := math.Abs(buf[ch][i]); a > peak {
				peak = a
			}
		}

		env := g.det.track(peak)

		if g.open {
			if env < closeAt {
				g.open = false
			}
		} else if env > openAt {
			g.open = true
		}

		target := floor
		if g.open {
			target = 1
		}

		if target > g.gain {
			g.gain += (target - g.gain) * attack
		} else {
			g.gain += (target - g.gain) * release
		}

		for ch := 0; ch < nch; ch++ {
			buf[ch][i] *= g.gain
		}
	}
}
