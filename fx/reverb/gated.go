package reverb

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/engine"
)

// gatedCombTunings keep the tank small and dense; the gate does the
// shaping, not the tail.
var gatedCombTunings = [6]int{1019, 1193, 1327, 1489, 1637, 1789}

// Gated is the eighties drum reverb: a dense tank whose output is cut
// hard a fixed time after the input transient instead of decaying.
//
// Parameters: Gate Time, Threshold, Brightness, Mix.
type Gated struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	combs [reverbChannels][6]*dampedComb
	diff  [reverbChannels][2]*allpass

	env      float64
	holdLeft int
	gateGain float64
}

// NewGated creates an unprepared gated reverb.
func NewGated() *Gated {
	return &Gated{params: engine.NewParamSetFor(engine.GatedReverb, "Gate Time", "Threshold", "Brightness", "Mix")}
}

// Name implements engine.Engine.
func (g *Gated) Name() string { return "Gated Reverb" }

// NumParameters implements engine.Engine.
func (g *Gated) NumParameters() int { return g.params.Num() }

// ParameterName implements engine.Engine.
func (g *Gated) ParameterName(i int) string { return g.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (g *Gated) UpdateParameters(changes map[int]float64) { g.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (g *Gated) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (g *Gated) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("gated reverb sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("gated reverb max block must be > 0: %d", maxBlock)
	}

	g.sampleRate = sampleRate

	for ch := 0; ch < reverbChannels; ch++ {
		for i, ref := range gatedCombTunings {
			g.combs[ch][i] = newDampedComb(scaleLength(ref, sampleRate, ch))
		}

		g.diff[ch][0] = newAllpass(scaleLength(331, sampleRate, ch), 0.5)
		g.diff[ch][1] = newAllpass(scaleLength(239, sampleRate, ch), 0.5)
	}

	g.prepared = true
	g.Reset()

	return nil
}

// Reset implements engine.Engine.
func (g *Gated) Reset() {
	for ch := 0; ch < reverbChannels; ch++ {
		for i := range g.combs[ch] {
			g.combs[ch][i].reset()
		}

		for i := range g.diff[ch] {
			g.diff[ch][i].reset()
		}
	}

	g.env = 0
	g.holdLeft = 0
	g.gateGain = 0
}

// Process implements engine.Engine.
func (g *Gated) Process(buf [][]float64) {
	if !g.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > reverbChannels {
		nch = reverbChannels
	}

	holdSamples := int((0.05 + g.params.Value(0)*0.45) * g.sampleRate)
	threshold := math.Pow(10, -3+g.params.Value(1)*2.5)
	damp := (1 - g.params.Value(2)) * 0.8
	mix := g.params.Value(3)

	// 2 s nominal tail inside the tank; the gate truncates it.
	for ch := 0; ch < nch; ch++ {
		for i := range g.combs[ch] {
			loop := float64(len(g.combs[ch][i].buf))
			g.combs[ch][i].setFeedback(feedbackForRT60(loop, 2, g.sampleRate))
			g.combs[ch][i].setDamp(damp)
		}
	}

	const envRelease = 0.999
	const gateOpen = 0.02
	const gateClose = 0.002

	n := len(buf[0])
	for i := 0; i < n; i++ {
		// Mono detector across the active channels.
		peak := 0.0
		for ch := 0; ch < nch; ch++ {
			if a := math.Abs(buf[ch][i]); a > peak {
				peak = a
			}
		}

		if peak > g.env {
			g.env = peak
		} else {
			g.env *= envRelease
		}

		if g.env > threshold {
			g.holdLeft = holdSamples
		}

		target := 0.0
		if g.holdLeft > 0 {
			g.holdLeft--
			target = 1
		}

		if target > g.gateGain {
			g.gateGain += (target - g.gateGain) * gateOpen * 10
		} else {
			g.gateGain += (target - g.gateGain) * gateClose * 10
		}

		for ch := 0; ch < nch; ch++ {
			dry := buf[ch][i]

			wet := 0.0
			for c := range g.combs[ch] {
				wet += g.combs[ch][c].process(dry * 0.3)
			}

			for a := range g.diff[ch] {
				wet = g.diff[ch][a].process(wet)
			}

			buf[ch][i] = dry*(1-mix) + wet*g.gateGain*mix
		}
	}
}
