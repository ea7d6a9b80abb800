package reverb

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/engine"
)

// plateCombTunings are the classic eight comb lengths at 44.1 kHz.
var plateCombTunings = [8]int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}

// plateAllpassTunings are the series diffuser lengths at 44.1 kHz.
var plateAllpassTunings = [4]int{556, 441, 341, 225}

// Plate is an eight-comb, four-allpass plate in the Freeverb topology,
// bright and fast-building.
//
// Parameters: Size, Decay, Damping, Mix.
type Plate struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	combs [reverbChannels][8]*dampedComb
	diff  [reverbChannels][4]*allpass
}

// NewPlate creates an unprepared plate reverb.
func NewPlate() *Plate {
	return &Plate{params: engine.NewParamSetFor(engine.PlateReverb, "Size", "Decay", "Damping", "Mix")}
}

// Name implements engine.Engine.
func (p *Plate) Name() string { return "Plate Reverb" }

// NumParameters implements engine.Engine.
func (p *Plate) NumParameters() int { return p.params.Num() }

// ParameterName implements engine.Engine.
func (p *Plate) ParameterName(i int) string { return p.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (p *Plate) UpdateParameters(changes map[int]float64) { p.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (p *Plate) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (p *Plate) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("plate reverb sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("plate reverb max block must be > 0: %d", maxBlock)
	}

	p.sampleRate = sampleRate

	// Size stretches the comb bank up to 1.5x; allocate for the longest.
	for ch := 0; ch < reverbChannels; ch++ {
		for i, ref := range plateCombTunings {
			p.combs[ch][i] = newDampedComb(scaleLength(ref+ref/2, sampleRate, ch))
		}

		for i, ref := range plateAllpassTunings {
			p.diff[ch][i] = newAllpass(scaleLength(ref, sampleRate, ch), 0.5)
		}
	}

	p.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (p *Plate) Reset() {
	for ch := 0; ch < reverbChannels; ch++ {
		for i := range p.combs[ch] {
			p.combs[ch][i].reset()
		}

		for i := range p.diff[ch] {
			p.diff[ch][i].reset()
		}
	}
}

// Process implements engine.Engine.
func (p *Plate) Process(buf [][]float64) {
	if !p.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > reverbChannels {
		nch = reverbChannels
	}

	rt60 := 0.2 + p.params.Value(1)*p.params.Value(1)*5.8
	damp := p.params.Value(2) * 0.8
	mix := p.params.Value(3)

	// Size shortens or stretches the effective loop inside the allocated
	// buffers by scaling the target feedback for the nominal length.
	sizeScale := 0.7 + p.params.Value(0)*0.8

	for ch := 0; ch < nch; ch++ {
		for i := range p.combs[ch] {
			loop := float64(len(p.combs[ch][i].buf)) * sizeScale / 1.5
			p.combs[ch][i].setFeedback(feedbackForRT60(loop, rt60, p.sampleRate))
			p.combs[ch][i].setDamp(damp)
		}

		for i := range buf[ch] {
			dry := buf[ch][i]

			wet := 0.0
			for c := range p.combs[ch] {
				wet += p.combs[ch][c].process(dry * 0.25)
			}

			for a := range p.diff[ch] {
				wet = p.diff[ch][a].process(wet)
			}

			buf[ch][i] = dry*(1-mix) + wet*mix
		}
	}
}
