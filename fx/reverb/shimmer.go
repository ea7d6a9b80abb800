package reverb

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/engine"
	"github.com/cwbudde/algo-rack/fx/pitch"
)

// shimmerCombTunings are four long comb lengths at 44.1 kHz.
var shimmerCombTunings = [4]int{2111, 2543, 2969, 3343}

// Shimmer is a reverb whose feedback passes through an octave-up grain
// shifter, so each pass of the tail climbs. The shimmer amount crossfades
// shifted against plain feedback; the regeneration total is capped below
// unity so the climb always dies out.
//
// Parameters: Size, Decay, Shimmer, Mix.
type Shimmer struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	combs    [reverbChannels][4]*dampedComb
	diff     [reverbChannels][2]*allpass
	shifters [reverbChannels]*pitch.Shifter
	fb       [reverbChannels]float64
}

// NewShimmer creates an unprepared shimmer reverb.
func NewShimmer() *Shimmer {
	return &Shimmer{params: engine.NewParamSetFor(engine.ShimmerReverb, "Size", "Decay", "Shimmer", "Mix")}
}

// Name implements engine.Engine.
func (s *Shimmer) Name() string { return "Shimmer Reverb" }

// NumParameters implements engine.Engine.
func (s *Shimmer) NumParameters() int { return s.params.Num() }

// ParameterName implements engine.Engine.
func (s *Shimmer) ParameterName(i int) string { return s.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (s *Shimmer) UpdateParameters(changes map[int]float64) { s.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (s *Shimmer) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (s *Shimmer) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("shimmer reverb sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("shimmer reverb max block must be > 0: %d", maxBlock)
	}

	s.sampleRate = sampleRate

	for ch := 0; ch < reverbChannels; ch++ {
		for i, ref := range shimmerCombTunings {
			s.combs[ch][i] = newDampedComb(scaleLength(ref+ref/2, sampleRate, ch))
		}

		s.diff[ch][0] = newAllpass(scaleLength(441, sampleRate, ch), 0.5)
		s.diff[ch][1] = newAllpass(scaleLength(341, sampleRate, ch), 0.5)

		s.shifters[ch] = pitch.NewShifter(12, uint64(0x51ca0+ch))
	}

	s.prepared = true
	s.Reset()

	return nil
}

// Reset implements engine.Engine.
func (s *Shimmer) Reset() {
	for ch := 0; ch < reverbChannels; ch++ {
		for i := range s.combs[ch] {
			s.combs[ch][i].reset()
		}

		for i := range s.diff[ch] {
			s.diff[ch][i].reset()
		}

		if s.shifters[ch] != nil {
			s.shifters[ch].Reset()
		}

		s.fb[ch] = 0
	}
}

// Process implements engine.Engine.
func (s *Shimmer) Process(buf [][]float64) {
	if !s.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > reverbChannels {
		nch = reverbChannels
	}

	rt60 := 0.5 + s.params.Value(1)*s.params.Value(1)*9.5
	shimmer := s.params.Value(2)
	mix := s.params.Value(3)
	sizeScale := 0.7 + s.params.Value(0)*0.8

	for ch := 0; ch < nch; ch++ {
		for i := range s.combs[ch] {
			loop := float64(len(s.combs[ch][i].buf)) * sizeScale / 1.5
			s.combs[ch][i].setFeedback(feedbackForRT60(loop, rt60, s.sampleRate))
			s.combs[ch][i].setDamp(0.25)
		}

		for i := range buf[ch] {
			dry := buf[ch][i]

			// Regeneration: plain tail crossfaded with its octave-up copy,
			// soft-clipped so the shifter transients cannot pump the loop.
			shifted := s.shifters[ch].Tick(s.fb[ch])
			regen := core.SoftClip((s.fb[ch]*(1-shimmer)+shifted*shimmer)*0.45, 0.8)

			in := dry*0.25 + regen

			wet := 0.0
			for c := range s.combs[ch] {
				wet += s.combs[ch][c].process(in)
			}
			wet *= 0.5

			for a := range s.diff[ch] {
				wet = s.diff[ch][a].process(wet)
			}

			s.fb[ch] = wet

			buf[ch][i] = dry*(1-mix) + wet*mix
		}
	}
}
