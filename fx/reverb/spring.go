package reverb

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/filter/biquad"
	"github.com/cwbudde/algo-rack/dsp/filter/design"
	"github.com/cwbudde/algo-rack/engine"
)

// springStages is the dispersion cascade depth. Many short identical
// allpasses make transients smear into the characteristic boing chirp.
const springStages = 24

// Spring is a spring tank: a long dispersive allpass chain inside a
// damped feedback loop, band-limited the way a real transducer pair is.
//
// Parameters: Tension, Decay, Tone, Mix.
type Spring struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	chain [reverbChannels][springStages]*allpass
	loop  [reverbChannels]*dampedComb
	tone  [reverbChannels]*biquad.Section
	hp    [reverbChannels]*core.DCBlocker
	last  float64
}

// NewSpring creates an unprepared spring reverb.
func NewSpring() *Spring {
	return &Spring{params: engine.NewParamSetFor(engine.SpringReverb, "Tension", "Decay", "Tone", "Mix"), last: -1}
}

// Name implements engine.Engine.
func (s *Spring) Name() string { return "Spring Reverb" }

// NumParameters implements engine.Engine.
func (s *Spring) NumParameters() int { return s.params.Num() }

// ParameterName implements engine.Engine.
func (s *Spring) ParameterName(i int) string { return s.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (s *Spring) UpdateParameters(changes map[int]float64) { s.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (s *Spring) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (s *Spring) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("spring reverb sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("spring reverb max block must be > 0: %d", maxBlock)
	}

	s.sampleRate = sampleRate

	// Tension shortens the dispersion stages. Allocate the slack end.
	tension := s.params.Value(0)
	stageLen := scaleLength(37-int(tension*20), sampleRate, 0)

	for ch := 0; ch < reverbChannels; ch++ {
		for i := range s.chain[ch] {
			s.chain[ch][i] = newAllpass(stageLen+i%3, 0.6)
		}

		hp, err := core.NewDCBlocker(0.995)
		if err != nil {
			return fmt.Errorf("spring reverb dc blocker: %w", err)
		}

		s.loop[ch] = newDampedComb(scaleLength(1900, sampleRate, ch))
		s.tone[ch] = biquad.NewSection(biquad.Identity())
		s.hp[ch] = hp
	}

	s.last = -1
	s.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (s *Spring) Reset() {
	for ch := 0; ch < reverbChannels; ch++ {
		for i := range s.chain[ch] {
			s.chain[ch][i].reset()
		}

		s.loop[ch].reset()
		s.tone[ch].Reset()
		s.hp[ch].Reset()
	}
}

// Process implements engine.Engine.
func (s *Spring) Process(buf [][]float64) {
	if !s.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > reverbChannels {
		nch = reverbChannels
	}

	if tone := s.params.Value(2); tone != s.last {
		s.last = tone

		coeffs := design.Lowpass(1500*math.Pow(4, tone), 0.7, s.sampleRate)
		for ch := 0; ch < reverbChannels; ch++ {
			s.tone[ch].SetCoefficients(coeffs)
		}
	}

	rt60 := 0.3 + s.params.Value(1)*3.2
	mix := s.params.Value(3)

	for ch := 0; ch < nch; ch++ {
		loop := float64(len(s.loop[ch].buf))
		s.loop[ch].setFeedback(feedbackForRT60(loop, rt60, s.sampleRate))
		s.loop[ch].setDamp(0.4)

		for i := range buf[ch] {
			dry := buf[ch][i]

			x := s.loop[ch].process(s.hp[ch].ProcessSample(dry))
			for a := range s.chain[ch] {
				x = s.chain[ch][a].process(x)
			}

			wet := s.tone[ch].ProcessSample(x) * 1.4
			buf[ch][i] = dry*(1-mix) + wet*mix
		}
	}
}
