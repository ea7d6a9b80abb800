package distortion

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/filter/biquad"
	"github.com/cwbudde/algo-rack/dsp/filter/design"
	"github.com/cwbudde/algo-rack/engine"
)

// KStyle is a transparent overdrive: an asymmetric tube-ish shaper with a
// fixed midrange voicing, known for cleaning up at low drive instead of
// fizzing.
//
// Parameters: Drive, Tone, Level.
type KStyle struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	voicing  []*biquad.Section
	tone     []*biquad.Section
	dc       [engine.MaxChannels]*core.DCBlocker
	lastTone float64
}

// NewKStyle creates an unprepared overdrive.
func NewKStyle() *KStyle {
	return &KStyle{params: engine.NewParamSetFor(engine.KStyleOverdrive, "Drive", "Tone", "Level"), lastTone: -1}
}

// Name implements engine.Engine.
func (k *KStyle) Name() string { return "K-Style Overdrive" }

// NumParameters implements engine.Engine.
func (k *KStyle) NumParameters() int { return k.params.Num() }

// ParameterName implements engine.Engine.
func (k *KStyle) ParameterName(i int) string { return k.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (k *KStyle) UpdateParameters(changes map[int]float64) { k.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (k *KStyle) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (k *KStyle) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("k-style overdrive sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("k-style overdrive max block must be > 0: %d", maxBlock)
	}

	k.sampleRate = sampleRate
	k.voicing = k.voicing[:0]
	k.tone = k.tone[:0]

	voiceCoeffs := design.Peak(720, 4, 0.8, sampleRate)

	for ch := 0; ch < engine.MaxChannels; ch++ {
		dc, err := core.NewDCBlocker(0.995)
		if err != nil {
			return fmt.Errorf("k-style overdrive dc blocker: %w", err)
		}

		k.voicing = append(k.voicing, biquad.NewSection(voiceCoeffs))
		k.tone = append(k.tone, biquad.NewSection(biquad.Identity()))
		k.dc[ch] = dc
	}

	k.lastTone = -1
	k.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (k *KStyle) Reset() {
	for ch := range k.voicing {
		k.voicing[ch].Reset()
		k.tone[ch].Reset()
		k.dc[ch].Reset()
	}
}

// kShaper clips the positive half sooner than the negative half, the
// source of the even-order warmth.
func kShaper(x float64) float64 {
	if x >= 0 {
		return math.Tanh(x * 1.4)
	}

	return math.Tanh(x)
}

// Process implements engine.Engine.
func (k *KStyle) Process(buf [][]float64) {
	if !k.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	if tone := k.params.Value(1); tone != k.lastTone {
		k.lastTone = tone

		freq := 1500 * math.Pow(6, tone)
		coeffs := design.Lowpass(freq, 0.7, k.sampleRate)

		for ch := range k.tone {
			k.tone[ch].SetCoefficients(coeffs)
		}
	}

	driveV := k.params.Value(0)
	drive := 1 + driveV*driveV*30
	norm := 1 / (1 + driveV*2)
	level := core.DBToLinear((k.params.Value(2) - 0.5) * 24)

	for ch := 0; ch < nch; ch++ {
		for i := range buf[ch] {
			x := k.voicing[ch].ProcessSample(buf[ch][i])
			x = kShaper(x*drive) * norm
			x = k.dc[ch].ProcessSample(x)
			buf[ch][i] = k.tone[ch].ProcessSample(x) * level
		}
	}
}
