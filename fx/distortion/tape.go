package distortion

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/filter/biquad"
	"github.com/cwbudde/algo-rack/dsp/filter/design"
	"github.com/cwbudde/algo-rack/engine"
)

// Tape is tape saturation: pre-emphasis into a tanh stage, matching
// de-emphasis, and a drive-dependent top end rolloff.
//
// Parameters: Drive, Tone, Output.
type Tape struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	pre      []*biquad.Section
	de       []*biquad.Section
	rolloff  []*biquad.Section
	lastTone float64
	lastDrv  float64
}

// NewTape creates an unprepared tape saturator.
func NewTape() *Tape {
	return &Tape{params: engine.NewParamSetFor(engine.TapeSaturator, "Drive", "Tone", "Output"), lastTone: -1}
}

// Name implements engine.Engine.
func (t *Tape) Name() string { return "Tape Saturator" }

// NumParameters implements engine.Engine.
func (t *Tape) NumParameters() int { return t.params.Num() }

// ParameterName implements engine.Engine.
func (t *Tape) ParameterName(i int) string { return t.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (t *Tape) UpdateParameters(changes map[int]float64) { t.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (t *Tape) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (t *Tape) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("tape saturator sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("tape saturator max block must be > 0: %d", maxBlock)
	}

	t.sampleRate = sampleRate

	t.pre = t.pre[:0]
	t.de = t.de[:0]
	t.rolloff = t.rolloff[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		t.pre = append(t.pre, biquad.NewSection(biquad.Identity()))
		t.de = append(t.de, biquad.NewSection(biquad.Identity()))
		t.rolloff = append(t.rolloff, biquad.NewSection(biquad.Identity()))
	}

	t.lastTone = -1
	t.lastDrv = -1
	t.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (t *Tape) Reset() {
	for ch := range t.pre {
		t.pre[ch].Reset()
		t.de[ch].Reset()
		t.rolloff[ch].Reset()
	}
}

// Process implements engine.Engine.
func (t *Tape) Process(buf [][]float64) {
	if !t.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	driveV := t.params.Value(0)
	tone := t.params.Value(1)

	if tone != t.lastTone || driveV != t.lastDrv {
		t.lastTone = tone
		t.lastDrv = driveV

		// Pre-emphasis rises toward the bias frequency; harder drive pulls
		// the rolloff down, the way hot tape loses highs first.
		emphasisDB := 3 + tone*6
		rolloffHz := 20000 * math.Pow(0.35, driveV)

		preCoeffs := design.HighShelf(3000, emphasisDB, 0.7, t.sampleRate)
		deCoeffs := design.HighShelf(3000, -emphasisDB, 0.7, t.sampleRate)
		rollCoeffs := design.Lowpass(rolloffHz, 0.7, t.sampleRate)

		for ch := range t.pre {
			t.pre[ch].SetCoefficients(preCoeffs)
			t.de[ch].SetCoefficients(deCoeffs)
			t.rolloff[ch].SetCoefficients(rollCoeffs)
		}
	}

	drive := 1 + driveV*9
	norm := 1 / math.Tanh(drive*0.8)
	output := core.DBToLinear((t.params.Value(2) - 0.5) * 24)

	for ch := 0; ch < nch; ch++ {
		for i := range buf[ch] {
			x := t.pre[ch].ProcessSample(buf[ch][i])
			x = math.Tanh(x*drive*0.8) * norm / drive * (1 + driveV*2.2)
			x = t.de[ch].ProcessSample(x)
			x = t.rolloff[ch].ProcessSample(x)
			buf[ch][i] = x * output
		}
	}
}
