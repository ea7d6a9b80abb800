package distortion

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/filter/biquad"
	"github.com/cwbudde/algo-rack/dsp/filter/design"
	"github.com/cwbudde/algo-rack/engine"
)

// Rodent is an op-amp distortion with hard shunt clipping after the gain
// stage and the characteristic post filter that only ever darkens.
//
// Parameters: Distortion, Filter, Volume.
type Rodent struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	input    [engine.MaxChannels]*core.DCBlocker
	post     []*biquad.Section
	lastFilt float64
}

// NewRodent creates an unprepared rodent distortion.
func NewRodent() *Rodent {
	return &Rodent{params: engine.NewParamSetFor(engine.RodentDistortion, "Distortion", "Filter", "Volume"), lastFilt: -1}
}

// Name implements engine.Engine.
func (r *Rodent) Name() string { return "Rodent Distortion" }

// NumParameters implements engine.Engine.
func (r *Rodent) NumParameters() int { return r.params.Num() }

// ParameterName implements engine.Engine.
func (r *Rodent) ParameterName(i int) string { return r.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (r *Rodent) UpdateParameters(changes map[int]float64) { r.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (r *Rodent) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (r *Rodent) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("rodent distortion sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("rodent distortion max block must be > 0: %d", maxBlock)
	}

	r.sampleRate = sampleRate
	r.post = r.post[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		dc, err := core.NewDCBlocker(0.995)
		if err != nil {
			return fmt.Errorf("rodent distortion dc blocker: %w", err)
		}

		r.input[ch] = dc
		r.post = append(r.post, biquad.NewSection(biquad.Identity()))
	}

	r.lastFilt = -1
	r.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (r *Rodent) Reset() {
	for ch := range r.post {
		r.input[ch].Reset()
		r.post[ch].Reset()
	}
}

// Process implements engine.Engine.
func (r *Rodent) Process(buf [][]float64) {
	if !r.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	if filt := r.params.Value(1); filt != r.lastFilt {
		r.lastFilt = filt

		// Filter knob sweeps the post lowpass 10 kHz down to 500 Hz.
		freq := 10000 * math.Pow(0.05, filt)
		coeffs := design.Lowpass(freq, 0.7, r.sampleRate)

		for ch := range r.post {
			r.post[ch].SetCoefficients(coeffs)
		}
	}

	drive := 2 + r.params.Value(0)*r.params.Value(0)*98
	volume := core.DBToLinear((r.params.Value(2)-0.5)*24) * 0.6

	for ch := 0; ch < nch; ch++ {
		for i := range buf[ch] {
			x := r.input[ch].ProcessSample(buf[ch][i])

			// Op-amp slams the rails before the diodes shear what is left.
			x = core.HardLimit(x*drive, 4)
			x = core.SoftClip(x, 0.4)
			x = core.HardLimit(x, 0.7)

			buf[ch][i] = r.post[ch].ProcessSample(x) * volume
		}
	}
}
