package dynamics

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/filter/biquad"
	"github.com/cwbudde/algo-rack/dsp/filter/design"
	"github.com/cwbudde/algo-rack/engine"
)

// deqUpdateInterval is how often the dynamic band is redesigned, in samples.
const deqUpdateInterval = 32

// DynamicEQ is a single-band dynamic equalizer: a bandpass sidechain detects
// energy around the center frequency and pulls the matching peak band down
// as the level crosses the threshold.
//
// Parameters: Frequency, Threshold, Ratio, Attack, Release, Q.
type DynamicEQ struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	bands     []*biquad.Section
	sidechain []*biquad.Section
	det       detector

	currentGR float64
	appliedGR float64
	counter   int
}

// NewDynamicEQ creates an unprepared dynamic EQ.
func NewDynamicEQ() *DynamicEQ {
	return &DynamicEQ{
		params: engine.NewParamSetFor(engine.DynamicEQ, "Frequency", "Threshold", "Ratio", "Attack", "Release", "Q"),
	}
}

// Name implements engine.Engine.
func (d *DynamicEQ) Name() string { return "Dynamic EQ" }

// NumParameters implements engine.Engine.
func (d *DynamicEQ) NumParameters() int { return d.params.Num() }

// ParameterName implements engine.Engine.
func (d *DynamicEQ) ParameterName(i int) string { return d.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (d *DynamicEQ) UpdateParameters(changes map[int]float64) { d.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (d *DynamicEQ) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (d *DynamicEQ) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("dynamic eq sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("dynamic eq max block must be > 0: %d", maxBlock)
	}

	d.sampleRate = sampleRate

	d.bands = d.bands[:0]
	d.sidechain = d.sidechain[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		d.bands = append(d.bands, biquad.NewSection(biquad.Identity()))
		d.sidechain = append(d.sidechain, biquad.NewSection(biquad.Identity()))
	}

	d.det = newDetector(10, 100, sampleRate)
	d.currentGR = 0
	d.appliedGR = 0
	d.counter = 0
	d.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (d *DynamicEQ) Reset() {
	for ch := range d.bands {
		d.bands[ch].Reset()
		d.sidechain[ch].Reset()
	}

	d.det.reset()
	d.currentGR = 0
	d.appliedGR = 0
	d.counter = 0
}

// Process implements engine.Engine.
func (d *DynamicEQ) Process(buf [][]float64) {
	if !d.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	freq := 50 * math.Pow(200, d.params.Value(0)) // 50 Hz..10 kHz
	thresholdDB := -60 + d.params.Value(1)*60
	ratio := 1 + d.params.Value(2)*d.params.Value(2)*9
	q := 0.5 + d.params.Value(5)*4

	attackMs := 1 + d.params.Value(3)*49
	releaseMs := 20 + d.params.Value(4)*480
	d.det.setTimes(attackMs, releaseMs, d.sampleRate)

	sidechainCoeffs := design.Bandpass(freq, q, d.sampleRate)
	for ch := 0; ch < nch; ch++ {
		d.sidechain[ch].SetCoefficients(sidechainCoeffs)
	}

	for i := range buf[0] {
		// Sidechain: band energy linked across channels.
		peak := 0.0
		for ch := 0; ch < nch; ch++ {
			if a := math.Abs(d.sidechain[ch].ProcessSample(buf[ch][i])); a > peak {
				peak = a
			}
		}

		env := d.det.track(peak)
		levelDB := core.LinearToDB(math.Max(env, 1e-6))
		d.currentGR = compressorGainDB(levelDB, thresholdDB, ratio, 6)

		// Redesign the band only when the reduction has moved enough.
		if d.counter == 0 && math.Abs(d.currentGR-d.appliedGR) > 0.25 {
			d.appliedGR = d.currentGR

			coeffs := biquad.Identity()
			if d.appliedGR < -0.05 {
				coeffs = design.Peak(freq, d.appliedGR, q, d.sampleRate)
			}

			for ch := 0; ch < nch; ch++ {
				d.bands[ch].SetCoefficients(coeffs)
			}
		}

		d.counter++
		if d.counter >= deqUpdateInterval {
			d.counter = 0
		}

		for ch := 0; ch < nch; ch++ {
			buf[ch][i] = d.bands[ch].ProcessSample(buf[ch][i])
		}
	}
}
