// Package eq implements the equalizer engines: the four-band parametric EQ
// with optional oversampled drive, and the three-band console channel EQ.
// Coefficients are recomputed once per block from the RBJ designs; the
// filters themselves are transposed direct-form biquads.
package eq

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/filter/biquad"
	"github.com/cwbudde/algo-rack/dsp/filter/design"
	"github.com/cwbudde/algo-rack/dsp/oversample"
	"github.com/cwbudde/algo-rack/engine"
)

const (
	eqBands      = 4
	eqMaxGainDB  = 15.0
	eqMinFreq    = 20.0
	eqMaxFreq    = 20000.0
	driveEngage  = 0.01
	limitKneeDB  = -1.0
	coeffEpsilon = 1e-4
)

// Parametric is a four-band EQ: low shelf, two peaks, high shelf, a global Q
// scalar, and a drive stage that engages 2x oversampling when pushed.
//
// Parameters: LS Freq, LS Gain, P1 Freq, P1 Gain, P2 Freq, P2 Gain,
// HS Freq, HS Gain, Q, Drive.
type Parametric struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	chains []*biquad.Chain
	os     []*oversample.Oversampler

	lastSettings [eqBands*2 + 1]float64
	haveCoeffs   bool
}

// NewParametric creates an unprepared parametric EQ.
func NewParametric() *Parametric {
	return &Parametric{
		params: engine.NewParamSetFor(engine.ParametricEQ,
			"LS Freq", "LS Gain",
			"P1 Freq", "P1 Gain",
			"P2 Freq", "P2 Gain",
			"HS Freq", "HS Gain",
			"Q", "Drive",
		),
	}
}

// Name implements engine.Engine.
func (p *Parametric) Name() string { return "Parametric EQ" }

// NumParameters implements engine.Engine.
func (p *Parametric) NumParameters() int { return p.params.Num() }

// ParameterName implements engine.Engine.
func (p *Parametric) ParameterName(i int) string { return p.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (p *Parametric) UpdateParameters(changes map[int]float64) { p.params.Update(changes) }

// LatencySamples reports the oversampler delay when drive is engaged.
func (p *Parametric) LatencySamples() int {
	if p.params.Value(9) > driveEngage && len(p.os) > 0 {
		return p.os[0].Latency()
	}

	return 0
}

// Prepare implements engine.Engine.
func (p *Parametric) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("parametric eq sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("parametric eq max block must be > 0: %d", maxBlock)
	}

	p.sampleRate = sampleRate

	p.chains = p.chains[:0]
	p.os = p.os[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		chain := biquad.NewChain(
			biquad.Identity(), biquad.Identity(), biquad.Identity(), biquad.Identity(),
		)

		os, err := oversample.New(2, maxBlock)
		if err != nil {
			return err
		}

		p.chains = append(p.chains, chain)
		p.os = append(p.os, os)
	}

	p.haveCoeffs = false
	p.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (p *Parametric) Reset() {
	for _, chain := range p.chains {
		chain.Reset()
	}

	for _, os := range p.os {
		os.Reset()
	}
}

// Process implements engine.Engine.
func (p *Parametric) Process(buf [][]float64) {
	if !p.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	p.updateCoefficients()

	drive := p.params.Value(9)

	for ch := 0; ch < nch; ch++ {
		chain := p.chains[ch]

		if drive > driveEngage {
			gain := 1 + drive*4

			p.os[ch].Process(buf[ch], func(up []float64) {
				for i := range up {
					up[i] = core.SoftClip(up[i]*gain, 0.7) / (1 + drive)
				}
			})
		}

		chain.ProcessBlock(buf[ch])

		limitBlock(buf[ch])
	}
}

// updateCoefficients redesigns the four bands when any knob moved since the
// previous block.
func (p *Parametric) updateCoefficients() {
	var settings [eqBands*2 + 1]float64
	for i := 0; i < eqBands*2; i++ {
		settings[i] = p.params.Value(i)
	}
	settings[eqBands*2] = p.params.Value(8)

	if p.haveCoeffs && settingsClose(p.lastSettings[:], settings[:]) {
		return
	}

	p.lastSettings = settings
	p.haveCoeffs = true

	q := qValue(p.params.Value(8))

	coeffs := [eqBands]biquad.Coefficients{
		p.designBand(design.LowShelf, 0, 1, q),
		p.designBand(design.Peak, 2, 3, q),
		p.designBand(design.Peak, 4, 5, q),
		p.designBand(design.HighShelf, 6, 7, q),
	}

	for _, chain := range p.chains {
		for b := 0; b < eqBands; b++ {
			chain.Section(b).SetCoefficients(coeffs[b])
		}
	}
}

type bandDesign func(freq, gainDB, q, sampleRate float64) biquad.Coefficients

func (p *Parametric) designBand(fn bandDesign, freqIdx, gainIdx int, q float64) biquad.Coefficients {
	freq := logFrequency(p.params.Value(freqIdx))
	gainDB := (p.params.Value(gainIdx) - 0.5) * 2 * eqMaxGainDB

	if math.Abs(gainDB) < 0.01 {
		return biquad.Identity()
	}

	return fn(freq, gainDB, q, p.sampleRate)
}

// limitBlock is a soft-knee safety limiter on the EQ output.
func limitBlock(samples []float64) {
	knee := core.DBToLinear(limitKneeDB)

	for i, v := range samples {
		if a := math.Abs(v); a > knee {
			samples[i] = math.Copysign(knee+(1-knee)*math.Tanh((a-knee)/(1-knee)), v)
		}
	}
}

func settingsClose(a, b []float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > coeffEpsilon {
			return false
		}
	}

	return true
}

// logFrequency maps 0..1 to 20 Hz..20 kHz logarithmically.
func logFrequency(v float64) float64 {
	return eqMinFreq * math.Pow(eqMaxFreq/eqMinFreq, core.Clamp(v, 0, 1))
}

// qValue maps 0..1 to 0.1..10 logarithmically.
func qValue(v float64) float64 {
	return 0.1 * math.Pow(100, core.Clamp(v, 0, 1))
}
