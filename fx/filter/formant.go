package filter

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/filter/svf"
	"github.com/cwbudde/algo-rack/engine"
)

// formantBand is one vowel formant: center frequency, Q, and level.
type formantBand struct {
	freq float64
	q    float64
	amp  float64
}

// vowelTable holds the A, E, I, O, U reference formants (male voice).
var vowelTable = [5][3]formantBand{
	{{730, 9, 1.0}, {1090, 12, 0.50}, {2440, 20, 0.25}},  // A
	{{530, 7, 1.0}, {1840, 20, 0.45}, {2480, 21, 0.28}},  // E
	{{390, 5, 1.0}, {1990, 22, 0.35}, {2550, 21, 0.30}},  // I
	{{570, 7, 1.0}, {840, 9, 0.55}, {2410, 20, 0.20}},    // O
	{{440, 6, 1.0}, {1020, 11, 0.45}, {2240, 19, 0.18}},  // U
}

// formant frequency clamps, lowest to highest band.
var formantClamps = [3][2]float64{
	{80, 1000},
	{200, 4000},
	{1000, 8000},
}

// Formant runs three parallel bandpass filters whose centers interpolate
// between adjacent vowels and shift together, always keeping the bands in
// ascending frequency order.
//
// Parameters: Vowel, Shift, Resonance, Drive.
type Formant struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	bands [][3]*svf.Filter
}

// NewFormant creates an unprepared formant filter.
func NewFormant() *Formant {
	return &Formant{params: engine.NewParamSetFor(engine.FormantFilter, "Vowel", "Shift", "Resonance", "Drive")}
}

// Name implements engine.Engine.
func (f *Formant) Name() string { return "Formant Filter" }

// NumParameters implements engine.Engine.
func (f *Formant) NumParameters() int { return f.params.Num() }

// ParameterName implements engine.Engine.
func (f *Formant) ParameterName(i int) string { return f.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (f *Formant) UpdateParameters(changes map[int]float64) { f.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (f *Formant) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (f *Formant) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("formant filter sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("formant filter max block must be > 0: %d", maxBlock)
	}

	f.sampleRate = sampleRate

	f.bands = f.bands[:0]
	for ch := 0; ch < engine.MaxChannels; ch++ {
		var trio [3]*svf.Filter

		for b := range trio {
			filt, err := svf.New(sampleRate)
			if err != nil {
				return err
			}

			filt.SetOutput(svf.Bandpass)
			trio[b] = filt
		}

		f.bands = append(f.bands, trio)
	}

	f.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (f *Formant) Reset() {
	for ch := range f.bands {
		for _, filt := range f.bands[ch] {
			filt.Reset()
		}
	}
}

// Process implements engine.Engine.
func (f *Formant) Process(buf [][]float64) {
	if !f.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	bands := currentFormants(f.params.Value(0), f.params.Value(1))
	resScale := 0.5 + f.params.Value(2)*1.5
	drive := 1 + f.params.Value(3)*3

	for ch := 0; ch < nch; ch++ {
		for b, band := range bands {
			f.bands[ch][b].SetCutoff(band.freq)
			f.bands[ch][b].SetQ(band.q * resScale)
		}
	}

	for i := range buf[0] {
		for ch := 0; ch < nch; ch++ {
			x := math.Tanh(buf[ch][i] * drive)

			var out float64
			for b, band := range bands {
				out += f.bands[ch][b].ProcessSample(x) * band.amp
			}

			buf[ch][i] = out
		}
	}
}

// currentFormants interpolates the vowel table at position pos in [0, 1] and
// applies the shift multiplier 0.5+shift, clamped per band so the three
// centers stay in ascending order.
func currentFormants(pos, shift float64) [3]formantBand {
	pos = core.Clamp(pos, 0, 1) * float64(len(vowelTable)-1)

	lo := int(pos)
	if lo >= len(vowelTable)-1 {
		lo = len(vowelTable) - 2
	}

	t := pos - float64(lo)
	mult := 0.5 + core.Clamp(shift, 0, 1)

	var out [3]formantBand
	for b := 0; b < 3; b++ {
		a := vowelTable[lo][b]
		c := vowelTable[lo+1][b]

		out[b] = formantBand{
			freq: core.Lerp(a.freq, c.freq, t) * mult,
			q:    core.Lerp(a.q, c.q, t),
			amp:  core.Lerp(a.amp, c.amp, t),
		}

		out[b].freq = core.Clamp(out[b].freq, formantClamps[b][0], formantClamps[b][1])
	}

	// Keep F1 < F2 < F3 even at the clamp edges.
	if out[1].freq <= out[0].freq {
		out[1].freq = out[0].freq + 1
	}

	if out[2].freq <= out[1].freq {
		out[2].freq = out[1].freq + 1
	}

	return out
}