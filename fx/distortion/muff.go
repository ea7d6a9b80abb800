package distortion

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/filter/biquad"
	"github.com/cwbudde/algo-rack/dsp/filter/design"
	"github.com/cwbudde/algo-rack/engine"
)

// Muff is a big fuzz: two cascaded diode clipping stages with coupling
// highpasses between them and the classic scooped tilt tone control.
//
// Parameters: Sustain, Tone, Volume.
type Muff struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	couple1  [engine.MaxChannels]*core.DCBlocker
	couple2  [engine.MaxChannels]*core.DCBlocker
	toneLow  []*biquad.Section
	toneHigh []*biquad.Section
	lastTone float64
}

// NewMuff creates an unprepared fuzz.
func NewMuff() *Muff {
	return &Muff{params: engine.NewParamSetFor(engine.MuffFuzz, "Sustain", "Tone", "Volume"), lastTone: -1}
}

// Name implements engine.Engine.
func (m *Muff) Name() string { return "Muff Fuzz" }

// NumParameters implements engine.Engine.
func (m *Muff) NumParameters() int { return m.params.Num() }

// ParameterName implements engine.Engine.
func (m *Muff) ParameterName(i int) string { return m.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (m *Muff) UpdateParameters(changes map[int]float64) { m.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (m *Muff) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (m *Muff) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("muff fuzz sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("muff fuzz max block must be > 0: %d", maxBlock)
	}

	m.sampleRate = sampleRate
	m.toneLow = m.toneLow[:0]
	m.toneHigh = m.toneHigh[:0]

	for ch := 0; ch < engine.MaxChannels; ch++ {
		couple1, err := core.NewDCBlocker(0.995)
		if err != nil {
			return fmt.Errorf("muff fuzz dc blocker: %w", err)
		}

		couple2, err := core.NewDCBlocker(0.995)
		if err != nil {
			return fmt.Errorf("muff fuzz dc blocker: %w", err)
		}

		m.couple1[ch] = couple1
		m.couple2[ch] = couple2
		m.toneLow = append(m.toneLow, biquad.NewSection(biquad.Identity()))
		m.toneHigh = append(m.toneHigh, biquad.NewSection(biquad.Identity()))
	}

	m.lastTone = -1
	m.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (m *Muff) Reset() {
	for ch := range m.toneLow {
		m.couple1[ch].Reset()
		m.couple2[ch].Reset()
		m.toneLow[ch].Reset()
		m.toneHigh[ch].Reset()
	}
}

// diodeClip is a symmetric soft clipper steeper than tanh, standing in for
// the back-to-back silicon pairs in the feedback path.
func diodeClip(x float64) float64 {
	return x / (1 + math.Abs(x)*math.Abs(x)*0.5 + math.Abs(x)*0.3)
}

// Process implements engine.Engine.
func (m *Muff) Process(buf [][]float64) {
	if !m.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	if tone := m.params.Value(1); tone != m.lastTone {
		m.lastTone = tone

		// Tilt network: complementary lowpass and highpass around 1 kHz,
		// crossfaded. Fully either way the stock circuit still bleeds a
		// little of the other side through, hence the blend floor below.
		lowCoeffs := design.Lowpass(1000, 0.5, m.sampleRate)
		highCoeffs := design.Highpass(1000, 0.5, m.sampleRate)

		for ch := range m.toneLow {
			m.toneLow[ch].SetCoefficients(lowCoeffs)
			m.toneHigh[ch].SetCoefficients(highCoeffs)
		}
	}

	sustain := m.params.Value(0)
	gain1 := 4 + sustain*36
	gain2 := 3 + sustain*12
	toneBlend := 0.1 + m.params.Value(1)*0.8
	volume := core.DBToLinear((m.params.Value(2)-0.5)*24) * 0.5

	for ch := 0; ch < nch; ch++ {
		for i := range buf[ch] {
			x := buf[ch][i]

			x = diodeClip(x * gain1)
			x = m.couple1[ch].ProcessSample(x)
			x = diodeClip(x * gain2)
			x = m.couple2[ch].ProcessSample(x)

			low := m.toneLow[ch].ProcessSample(x)
			high := m.toneHigh[ch].ProcessSample(x)
			buf[ch][i] = (low*(1-toneBlend) + high*toneBlend) * volume
		}
	}
}
