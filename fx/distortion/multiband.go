package distortion

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/engine"
)

// onePole is a first-order lowpass used for the complementary band splits.
// Subtracting its output from the input yields the matching highpass, so
// the three bands sum back to the original signal exactly.
type onePole struct {
	coeff float64
	state float64
}

func (p *onePole) setCutoff(freq, sampleRate float64) {
	p.coeff = 1 - math.Exp(-2*math.Pi*freq/sampleRate)
}

func (p *onePole) process(x float64) float64 {
	p.state += (x - p.state) * p.coeff
	return p.state
}

// Multiband splits the signal at 200 Hz and 2 kHz and saturates each band
// independently. Driving only the low band fattens without fizz; driving
// only the top adds grit without mud.
//
// Parameters: Low Drive, Mid Drive, High Drive, Output.
type Multiband struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	splitLow [engine.MaxChannels]onePole
	splitMid [engine.MaxChannels]onePole
}

// NewMultiband creates an unprepared multiband saturator.
func NewMultiband() *Multiband {
	return &Multiband{params: engine.NewParamSetFor(engine.MultibandSaturator, "Low Drive", "Mid Drive", "High Drive", "Output")}
}

// Name implements engine.Engine.
func (m *Multiband) Name() string { return "Multiband Saturator" }

// NumParameters implements engine.Engine.
func (m *Multiband) NumParameters() int { return m.params.Num() }

// ParameterName implements engine.Engine.
func (m *Multiband) ParameterName(i int) string { return m.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (m *Multiband) UpdateParameters(changes map[int]float64) { m.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (m *Multiband) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (m *Multiband) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("multiband saturator sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("multiband saturator max block must be > 0: %d", maxBlock)
	}

	m.sampleRate = sampleRate

	for ch := 0; ch < engine.MaxChannels; ch++ {
		m.splitLow[ch].setCutoff(200, sampleRate)
		m.splitMid[ch].setCutoff(2000, sampleRate)
	}

	m.prepared = true
	m.Reset()

	return nil
}

// Reset implements engine.Engine.
func (m *Multiband) Reset() {
	for ch := range m.splitLow {
		m.splitLow[ch].state = 0
		m.splitMid[ch].state = 0
	}
}

// saturateBand compensates the tanh gain so a band at zero drive passes
// through unchanged.
func saturateBand(x, driveV float64) float64 {
	if driveV < 1e-3 {
		return x
	}

	drive := 1 + driveV*7
	return math.Tanh(x*drive) / math.Tanh(drive*0.6) * 0.6
}

// Process implements engine.Engine.
func (m *Multiband) Process(buf [][]float64) {
	if !m.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	lowDrv := m.params.Value(0)
	midDrv := m.params.Value(1)
	highDrv := m.params.Value(2)
	output := core.DBToLinear((m.params.Value(3) - 0.5) * 24)

	for ch := 0; ch < nch; ch++ {
		for i := range buf[ch] {
			x := buf[ch][i]

			low := m.splitLow[ch].process(x)
			rest := x - low
			mid := m.splitMid[ch].process(rest)
			high := rest - mid

			sum := saturateBand(low, lowDrv) + saturateBand(mid, midDrv) + saturateBand(high, highDrv)
			buf[ch][i] = sum * output
		}
	}
}
