package utility

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/engine"
)

// lowpass1 is the first-order lowpass the stereo tools use for their
// frequency-dependent mono folds.
type lowpass1 struct {
	coeff float64
	state float64
}

func (p *lowpass1) setCutoff(freq, sampleRate float64) {
	p.coeff = 1 - math.Exp(-2*math.Pi*freq/sampleRate)
}

func (p *lowpass1) process(x float64) float64 {
	p.state += (x - p.state) * p.coeff
	return p.state
}

// Widener scales the side signal. Below the bass-retain corner the side
// is folded back to mono regardless of width, keeping the low end solid.
//
// Parameters: Width, Bass Retain.
type Widener struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	sideLow [engine.MaxChannels / 2]lowpass1
}

// NewWidener creates an unprepared stereo widener.
func NewWidener() *Widener {
	return &Widener{params: engine.NewParamSetFor(engine.StereoWidener, "Width", "Bass Retain")}
}

// Name implements engine.Engine.
func (w *Widener) Name() string { return "Stereo Widener" }

// NumParameters implements engine.Engine.
func (w *Widener) NumParameters() int { return w.params.Num() }

// ParameterName implements engine.Engine.
func (w *Widener) ParameterName(i int) string { return w.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (w *Widener) UpdateParameters(changes map[int]float64) { w.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (w *Widener) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (w *Widener) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("stereo widener sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("stereo widener max block must be > 0: %d", maxBlock)
	}

	w.sampleRate = sampleRate
	w.prepared = true
	w.Reset()

	return nil
}

// Reset implements engine.Engine.
func (w *Widener) Reset() {
	for i := range w.sideLow {
		w.sideLow[i].state = 0
	}
}

// Process implements engine.Engine.
func (w *Widener) Process(buf [][]float64) {
	if !w.prepared || len(buf) < 2 {
		return
	}

	width := w.params.Value(0) * 2
	retain := 40 + w.params.Value(1)*260

	for pair := 0; pair*2+1 < len(buf) && pair*2+1 < engine.MaxChannels; pair++ {
		w.sideLow[pair].setCutoff(retain, w.sampleRate)

		l := buf[pair*2]
		r := buf[pair*2+1]

		for i := range l {
			mid := (l[i] + r[i]) * 0.5
			side := (l[i] - r[i]) * 0.5

			// Only the side content above the corner gets widened.
			sideLow := w.sideLow[pair].process(side)
			side = sideLow + (side-sideLow)*width

			l[i] = mid + side
			r[i] = mid - side
		}
	}
}

// MonoMaker folds the low band to mono with a sweepable corner and a
// blend amount. Amount 1 at max corner is a full mono fold.
//
// Parameters: Frequency, Amount.
type MonoMaker struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	sideLow [engine.MaxChannels / 2]lowpass1
}

// NewMonoMaker creates an unprepared mono maker.
func NewMonoMaker() *MonoMaker {
	return &MonoMaker{params: engine.NewParamSetFor(engine.MonoMaker, "Frequency", "Amount")}
}

// Name implements engine.Engine.
func (m *MonoMaker) Name() string { return "Mono Maker" }

// NumParameters implements engine.Engine.
func (m *MonoMaker) NumParameters() int { return m.params.Num() }

// ParameterName implements engine.Engine.
func (m *MonoMaker) ParameterName(i int) string { return m.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (m *MonoMaker) UpdateParameters(changes map[int]float64) { m.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (m *MonoMaker) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (m *MonoMaker) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("mono maker sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("mono maker max block must be > 0: %d", maxBlock)
	}

	m.sampleRate = sampleRate
	m.prepared = true
	m.Reset()

	return nil
}

// Reset implements engine.Engine.
func (m *MonoMaker) Reset() {
	for i := range m.sideLow {
		m.sideLow[i].state = 0
	}
}

// Process implements engine.Engine.
func (m *MonoMaker) Process(buf [][]float64) {
	if !m.prepared || len(buf) < 2 {
		return
	}

	// Corner 20 Hz .. 20 kHz; the top of the range folds everything.
	freq := 20 * math.Pow(1000, m.params.Value(0))
	amount := m.params.Value(1)

	for pair := 0; pair*2+1 < len(buf) && pair*2+1 < engine.MaxChannels; pair++ {
		m.sideLow[pair].setCutoff(freq, m.sampleRate)

		l := buf[pair*2]
		r := buf[pair*2+1]

		for i := range l {
			mid := (l[i] + r[i]) * 0.5
			side := (l[i] - r[i]) * 0.5

			sideLow := m.sideLow[pair].process(side)
			side -= sideLow * amount

			l[i] = mid + side
			r[i] = mid - side
		}
	}
}
