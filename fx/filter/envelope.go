package filter

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/filter/svf"
	"github.com/cwbudde/algo-rack/engine"
)

// Envelope is an auto-wah: an envelope follower sweeps a resonant filter up
// or down from its base frequency.
//
// Parameters: Sensitivity, Range, Resonance, Speed, Direction.
type Envelope struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	filters []*svf.Filter
	env     []float64
}

// NewEnvelope creates an unprepared envelope filter.
func NewEnvelope() *Envelope {
	return &Envelope{params: engine.NewParamSetFor(engine.EnvelopeFilter, "Sensitivity", "Range", "Resonance", "Speed", "Direction")}
}

// Name implements engine.Engine.
func (e *Envelope) Name() string { return "Envelope Filter" }

// NumParameters implements engine.Engine.
func (e *Envelope) NumParameters() int { return e.params.Num() }

// ParameterName implements engine.Engine.
func (e *Envelope) ParameterName(i int) string { return e.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (e *Envelope) UpdateParameters(changes map[int]float64) { e.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (e *Envelope) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (e *Envelope) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("envelope filter sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("envelope filter max block must be > 0: %d", maxBlock)
	}

	e.sampleRate = sampleRate

	e.filters = e.filters[:0]
	for ch := 0; ch < engine.MaxChannels; ch++ {
		f, err := svf.New(sampleRate)
		if err != nil {
			return err
		}

		f.SetOutput(svf.Lowpass)
		e.filters = append(e.filters, f)
	}

	e.env = make([]float64, engine.MaxChannels)
	e.prepared = true

	return nil
}

// Reset implements engine.Engine.
func (e *Envelope) Reset() {
	for _, f := range e.filters {
		f.Reset()
	}

	core.Zero(e.env)
}

// Process implements engine.Engine.
func (e *Envelope) Process(buf [][]float64) {
	if !e.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	sensitivity := e.params.Value(0) * 8
	octaves := 1 + e.params.Value(1) * 4
	q := 1 + e.params.Value(2)*e.params.Value(2)*14
	down := e.params.Bool(4)

	// Speed sets attack and release together, fast wah to slow filter pad.
	speed := e.params.Value(3)
	attack := envCoeff(2+speed*28, e.sampleRate)
	release := envCoeff(20+speed*280, e.sampleRate)

	base := 120.0
	if down {
		base = 2400.0
	}

	for ch := 0; ch < nch; ch++ {
		e.filters[ch].SetQ(q)
	}

	for i := range buf[0] {
		for ch := 0; ch < nch; ch++ {
			x := buf[ch][i]

			level := math.Abs(x) * sensitivity
			if level > e.env[ch] {
				e.env[ch] += (level - e.env[ch]) * attack
			} else {
				e.env[ch] += (level - e.env[ch]) * release
			}

			sweep := core.Clamp(e.env[ch], 0, 1) * octaves
			if down {
				sweep = -sweep
			}

			cutoff := core.Clamp(base*math.Pow(2, sweep), 40, 0.45*e.sampleRate)

			e.filters[ch].SetCutoff(cutoff)
			buf[ch][i] = e.filters[ch].ProcessSample(x)
		}
	}
}

// envCoeff converts a time constant in milliseconds to a one-pole step.
func envCoeff(ms, sampleRate float64) float64 {
	return 1 - math.Exp(-1/(ms*0.001*sampleRate))
}
