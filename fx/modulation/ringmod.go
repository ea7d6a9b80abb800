package modulation

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/engine"
)

// RingMod multiplies the input by an internal carrier oscillator. Shape
// morphs the carrier from sine toward square, which thickens the sideband
// spread.
//
// Parameters: Frequency, Shape, Mix.
type RingMod struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	carrier lfo
}

// NewRingMod creates an unprepared ring modulator.
func NewRingMod() *RingMod {
	return &RingMod{params: engine.NewParamSetFor(engine.RingModulator, "Frequency", "Shape", "Mix")}
}

// Name implements engine.Engine.
func (r *RingMod) Name() string { return "Ring Modulator" }

// NumParameters implements engine.Engine.
func (r *RingMod) NumParameters() int { return r.params.Num() }

// ParameterName implements engine.Engine.
func (r *RingMod) ParameterName(i int) string { return r.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (r *RingMod) UpdateParameters(changes map[int]float64) { r.params.Update(changes) }

// LatencySamples implements engine.Engine.
func (r *RingMod) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (r *RingMod) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("ring modulator sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("ring modulator max block must be > 0: %d", maxBlock)
	}

	r.sampleRate = sampleRate
	r.prepared = true
	r.carrier.reset()

	return nil
}

// Reset implements engine.Engine.
func (r *RingMod) Reset() { r.carrier.reset() }

// Process implements engine.Engine.
func (r *RingMod) Process(buf [][]float64) {
	if !r.prepared || len(buf) == 0 {
		return
	}

	nch := len(buf)
	if nch > engine.MaxChannels {
		nch = engine.MaxChannels
	}

	// Carrier 20 Hz .. 4 kHz, log.
	r.carrier.setRate(20*math.Pow(200, r.params.Value(0)), r.sampleRate)

	shape := r.params.Value(1)
	mix := r.params.Value(2)

	n := len(buf[0])
	for i := 0; i < n; i++ {
		carrier := r.carrier.value(0, shape)

		for ch := 0; ch < nch; ch++ {
			dry := buf[ch][i]
			buf[ch][i] = dry*(1-mix) + dry*carrier*mix
		}

		r.carrier.advance()
	}
}
