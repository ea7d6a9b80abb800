package modulation

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/engine"
)

// AutoPan sweeps stereo pairs across the field with an equal-power law.
// With sync engaged the rate knob selects a tempo division instead of
// hertz. Mono (single channel) input passes through untouched.
//
// Parameters: Rate, Depth, Shape, Sync.
type AutoPan struct {
	params *engine.ParamSet

	sampleRate float64
	prepared   bool

	osc       lfo
	transport engine.TransportInfo
}

// NewAutoPan creates an unprepared auto-panner.
func NewAutoPan() *AutoPan {
	return &AutoPan{
		params:    engine.NewParamSetFor(engine.AutoPan, "Rate", "Depth", "Shape", "Sync"),
		transport: engine.DefaultTransport(),
	}
}

// Name implements engine.Engine.
func (a *AutoPan) Name() string { return "Auto-Pan" }

// NumParameters implements engine.Engine.
func (a *AutoPan) NumParameters() int { return a.params.Num() }

// ParameterName implements engine.Engine.
func (a *AutoPan) ParameterName(i int) string { return a.params.Name(i) }

// UpdateParameters implements engine.Engine.
func (a *AutoPan) UpdateParameters(changes map[int]float64) { a.params.Update(changes) }

// SetTransportInfo implements engine.TempoSynced.
func (a *AutoPan) SetTransportInfo(info engine.TransportInfo) { a.transport = info }

// LatencySamples implements engine.Engine.
func (a *AutoPan) LatencySamples() int { return 0 }

// Prepare implements engine.Engine.
func (a *AutoPan) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("auto-pan sample rate must be > 0: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("auto-pan max block must be > 0: %d", maxBlock)
	}

	a.sampleRate = sampleRate
	a.prepared = true
	a.osc.reset()

	return nil
}

// Reset implements engine.Engine.
func (a *AutoPan) Reset() { a.osc.reset() }

// Process implements engine.Engine.
func (a *AutoPan) Process(buf [][]float64) {
	if !a.prepared || len(buf) < 2 {
		return
	}

	if a.params.Bool(3) {
		period := engine.DivisionSamples(a.params.Value(0), a.transport, a.sampleRate)
		a.osc.setRate(a.sampleRate/period, a.sampleRate)
	} else {
		a.osc.setRate(tremoloRate(a.params.Value(0)), a.sampleRate)
	}

	depth := a.params.Value(1)
	shape := a.params.Value(2)

	n := len(buf[0])
	for i := 0; i < n; i++ {
		// pan in [0,1], 0.5 center.
		pan := 0.5 + 0.5*depth*a.osc.value(0, shape)

		left := math.Cos(pan * math.Pi / 2)
		right := math.Sin(pan * math.Pi / 2)

		// Stereo pairs share the sweep. sqrt2 restores center level
		// under the equal-power law.
		for ch := 0; ch+1 < len(buf); ch += 2 {
			buf[ch][i] *= left * math.Sqrt2
			buf[ch+1][i] *= right * math.Sqrt2
		}

		a.osc.advance()
	}
}
